package affordability

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wolfman30/mortgage-ai-platform/internal/http/respond"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// Observer is notified after every calculation (metrics, analytics).
type Observer interface {
	ObserveCalculation(limitingFactor string, compliant bool)
}

// Handler serves POST /api/calculate.
type Handler struct {
	rules    Rules
	observer Observer
	logger   *logging.Logger
}

// NewHandler creates a calculator handler. observer may be nil.
func NewHandler(rules Rules, observer Observer, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{rules: rules, observer: observer, logger: logger}
}

// Validate returns field-level problems that make an input unusable. Business
// edge cases such as zero income are not validation errors.
func (in Input) Validate() []string {
	var details []string
	if in.PropertyPrice <= 0 {
		details = append(details, "propertyPrice must be greater than zero")
	}
	if in.PropertyType == "" {
		details = append(details, "propertyType is required")
	}
	for i, v := range in.MonthlyIncomes {
		if v < 0 {
			details = append(details, fmt.Sprintf("monthlyIncomes[%d] must not be negative", i))
		}
	}
	if in.ExistingCommitments < 0 {
		details = append(details, "existingCommitments must not be negative")
	}
	for i, age := range in.Ages {
		if age < 18 || age > 100 {
			details = append(details, fmt.Sprintf("ages[%d] must be between 18 and 100", i))
		}
	}
	if in.PropertyCount < 0 {
		details = append(details, "propertyCount must not be negative")
	}
	if in.TenureYears < 0 {
		details = append(details, "tenureYears must not be negative")
	}
	return details
}

// Calculate handles POST /api/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.logger.Warn("calculate: invalid request body", "error", err)
		respond.Invalid(w, "invalid request body", []string{err.Error()})
		return
	}
	if details := in.Validate(); len(details) > 0 {
		respond.Invalid(w, "invalid calculation input", details)
		return
	}

	res := CalculateWithRules(in, h.rules)
	if h.observer != nil {
		h.observer.ObserveCalculation(string(res.LimitingFactor), res.MASCompliant)
	}
	h.logger.Debug("calculation complete",
		"property_type", in.PropertyType,
		"max_loan", res.MaxLoan,
		"limiting_factor", res.LimitingFactor,
	)
	respond.JSON(w, http.StatusOK, res.Rounded())
}
