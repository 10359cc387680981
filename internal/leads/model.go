package leads

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/wolfman30/mortgage-ai-platform/internal/affordability"
)

// LoanType is what the applicant wants financed.
type LoanType string

const (
	LoanNewPurchase LoanType = "new_purchase"
	LoanRefinance   LoanType = "refinance"
	LoanCommercial  LoanType = "commercial"
)

// Timeline values accepted from the multi-step form.
const (
	TimelineImmediate  = "immediate"
	TimelineOneToThree = "1_3_months"
	TimelineThreeToSix = "3_6_months"
	TimelineLater      = "later"
	TimelineExploring  = "exploring"
)

// ApplicantProfile is one form submission. It is never edited in place: a
// re-submission produces a new snapshot.
type ApplicantProfile struct {
	Name                string                     `json:"name"`
	Email               string                     `json:"email"`
	Phone               string                     `json:"phone"`
	LoanType            LoanType                   `json:"loanType"`
	PropertyType        affordability.PropertyType `json:"propertyType"`
	PropertyCategory    string                     `json:"propertyCategory,omitempty"`
	PropertyPrice       float64                    `json:"propertyPrice"`
	MonthlyIncomes      []float64                  `json:"monthlyIncomes"`
	ExistingCommitments float64                    `json:"existingCommitments"`
	Ages                []int                      `json:"ages"`
	Citizenship         affordability.Citizenship  `json:"citizenship"`
	PropertyCount       int                        `json:"propertyCount"`
	EmploymentType      string                     `json:"employmentType,omitempty"`
	PurchaseTimeline    string                     `json:"purchaseTimeline,omitempty"`
	Urgent              bool                       `json:"urgent,omitempty"`
	Financing           affordability.Financing    `json:"financing,omitempty"`
	TenureYears         int                        `json:"tenureYears,omitempty"`
	ConsentGiven        bool                       `json:"consentGiven"`
	ConversationID      int64                      `json:"conversationId,omitempty"`
}

// Lead is a stored, scored snapshot of a profile.
type Lead struct {
	ID              string           `json:"id"`
	LeadKey         string           `json:"leadKey"`
	SnapshotVersion int              `json:"snapshotVersion"`
	Profile         ApplicantProfile `json:"profile"`
	Score           Score            `json:"score"`
	PersonaID       string           `json:"personaId"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// Validate checks the profile, returning a *ValidationError listing every
// problem.
func (p *ApplicantProfile) Validate() error {
	var details []string
	if strings.TrimSpace(p.Name) == "" {
		details = append(details, "name is required")
	}
	if strings.TrimSpace(p.Email) == "" && strings.TrimSpace(p.Phone) == "" {
		details = append(details, "either email or phone is required")
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			details = append(details, "email is not a valid address")
		}
	}
	switch p.LoanType {
	case LoanNewPurchase, LoanRefinance, LoanCommercial:
	default:
		details = append(details, fmt.Sprintf("loanType %q is not supported", p.LoanType))
	}
	if !p.PropertyType.Valid() {
		details = append(details, fmt.Sprintf("propertyType %q is not supported", p.PropertyType))
	}
	if p.PropertyPrice <= 0 {
		details = append(details, "propertyPrice must be greater than zero")
	}
	if len(p.MonthlyIncomes) == 0 {
		details = append(details, "at least one monthly income is required")
	}
	for i, v := range p.MonthlyIncomes {
		if v < 0 {
			details = append(details, fmt.Sprintf("monthlyIncomes[%d] must not be negative", i))
		}
	}
	if p.ExistingCommitments < 0 {
		details = append(details, "existingCommitments must not be negative")
	}
	for i, age := range p.Ages {
		if age < 18 || age > 100 {
			details = append(details, fmt.Sprintf("ages[%d] must be between 18 and 100", i))
		}
	}
	switch p.Citizenship {
	case affordability.Citizen, affordability.PR, affordability.Foreigner:
	default:
		details = append(details, fmt.Sprintf("citizenship %q is not supported", p.Citizenship))
	}
	if p.PropertyCount < 0 {
		details = append(details, "propertyCount must not be negative")
	}
	if !p.ConsentGiven {
		details = append(details, "consent to be contacted is required")
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// CalculatorInput maps the profile onto the affordability calculator.
func (p ApplicantProfile) CalculatorInput() affordability.Input {
	return affordability.Input{
		PropertyPrice:       p.PropertyPrice,
		PropertyType:        p.PropertyType,
		MonthlyIncomes:      append([]float64(nil), p.MonthlyIncomes...),
		ExistingCommitments: p.ExistingCommitments,
		Ages:                append([]int(nil), p.Ages...),
		Citizenship:         p.Citizenship,
		PropertyCount:       p.PropertyCount,
		Financing:           p.Financing,
		TenureYears:         p.TenureYears,
	}
}

// TotalIncome sums every applicant's monthly income.
func (p ApplicantProfile) TotalIncome() float64 {
	var total float64
	for _, v := range p.MonthlyIncomes {
		if v > 0 {
			total += v
		}
	}
	return total
}

// Key identifies the applicant across snapshots without storing contact
// details in the clear: a hash of the normalized email, or phone if no email.
func (p ApplicantProfile) Key() string {
	id := strings.ToLower(strings.TrimSpace(p.Email))
	if id == "" {
		id = normalizePhone(p.Phone)
	}
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func normalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || (r == '+' && b.Len() == 0) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// clone deep-copies the slices so stored snapshots cannot be mutated through
// a returned pointer.
func (l *Lead) clone() *Lead {
	if l == nil {
		return nil
	}
	out := *l
	out.Profile.MonthlyIncomes = append([]float64(nil), l.Profile.MonthlyIncomes...)
	out.Profile.Ages = append([]int(nil), l.Profile.Ages...)
	out.Score.Breakdown = make(map[string]int, len(l.Score.Breakdown))
	for k, v := range l.Score.Breakdown {
		out.Score.Breakdown[k] = v
	}
	return &out
}
