package reports

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/mortgage-ai-platform/internal/analytics"
	"github.com/wolfman30/mortgage-ai-platform/internal/http/respond"
	"github.com/wolfman30/mortgage-ai-platform/internal/leads"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

var tracer = otel.Tracer("mortgage.internal.reports")

// EventRecorder records analytics events.
type EventRecorder interface {
	Record(ctx context.Context, evt analytics.ConversionEvent) error
}

// Handler serves POST /api/reports/affordability.
type Handler struct {
	builder  *Builder
	archive  *Archive
	recorder EventRecorder
	logger   *logging.Logger
}

// NewHandler creates a report handler. archive and recorder may be nil.
func NewHandler(builder *Builder, archive *Archive, recorder EventRecorder, logger *logging.Logger) *Handler {
	if builder == nil {
		panic("reports: builder cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{builder: builder, archive: archive, recorder: recorder, logger: logger}
}

// Generate handles POST /api/reports/affordability. Archiving failures are
// logged and the report is still returned.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "reports.generate")
	defer span.End()

	var profile leads.ApplicantProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		respond.Invalid(w, "invalid request body", []string{err.Error()})
		return
	}

	rep, err := h.builder.Build(profile)
	if err != nil {
		var verr *leads.ValidationError
		if errors.As(err, &verr) {
			respond.Invalid(w, "invalid applicant profile", verr.Details)
			return
		}
		span.RecordError(err)
		h.logger.Error("failed to build report", "error", err)
		respond.Internal(w)
		return
	}
	span.SetAttributes(
		attribute.String("mortgage.report_id", rep.ID),
		attribute.Int("mortgage.lead_score", rep.Score.Value),
	)

	if h.archive.Enabled() {
		key, err := h.archive.Store(ctx, rep)
		if err != nil {
			span.RecordError(err)
			h.logger.Error("failed to archive report", "report_id", rep.ID, "error", err)
		}
		rep.ArchiveKey = key
	}

	if h.recorder != nil {
		score := rep.Score.Value
		evt := analytics.ConversionEvent{
			Name:      analytics.EventReportGenerated,
			SessionID: rep.ID,
			LeadScore: &score,
			Properties: map[string]any{
				"persona_id":      rep.Persona.ID,
				"limiting_factor": string(rep.Calculation.LimitingFactor),
				"archived":        rep.ArchiveKey != "",
			},
		}
		if err := h.recorder.Record(ctx, evt); err != nil {
			h.logger.Warn("failed to record report event", "report_id", rep.ID, "error", err)
		}
	}

	h.logger.Info("report generated", "report_id", rep.ID, "score", rep.Score.Value, "persona_id", rep.Persona.ID)
	respond.JSON(w, http.StatusCreated, rep)
}
