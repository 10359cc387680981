package health

import (
	"net/http"

	"github.com/wolfman30/mortgage-ai-platform/internal/http/respond"
)

// Handler serves the liveness and readiness endpoints.
type Handler struct {
	checker *Checker
}

func NewHandler(checker *Checker) *Handler {
	return &Handler{checker: checker}
}

// Live always answers 200 while the process is serving.
func (h *Handler) Live(w http.ResponseWriter, _ *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Report runs the probes and answers 200, 206 or 503.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Run(r.Context())
	respond.JSON(w, report.Status.HTTPStatus(), report)
}
