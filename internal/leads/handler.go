package leads

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wolfman30/mortgage-ai-platform/internal/http/respond"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// Handler handles HTTP requests for leads
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates a new leads handler
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Submit handles POST /api/leads
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var profile ApplicantProfile
	if err := json.NewDecoder(r.Body).Decode(&profile); err != nil {
		h.logger.Warn("failed to decode lead", "error", err)
		respond.Invalid(w, "invalid request body", []string{err.Error()})
		return
	}

	sub, err := h.service.Submit(r.Context(), profile)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			respond.Invalid(w, "invalid applicant profile", verr.Details)
			return
		}
		h.logger.Error("failed to submit lead", "error", err)
		respond.Internal(w)
		return
	}
	respond.JSON(w, http.StatusCreated, sub)
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// List handles GET /admin/leads
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{Limit: 50}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	if category := r.URL.Query().Get("category"); category != "" {
		filter.Category = Category(category)
	}

	leads, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		respond.Internal(w)
		return
	}
	respond.JSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// Get handles GET /admin/leads/{leadID}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.service.Get(r.Context(), chi.URLParam(r, "leadID"))
	if err != nil {
		if errors.Is(err, ErrLeadNotFound) {
			respond.Error(w, http.StatusNotFound, "lead not found")
			return
		}
		h.logger.Error("failed to get lead", "error", err)
		respond.Internal(w)
		return
	}
	respond.JSON(w, http.StatusOK, lead)
}
