package analytics

import (
	"io"
	"net/http"
	"time"

	"github.com/wolfman30/mortgage-ai-platform/internal/http/respond"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
	"golang.org/x/net/websocket"
)

const maxEventBody = 64 << 10

// Handler exposes event ingestion and the dashboard.
type Handler struct {
	recorder       *Recorder
	dashboard      *DashboardBuilder
	logger         *logging.Logger
	streamInterval time.Duration
}

// NewHandler creates the analytics HTTP handler.
func NewHandler(recorder *Recorder, dashboard *DashboardBuilder, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{recorder: recorder, dashboard: dashboard, logger: logger, streamInterval: 5 * time.Second}
}

// PostEvent handles POST /api/analytics/events.
func (h *Handler) PostEvent(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		respond.Invalid(w, "invalid request body", []string{err.Error()})
		return
	}
	evt, details, err := h.recorder.RecordJSON(r.Context(), raw)
	if err != nil {
		h.logger.Error("record analytics event failed", "error", err)
		respond.Internal(w)
		return
	}
	if len(details) > 0 {
		respond.Invalid(w, "invalid analytics event", details)
		return
	}
	respond.JSON(w, http.StatusAccepted, evt)
}

// GetDashboard handles GET /api/analytics/dashboard?window=24h.
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	window := 24 * time.Hour
	if raw := r.URL.Query().Get("window"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil || parsed <= 0 {
			respond.Invalid(w, "invalid window", []string{"window must be a positive duration such as 24h"})
			return
		}
		window = parsed
	}
	d, err := h.dashboard.Build(r.Context(), window)
	if err != nil {
		h.logger.Error("build dashboard failed", "error", err)
		respond.Internal(w)
		return
	}
	respond.JSON(w, http.StatusOK, d)
}

// StreamMessage is pushed to dashboard websocket clients.
type StreamMessage struct {
	Type      string           `json:"type"` // "snapshot" or "event"
	Dashboard *Dashboard       `json:"dashboard,omitempty"`
	Event     *ConversionEvent `json:"event,omitempty"`
}

// Stream handles GET /api/analytics/stream. It sends a dashboard snapshot on
// connect and on every interval, plus each event as it is recorded.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveStream(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveStream(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()
	events, cancel := h.recorder.Subscribe()
	defer cancel()

	// Reader goroutine notices the client going away.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		var discard any
		for {
			if err := websocket.JSON.Receive(conn, &discard); err != nil {
				return
			}
		}
	}()

	sendSnapshot := func() bool {
		d, err := h.dashboard.Build(ctx, 24*time.Hour)
		if err != nil {
			h.logger.Warn("dashboard stream snapshot failed", "error", err)
			return true
		}
		return websocket.JSON.Send(conn, StreamMessage{Type: "snapshot", Dashboard: d}) == nil
	}
	if !sendSnapshot() {
		return
	}

	ticker := time.NewTicker(h.streamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-closed:
			return
		case <-ticker.C:
			if !sendSnapshot() {
				return
			}
		case evt, ok := <-events:
			if !ok {
				return
			}
			if err := websocket.JSON.Send(conn, StreamMessage{Type: "event", Event: &evt}); err != nil {
				return
			}
		}
	}
}
