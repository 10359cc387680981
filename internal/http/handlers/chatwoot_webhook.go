// Package handlers holds HTTP handlers that sit in front of the chat
// pipeline rather than inside a domain package.
package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/wolfman30/mortgage-ai-platform/internal/chatwoot"
	"github.com/wolfman30/mortgage-ai-platform/internal/http/respond"
	"github.com/wolfman30/mortgage-ai-platform/internal/observability/metrics"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

const (
	maxWebhookBody   = 1 << 20
	detachedDeadline = 60 * time.Second
)

// EventPublisher enqueues events for the conversation workers.
type EventPublisher interface {
	Enqueue(ctx context.Context, ev *chatwoot.Event) (string, error)
}

// EventHandler processes an event in-process.
type EventHandler interface {
	Handle(ctx context.Context, ev *chatwoot.Event) error
}

// ChatwootWebhookHandler acks Chatwoot webhooks once they are structurally
// valid. Work happens on the queue; if the queue refuses the job the event
// is handled in a detached goroutine instead.
type ChatwootWebhookHandler struct {
	verifier  *chatwoot.SignatureVerifier
	publisher EventPublisher
	processor EventHandler
	metrics   *metrics.ChatMetrics
	logger    *logging.Logger

	inflight sync.WaitGroup
}

// NewChatwootWebhookHandler wires the handler. publisher may be nil, in which
// case every event is handled in-process.
func NewChatwootWebhookHandler(verifier *chatwoot.SignatureVerifier, publisher EventPublisher, processor EventHandler, m *metrics.ChatMetrics, logger *logging.Logger) *ChatwootWebhookHandler {
	if processor == nil {
		panic("handlers: chatwoot webhook requires a processor")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &ChatwootWebhookHandler{
		verifier:  verifier,
		publisher: publisher,
		processor: processor,
		metrics:   m,
		logger:    logger,
	}
}

type webhookAck struct {
	Status string `json:"status"`
	JobID  string `json:"job_id,omitempty"`
}

func (h *ChatwootWebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respond.Error(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		respond.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.verifier.Verify(r.Header.Get(chatwoot.TimestampHeader), r.Header.Get(chatwoot.SignatureHeader), body); err != nil {
		h.logger.Warn("chatwoot webhook signature rejected", "error", err)
		h.metrics.ObserveInbound("unknown", "unauthorized")
		respond.Error(w, http.StatusUnauthorized, "invalid signature")
		return
	}

	ev, err := chatwoot.ParseEvent(body)
	if err != nil {
		var perr *chatwoot.PayloadError
		if errors.As(err, &perr) {
			h.logger.Warn("chatwoot webhook rejected", "details", perr.Details)
			h.metrics.ObserveInbound("unknown", "invalid")
			respond.Invalid(w, "invalid webhook payload", perr.Details)
			return
		}
		h.logger.Error("chatwoot webhook validation failed", "error", err)
		respond.Internal(w)
		return
	}

	if !ev.Type.Handled() {
		h.metrics.ObserveInbound(string(ev.Type), "ignored")
		respond.JSON(w, http.StatusOK, webhookAck{Status: "ignored"})
		return
	}

	if h.publisher != nil {
		jobID, err := h.publisher.Enqueue(r.Context(), ev)
		if err == nil {
			respond.JSON(w, http.StatusOK, webhookAck{Status: "queued", JobID: jobID})
			return
		}
		h.logger.Error("chatwoot webhook enqueue failed, handling in-process",
			"error", err, "event", ev.Type, "conversation_id", ev.ConversationID())
	}

	h.handleDetached(r.Context(), ev)
	respond.JSON(w, http.StatusOK, webhookAck{Status: "accepted"})
}

// handleDetached processes ev after the response is written. The request
// context is detached so the ack does not cancel the work.
func (h *ChatwootWebhookHandler) handleDetached(ctx context.Context, ev *chatwoot.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), detachedDeadline)
	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer cancel()
		if err := h.processor.Handle(ctx, ev); err != nil {
			h.logger.ForConversation(ev.ConversationID()).Error("in-process webhook handling failed",
				"event", ev.Type, "error", err)
		}
	}()
}

// Wait blocks until detached handlers finish or ctx is done.
func (h *ChatwootWebhookHandler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
