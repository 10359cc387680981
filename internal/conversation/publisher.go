package conversation

import (
	"context"
	"errors"
	"fmt"

	"github.com/wolfman30/mortgage-ai-platform/internal/chatwoot"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// Publisher enqueues webhook events for asynchronous processing.
type Publisher struct {
	queue  JobQueue
	logger *logging.Logger
}

// NewPublisher creates a queue-backed publisher.
func NewPublisher(queue JobQueue, logger *logging.Logger) *Publisher {
	if queue == nil {
		panic("conversation: queue cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Publisher{queue: queue, logger: logger}
}

// Enqueue publishes ev and returns the job id.
func (p *Publisher) Enqueue(ctx context.Context, ev *chatwoot.Event) (string, error) {
	if ev == nil {
		return "", errors.New("conversation: event cannot be nil")
	}
	payload, body, err := encodePayload(queuePayload{Kind: jobTypeChatwootEvent, Event: ev})
	if err != nil {
		return "", err
	}
	attrs := JobAttributes{
		JobID:          payload.ID,
		EventType:      string(ev.Type),
		ConversationID: ev.ConversationID(),
	}
	if err := p.queue.Send(ctx, body, attrs); err != nil {
		return "", fmt.Errorf("conversation: failed to enqueue job: %w", err)
	}

	p.logger.Debug("conversation job enqueued",
		"job_id", payload.ID,
		"event", ev.Type,
		"conversation_id", ev.ConversationID(),
	)
	return payload.ID, nil
}
