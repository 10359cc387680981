package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/mortgage-ai-platform/internal/chatwoot"
)

// JobQueue carries encoded webhook jobs from the edge to the workers.
// MemoryQueue and SQSQueue implement it.
type JobQueue interface {
	Send(ctx context.Context, body string, attrs JobAttributes) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]queueMessage, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// JobAttributes travel beside the job body so a job can be traced and logged
// even when its body cannot be decoded.
type JobAttributes struct {
	JobID          string
	EventType      string
	ConversationID int64
}

type queueMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
	Attributes    JobAttributes
}

type jobType string

const jobTypeChatwootEvent jobType = "chatwoot_event.v1"

// queuePayload is the job body. The webhook is decoded once at the edge and
// carried in normalized form.
type queuePayload struct {
	ID         string          `json:"id"`
	Kind       jobType         `json:"kind"`
	ReceivedAt time.Time       `json:"received_at"`
	Event      *chatwoot.Event `json:"event"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if payload.ReceivedAt.IsZero() {
		payload.ReceivedAt = time.Now().UTC()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("conversation: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}

func decodePayload(body string) (queuePayload, error) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return queuePayload{}, fmt.Errorf("conversation: failed to decode payload: %w", err)
	}
	if payload.Kind != jobTypeChatwootEvent {
		return queuePayload{}, fmt.Errorf("conversation: unknown job kind %q", payload.Kind)
	}
	if payload.Event == nil {
		return queuePayload{}, errors.New("conversation: job has no event")
	}
	return payload, nil
}
