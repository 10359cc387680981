package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// Status of a tracked conversation. Resolved conversations are not stored:
// resolving deletes the entry, so the next event starts a fresh one.
type Status string

const StatusActive Status = "active"

// State is the per-conversation record used to deduplicate webhook
// deliveries.
type State struct {
	ConversationID int64     `json:"conversationId" dynamodbav:"conversationId"`
	Status         Status    `json:"status" dynamodbav:"status"`
	BrokerAssigned bool      `json:"brokerAssigned" dynamodbav:"brokerAssigned"`
	PersonaID      string    `json:"personaId,omitempty" dynamodbav:"personaId,omitempty"`
	LeadID         string    `json:"leadId,omitempty" dynamodbav:"leadId,omitempty"`
	LeadScore      int       `json:"leadScore" dynamodbav:"leadScore"`
	LeadCategory   string    `json:"leadCategory,omitempty" dynamodbav:"leadCategory,omitempty"`
	LastMessageID  int64     `json:"lastMessageId" dynamodbav:"lastMessageId"`
	IsTyping       bool      `json:"isTyping" dynamodbav:"isTyping"`
	FormSubmitted  bool      `json:"formSubmitted" dynamodbav:"formSubmitted"`
	Version        int64     `json:"version" dynamodbav:"version"`
	CreatedAt      time.Time `json:"createdAt" dynamodbav:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" dynamodbav:"updatedAt"`
}

// ErrStateConflict is returned when a compare-and-swap update keeps losing
// to concurrent writers.
var ErrStateConflict = errors.New("conversation: state update conflict")

// maxCASAttempts bounds optimistic retries in shared stores.
const maxCASAttempts = 5

// UpdateFunc computes the next state from the current one (nil when absent).
// Returning nil deletes the entry. Returning current itself skips the write.
type UpdateFunc func(current *State) (*State, error)

// StateStore persists conversation state with per-key atomic updates.
type StateStore interface {
	// Get returns nil, nil when the conversation is not tracked.
	Get(ctx context.Context, conversationID int64) (*State, error)
	Update(ctx context.Context, conversationID int64, fn UpdateFunc) (*State, error)
	Delete(ctx context.Context, conversationID int64) error
}

// Observation is the outcome of recording an inbound event.
type Observation struct {
	State State
	// Fresh is true when this event created the entry.
	Fresh bool
	// Duplicate is true when the message id was at or below the watermark.
	Duplicate bool
}

// Tracker applies conversation lifecycle transitions on top of a StateStore.
type Tracker struct {
	store  StateStore
	logger *logging.Logger
	now    func() time.Time
}

// NewTracker wraps store.
func NewTracker(store StateStore, logger *logging.Logger) *Tracker {
	if store == nil {
		panic("conversation: state store cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Tracker{store: store, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Observe records an event for the conversation. messageID 0 means the event
// carries no message (conversation_created) and never counts as a duplicate.
// The watermark only moves when messageID is strictly greater.
func (t *Tracker) Observe(ctx context.Context, conversationID, messageID int64) (Observation, error) {
	var obs Observation
	state, err := t.store.Update(ctx, conversationID, func(cur *State) (*State, error) {
		obs = Observation{}
		now := t.now()
		if cur == nil {
			obs.Fresh = true
			return &State{
				ConversationID: conversationID,
				Status:         StatusActive,
				LastMessageID:  messageID,
				CreatedAt:      now,
				UpdatedAt:      now,
			}, nil
		}
		if messageID == 0 {
			return cur, nil
		}
		if cur.IsDuplicate(messageID) {
			obs.Duplicate = true
			return cur, nil
		}
		next := *cur
		next.LastMessageID = messageID
		next.UpdatedAt = now
		return &next, nil
	})
	if err != nil {
		return Observation{}, fmt.Errorf("conversation: observe %d: %w", conversationID, err)
	}
	obs.State = *state
	return obs, nil
}

// IsDuplicate reports whether messageID is at or below the state's watermark.
func (s State) IsDuplicate(messageID int64) bool {
	return messageID != 0 && messageID <= s.LastMessageID
}

// Advance moves the watermark to messageID once the reply for it is claimed.
// It reports false when a concurrent delivery already moved it there or
// past it.
func (t *Tracker) Advance(ctx context.Context, conversationID, messageID int64) (bool, error) {
	advanced := false
	_, err := t.store.Update(ctx, conversationID, func(cur *State) (*State, error) {
		advanced = false
		now := t.now()
		if cur == nil {
			advanced = true
			return &State{
				ConversationID: conversationID,
				Status:         StatusActive,
				LastMessageID:  messageID,
				CreatedAt:      now,
				UpdatedAt:      now,
			}, nil
		}
		if cur.IsDuplicate(messageID) {
			return cur, nil
		}
		advanced = true
		next := *cur
		next.LastMessageID = messageID
		next.UpdatedAt = now
		return &next, nil
	})
	if err != nil {
		return false, fmt.Errorf("conversation: advance %d: %w", conversationID, err)
	}
	return advanced, nil
}

// Get returns the tracked state or nil.
func (t *Tracker) Get(ctx context.Context, conversationID int64) (*State, error) {
	return t.store.Get(ctx, conversationID)
}

// Assignment is the broker/lead data attached to a conversation.
type Assignment struct {
	PersonaID    string
	LeadID       string
	LeadScore    int
	LeadCategory string
}

// MarkAssigned records the broker persona and lead for the conversation.
func (t *Tracker) MarkAssigned(ctx context.Context, conversationID int64, a Assignment) (*State, error) {
	return t.mutate(ctx, conversationID, func(s *State) {
		s.BrokerAssigned = true
		s.PersonaID = a.PersonaID
		if a.LeadID != "" {
			s.LeadID = a.LeadID
		}
		s.LeadScore = a.LeadScore
		s.LeadCategory = a.LeadCategory
	})
}

// MarkFormSubmitted flags that the applicant completed the form.
func (t *Tracker) MarkFormSubmitted(ctx context.Context, conversationID int64) (*State, error) {
	return t.mutate(ctx, conversationID, func(s *State) { s.FormSubmitted = true })
}

// SetTyping records the transient typing hint.
func (t *Tracker) SetTyping(ctx context.Context, conversationID int64, typing bool) (*State, error) {
	return t.mutate(ctx, conversationID, func(s *State) { s.IsTyping = typing })
}

// Resolve ends the conversation and deletes its state.
func (t *Tracker) Resolve(ctx context.Context, conversationID int64) error {
	if err := t.store.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("conversation: resolve %d: %w", conversationID, err)
	}
	t.logger.Debug("conversation state cleared", "conversation_id", conversationID)
	return nil
}

// mutate applies fn to the state, creating an active entry if absent.
func (t *Tracker) mutate(ctx context.Context, conversationID int64, fn func(*State)) (*State, error) {
	state, err := t.store.Update(ctx, conversationID, func(cur *State) (*State, error) {
		now := t.now()
		var next State
		if cur == nil {
			next = State{ConversationID: conversationID, Status: StatusActive, CreatedAt: now}
		} else {
			next = *cur
		}
		fn(&next)
		next.UpdatedAt = now
		return &next, nil
	})
	if err != nil {
		return nil, fmt.Errorf("conversation: update %d: %w", conversationID, err)
	}
	return state, nil
}
