package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
	"github.com/xeipuuv/gojsonschema"
)

// eventSchema describes an inbound event posted by the web front end.
const eventSchema = `{
	"type": "object",
	"required": ["eventName", "sessionId"],
	"properties": {
		"eventName": {"type": "string", "enum": [
			"page_view", "form_started", "form_submitted", "lead_scored",
			"broker_assigned", "chat_started", "message_received", "reply_sent",
			"calculation_delivered", "handoff_requested", "report_generated",
			"conversation_resolved"
		]},
		"sessionId": {"type": "string", "minLength": 1, "maxLength": 128},
		"timestamp": {"type": "string", "format": "date-time"},
		"leadScore": {"type": "integer", "minimum": 0, "maximum": 100},
		"properties": {"type": "object"}
	}
}`

var eventSchemaLoader = gojsonschema.NewStringLoader(eventSchema)

// ValidateEventJSON checks a raw event body, returning one detail per problem.
func ValidateEventJSON(raw []byte) ([]string, error) {
	result, err := gojsonschema.Validate(eventSchemaLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("analytics: validate event: %w", err)
	}
	if result.Valid() {
		return nil, nil
	}
	details := make([]string, len(result.Errors()))
	for i, desc := range result.Errors() {
		details[i] = desc.String()
	}
	return details, nil
}

// Recorder appends events to the log, bumps counters and fans the event out
// to live subscribers.
type Recorder struct {
	log     EventLog
	metrics MetricsStore
	logger  *logging.Logger
	now     func() time.Time

	mu   sync.RWMutex
	subs map[chan ConversionEvent]struct{}
}

// NewRecorder wires a recorder. Both backends are required.
func NewRecorder(log EventLog, metrics MetricsStore, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		log:     log,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		subs:    make(map[chan ConversionEvent]struct{}),
	}
}

// Record stores evt. Missing ID and timestamp are filled in.
func (r *Recorder) Record(ctx context.Context, evt ConversionEvent) error {
	_, err := r.record(ctx, evt)
	return err
}

func (r *Recorder) record(ctx context.Context, evt ConversionEvent) (ConversionEvent, error) {
	if !evt.Name.Valid() {
		return evt, fmt.Errorf("analytics: unknown event %q", evt.Name)
	}
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = r.now()
	}
	if err := r.log.Append(ctx, evt); err != nil {
		return evt, err
	}
	for _, key := range counterKeys(evt) {
		if err := r.metrics.Increment(ctx, key, 1); err != nil {
			r.logger.Warn("analytics counter increment failed", "key", key, "error", err)
		}
	}
	r.publish(evt)
	return evt, nil
}

// RecordJSON validates and records a raw event body. Validation problems are
// returned as details with a nil error.
func (r *Recorder) RecordJSON(ctx context.Context, raw []byte) (*ConversionEvent, []string, error) {
	details, err := ValidateEventJSON(raw)
	if err != nil {
		return nil, nil, err
	}
	if len(details) > 0 {
		return nil, details, nil
	}
	var evt ConversionEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return nil, []string{err.Error()}, nil
	}
	// Clients cannot choose ids.
	evt.ID = ""
	stored, err := r.record(ctx, evt)
	if err != nil {
		return nil, nil, err
	}
	return &stored, nil, nil
}

// Subscribe returns a channel receiving every recorded event and a cancel
// func. Slow subscribers miss events rather than block recording.
func (r *Recorder) Subscribe() (<-chan ConversionEvent, func()) {
	ch := make(chan ConversionEvent, 32)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Recorder) publish(evt ConversionEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for ch := range r.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}
