package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// FunnelStep is the conversion rate between two consecutive funnel events.
type FunnelStep struct {
	From EventName `json:"from"`
	To   EventName `json:"to"`
	// Rate is To/From as a percentage, 0 when From is zero.
	Rate float64 `json:"rate"`
}

// GapStats summarizes per-session time between two events.
type GapStats struct {
	Sessions       int     `json:"sessions"`
	AverageSeconds float64 `json:"averageSeconds"`
	MedianSeconds  float64 `json:"medianSeconds"`
}

// Dashboard is the aggregated analytics view.
type Dashboard struct {
	GeneratedAt    time.Time           `json:"generatedAt"`
	Window         string              `json:"window"`
	Totals         map[EventName]int64 `json:"totals"`
	Funnel         []FunnelStep        `json:"funnel"`
	Categories     map[string]int64    `json:"leadCategories"`
	Personas       map[string]int64    `json:"personas"`
	Intents        map[string]int64    `json:"intents"`
	FormCompletion GapStats            `json:"formCompletion"`
	TimeToCalc     GapStats            `json:"timeToCalculation"`
	AverageScore   float64             `json:"averageLeadScore"`
}

var funnelOrder = []EventName{
	EventPageView,
	EventFormStarted,
	EventFormSubmitted,
	EventChatStarted,
	EventCalculationDelivered,
}

// DashboardBuilder reads counters and the event log.
type DashboardBuilder struct {
	metrics MetricsStore
	log     EventLog
	now     func() time.Time
}

// NewDashboardBuilder creates a builder.
func NewDashboardBuilder(metrics MetricsStore, log EventLog) *DashboardBuilder {
	return &DashboardBuilder{metrics: metrics, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Build aggregates lifetime counters and per-session gaps over window.
func (b *DashboardBuilder) Build(ctx context.Context, window time.Duration) (*Dashboard, error) {
	if window <= 0 {
		window = 24 * time.Hour
	}
	now := b.now()
	d := &Dashboard{
		GeneratedAt: now,
		Window:      window.String(),
		Totals:      make(map[EventName]int64),
		Categories:  make(map[string]int64),
		Personas:    make(map[string]int64),
		Intents:     make(map[string]int64),
	}

	counters, err := b.metrics.Snapshot(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("analytics: load counters: %w", err)
	}
	for _, key := range sortedKeys(counters) {
		dim, value, ok := strings.Cut(key, ":")
		if !ok {
			continue
		}
		switch dim {
		case "event":
			d.Totals[EventName(value)] = counters[key]
		case "category":
			d.Categories[value] = counters[key]
		case "persona":
			d.Personas[value] = counters[key]
		case "intent":
			d.Intents[value] = counters[key]
		}
	}
	for i := 0; i+1 < len(funnelOrder); i++ {
		from, to := funnelOrder[i], funnelOrder[i+1]
		step := FunnelStep{From: from, To: to}
		if n := d.Totals[from]; n > 0 {
			step.Rate = round2(float64(d.Totals[to]) / float64(n) * 100)
		}
		d.Funnel = append(d.Funnel, step)
	}

	events, err := b.log.List(ctx, now.Add(-window), 0)
	if err != nil {
		return nil, fmt.Errorf("analytics: load events: %w", err)
	}
	d.FormCompletion = sessionGaps(events, EventFormStarted, EventFormSubmitted)
	d.TimeToCalc = sessionGaps(events, EventChatStarted, EventCalculationDelivered)
	d.AverageScore = averageScore(events)
	return d, nil
}

// sessionGaps measures, per session, the time from the first `from` event to
// the first `to` event after it. Ordering only matters within a session.
func sessionGaps(events []ConversionEvent, from, to EventName) GapStats {
	bySession := make(map[string][]ConversionEvent)
	for _, evt := range events {
		if evt.Name == from || evt.Name == to {
			bySession[evt.SessionID] = append(bySession[evt.SessionID], evt)
		}
	}

	var gaps []float64
	for _, evts := range bySession {
		sort.SliceStable(evts, func(i, j int) bool { return evts[i].Timestamp.Before(evts[j].Timestamp) })
		var start *time.Time
		for i := range evts {
			if evts[i].Name == from && start == nil {
				ts := evts[i].Timestamp
				start = &ts
				continue
			}
			if evts[i].Name == to && start != nil {
				gaps = append(gaps, evts[i].Timestamp.Sub(*start).Seconds())
				break
			}
		}
	}
	if len(gaps) == 0 {
		return GapStats{}
	}
	sort.Float64s(gaps)
	var sum float64
	for _, g := range gaps {
		sum += g
	}
	median := gaps[len(gaps)/2]
	if len(gaps)%2 == 0 {
		median = (gaps[len(gaps)/2-1] + gaps[len(gaps)/2]) / 2
	}
	return GapStats{
		Sessions:       len(gaps),
		AverageSeconds: round2(sum / float64(len(gaps))),
		MedianSeconds:  round2(median),
	}
}

func averageScore(events []ConversionEvent) float64 {
	var sum, n int
	for _, evt := range events {
		if evt.Name == EventLeadScored && evt.LeadScore != nil {
			sum += *evt.LeadScore
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return round2(float64(sum) / float64(n))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
