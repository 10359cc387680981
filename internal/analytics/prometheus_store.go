package analytics

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// PrometheusStore exposes counters on /metrics and reads them back for the
// dashboard. Counters only go up, so negative deltas are rejected.
type PrometheusStore struct {
	counters *prometheus.CounterVec
	mu       sync.RWMutex
	keys     map[string]struct{}
}

// NewPrometheusStore registers mortgage_analytics_events_total on reg.
func NewPrometheusStore(reg prometheus.Registerer) *PrometheusStore {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mortgage",
		Subsystem: "analytics",
		Name:      "events_total",
		Help:      "Conversion events and their dimensions.",
	}, []string{"key"})
	reg.MustRegister(counters)
	return &PrometheusStore{counters: counters, keys: make(map[string]struct{})}
}

func (s *PrometheusStore) Increment(_ context.Context, key string, delta int64) error {
	if delta < 0 {
		return fmt.Errorf("analytics: prometheus counters cannot decrease (key %s)", key)
	}
	s.counters.WithLabelValues(key).Add(float64(delta))
	s.mu.Lock()
	s.keys[key] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *PrometheusStore) Query(_ context.Context, key string) (int64, error) {
	s.mu.RLock()
	_, ok := s.keys[key]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return s.read(key)
}

func (s *PrometheusStore) Snapshot(_ context.Context, prefix string) (map[string]int64, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.keys))
	for k := range s.keys {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()

	out := make(map[string]int64, len(keys))
	for _, k := range keys {
		v, err := s.read(k)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func (s *PrometheusStore) read(key string) (int64, error) {
	var m dto.Metric
	if err := s.counters.WithLabelValues(key).Write(&m); err != nil {
		return 0, fmt.Errorf("analytics: read counter %s: %w", key, err)
	}
	return int64(m.GetCounter().GetValue()), nil
}
