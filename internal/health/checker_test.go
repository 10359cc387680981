package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

type alertCall struct {
	previous, current string
	failing           []string
}

type recordingAlerter struct {
	mu    sync.Mutex
	calls []alertCall
}

func (a *recordingAlerter) NotifyHealthChange(_ context.Context, previous, current string, failing []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, alertCall{previous, current, failing})
	return nil
}

func ok(context.Context) error { return nil }

func failWith(msg string) func(context.Context) error {
	return func(context.Context) error { return errors.New(msg) }
}

func TestCheckerAggregation(t *testing.T) {
	cases := []struct {
		name   string
		probes []Probe
		want   Status
		code   int
	}{
		{"all ok", []Probe{{Name: "db", Critical: true, Check: ok}, {Name: "llm", Check: ok}}, StatusHealthy, http.StatusOK},
		{"optional failing", []Probe{{Name: "db", Critical: true, Check: ok}, {Name: "llm", Check: failWith("quota")}}, StatusDegraded, http.StatusPartialContent},
		{"critical failing", []Probe{{Name: "db", Critical: true, Check: failWith("refused")}, {Name: "llm", Check: failWith("quota")}}, StatusUnhealthy, http.StatusServiceUnavailable},
		{"no probes", nil, StatusHealthy, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			report := NewChecker(logging.Discard(), tc.probes).Run(context.Background())
			assert.Equal(t, tc.want, report.Status)
			assert.Equal(t, tc.code, report.Status.HTTPStatus())
			assert.Len(t, report.Checks, len(tc.probes))
		})
	}
}

func TestCheckerRunsProbesConcurrentlyWithTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	checker := NewChecker(logging.Discard(), []Probe{
		{Name: "chatwoot", Check: slow},
		{Name: "redis", Critical: true, Check: slow},
		{Name: "broken", Check: func(context.Context) error { panic("boom") }},
		{Name: "empty"},
	}, WithProbeTimeout(50*time.Millisecond))

	started := time.Now()
	report := checker.Run(context.Background())
	assert.Less(t, time.Since(started), time.Second, "probes must run in parallel")

	assert.Equal(t, StatusUnhealthy, report.Status)
	require.Len(t, report.Checks, 4)
	byName := map[string]CheckResult{}
	for _, c := range report.Checks {
		byName[c.Name] = c
	}
	assert.Equal(t, "timeout", byName["redis"].Error)
	assert.Equal(t, "probe panicked", byName["broken"].Error)
	assert.Equal(t, "probe has no check", byName["empty"].Error)
	assert.ElementsMatch(t, []string{"broken", "chatwoot", "empty", "redis"}, report.Failing())
}

func TestCheckerLimitsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	probe := func(context.Context) error {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return nil
	}
	probes := make([]Probe, 6)
	for i := range probes {
		probes[i] = Probe{Name: fmt.Sprintf("p%d", i), Check: probe}
	}

	report := NewChecker(logging.Discard(), probes, WithConcurrency(2)).Run(context.Background())

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestCheckerSkipsProbesAfterCancel(t *testing.T) {
	var calls atomic.Int32
	count := func(context.Context) error {
		calls.Add(1)
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := NewChecker(logging.Discard(), []Probe{
		{Name: "postgres", Critical: true, Check: count},
		{Name: "redis", Check: count},
	}, WithConcurrency(1)).Run(ctx)

	assert.Zero(t, calls.Load())
	assert.Equal(t, StatusUnhealthy, report.Status)
	for _, c := range report.Checks {
		assert.Equal(t, probeCanceled, c.Error)
	}
}

func TestCheckerAlertsOnDegradationWithCooldown(t *testing.T) {
	var mu sync.Mutex
	failing := false
	probe := Probe{Name: "database", Critical: true, Check: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		if failing {
			return errors.New("down")
		}
		return nil
	}}
	setFailing := func(v bool) {
		mu.Lock()
		failing = v
		mu.Unlock()
	}

	alerter := &recordingAlerter{}
	checker := NewChecker(logging.Discard(), []Probe{probe}, WithAlerter(alerter, 10*time.Minute))
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	checker.now = func() time.Time { return now }
	ctx := context.Background()

	checker.Run(ctx)
	assert.Empty(t, alerter.calls, "healthy start does not alert")

	setFailing(true)
	checker.Run(ctx)
	require.Len(t, alerter.calls, 1)
	assert.Equal(t, alertCall{"healthy", "unhealthy", []string{"database"}}, alerter.calls[0])

	checker.Run(ctx)
	assert.Len(t, alerter.calls, 1, "steady state does not re-alert")

	setFailing(false)
	now = now.Add(time.Minute)
	checker.Run(ctx)
	assert.Equal(t, StatusHealthy, checker.Last())

	setFailing(true)
	now = now.Add(time.Minute)
	checker.Run(ctx)
	assert.Len(t, alerter.calls, 1, "flapping inside the cooldown is suppressed")

	setFailing(false)
	checker.Run(ctx)
	setFailing(true)
	now = now.Add(10 * time.Minute)
	checker.Run(ctx)
	assert.Len(t, alerter.calls, 2)
}

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHandler(t *testing.T) {
	checker := NewChecker(logging.Discard(), []Probe{
		PingProbe("chatwoot", false, pingerFunc(failWith("401"))),
		PingProbe("database", true, pingerFunc(ok)),
	})
	h := NewHandler(checker)

	rec := httptest.NewRecorder()
	h.Report(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	require.Equal(t, http.StatusPartialContent, rec.Code)
	var report Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, StatusDegraded, report.Status)
	assert.Equal(t, "chatwoot", report.Checks[0].Name)
	assert.Equal(t, "401", report.Checks[0].Error)

	rec = httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
