// Package health runs dependency probes and reports an aggregate status.
package health

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/mortgage-ai-platform/pkg/logging"
)

// Status is the aggregate service health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// HTTPStatus maps a Status onto the response code: 200, 206 or 503.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusHealthy:
		return http.StatusOK
	case StatusDegraded:
		return http.StatusPartialContent
	default:
		return http.StatusServiceUnavailable
	}
}

func (s Status) rank() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	default:
		return 2
	}
}

// Probe checks one dependency. A failing critical probe makes the service
// unhealthy; a failing non-critical probe only degrades it.
type Probe struct {
	Name     string
	Critical bool
	Check    func(ctx context.Context) error
}

// PingProbe adapts anything with Ping(ctx) error.
func PingProbe(name string, critical bool, p interface{ Ping(context.Context) error }) Probe {
	return Probe{Name: name, Critical: critical, Check: p.Ping}
}

// CheckResult is one probe outcome.
type CheckResult struct {
	Name      string `json:"name"`
	OK        bool   `json:"ok"`
	Critical  bool   `json:"critical"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs"`
}

// Report is the aggregated result of one run.
type Report struct {
	Status    Status        `json:"status"`
	CheckedAt time.Time     `json:"checkedAt"`
	Checks    []CheckResult `json:"checks"`
}

// Failing lists the names of failing probes.
func (r Report) Failing() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.OK {
			out = append(out, c.Name)
		}
	}
	return out
}

// Alerter is told when health leaves healthy or worsens.
type Alerter interface {
	NotifyHealthChange(ctx context.Context, previous, current string, failing []string) error
}

const (
	defaultProbeTimeout     = 3 * time.Second
	defaultAlertCooldown    = 15 * time.Minute
	defaultProbeConcurrency = 4
	probeCanceled           = "canceled"
)

// Checker runs registered probes concurrently.
type Checker struct {
	probes   []Probe
	timeout  time.Duration
	parallel int
	alerter  Alerter
	cooldown time.Duration
	logger   *logging.Logger
	now      func() time.Time

	mu        sync.Mutex
	last      Status
	lastAlert time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithProbeTimeout bounds each probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithConcurrency caps how many probes run at once.
func WithConcurrency(n int) Option {
	return func(c *Checker) {
		if n > 0 {
			c.parallel = n
		}
	}
}

// WithAlerter sends alerts at most once per cooldown.
func WithAlerter(a Alerter, cooldown time.Duration) Option {
	return func(c *Checker) {
		c.alerter = a
		if cooldown > 0 {
			c.cooldown = cooldown
		}
	}
}

// NewChecker builds a checker for probes.
func NewChecker(logger *logging.Logger, probes []Probe, opts ...Option) *Checker {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Checker{
		probes:   probes,
		timeout:  defaultProbeTimeout,
		parallel: defaultProbeConcurrency,
		cooldown: defaultAlertCooldown,
		logger:   logger,
		now:      time.Now,
		last:     StatusHealthy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes every probe and aggregates the result. Probes still queued
// when ctx is canceled are reported as failed without being started.
func (c *Checker) Run(ctx context.Context) Report {
	results := make([]CheckResult, len(c.probes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallel)
	for i, probe := range c.probes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = CheckResult{Name: probe.Name, Critical: probe.Critical, Error: probeCanceled}
				return err
			}
			results[i] = c.runProbe(gctx, probe)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn("health run interrupted", "error", err)
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Name < results[j].Name })
	report := Report{Status: aggregate(results), CheckedAt: c.now().UTC(), Checks: results}
	c.observe(ctx, report)
	return report
}

func (c *Checker) runProbe(ctx context.Context, probe Probe) CheckResult {
	probeCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	started := time.Now()
	err := safeCheck(probeCtx, probe)
	res := CheckResult{
		Name:      probe.Name,
		OK:        err == nil,
		Critical:  probe.Critical,
		LatencyMS: time.Since(started).Milliseconds(),
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			res.Error = "timeout"
		} else {
			res.Error = err.Error()
		}
	}
	return res
}

func safeCheck(ctx context.Context, probe Probe) (err error) {
	if probe.Check == nil {
		return errors.New("probe has no check")
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("probe panicked")
		}
	}()
	return probe.Check(ctx)
}

func aggregate(results []CheckResult) Status {
	status := StatusHealthy
	for _, r := range results {
		if r.OK {
			continue
		}
		if r.Critical {
			return StatusUnhealthy
		}
		status = StatusDegraded
	}
	return status
}

// observe records the new status and alerts when health got worse.
func (c *Checker) observe(ctx context.Context, report Report) {
	c.mu.Lock()
	previous := c.last
	c.last = report.Status
	worse := report.Status.rank() > previous.rank()
	now := c.now()
	shouldAlert := worse && c.alerter != nil && (c.lastAlert.IsZero() || now.Sub(c.lastAlert) >= c.cooldown)
	if shouldAlert {
		c.lastAlert = now
	}
	c.mu.Unlock()

	if previous != report.Status {
		c.logger.Warn("health status changed", "from", previous, "to", report.Status, "failing", report.Failing())
	}
	if !shouldAlert {
		return
	}
	if err := c.alerter.NotifyHealthChange(ctx, string(previous), string(report.Status), report.Failing()); err != nil {
		c.logger.Error("health alert failed", "error", err)
	}
}

// Last returns the status from the most recent run.
func (c *Checker) Last() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}
