package health

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Check is a named health check.
type Check struct {
	Name string
	Run  func(ctx context.Context) Status
}

// Monitor runs checks on an interval and reports the combined status.
type Monitor struct {
	checks   []Check
	interval time.Duration
	timeout  time.Duration
	report   func(Status)
	logger   *slog.Logger

	mu   sync.RWMutex
	last Status
}

// NewMonitor creates a Monitor. report receives every combined status; it
// may be nil.
func NewMonitor(interval time.Duration, report func(Status), logger *slog.Logger, checks ...Check) *Monitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		checks:   checks,
		interval: interval,
		timeout:  defaultDialTimeout,
		report:   report,
		logger:   logger.With("component", "health"),
		last:     Healthy("not checked yet"),
	}
}

// CheckNow runs every check once and returns the combined status.
func (m *Monitor) CheckNow(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	results := make([]Status, len(m.checks))
	var wg sync.WaitGroup
	for i, c := range m.checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Run(ctx)
		}()
	}
	wg.Wait()

	for i, r := range results {
		if !r.IsHealthy() {
			m.logger.Warn("health check not healthy", "check", m.checks[i].Name, "state", r.State, "message", r.Message)
		}
	}

	combined := Combine(results...)
	m.mu.Lock()
	m.last = combined
	m.mu.Unlock()

	if m.report != nil {
		m.report(combined)
	}
	return combined
}

// Last returns the most recent combined status.
func (m *Monitor) Last() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

// Run checks immediately and then on every tick until ctx ends.
func (m *Monitor) Run(ctx context.Context) {
	m.CheckNow(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckNow(ctx)
		}
	}
}
