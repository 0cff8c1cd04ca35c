package scan

import (
	"context"
	"math/rand/v2"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/sentinel/mockdata"
	"github.com/zero-day-ai/sentinel/vuln"
)

const (
	// DefaultDelay is how long a simulated scan takes.
	DefaultDelay = 3 * time.Second

	// FallbackPath is the endpoint path used when no target is given.
	FallbackPath = "/simulated/path"

	tracerName = "github.com/zero-day-ai/sentinel/scan"
)

// Summary reports what a completed scan found.
type Summary struct {
	VulnerabilitiesFound int           `json:"vulnerabilities_found"`
	HighestSeverity      vuln.Severity `json:"highest_severity"`
	EndpointsScanned     int           `json:"endpoints_scanned"`
}

// Outcome is the result of a completed scan.
type Outcome struct {
	Record  vuln.Vulnerability `json:"record"`
	Summary Summary            `json:"summary"`
}

// Simulator stands in for a real scanner. After a fixed delay it
// synthesizes exactly one finding on the target's path.
type Simulator struct {
	delay   time.Duration
	now     func() time.Time
	newID   func() string
	finding vuln.Template
	tracer  trace.Tracer

	mu  sync.Mutex
	rng *rand.Rand
}

// SimulatorOption configures a Simulator.
type SimulatorOption func(*Simulator)

// WithDelay sets the simulated scan duration.
func WithDelay(d time.Duration) SimulatorOption {
	return func(s *Simulator) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithClock sets the time source for discovery timestamps.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) {
		if now != nil {
			s.now = now
		}
	}
}

// WithRand sets the random source for the endpoint count.
func WithRand(rng *rand.Rand) SimulatorOption {
	return func(s *Simulator) {
		s.rng = rng
	}
}

// WithIDGenerator overrides record ID generation.
func WithIDGenerator(newID func() string) SimulatorOption {
	return func(s *Simulator) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithTracer sets the tracer. Defaults to the global tracer provider.
func WithTracer(tracer trace.Tracer) SimulatorOption {
	return func(s *Simulator) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewSimulator creates a Simulator that reports mockdata.NewScanFinding.
func NewSimulator(opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		delay:   DefaultDelay,
		now:     time.Now,
		newID:   func() string { return "vuln-" + uuid.NewString() },
		finding: mockdata.NewScanFinding,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Simulate waits for the configured delay, then returns the synthesized
// record and summary. The only failure is ctx ending first, in which case
// no record is produced.
func (s *Simulator) Simulate(ctx context.Context, target string) (Outcome, error) {
	ctx, span := s.tracer.Start(ctx, "scan.simulate",
		trace.WithAttributes(attribute.String("scan.target", target)),
	)
	defer span.End()

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			span.RecordError(ctx.Err())
			return Outcome{}, ctx.Err()
		case <-timer.C:
		}
	}

	discoveredAt := s.now()
	record := vuln.NewRecord(s.newID(), s.finding, vuln.Endpoint{
		Method: vuln.MethodGet,
		Path:   EndpointPath(target),
	}, discoveredAt)

	summary := Summary{
		VulnerabilitiesFound: 1,
		HighestSeverity:      s.finding.Severity,
		EndpointsScanned:     s.intN(50) + 10,
	}

	span.SetAttributes(
		attribute.String("vuln.id", record.ID),
		attribute.Int("scan.endpoints_scanned", summary.EndpointsScanned),
	)

	return Outcome{Record: record, Summary: summary}, nil
}

func (s *Simulator) intN(n int) int {
	if s.rng == nil {
		return rand.IntN(n)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// EndpointPath derives the endpoint path of a simulated finding from the
// scan target. An empty target yields FallbackPath and a URL without a path
// yields "/".
func EndpointPath(target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return FallbackPath
	}

	u, err := url.Parse(target)
	if err != nil {
		return FallbackPath
	}

	path := u.EscapedPath()
	if path == "" {
		return "/"
	}
	return path
}
