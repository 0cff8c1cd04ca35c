// Package traffic produces the synthetic live-traffic series shown on the
// dashboard.
package traffic

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

const (
	// DefaultWindow is the number of samples kept.
	DefaultWindow = 30

	// DefaultInterval is the time between samples.
	DefaultInterval = 2 * time.Second
)

// Sample is one point of the traffic series.
type Sample struct {
	Time      time.Time `json:"time"`
	RPS       int       `json:"rps"`
	LatencyMS int       `json:"latency_ms"`
}

// Sampler appends a random Sample on every tick and keeps the last Window
// samples in a ring buffer. It starts with a full window back-filled at
// Interval spacing.
type Sampler struct {
	window   int
	interval time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu   sync.RWMutex
	rng  *rand.Rand
	buf  []Sample
	head int

	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Sampler.
type Option func(*Sampler)

// WithWindow sets the number of samples kept. Values below 1 are ignored.
func WithWindow(n int) Option {
	return func(s *Sampler) {
		if n > 0 {
			s.window = n
		}
	}
}

// WithInterval sets the tick interval. Values <= 0 are ignored.
func WithInterval(d time.Duration) Option {
	return func(s *Sampler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Sampler) {
		s.now = now
	}
}

// WithRand sets the random source.
func WithRand(rng *rand.Rand) Option {
	return func(s *Sampler) {
		s.rng = rng
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sampler) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSampler creates a Sampler with a back-filled window.
func NewSampler(opts ...Option) *Sampler {
	s := &Sampler{
		window:   DefaultWindow,
		interval: DefaultInterval,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.logger = s.logger.With("component", "traffic")

	end := s.now()
	s.buf = make([]Sample, s.window)
	for i := range s.buf {
		at := end.Add(-time.Duration(s.window-1-i) * s.interval)
		s.buf[i] = s.sample(at)
	}
	return s
}

// Window returns the number of samples kept.
func (s *Sampler) Window() int { return s.window }

// Interval returns the tick interval.
func (s *Sampler) Interval() time.Duration { return s.interval }

// Start runs the ticker until ctx ends or Stop is called. Starting a
// running sampler does nothing.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx, s.done)
	s.logger.Debug("traffic sampler started", "interval", s.interval, "window", s.window)
}

// Stop ends the ticker and waits for it to exit. The collected samples
// stay readable and the sampler can be started again.
func (s *Sampler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Debug("traffic sampler stopped")
}

func (s *Sampler) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick appends one sample taken now and drops the oldest.
func (s *Sampler) Tick() Sample {
	s.mu.Lock()
	defer s.mu.Unlock()

	sample := s.sample(s.now())
	s.buf[s.head] = sample
	s.head = (s.head + 1) % s.window
	return sample
}

// Snapshot returns the samples oldest first.
func (s *Sampler) Snapshot() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Sample, 0, s.window)
	out = append(out, s.buf[s.head:]...)
	out = append(out, s.buf[:s.head]...)
	return out
}

// Current returns the newest sample.
func (s *Sampler) Current() Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf[(s.head+s.window-1)%s.window]
}

// sample must be called with mu held or before the sampler is shared.
func (s *Sampler) sample(at time.Time) Sample {
	return Sample{
		Time:      at,
		RPS:       50 + s.rng.IntN(101),
		LatencyMS: 80 + s.rng.IntN(121),
	}
}
