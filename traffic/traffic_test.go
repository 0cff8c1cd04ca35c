package traffic

import (
	"context"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestSampler(clock *fakeClock, opts ...Option) *Sampler {
	base := []Option{WithClock(clock.Now), WithRand(rand.New(rand.NewPCG(1, 2)))}
	return NewSampler(append(base, opts...)...)
}

func TestNewSampler_Backfill(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestSampler(clock)

	snap := s.Snapshot()
	require.Len(t, snap, DefaultWindow)
	assert.Equal(t, clock.now, snap[len(snap)-1].Time)
	assert.Equal(t, clock.now.Add(-29*DefaultInterval), snap[0].Time)
	for i := 1; i < len(snap); i++ {
		assert.Equal(t, DefaultInterval, snap[i].Time.Sub(snap[i-1].Time))
	}
	assert.Equal(t, snap[len(snap)-1], s.Current())
}

func TestSample_Ranges(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestSampler(clock, WithWindow(500))

	for _, sample := range s.Snapshot() {
		assert.GreaterOrEqual(t, sample.RPS, 50)
		assert.LessOrEqual(t, sample.RPS, 150)
		assert.GreaterOrEqual(t, sample.LatencyMS, 80)
		assert.LessOrEqual(t, sample.LatencyMS, 200)
	}
}

func TestTick_DropsOldest(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestSampler(clock, WithWindow(3), WithInterval(time.Second))

	before := s.Snapshot()
	clock.Advance(time.Second)
	added := s.Tick()

	after := s.Snapshot()
	require.Len(t, after, 3)
	assert.Equal(t, before[1:], after[:2])
	assert.Equal(t, added, after[2])
	assert.Equal(t, added, s.Current())

	for i := 0; i < 5; i++ {
		clock.Advance(time.Second)
		s.Tick()
	}
	after = s.Snapshot()
	require.Len(t, after, 3)
	assert.True(t, after[0].Time.Before(after[1].Time))
	assert.True(t, after[1].Time.Before(after[2].Time))
	assert.Equal(t, clock.Now(), after[2].Time)
}

func TestOptions_IgnoreInvalid(t *testing.T) {
	s := NewSampler(WithWindow(0), WithInterval(-time.Second))
	assert.Equal(t, DefaultWindow, s.Window())
	assert.Equal(t, DefaultInterval, s.Interval())
}

func TestStartStop(t *testing.T) {
	clock := &fakeClock{now: time.Now()}
	s := newTestSampler(clock, WithInterval(5*time.Millisecond), WithWindow(4))

	first := s.Current()
	s.Start(context.Background())
	s.Start(context.Background())

	require.Eventually(t, func() bool {
		clock.Advance(time.Millisecond)
		return s.Current() != first
	}, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop()

	stopped := s.Snapshot()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, stopped, s.Snapshot(), "no ticks after Stop")
}

func TestStart_ContextCancel(t *testing.T) {
	s := NewSampler(WithInterval(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	// Stop must still return once the goroutine has exited on its own.
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
