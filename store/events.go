package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zero-day-ai/sentinel/vuln"
)

// EventKind identifies the type of change.
type EventKind string

const (
	EventAdded         EventKind = "added"
	EventStatusChanged EventKind = "status_changed"
	EventAssigned      EventKind = "assigned"
)

// IsValid returns true if the event kind is known.
func (k EventKind) IsValid() bool {
	switch k {
	case EventAdded, EventStatusChanged, EventAssigned:
		return true
	default:
		return false
	}
}

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	return string(k)
}

// Event describes one change to the collection. Record is the record's
// state after the change.
type Event struct {
	Kind    EventKind          `json:"kind"`
	Record  vuln.Vulnerability `json:"record"`
	Version uint64             `json:"version"`
	At      time.Time          `json:"at"`
}

// Notifier forwards change events outside the process.
// Notify is called synchronously after the change is applied; errors are
// logged and otherwise ignored.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event) error

// Notify calls f(ctx, ev).
func (f NotifierFunc) Notify(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

const defaultSubscriberBuffer = 16

type subscribers struct {
	mu     sync.Mutex
	next   int
	chans  map[int]chan Event
	logger *slog.Logger
}

func newSubscribers(logger *slog.Logger) *subscribers {
	return &subscribers{
		chans:  make(map[int]chan Event),
		logger: logger,
	}
}

func (s *subscribers) add(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.next
	s.next++
	ch := make(chan Event, buffer)
	s.chans[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.chans, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (s *subscribers) broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, ch := range s.chans {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("subscriber buffer full, dropping event", "subscriber", id, "kind", ev.Kind)
		}
	}
}
