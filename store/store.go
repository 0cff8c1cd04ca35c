package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/zero-day-ai/sentinel/vuln"
)

const meterName = "github.com/zero-day-ai/sentinel/store"

var (
	// ErrNotFound is returned when no record has the requested ID.
	ErrNotFound = errors.New("vulnerability not found")

	// ErrDuplicateID is returned when adding a record whose ID already exists.
	ErrDuplicateID = errors.New("vulnerability ID already exists")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid vulnerability record")

	// ErrInvalidStatus is returned when a transition targets an unknown status.
	ErrInvalidStatus = errors.New("invalid status")
)

// Snapshot is an immutable view of the collection at one version.
// Records are in display order: most recently added first, then the
// initial records in the order they were given.
type Snapshot struct {
	Version uint64               `json:"version"`
	Records []vuln.Vulnerability `json:"records"`
}

// Store owns the vulnerability collection. All mutations go through
// Transition, Assign and Add; readers get deep copies. Records are never
// deleted.
type Store struct {
	mu      sync.RWMutex
	order   []string
	byID    map[string]vuln.Vulnerability
	version uint64

	now       func() time.Time
	logger    *slog.Logger
	notifiers []Notifier
	subs      *subscribers

	transitions metric.Int64Counter
	added       metric.Int64Counter
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used to stamp history entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMeter sets the meter used for the store counters.
// Defaults to the global meter provider.
func WithMeter(meter metric.Meter) Option {
	return func(s *Store) {
		if meter != nil {
			s.initMetrics(meter)
		}
	}
}

// WithNotifier registers a notifier that receives every change event.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		if n != nil {
			s.notifiers = append(s.notifiers, n)
		}
	}
}

// New creates a store seeded with initial. Every record must validate and
// IDs must be unique.
func New(initial []vuln.Vulnerability, opts ...Option) (*Store, error) {
	s := &Store{
		byID:   make(map[string]vuln.Vulnerability, len(initial)),
		order:  make([]string, 0, len(initial)),
		now:    time.Now,
		logger: slog.Default(),
	}
	s.initMetrics(otel.GetMeterProvider().Meter(meterName))

	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "store")
	s.subs = newSubscribers(s.logger)

	for _, v := range initial {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRecord, v.ID, err)
		}
		if _, exists := s.byID[v.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateID, v.ID)
		}
		s.byID[v.ID] = v.Clone()
		s.order = append(s.order, v.ID)
	}

	return s, nil
}

func (s *Store) initMetrics(meter metric.Meter) {
	var err error
	s.transitions, err = meter.Int64Counter(
		"sentinel.store.transitions",
		metric.WithDescription("Number of status transitions applied"),
		metric.WithUnit("1"),
	)
	if err != nil {
		s.transitions = nil
	}
	s.added, err = meter.Int64Counter(
		"sentinel.store.records_added",
		metric.WithDescription("Number of records added after startup"),
		metric.WithUnit("1"),
	)
	if err != nil {
		s.added = nil
	}
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version returns the current version. It increases on every change.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Get returns a copy of the record with the given ID.
func (s *Store) Get(id string) (vuln.Vulnerability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.byID[id]
	if !ok {
		return vuln.Vulnerability{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v.Clone(), nil
}

// Snapshot returns a deep copy of the whole collection.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]vuln.Vulnerability, 0, len(s.order))
	for _, id := range s.order {
		records = append(records, s.byID[id].Clone())
	}
	return Snapshot{Version: s.version, Records: records}
}

// Transition moves the record to status. Transitioning to the current
// status is a no-op: the record is returned unchanged and no event fires.
func (s *Store) Transition(ctx context.Context, id string, status vuln.Status) (vuln.Vulnerability, error) {
	if !status.IsValid() {
		return vuln.Vulnerability{}, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	current, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return vuln.Vulnerability{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	now := s.now()
	updated, changed := vuln.Transition(current, status, now)
	if !changed {
		s.mu.Unlock()
		return current.Clone(), nil
	}

	s.byID[id] = updated
	s.version++
	ev := Event{Kind: EventStatusChanged, Record: updated.Clone(), Version: s.version, At: now}
	s.mu.Unlock()

	if s.transitions != nil {
		s.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(current.Status)),
			attribute.String("to", string(status)),
		))
	}
	s.logger.Debug("status changed", "id", id, "from", current.Status, "to", status)
	s.publish(ctx, ev)

	return updated.Clone(), nil
}

// Assign sets the record's assignee. An empty assignee clears it.
func (s *Store) Assign(ctx context.Context, id, assignee string) (vuln.Vulnerability, error) {
	s.mu.Lock()
	current, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return vuln.Vulnerability{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	updated, changed := vuln.Assign(current, assignee)
	if !changed {
		s.mu.Unlock()
		return current.Clone(), nil
	}

	s.byID[id] = updated
	s.version++
	ev := Event{Kind: EventAssigned, Record: updated.Clone(), Version: s.version, At: s.now()}
	s.mu.Unlock()

	s.logger.Debug("assignee changed", "id", id, "assignee", assignee)
	s.publish(ctx, ev)

	return updated.Clone(), nil
}

// Add inserts a new record at the front of the collection.
func (s *Store) Add(ctx context.Context, v vuln.Vulnerability) error {
	if err := v.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	s.mu.Lock()
	if _, exists := s.byID[v.ID]; exists {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateID, v.ID)
	}

	stored := v.Clone()
	s.byID[v.ID] = stored
	s.order = append([]string{v.ID}, s.order...)
	s.version++
	ev := Event{Kind: EventAdded, Record: stored.Clone(), Version: s.version, At: s.now()}
	s.mu.Unlock()

	if s.added != nil {
		s.added.Add(ctx, 1, metric.WithAttributes(
			attribute.String("severity", string(v.Severity)),
		))
	}
	s.logger.Info("vulnerability added", "id", v.ID, "type", v.Type, "severity", v.Severity)
	s.publish(ctx, ev)

	return nil
}

// Subscribe returns a channel receiving change events and a function that
// cancels the subscription. Events are dropped for subscribers whose buffer
// is full.
func (s *Store) Subscribe(buffer int) (<-chan Event, func()) {
	return s.subs.add(buffer)
}

func (s *Store) publish(ctx context.Context, ev Event) {
	s.subs.broadcast(ev)

	for _, n := range s.notifiers {
		if err := n.Notify(ctx, ev); err != nil {
			s.logger.Warn("notifier failed", "kind", ev.Kind, "id", ev.Record.ID, "error", err)
		}
	}
}
