package llm

import (
	"sort"
	"sync"
)

// TokenTracker tracks token usage per operation (e.g. "remediation",
// "related_cves").
type TokenTracker interface {
	// Add records token usage for an operation.
	Add(operation string, usage TokenUsage)

	// Total returns the aggregate token usage across all operations.
	Total() TokenUsage

	// ByOperation returns the token usage for one operation.
	ByOperation(operation string) TokenUsage

	// Reset clears all tracked token usage.
	Reset()

	// Operations returns the tracked operation names, sorted.
	Operations() []string
}

// DefaultTokenTracker is a thread-safe implementation of TokenTracker.
type DefaultTokenTracker struct {
	mu    sync.RWMutex
	ops   map[string]TokenUsage
	calls map[string]int
	total TokenUsage
}

// NewTokenTracker creates a new DefaultTokenTracker.
func NewTokenTracker() *DefaultTokenTracker {
	return &DefaultTokenTracker{
		ops:   make(map[string]TokenUsage),
		calls: make(map[string]int),
	}
}

// Add records token usage for an operation.
func (t *DefaultTokenTracker) Add(operation string, usage TokenUsage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops[operation] = t.ops[operation].Add(usage)
	t.calls[operation]++
	t.total = t.total.Add(usage)
}

// Total returns the aggregate token usage across all operations.
func (t *DefaultTokenTracker) Total() TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// ByOperation returns the token usage for one operation, or a zero value
// if it has not been used.
func (t *DefaultTokenTracker) ByOperation(operation string) TokenUsage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ops[operation]
}

// Calls returns how many completions were recorded for an operation.
func (t *DefaultTokenTracker) Calls(operation string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.calls[operation]
}

// Reset clears all tracked token usage.
func (t *DefaultTokenTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.ops = make(map[string]TokenUsage)
	t.calls = make(map[string]int)
	t.total = TokenUsage{}
}

// Operations returns the tracked operation names, sorted.
func (t *DefaultTokenTracker) Operations() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ops := make([]string, 0, len(t.ops))
	for op := range t.ops {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Snapshot is a read-only copy of the tracker state.
type Snapshot struct {
	Operations map[string]TokenUsage `json:"operations"`
	Total      TokenUsage            `json:"total"`
}

// Snapshot returns a copy of the current token usage state.
func (t *DefaultTokenTracker) Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ops := make(map[string]TokenUsage, len(t.ops))
	for op, usage := range t.ops {
		ops[op] = usage
	}
	return Snapshot{Operations: ops, Total: t.total}
}
