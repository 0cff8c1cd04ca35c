package health

import "time"

// State is the coarse health of a component.
type State string

const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

// Status is the result of a check.
type Status struct {
	State     State          `json:"state"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CheckedAt time.Time      `json:"checked_at"`
}

// Healthy returns a healthy status.
func Healthy(msg string) Status {
	return Status{State: StateHealthy, Message: msg, CheckedAt: time.Now()}
}

// Degraded returns a degraded status.
func Degraded(msg string, details map[string]any) Status {
	return Status{State: StateDegraded, Message: msg, Details: details, CheckedAt: time.Now()}
}

// Unhealthy returns an unhealthy status.
func Unhealthy(msg string, details map[string]any) Status {
	return Status{State: StateUnhealthy, Message: msg, Details: details, CheckedAt: time.Now()}
}

func (s Status) IsHealthy() bool   { return s.State == StateHealthy }
func (s Status) IsDegraded() bool  { return s.State == StateDegraded }
func (s Status) IsUnhealthy() bool { return s.State == StateUnhealthy }
