package vuln

import (
	"fmt"
	"time"
)

// Status represents where a vulnerability is in the triage workflow.
type Status string

const (
	// StatusNew indicates a freshly discovered vulnerability nobody has looked at.
	StatusNew Status = "new"

	// StatusAcknowledged indicates the team has seen the vulnerability.
	StatusAcknowledged Status = "acknowledged"

	// StatusFixed indicates the vulnerability has been remediated.
	StatusFixed Status = "fixed"
)

// IsValid returns true if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusNew, StatusAcknowledged, StatusFixed:
		return true
	default:
		return false
	}
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// DisplayName returns a human-readable display name for the status.
func (s Status) DisplayName() string {
	switch s {
	case StatusNew:
		return "New"
	case StatusAcknowledged:
		return "Acknowledged"
	case StatusFixed:
		return "Fixed"
	default:
		return string(s)
	}
}

// ParseStatus parses a string into a Status value.
// Display names ("Acknowledged") are accepted as well as wire values.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses() {
		if s == string(st) || s == st.DisplayName() {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid status: %s", s)
}

// AllStatuses returns all valid statuses in workflow order.
func AllStatuses() []Status {
	return []Status{
		StatusNew,
		StatusAcknowledged,
		StatusFixed,
	}
}

// StatusChange is a single entry of a record's status history.
type StatusChange struct {
	// Status is the status the record moved to.
	Status Status `json:"status"`

	// Timestamp is when the change happened.
	Timestamp time.Time `json:"timestamp"`
}
