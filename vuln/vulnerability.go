package vuln

import (
	"errors"
	"fmt"
	"time"
)

// Method is the HTTP method of an API endpoint.
type Method string

const (
	MethodGet    Method = "GET"
	MethodPost   Method = "POST"
	MethodPut    Method = "PUT"
	MethodDelete Method = "DELETE"
	MethodPatch  Method = "PATCH"
)

// IsValid returns true if the method is one Sentinel scans.
func (m Method) IsValid() bool {
	switch m {
	case MethodGet, MethodPost, MethodPut, MethodDelete, MethodPatch:
		return true
	default:
		return false
	}
}

// Endpoint identifies the API operation a vulnerability was found on.
type Endpoint struct {
	Method Method `json:"method"`
	Path   string `json:"path"`
}

// String returns "METHOD /path".
func (e Endpoint) String() string {
	return string(e.Method) + " " + e.Path
}

// Vulnerability is a single vulnerability record.
//
// Endpoint and DiscoveredAt never change after creation. Status and
// StatusHistory change together through Transition; Assignee changes through
// Assign. Records are values: updates produce new records rather than
// mutating shared ones.
type Vulnerability struct {
	// ID is an opaque unique identifier.
	ID string `json:"id"`

	// Type is the vulnerability class name (e.g., "SQL Injection").
	Type string `json:"type"`

	// OWASPID is the classification code (e.g., "API3:2023").
	OWASPID string `json:"owasp_id"`

	// Description explains the vulnerability class.
	Description string `json:"description"`

	// Details describes this specific occurrence.
	Details string `json:"details"`

	// Severity is the impact level.
	Severity Severity `json:"severity"`

	// Status is the current workflow status. Always equals the status of
	// the last StatusHistory entry.
	Status Status `json:"status"`

	// StatusHistory is the append-only, chronological log of status changes.
	// The first entry is always StatusNew at DiscoveredAt.
	StatusHistory []StatusChange `json:"status_history"`

	// Endpoint is where the vulnerability was found.
	Endpoint Endpoint `json:"endpoint"`

	// DiscoveredAt is the creation timestamp.
	DiscoveredAt time.Time `json:"discovered_at"`

	// Assignee is the name of the team member handling the record.
	// Empty means unassigned. Not checked against any roster.
	Assignee string `json:"assignee,omitempty"`
}

// Template holds the descriptive fields shared by records of one kind.
type Template struct {
	Type        string
	OWASPID     string
	Description string
	Details     string
	Severity    Severity
}

// NewRecord creates a record in StatusNew with a single-entry history
// seeded at discoveredAt.
func NewRecord(id string, tmpl Template, endpoint Endpoint, discoveredAt time.Time) Vulnerability {
	return Vulnerability{
		ID:          id,
		Type:        tmpl.Type,
		OWASPID:     tmpl.OWASPID,
		Description: tmpl.Description,
		Details:     tmpl.Details,
		Severity:    tmpl.Severity,
		Status:      StatusNew,
		StatusHistory: []StatusChange{
			{Status: StatusNew, Timestamp: discoveredAt},
		},
		Endpoint:     endpoint,
		DiscoveredAt: discoveredAt,
	}
}

// Validate checks required fields, enum values and the status history invariants.
func (v Vulnerability) Validate() error {
	if v.ID == "" {
		return errors.New("vulnerability ID is required")
	}
	if v.Type == "" {
		return errors.New("type is required")
	}
	if !v.Severity.IsValid() {
		return fmt.Errorf("invalid severity: %s", v.Severity)
	}
	if !v.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", v.Status)
	}
	if !v.Endpoint.Method.IsValid() {
		return fmt.Errorf("invalid endpoint method: %s", v.Endpoint.Method)
	}
	if v.Endpoint.Path == "" {
		return errors.New("endpoint path is required")
	}
	if v.DiscoveredAt.IsZero() {
		return errors.New("discovered_at timestamp is required")
	}
	return v.validateHistory()
}

func (v Vulnerability) validateHistory() error {
	if len(v.StatusHistory) == 0 {
		return errors.New("status history is empty")
	}

	first := v.StatusHistory[0]
	if first.Status != StatusNew {
		return fmt.Errorf("status history must start with %s, got %s", StatusNew, first.Status)
	}
	if !first.Timestamp.Equal(v.DiscoveredAt) {
		return errors.New("first status history entry must be at discovered_at")
	}

	for i := 1; i < len(v.StatusHistory); i++ {
		entry := v.StatusHistory[i]
		if !entry.Status.IsValid() {
			return fmt.Errorf("invalid status at history index %d: %s", i, entry.Status)
		}
		if entry.Timestamp.Before(v.StatusHistory[i-1].Timestamp) {
			return fmt.Errorf("status history out of order at index %d", i)
		}
	}

	if last := v.LastChange(); last.Status != v.Status {
		return fmt.Errorf("status %s does not match last history entry %s", v.Status, last.Status)
	}
	return nil
}

// LastChange returns the most recent history entry, or a zero value if the
// history is empty.
func (v Vulnerability) LastChange() StatusChange {
	if len(v.StatusHistory) == 0 {
		return StatusChange{}
	}
	return v.StatusHistory[len(v.StatusHistory)-1]
}

// IsAssigned reports whether someone owns the record.
func (v Vulnerability) IsAssigned() bool {
	return v.Assignee != ""
}

// Clone returns a copy that shares no backing arrays with v.
func (v Vulnerability) Clone() Vulnerability {
	out := v
	out.StatusHistory = append([]StatusChange(nil), v.StatusHistory...)
	return out
}
