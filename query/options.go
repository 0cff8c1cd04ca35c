package query

import (
	"fmt"

	"github.com/zero-day-ai/sentinel/vuln"
)

// SortKey selects the ordering of a derived view.
type SortKey string

const (
	// SortDiscoveredDesc orders newest first. This is the default.
	SortDiscoveredDesc SortKey = "discovered_desc"

	// SortDiscoveredAsc orders oldest first.
	SortDiscoveredAsc SortKey = "discovered_asc"

	// SortSeverityDesc orders Critical first, Info last.
	SortSeverityDesc SortKey = "severity_desc"

	// SortSeverityAsc orders Info first, Critical last.
	SortSeverityAsc SortKey = "severity_asc"

	// SortAssigneeAsc orders assignee names A-Z, unassigned last.
	SortAssigneeAsc SortKey = "assignee_asc"

	// SortAssigneeDesc orders assignee names Z-A, unassigned last.
	SortAssigneeDesc SortKey = "assignee_desc"
)

// IsValid returns true if the sort key is known.
func (k SortKey) IsValid() bool {
	switch k {
	case SortDiscoveredDesc, SortDiscoveredAsc,
		SortSeverityDesc, SortSeverityAsc,
		SortAssigneeAsc, SortAssigneeDesc:
		return true
	default:
		return false
	}
}

// String returns the string representation of the sort key.
func (k SortKey) String() string {
	return string(k)
}

// AllSortKeys returns every sort key, default first.
func AllSortKeys() []SortKey {
	return []SortKey{
		SortDiscoveredDesc,
		SortDiscoveredAsc,
		SortSeverityDesc,
		SortSeverityAsc,
		SortAssigneeAsc,
		SortAssigneeDesc,
	}
}

// Options describes a derived view over the record collection.
// Zero-valued fields are inactive.
type Options struct {
	// Severity keeps only records of exactly this severity.
	Severity vuln.Severity `json:"severity,omitempty"`

	// Status keeps only records in exactly this status. Empty shows all.
	Status vuln.Status `json:"status,omitempty"`

	// Text keeps records whose type, OWASP code, description or endpoint
	// path contains it, ignoring case. Whitespace is matched literally.
	Text string `json:"text,omitempty"`

	// Sort orders the output. Empty means SortDiscoveredDesc.
	Sort SortKey `json:"sort,omitempty"`

	// Expr is an optional CEL boolean expression evaluated per record.
	// See the package documentation for the available variables.
	Expr string `json:"expr,omitempty"`
}

// Validate checks if the options are well formed. The CEL expression is
// checked by New, which has to compile it anyway.
func (o Options) Validate() error {
	if o.Severity != "" && !o.Severity.IsValid() {
		return fmt.Errorf("invalid severity in filter: %s", o.Severity)
	}
	if o.Status != "" && !o.Status.IsValid() {
		return fmt.Errorf("invalid status in filter: %s", o.Status)
	}
	if o.Sort != "" && !o.Sort.IsValid() {
		return fmt.Errorf("invalid sort key: %s", o.Sort)
	}
	return nil
}

func (o Options) sortKey() SortKey {
	if o.Sort == "" {
		return SortDiscoveredDesc
	}
	return o.Sort
}
