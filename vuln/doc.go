// Package vuln defines vulnerability records and their status workflow.
//
// # Records
//
// A Vulnerability carries descriptive fields (type, OWASP classification,
// description, details), a Severity, the Endpoint it was found on and its
// workflow Status together with an append-only StatusHistory.
//
// Two invariants hold for every valid record:
//   - StatusHistory[0] is StatusNew stamped at DiscoveredAt
//   - the last StatusHistory entry has the record's current Status
//
// # Severity Levels
//
// Severity is ordered Critical > High > Medium > Low > Info. Rank and
// CompareSeverity expose the ordering for sorting.
//
// # Workflow
//
// Transition and Assign are pure: they return an updated copy and never
// modify their input. A transition to the current status is a no-op.
//
//	rec := vuln.NewRecord("vuln-1", tmpl, vuln.Endpoint{Method: vuln.MethodGet, Path: "/api/v1/orders"}, time.Now())
//	rec, changed := vuln.Transition(rec, vuln.StatusAcknowledged, time.Now())
//
// # Presentation
//
// SeverityDisplay and StatusDisplay resolve labels and colors for a value.
// They are meant for the presentation boundary only.
package vuln
