// Package query derives display views from a vulnerability collection.
//
// A view is described by Options: an exact severity filter, an exact status
// filter, a free-text search and a sort key. Apply is pure. It never modifies
// its input and always returns a fresh slice, so callers simply recompute
// the view whenever the collection or the options change.
//
// # Search
//
// Text search is a case-insensitive substring match against the record's
// type, OWASP code, description and endpoint path. "sql" matches
// "SQL Injection".
//
// # Sorting
//
// Sorting is stable. When sorting by assignee, unassigned records come after
// all assigned records in both directions.
//
// # Expressions
//
// Options.Expr accepts a CEL expression for filters the fixed fields cannot
// express. Available variables:
//
//	id, type, owasp_id, description, severity, status, method, path, assignee  string
//	severity_rank, history_length                                              int
//	discovered_at                                                              timestamp
//
// Example:
//
//	severity_rank >= 3 && method == "POST" && assignee == ""
package query
