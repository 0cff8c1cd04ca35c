package query

import (
	"slices"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/zero-day-ai/sentinel/vuln"
)

// Engine derives filtered, sorted views from a record collection.
// An Engine is immutable once built and safe for concurrent use.
type Engine struct {
	opts    Options
	text    string
	program cel.Program
}

// Result is a derived view.
type Result struct {
	// Records are the matching records in display order.
	Records []vuln.Vulnerability `json:"records"`

	// Total is the size of the collection the view was derived from.
	Total int `json:"total"`
}

// NoRecords reports that the underlying collection itself is empty.
func (r Result) NoRecords() bool {
	return r.Total == 0
}

// NoMatches reports that records exist but none pass the filters.
func (r Result) NoMatches() bool {
	return r.Total > 0 && len(r.Records) == 0
}

// New validates opts and compiles its expression.
func New(opts Options) (*Engine, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		opts: opts,
		text: strings.ToLower(opts.Text),
	}

	if strings.TrimSpace(opts.Expr) != "" {
		prg, err := compileExpr(opts.Expr)
		if err != nil {
			return nil, err
		}
		e.program = prg
	}

	return e, nil
}

// Apply is shorthand for New followed by Engine.Apply.
func Apply(records []vuln.Vulnerability, opts Options) (Result, error) {
	e, err := New(opts)
	if err != nil {
		return Result{}, err
	}
	return e.Apply(records), nil
}

// Options returns the options the engine was built from.
func (e *Engine) Options() Options {
	return e.opts
}

// Apply returns the matching records in the configured order.
// records is not modified; the output is always a new slice.
func (e *Engine) Apply(records []vuln.Vulnerability) Result {
	out := make([]vuln.Vulnerability, 0, len(records))
	for _, v := range records {
		if e.Matches(v) {
			out = append(out, v)
		}
	}

	slices.SortStableFunc(out, comparator(e.opts.sortKey()))

	return Result{Records: out, Total: len(records)}
}

// Matches returns true if the record passes every active filter.
func (e *Engine) Matches(v vuln.Vulnerability) bool {
	if e.opts.Severity != "" && v.Severity != e.opts.Severity {
		return false
	}

	if e.opts.Status != "" && v.Status != e.opts.Status {
		return false
	}

	if e.text != "" && !matchesText(v, e.text) {
		return false
	}

	if e.program != nil && !evalExpr(e.program, v) {
		return false
	}

	return true
}

// matchesText does a case-insensitive substring search. needle is lowercase.
func matchesText(v vuln.Vulnerability, needle string) bool {
	for _, field := range []string{v.Type, v.OWASPID, v.Description, v.Endpoint.Path} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func comparator(key SortKey) func(a, b vuln.Vulnerability) int {
	switch key {
	case SortDiscoveredAsc:
		return func(a, b vuln.Vulnerability) int {
			return a.DiscoveredAt.Compare(b.DiscoveredAt)
		}
	case SortSeverityDesc:
		return func(a, b vuln.Vulnerability) int {
			return vuln.CompareSeverity(b.Severity, a.Severity)
		}
	case SortSeverityAsc:
		return func(a, b vuln.Vulnerability) int {
			return vuln.CompareSeverity(a.Severity, b.Severity)
		}
	case SortAssigneeAsc:
		return assigneeComparator(false)
	case SortAssigneeDesc:
		return assigneeComparator(true)
	default:
		return func(a, b vuln.Vulnerability) int {
			return b.DiscoveredAt.Compare(a.DiscoveredAt)
		}
	}
}

// assigneeComparator keeps unassigned records after assigned ones whatever
// the direction.
func assigneeComparator(desc bool) func(a, b vuln.Vulnerability) int {
	return func(a, b vuln.Vulnerability) int {
		switch {
		case !a.IsAssigned() && !b.IsAssigned():
			return 0
		case !a.IsAssigned():
			return 1
		case !b.IsAssigned():
			return -1
		}
		if desc {
			return strings.Compare(b.Assignee, a.Assignee)
		}
		return strings.Compare(a.Assignee, b.Assignee)
	}
}
