// Package advisor asks a generative model for remediation advice and CVE
// intelligence about vulnerability records.
//
// Client exposes the three lookups as blocking calls. Every failure is
// reported as an error matching ErrServiceUnavailable whose message is safe
// to show to a user; the underlying cause is logged.
//
// Lookup holds the state of one record's detail view: three slots that
// load concurrently and fail independently.
//
//	lookup := advisor.NewLookup(client, record)
//	lookup.LoadRemediation(ctx)
//	lookup.LoadRelatedCVEs(ctx)
//	lookup.Wait()
//	state := lookup.State()
package advisor
