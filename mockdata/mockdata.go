// Package mockdata generates the demonstration vulnerability records a
// Sentinel session starts with.
package mockdata

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/zero-day-ai/sentinel/vuln"
)

// DefaultTeam is the roster assignees are drawn from.
var DefaultTeam = []string{"Alice", "Bob", "Charlie", "Dana", "Eve"}

// Templates are the vulnerability classes generated records are drawn from.
var Templates = []vuln.Template{
	{Type: "Broken Object Level Authorization", OWASPID: "API1:2023", Description: "API does not properly validate that the user is authorized to access the requested object."},
	{Type: "Broken Authentication", OWASPID: "API2:2023", Description: "Authentication mechanisms are implemented incorrectly, allowing attackers to compromise authentication tokens or exploit implementation flaws."},
	{Type: "SQL Injection", OWASPID: "API3:2023", Description: "User-provided data is not validated, filtered, or sanitized by the application."},
	{Type: "Broken Function Level Authorization", OWASPID: "API5:2023", Description: "Policies and roles are not properly aligned with the business functions of the API."},
	{Type: "Security Misconfiguration", OWASPID: "API8:2023", Description: "Missing security hardening across any part of the application stack or improperly configured permissions."},
	{Type: "Improper Inventory Management", OWASPID: "API9:2023", Description: "The API hosts outdated versions or exposes debug endpoints that should not be public."},
	{Type: "Server Side Request Forgery", OWASPID: "API10:2023", Description: "A vulnerability that allows an attacker to induce the server-side application to make requests to an unintended location."},
	{Type: "Cross-Site Scripting (XSS)", OWASPID: "A03:2021", Description: "Untrusted data is sent to a web browser without proper validation and escaping."},
}

// Endpoints are the API operations generated records are found on.
var Endpoints = []vuln.Endpoint{
	{Method: vuln.MethodGet, Path: "/api/v1/users/{userId}/orders"},
	{Method: vuln.MethodPost, Path: "/api/v2/payments/transaction"},
	{Method: vuln.MethodGet, Path: "/api/v1/products/search"},
	{Method: vuln.MethodDelete, Path: "/api/v1/admin/users/{id}"},
	{Method: vuln.MethodPatch, Path: "/api/v2/profiles/me"},
	{Method: vuln.MethodPost, Path: "/auth/v1/login"},
	{Method: vuln.MethodGet, Path: "/api/v1/inventory/{itemId}"},
}

// NewScanFinding is the record a simulated scan always reports.
var NewScanFinding = vuln.Template{
	Type:        "SQL Injection",
	OWASPID:     "API3:2023",
	Description: "User-provided input is not properly sanitized, allowing an attacker to execute arbitrary SQL queries.",
	Details:     "The `q` query parameter in the specified search endpoint is directly concatenated into a SQL query. An attacker can provide a payload like `' OR 1=1; --` to extract sensitive data.",
	Severity:    vuln.SeverityCritical,
}

const day = 24 * time.Hour

// Option configures Generate.
type Option func(*generator)

type generator struct {
	rng   *rand.Rand
	now   func() time.Time
	since time.Time
	team  []string
}

// WithRand sets the random source. Use a seeded source for reproducible data.
func WithRand(rng *rand.Rand) Option {
	return func(g *generator) {
		g.rng = rng
	}
}

// WithClock sets the clock used as the upper bound of discovery times.
func WithClock(now func() time.Time) Option {
	return func(g *generator) {
		g.now = now
	}
}

// WithTeam sets the roster assignees are drawn from.
func WithTeam(team []string) Option {
	return func(g *generator) {
		g.team = team
	}
}

// WithSince sets the lower bound of discovery times.
// Default: 2024-01-01 local time.
func WithSince(since time.Time) Option {
	return func(g *generator) {
		g.since = since
	}
}

// Generate returns n records sorted newest first.
//
// Each record gets a random template, endpoint, severity and status. Its
// history walks New → Acknowledged (0-5 days later) → Fixed (0-10 days
// after that) as far as its status requires, never past the clock.
// Roughly 60% of records are assigned.
func Generate(n int, opts ...Option) []vuln.Vulnerability {
	g := &generator{
		rng:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:   time.Now,
		since: time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local),
		team:  DefaultTeam,
	}
	for _, opt := range opts {
		opt(g)
	}

	now := g.now()
	batch := now.UnixMilli()
	severities := vuln.AllSeverities()
	statuses := vuln.AllStatuses()

	records := make([]vuln.Vulnerability, 0, max(n, 0))
	for i := 0; i < n; i++ {
		tmpl := Templates[g.rng.IntN(len(Templates))]
		tmpl.Severity = severities[g.rng.IntN(len(severities))]
		endpoint := Endpoints[g.rng.IntN(len(Endpoints))]
		tmpl.Details = fmt.Sprintf(
			"A potential %s issue was detected on the %s endpoint. Further investigation is required. This is a mock entry generated for demonstration purposes.",
			tmpl.Type, endpoint.Path,
		)

		discoveredAt := g.between(g.since, now)
		rec := vuln.NewRecord(fmt.Sprintf("vuln-gen-%d-%d", batch, i), tmpl, endpoint, discoveredAt)

		status := statuses[g.rng.IntN(len(statuses))]
		if status != vuln.StatusNew {
			ackAt := g.after(discoveredAt, 5*day, now)
			rec, _ = vuln.Transition(rec, vuln.StatusAcknowledged, ackAt)
			if status == vuln.StatusFixed {
				rec, _ = vuln.Transition(rec, vuln.StatusFixed, g.after(ackAt, 10*day, now))
			}
		}

		if len(g.team) > 0 && g.rng.Float64() > 0.4 {
			rec.Assignee = g.team[g.rng.IntN(len(g.team))]
		}

		records = append(records, rec)
	}

	slices.SortStableFunc(records, func(a, b vuln.Vulnerability) int {
		return b.DiscoveredAt.Compare(a.DiscoveredAt)
	})
	return records
}

// between returns a uniformly random instant in [start, end].
func (g *generator) between(start, end time.Time) time.Time {
	span := end.Sub(start)
	if span <= 0 {
		return end
	}
	return start.Add(time.Duration(g.rng.Int64N(int64(span) + 1)))
}

// after returns a random instant up to maxDelay after t, capped at limit.
func (g *generator) after(t time.Time, maxDelay time.Duration, limit time.Time) time.Time {
	next := t.Add(time.Duration(g.rng.Float64() * float64(maxDelay)))
	if next.After(limit) {
		return limit
	}
	return next
}
