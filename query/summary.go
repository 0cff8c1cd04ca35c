package query

import "github.com/zero-day-ai/sentinel/vuln"

// SeverityCount is the number of records at one severity.
type SeverityCount struct {
	Severity vuln.Severity `json:"severity"`
	Count    int           `json:"count"`
}

// Summary holds the dashboard statistics for a collection.
type Summary struct {
	Total int `json:"total"`

	// HighSeverity counts Critical and High records.
	HighSeverity int `json:"high_severity"`

	// BySeverity lists every severity, Critical first, including zero counts.
	BySeverity []SeverityCount `json:"by_severity"`

	ByStatus map[vuln.Status]int `json:"by_status"`

	Unassigned int `json:"unassigned"`
}

// Count returns the number of records at severity s.
func (s Summary) Count(sev vuln.Severity) int {
	for _, c := range s.BySeverity {
		if c.Severity == sev {
			return c.Count
		}
	}
	return 0
}

// Summarize computes dashboard statistics.
func Summarize(records []vuln.Vulnerability) Summary {
	counts := make(map[vuln.Severity]int)
	summary := Summary{
		Total:    len(records),
		ByStatus: make(map[vuln.Status]int),
	}

	for _, v := range records {
		counts[v.Severity]++
		summary.ByStatus[v.Status]++
		if !v.IsAssigned() {
			summary.Unassigned++
		}
	}

	for _, sev := range vuln.AllSeverities() {
		summary.BySeverity = append(summary.BySeverity, SeverityCount{Severity: sev, Count: counts[sev]})
	}
	summary.HighSeverity = counts[vuln.SeverityCritical] + counts[vuln.SeverityHigh]

	return summary
}
