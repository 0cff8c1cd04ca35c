package vuln

import "fmt"

// Severity represents the impact level of a vulnerability.
type Severity string

const (
	// SeverityCritical indicates an issue requiring immediate attention.
	// Examples: SQL injection on an unauthenticated endpoint, authentication bypass
	SeverityCritical Severity = "critical"

	// SeverityHigh indicates a high-impact issue.
	// Examples: broken object level authorization, SSRF
	SeverityHigh Severity = "high"

	// SeverityMedium indicates a moderate issue.
	SeverityMedium Severity = "medium"

	// SeverityLow indicates a minor issue.
	SeverityLow Severity = "low"

	// SeverityInfo indicates an informational finding without direct impact.
	SeverityInfo Severity = "info"
)

// severityRanks orders severities from lowest (0) to highest (4).
var severityRanks = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
	SeverityInfo:     0,
}

// IsValid returns true if the severity level is valid.
func (s Severity) IsValid() bool {
	_, ok := severityRanks[s]
	return ok
}

// Rank returns the position of the severity in the fixed ordering.
// Critical ranks highest. Returns -1 for invalid severity levels.
func (s Severity) Rank() int {
	if rank, ok := severityRanks[s]; ok {
		return rank
	}
	return -1
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// DisplayName returns the human-readable label for the severity.
func (s Severity) DisplayName() string {
	switch s {
	case SeverityCritical:
		return "Critical"
	case SeverityHigh:
		return "High"
	case SeverityMedium:
		return "Medium"
	case SeverityLow:
		return "Low"
	case SeverityInfo:
		return "Info"
	default:
		return string(s)
	}
}

// ParseSeverity parses a string into a Severity value.
// Display names ("Critical") are accepted as well as wire values ("critical").
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range AllSeverities() {
		if s == string(sev) || s == sev.DisplayName() {
			return sev, nil
		}
	}
	return "", fmt.Errorf("invalid severity: %s", s)
}

// CompareSeverity compares two severity levels.
// Returns:
//   - negative if s1 < s2
//   - zero if s1 == s2
//   - positive if s1 > s2
func CompareSeverity(s1, s2 Severity) int {
	return s1.Rank() - s2.Rank()
}

// AllSeverities returns all valid severity levels in order from critical to info.
func AllSeverities() []Severity {
	return []Severity{
		SeverityCritical,
		SeverityHigh,
		SeverityMedium,
		SeverityLow,
		SeverityInfo,
	}
}
