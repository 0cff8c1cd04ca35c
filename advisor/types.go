package advisor

import (
	"regexp"

	"github.com/zero-day-ai/sentinel/llm"
	"github.com/zero-day-ai/sentinel/schema"
)

var (
	cvePattern   = regexp.MustCompile(`CVE-\d{4}-\d{4,}`)
	cveIDPattern = regexp.MustCompile(`^CVE-\d{4}-\d{4,}$`)
)

// CVEInfo is the answer to a related-CVE lookup.
type CVEInfo struct {
	// Summary is the model's markdown answer.
	Summary string `json:"summary"`

	// CVEIDs are the identifiers mentioned in Summary, first-seen order.
	CVEIDs []string `json:"cve_ids"`

	// Sources are the web pages the answer was grounded on, one per URI.
	Sources []llm.Citation `json:"sources"`
}

// CVSS is a CVSS base score with its vector.
type CVSS struct {
	Score  float64 `json:"score" description:"The base CVSS score, e.g., 9.8"`
	Vector string  `json:"vector" description:"The CVSS vector string, e.g., CVSS:3.1/AV:N/AC:L/PR:N/UI:N/S:U/C:H/I:H/A:H"`
}

// CVEDetails is the structured breakdown of a single CVE.
type CVEDetails struct {
	Description string   `json:"description" description:"A detailed summary of the vulnerability."`
	CVSS        CVSS     `json:"cvss" description:"CVSS scoring information."`
	Affected    string   `json:"affected" description:"A summary of affected software and versions."`
	References  []string `json:"references" description:"An array of official source URLs (e.g., from NIST, MITRE)."`
}

// DetailsSchema returns the response contract for CVE detail lookups.
func DetailsSchema() schema.JSON {
	s := schema.FromType(CVEDetails{})
	cvss := s.Properties["cvss"]
	cvss.Properties["score"] = cvss.Properties["score"].Between(0, 10)
	return s
}

// uniqueSources drops citations without a URI or title and keeps one entry
// per URI. A later duplicate replaces the earlier entry in place.
func uniqueSources(citations []llm.Citation) []llm.Citation {
	index := make(map[string]int, len(citations))
	out := make([]llm.Citation, 0, len(citations))
	for _, c := range citations {
		if c.URI == "" || c.Title == "" {
			continue
		}
		if i, ok := index[c.URI]; ok {
			out[i] = c
			continue
		}
		index[c.URI] = len(out)
		out = append(out, c)
	}
	return out
}
