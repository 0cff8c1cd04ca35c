package query

import (
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/sentinel/mockdata"
	"github.com/zero-day-ai/sentinel/vuln"
)

func generated(t *testing.T) []vuln.Vulnerability {
	t.Helper()
	records := mockdata.Generate(200,
		mockdata.WithRand(rand.New(rand.NewPCG(7, 11))),
		mockdata.WithClock(func() time.Time { return baseTime }),
	)
	require.Len(t, records, 200)
	return records
}

// checkOrder asserts that neighbouring records respect key.
func checkOrder(t *testing.T, key SortKey, out []vuln.Vulnerability) {
	t.Helper()
	for i := 1; i < len(out); i++ {
		prev, cur := out[i-1], out[i]
		switch key {
		case SortDiscoveredAsc:
			assert.False(t, cur.DiscoveredAt.Before(prev.DiscoveredAt), "position %d", i)
		case SortDiscoveredDesc, "":
			assert.False(t, cur.DiscoveredAt.After(prev.DiscoveredAt), "position %d", i)
		case SortSeverityDesc:
			assert.LessOrEqual(t, cur.Severity.Rank(), prev.Severity.Rank(), "position %d", i)
		case SortSeverityAsc:
			assert.GreaterOrEqual(t, cur.Severity.Rank(), prev.Severity.Rank(), "position %d", i)
		case SortAssigneeAsc, SortAssigneeDesc:
			if !prev.IsAssigned() {
				assert.False(t, cur.IsAssigned(), "assigned record after unassigned at %d", i)
				continue
			}
			if !cur.IsAssigned() {
				continue
			}
			if key == SortAssigneeAsc {
				assert.LessOrEqual(t, prev.Assignee, cur.Assignee, "position %d", i)
			} else {
				assert.GreaterOrEqual(t, prev.Assignee, cur.Assignee, "position %d", i)
			}
		}
	}
}

func TestApply_PropertiesOverGeneratedData(t *testing.T) {
	input := generated(t)
	byID := make(map[string]vuln.Vulnerability, len(input))
	for _, v := range input {
		byID[v.ID] = v
	}

	severities := append([]vuln.Severity{""}, vuln.AllSeverities()...)
	statuses := append([]vuln.Status{""}, vuln.AllStatuses()...)
	sortKeys := append([]SortKey{""}, AllSortKeys()...)
	texts := []string{"", "injection", "/API/"}

	for _, sev := range severities {
		for _, st := range statuses {
			for _, key := range sortKeys {
				for _, text := range texts {
					opts := Options{Severity: sev, Status: st, Sort: key, Text: text}
					res, err := Apply(input, opts)
					require.NoError(t, err, "%+v", opts)

					assert.Equal(t, len(input), res.Total)
					seen := make(map[string]bool, len(res.Records))
					for _, v := range res.Records {
						orig, ok := byID[v.ID]
						require.True(t, ok, "record %s is not in the input", v.ID)
						assert.False(t, seen[v.ID], "record %s returned twice", v.ID)
						seen[v.ID] = true
						assert.Equal(t, orig, v)

						if sev != "" {
							assert.Equal(t, sev, v.Severity)
						}
						if st != "" {
							assert.Equal(t, st, v.Status)
						}
						if text != "" {
							assert.True(t, matchesText(v, strings.ToLower(text)), "record %s does not contain %q", v.ID, text)
						}
					}
					checkOrder(t, key, res.Records)

					// Nothing matching was left out.
					want := 0
					for _, v := range input {
						if (sev == "" || v.Severity == sev) &&
							(st == "" || v.Status == st) &&
							(text == "" || matchesText(v, strings.ToLower(text))) {
							want++
						}
					}
					assert.Len(t, res.Records, want, "%+v", opts)
				}
			}
		}
	}
}

func TestApply_GeneratedDataCoversEveryBranch(t *testing.T) {
	input := generated(t)

	var assigned, unassigned int
	statuses := map[vuln.Status]int{}
	for _, v := range input {
		if v.IsAssigned() {
			assigned++
		} else {
			unassigned++
		}
		statuses[v.Status]++
	}

	assert.Positive(t, assigned)
	assert.Positive(t, unassigned)
	for _, st := range vuln.AllStatuses() {
		assert.Positive(t, statuses[st], "no %s records generated", st)
	}
}
