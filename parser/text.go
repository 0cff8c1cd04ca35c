package parser

import (
	"regexp"
	"strings"
)

// StripCodeFence removes one markdown code fence (```lang ... ```) around
// s. Text without a fence is returned trimmed.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") || !strings.HasSuffix(s, "```") || len(s) < 6 {
		return s
	}
	body := strings.TrimSuffix(s[3:], "```")
	// Drop the info string on the opening line.
	if i := strings.IndexByte(body, '\n'); i >= 0 {
		body = body[i+1:]
	} else {
		return ""
	}
	return strings.TrimSpace(body)
}

// ExtractUnique returns every match of re in text, without duplicates, in
// first-seen order. It returns nil when nothing matches.
func ExtractUnique(re *regexp.Regexp, text string) []string {
	matches := re.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
