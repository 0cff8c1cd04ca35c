package scan

import (
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/zero-day-ai/sentinel/vuln"
)

// Profile is the scan profile selected in the advanced options.
type Profile string

const (
	ProfileStandard      Profile = "Standard Unauthenticated"
	ProfileAuthenticated Profile = "Authenticated Deep Scan"
)

// IsValid returns true if the profile is known.
func (p Profile) IsValid() bool {
	return p == ProfileStandard || p == ProfileAuthenticated
}

// RequiresCredential reports whether the profile needs an API key.
func (p Profile) RequiresCredential() bool {
	return p == ProfileAuthenticated
}

// Depth is the crawl depth selected in the advanced options.
type Depth string

const (
	DepthQuick  Depth = "Quick"
	DepthNormal Depth = "Normal"
	DepthDeep   Depth = "Deep"
)

// IsValid returns true if the depth is known.
func (d Depth) IsValid() bool {
	switch d {
	case DepthQuick, DepthNormal, DepthDeep:
		return true
	default:
		return false
	}
}

// Field names used as FieldErrors keys.
const (
	FieldName        = "name"
	FieldTargetURL   = "target_url"
	FieldProfile     = "profile"
	FieldAPIKey      = "api_key"
	FieldDepth       = "depth"
	FieldInclude     = "include_pattern"
	FieldExclude     = "exclude_pattern"
	FieldMinSeverity = "min_severity"
)

// Form holds the scan configuration entered by the user.
type Form struct {
	Name      string `json:"name"`
	TargetURL string `json:"target_url"`

	// ShowAdvanced routes submission through the confirmation step.
	ShowAdvanced bool `json:"show_advanced"`

	Profile        Profile       `json:"profile"`
	APIKey         string        `json:"api_key,omitempty"`
	Depth          Depth         `json:"depth"`
	IncludePattern string        `json:"include_pattern,omitempty"`
	ExcludePattern string        `json:"exclude_pattern,omitempty"`
	MinSeverity    vuln.Severity `json:"min_severity"`
}

// DefaultForm returns the values the form opens with.
func DefaultForm() Form {
	return Form{
		Name:           "Weekly Production Scan",
		TargetURL:      "https://api.example.com/v2/products/search",
		Profile:        ProfileStandard,
		Depth:          DepthNormal,
		ExcludePattern: "/api/v1/health",
		MinSeverity:    vuln.SeverityLow,
	}
}

// Validate checks the form and returns FieldErrors describing every
// problem, or nil.
func (f Form) Validate() error {
	errs := FieldErrors{}

	if strings.TrimSpace(f.Name) == "" {
		errs[FieldName] = "Scan name is required."
	}

	if strings.TrimSpace(f.TargetURL) == "" {
		errs[FieldTargetURL] = "Target URL is required."
	} else if !isAbsoluteURL(strings.TrimSpace(f.TargetURL)) {
		errs[FieldTargetURL] = "Please enter a valid URL."
	}

	if f.Profile != "" && !f.Profile.IsValid() {
		errs[FieldProfile] = "Unknown scan profile."
	}
	if f.Profile.RequiresCredential() && strings.TrimSpace(f.APIKey) == "" {
		errs[FieldAPIKey] = "API Key is required for authenticated scans."
	}

	if f.Depth != "" && !f.Depth.IsValid() {
		errs[FieldDepth] = "Unknown scan depth."
	}
	if f.MinSeverity != "" && !f.MinSeverity.IsValid() {
		errs[FieldMinSeverity] = "Unknown severity."
	}

	if f.IncludePattern != "" {
		if _, err := regexp.Compile(f.IncludePattern); err != nil {
			errs[FieldInclude] = "Include pattern is not a valid regular expression."
		}
	}
	if f.ExcludePattern != "" {
		if _, err := regexp.Compile(f.ExcludePattern); err != nil {
			errs[FieldExclude] = "Exclude pattern is not a valid regular expression."
		}
	}

	if len(errs) == 0 {
		return nil
	}
	return errs
}

// MaskedAPIKey returns the key with everything but the last four
// characters hidden, or "" when no key is set. Keys shorter than eight
// characters are hidden entirely.
func (f Form) MaskedAPIKey() string {
	if f.APIKey == "" {
		return ""
	}
	const mask = "************"
	runes := []rune(f.APIKey)
	if len(runes) < 8 {
		return mask
	}
	return mask + string(runes[len(runes)-4:])
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// FieldErrors maps form fields to user-facing messages.
type FieldErrors map[string]string

// Error implements error.
func (e FieldErrors) Error() string {
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, field+": "+e[field])
	}
	return "invalid scan form: " + strings.Join(parts, "; ")
}

// Has reports whether field has an error.
func (e FieldErrors) Has(field string) bool {
	_, ok := e[field]
	return ok
}
