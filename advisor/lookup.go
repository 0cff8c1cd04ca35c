package advisor

import (
	"context"
	"fmt"
	"sync"

	"github.com/zero-day-ai/sentinel/vuln"
)

// Slot is the state of one lookup: whether it is loading, its last
// successful result and the message of its last failure.
type Slot[T any] struct {
	Loading bool   `json:"loading"`
	Result  *T     `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

func (s *Slot[T]) start() bool {
	if s.Loading {
		return false
	}
	s.Loading = true
	s.Error = ""
	return true
}

func (s *Slot[T]) finish(result T, err error, message string) {
	s.Loading = false
	if err != nil {
		s.Error = message
		return
	}
	s.Result = &result
}

// LookupState is a copy of a Lookup's state.
type LookupState struct {
	RecordID    string           `json:"record_id"`
	Remediation Slot[string]     `json:"remediation"`
	RelatedCVEs Slot[CVEInfo]    `json:"related_cves"`
	SelectedCVE string           `json:"selected_cve,omitempty"`
	CVEDetails  Slot[CVEDetails] `json:"cve_details"`
}

// Lookup tracks the AI lookups of one record's detail view. The three
// slots load concurrently and fail independently. A failure sets the
// slot's message and leaves its previous result in place.
//
// Calls are not cancelled when the view goes away; a late answer only
// updates the Lookup itself.
type Lookup struct {
	service Service
	record  vuln.Vulnerability

	mu          sync.Mutex
	remediation Slot[string]
	cves        Slot[CVEInfo]
	selected    string
	details     Slot[CVEDetails]
	detailsSeq  uint64

	wg sync.WaitGroup
}

// NewLookup creates a Lookup for record.
func NewLookup(service Service, record vuln.Vulnerability) *Lookup {
	return &Lookup{service: service, record: record.Clone()}
}

// LoadRemediation starts a remediation lookup. It reports false when one is
// already running.
func (l *Lookup) LoadRemediation(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.remediation.start() {
		return false
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		text, err := l.service.GetRemediation(context.WithoutCancel(ctx), l.record)

		l.mu.Lock()
		defer l.mu.Unlock()
		l.remediation.finish(text, err, "Failed to get remediation advice. Please try again.")
	}()
	return true
}

// LoadRelatedCVEs starts a related-CVE lookup. It reports false when one is
// already running.
func (l *Lookup) LoadRelatedCVEs(ctx context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.cves.start() {
		return false
	}
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		info, err := l.service.GetRelatedCVEs(context.WithoutCancel(ctx), l.record)

		l.mu.Lock()
		defer l.mu.Unlock()
		l.cves.finish(info, err, "Failed to get CVE information. Please try again.")
	}()
	return true
}

// ToggleCVE selects cveID and loads its details. Toggling the selected CVE
// again collapses it. Answers for a CVE that is no longer selected are
// dropped. It reports whether a lookup was started.
func (l *Lookup) ToggleCVE(ctx context.Context, cveID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.detailsSeq++
	if l.selected == cveID {
		l.selected = ""
		l.details = Slot[CVEDetails]{}
		return false
	}

	seq := l.detailsSeq
	l.selected = cveID
	l.details = Slot[CVEDetails]{Loading: true}

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		details, err := l.service.GetCVEDetails(context.WithoutCancel(ctx), cveID)

		l.mu.Lock()
		defer l.mu.Unlock()
		if seq != l.detailsSeq {
			return
		}
		l.details.finish(details, err, fmt.Sprintf("Failed to fetch details for %s.", cveID))
	}()
	return true
}

// Wait blocks until every started lookup has finished.
func (l *Lookup) Wait() {
	l.wg.Wait()
}

// State returns a copy of the current state.
func (l *Lookup) State() LookupState {
	l.mu.Lock()
	defer l.mu.Unlock()

	return LookupState{
		RecordID:    l.record.ID,
		Remediation: l.remediation,
		RelatedCVEs: l.cves,
		SelectedCVE: l.selected,
		CVEDetails:  l.details,
	}
}
