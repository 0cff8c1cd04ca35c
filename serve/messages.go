package serve

import (
	"github.com/zero-day-ai/sentinel/scan"
	"github.com/zero-day-ai/sentinel/traffic"
	"github.com/zero-day-ai/sentinel/vuln"
)

// ListResponse is a derived view of the collection. The request is a
// query.Options.
type ListResponse struct {
	Records []vuln.Vulnerability `json:"records"`

	// Total is the collection size before filtering.
	Total int `json:"total"`

	// Version is the collection version the view was derived from.
	Version uint64 `json:"version"`
}

type GetRequest struct {
	ID string `json:"id"`
}

// TransitionRequest moves a record to Status. Display names such as
// "Acknowledged" are accepted.
type TransitionRequest struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// AssignRequest sets the assignee. An empty Assignee unassigns.
type AssignRequest struct {
	ID       string `json:"id"`
	Assignee string `json:"assignee"`
}

type TrafficResponse struct {
	Samples []traffic.Sample `json:"samples"`
	Current traffic.Sample   `json:"current"`
}

// ScanAction is a step of the scan wizard.
type ScanAction string

const (
	ScanSubmit  ScanAction = "submit"
	ScanConfirm ScanAction = "confirm"
	ScanBack    ScanAction = "back"
	ScanReset   ScanAction = "reset"
	ScanState   ScanAction = "state"
)

// ScanRequest drives the scan wizard of one session.
type ScanRequest struct {
	// Session selects the wizard. Empty means DefaultSession.
	Session string `json:"session,omitempty"`

	// Action defaults to submit when Form is set and state otherwise.
	Action ScanAction `json:"action,omitempty"`

	Form *scan.Form `json:"form,omitempty"`
}

// DefaultSession is the wizard used by requests without a session.
const DefaultSession = "default"

// LookupRequest names the record an AI lookup is about, either by ID or by
// value. Record wins when both are set.
type LookupRequest struct {
	ID     string              `json:"id,omitempty"`
	Record *vuln.Vulnerability `json:"record,omitempty"`
}

type RemediationResponse struct {
	Text string `json:"text"`
}

type CVEDetailsRequest struct {
	CVEID string `json:"cve_id"`
}

// WatchRequest opens an event stream. Buffer bounds the events queued for a
// slow reader; zero uses the store default.
type WatchRequest struct {
	Buffer int `json:"buffer,omitempty"`
}
