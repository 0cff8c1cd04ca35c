package queue

import (
	"fmt"
	"time"

	"github.com/zero-day-ai/sentinel/vuln"
)

// ScanJob is a scan request submitted to the scan queue.
// It carries everything a worker needs to run the scan and report back.
type ScanJob struct {
	// JobID is a UUID that names the job's result channel
	JobID string `json:"job_id"`

	// Name is the user-supplied scan name
	Name string `json:"name"`

	// TargetURL is the API base URL to scan
	TargetURL string `json:"target_url"`

	// Profile is the scan profile label, e.g. "Quick Scan"
	Profile string `json:"profile"`

	// Depth is the crawl depth label, e.g. "Standard"
	Depth string `json:"depth,omitempty"`

	// TraceID and SpanID carry the submitter's span context
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`

	// SubmittedAt is the Unix timestamp in milliseconds when the job was pushed
	SubmittedAt int64 `json:"submitted_at"`
}

// ScanResult is the outcome of a ScanJob, published on the job's result channel.
type ScanResult struct {
	// JobID correlates this result with the original job
	JobID string `json:"job_id"`

	// Record is the synthesized finding. Zero if Error is set.
	Record vuln.Vulnerability `json:"record"`

	// EndpointsScanned is the number of endpoints the scan reports
	EndpointsScanned int `json:"endpoints_scanned"`

	// Error is the error message if the scan failed
	Error string `json:"error,omitempty"`

	// WorkerID identifies the worker that ran the scan
	WorkerID string `json:"worker_id"`

	StartedAt   int64 `json:"started_at"`
	CompletedAt int64 `json:"completed_at"`
}

// IsValid checks if the ScanJob has all required fields populated correctly.
func (j *ScanJob) IsValid() error {
	if j.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if j.Name == "" {
		return fmt.Errorf("scan name is required")
	}
	if j.TargetURL == "" {
		return fmt.Errorf("target_url is required")
	}
	if j.SubmittedAt <= 0 {
		return fmt.Errorf("submitted_at must be positive, got %d", j.SubmittedAt)
	}
	return nil
}

// Age returns the duration since this job was submitted.
func (j *ScanJob) Age() time.Duration {
	if j.SubmittedAt <= 0 {
		return 0
	}
	return time.Duration(time.Now().UnixMilli()-j.SubmittedAt) * time.Millisecond
}

// HasError returns true if the result represents a failed scan.
func (r *ScanResult) HasError() bool {
	return r.Error != ""
}

// Duration returns the wall-clock time the worker spent on the scan.
func (r *ScanResult) Duration() time.Duration {
	if r.StartedAt <= 0 || r.CompletedAt <= 0 {
		return 0
	}
	return time.Duration(r.CompletedAt-r.StartedAt) * time.Millisecond
}

// IsValid checks if the ScanResult has all required fields populated correctly.
func (r *ScanResult) IsValid() error {
	if r.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	if r.WorkerID == "" {
		return fmt.Errorf("worker_id is required")
	}
	if r.StartedAt <= 0 {
		return fmt.Errorf("started_at must be positive, got %d", r.StartedAt)
	}
	if r.CompletedAt < r.StartedAt {
		return fmt.Errorf("completed_at (%d) cannot be before started_at (%d)", r.CompletedAt, r.StartedAt)
	}
	if !r.HasError() {
		if err := r.Record.Validate(); err != nil {
			return fmt.Errorf("record is invalid: %w", err)
		}
	}
	return nil
}
