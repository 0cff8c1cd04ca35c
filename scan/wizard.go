package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/zero-day-ai/sentinel/vuln"
)

var (
	// ErrScanInProgress is returned when the wizard is asked to start or
	// reset while a scan is outstanding.
	ErrScanInProgress = errors.New("scan already in progress")

	// ErrInvalidStep is returned when an action does not apply to the
	// wizard's current step.
	ErrInvalidStep = errors.New("action not allowed in current step")
)

// Step is a stage of the new-scan wizard.
type Step string

const (
	StepForm     Step = "form"
	StepConfirm  Step = "confirm"
	StepScanning Step = "scanning"
	StepComplete Step = "complete"
)

// String returns the string representation of the step.
func (s Step) String() string {
	return string(s)
}

// Sink receives the records produced by completed scans.
// *store.Store satisfies it.
type Sink interface {
	Add(ctx context.Context, v vuln.Vulnerability) error
}

// State is a copy of the wizard's state.
type State struct {
	Step    Step                `json:"step"`
	Form    Form                `json:"form"`
	Errors  FieldErrors         `json:"errors,omitempty"`
	Summary *Summary            `json:"summary,omitempty"`
	Record  *vuln.Vulnerability `json:"record,omitempty"`
}

// Wizard is one new-scan session: form, optional confirmation, scanning,
// complete. At most one scan is outstanding per wizard.
type Wizard struct {
	runner Runner
	sink   Sink
	logger *slog.Logger

	mu      sync.Mutex
	step    Step
	form    Form
	errs    FieldErrors
	summary *Summary
	record  *vuln.Vulnerability
}

// NewWizard creates a wizard at the form step with DefaultForm values.
func NewWizard(runner Runner, sink Sink, logger *slog.Logger) *Wizard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Wizard{
		runner: runner,
		sink:   sink,
		logger: logger.With("component", "scan_wizard"),
		step:   StepForm,
		form:   DefaultForm(),
	}
}

// State returns a snapshot of the wizard.
func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stateLocked()
}

func (w *Wizard) stateLocked() State {
	st := State{Step: w.step, Form: w.form}
	if len(w.errs) > 0 {
		st.Errors = make(FieldErrors, len(w.errs))
		for k, v := range w.errs {
			st.Errors[k] = v
		}
	}
	if w.summary != nil {
		summary := *w.summary
		st.Summary = &summary
	}
	if w.record != nil {
		record := w.record.Clone()
		st.Record = &record
	}
	return st
}

// Submit validates form. On validation failure the errors are recorded
// and returned as FieldErrors, and the wizard stays on the form. With
// advanced options shown the wizard moves to the confirmation step;
// otherwise the scan runs immediately and Submit blocks until it ends.
func (w *Wizard) Submit(ctx context.Context, form Form) (State, error) {
	w.mu.Lock()
	if w.step == StepScanning {
		w.mu.Unlock()
		return w.State(), ErrScanInProgress
	}
	if w.step != StepForm {
		st := w.stateLocked()
		w.mu.Unlock()
		return st, fmt.Errorf("%w: submit from %s", ErrInvalidStep, st.Step)
	}

	w.form = form
	if err := form.Validate(); err != nil {
		var fieldErrs FieldErrors
		if errors.As(err, &fieldErrs) {
			w.errs = fieldErrs
		}
		st := w.stateLocked()
		w.mu.Unlock()
		return st, err
	}
	w.errs = nil

	if form.ShowAdvanced {
		w.step = StepConfirm
		st := w.stateLocked()
		w.mu.Unlock()
		return st, nil
	}

	return w.executeLocked(ctx)
}

// Confirm runs the scan from the confirmation step.
func (w *Wizard) Confirm(ctx context.Context) (State, error) {
	w.mu.Lock()
	if w.step == StepScanning {
		w.mu.Unlock()
		return w.State(), ErrScanInProgress
	}
	if w.step != StepConfirm {
		st := w.stateLocked()
		w.mu.Unlock()
		return st, fmt.Errorf("%w: confirm from %s", ErrInvalidStep, st.Step)
	}
	return w.executeLocked(ctx)
}

// Back returns from the confirmation step to the form.
func (w *Wizard) Back() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepConfirm {
		return w.stateLocked(), fmt.Errorf("%w: back from %s", ErrInvalidStep, w.step)
	}
	w.step = StepForm
	return w.stateLocked(), nil
}

// Reset returns to the form step and clears errors and results.
// Form values are kept.
func (w *Wizard) Reset() (State, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepScanning {
		return w.stateLocked(), ErrScanInProgress
	}
	w.step = StepForm
	w.errs = nil
	w.summary = nil
	w.record = nil
	return w.stateLocked(), nil
}

// executeLocked runs the scan. w.mu must be held on entry; it is released
// while the runner works so State stays responsive.
func (w *Wizard) executeLocked(ctx context.Context) (State, error) {
	returnStep := w.step
	w.step = StepScanning
	form := w.form
	w.mu.Unlock()

	w.logger.Info("scan started", "name", form.Name, "target", form.TargetURL, "profile", form.Profile)

	outcome, err := w.runner.Run(ctx, form)
	if err == nil {
		// a cancelled owner gets no record
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = w.sink.Add(ctx, outcome.Record)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err != nil {
		w.step = returnStep
		w.logger.Warn("scan aborted", "name", form.Name, "error", err)
		return w.stateLocked(), err
	}

	w.step = StepComplete
	w.summary = &outcome.Summary
	record := outcome.Record.Clone()
	w.record = &record

	w.logger.Info("scan complete",
		"name", form.Name,
		"vuln_id", outcome.Record.ID,
		"endpoints_scanned", outcome.Summary.EndpointsScanned,
	)
	return w.stateLocked(), nil
}

// Sessions holds one Wizard per session ID.
type Sessions struct {
	runner Runner
	sink   Sink
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Wizard
}

// NewSessions creates an empty session table.
func NewSessions(runner Runner, sink Sink, logger *slog.Logger) *Sessions {
	return &Sessions{
		runner:   runner,
		sink:     sink,
		logger:   logger,
		sessions: make(map[string]*Wizard),
	}
}

// Get returns the wizard for id, creating it on first use.
func (s *Sessions) Get(id string) *Wizard {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.sessions[id]
	if !ok {
		w = NewWizard(s.runner, s.sink, s.logger)
		s.sessions[id] = w
	}
	return w
}

// Len returns the number of sessions.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
