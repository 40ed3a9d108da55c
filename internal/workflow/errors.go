package workflow

import (
	"errors"
	"fmt"
)

// ErrDependencyNotSatisfied is an internal precondition failure: the step's
// predecessors have not all succeeded, so the step stays Pending. Not an
// operator-visible error unless it persists.
var ErrDependencyNotSatisfied = errors.New("step dependencies not satisfied")

// ErrRunCancelled indicates the workflow run was cancelled; no further steps
// start, already-succeeded steps are not reverted.
var ErrRunCancelled = errors.New("workflow run cancelled")

// ErrStepInFlight indicates a step is currently Running under another live
// executor, so this invocation could not finish it. Stale Running records
// past the takeover window are re-entered instead of reported.
var ErrStepInFlight = errors.New("step in flight on another executor")

// StepError wraps a step's terminal failure with its identity.
type StepError struct {
	SiteID string
	StepID StepID
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s failed for site %s: %v", e.StepID, e.SiteID, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
