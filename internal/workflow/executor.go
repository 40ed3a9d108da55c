package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/imamik/siteflow/internal/platform/store"
	"github.com/imamik/siteflow/internal/platform/vendor"
	"github.com/imamik/siteflow/internal/util/retry"
)

// StepHandler implements one step's domain logic.
//
// Fingerprint must be computable without platform calls: it identifies what
// Execute would apply (template version plus resolved variable values), so
// an unchanged fingerprint lets the executor replay from cache without
// touching the platform.
type StepHandler interface {
	Fingerprint(ctx context.Context, siteID string) (string, error)
	Execute(ctx context.Context, siteID string) error
}

// Outcome classifies one ExecuteStep invocation.
type Outcome string

const (
	// OutcomeSucceeded: the step ran and its record is now Succeeded.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeReplayed: the step was already Succeeded with an unchanged
	// fingerprint; no platform calls were made.
	OutcomeReplayed Outcome = "replayed"
	// OutcomeFailed: the step ran and failed; dependents stay Pending.
	OutcomeFailed Outcome = "failed"
	// OutcomeBlocked: a direct predecessor has not succeeded.
	OutcomeBlocked Outcome = "blocked"
	// OutcomeLost: another executor progressed the step concurrently.
	OutcomeLost Outcome = "lost"
)

// Executor drives step execution for sites. It holds no authoritative state;
// everything is re-derived from the store, so executors are restartable.
type Executor struct {
	store         store.Store
	handlers      map[StepID]StepHandler
	log           logr.Logger
	stepTimeout   time.Duration
	takeoverAfter time.Duration
	retryOpts     []retry.Option
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithStepTimeout sets the hard per-call timeout for step execution.
func WithStepTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.stepTimeout = d }
}

// WithRetryOptions sets the backoff policy applied around step execution.
func WithRetryOptions(opts ...retry.Option) ExecutorOption {
	return func(e *Executor) { e.retryOpts = opts }
}

// WithTakeoverAfter sets how stale a Running record must be before another
// executor may assume its owner crashed and re-enter the step.
func WithTakeoverAfter(d time.Duration) ExecutorOption {
	return func(e *Executor) { e.takeoverAfter = d }
}

// NewExecutor creates an executor over the given store.
func NewExecutor(st store.Store, log logr.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		store:         st,
		handlers:      make(map[StepID]StepHandler),
		log:           log,
		stepTimeout:   2 * time.Minute,
		takeoverAfter: 15 * time.Minute,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Register binds a handler to a step. Steps without handlers cannot execute.
func (e *Executor) Register(step StepID, h StepHandler) {
	if !Known(step) {
		panic(fmt.Sprintf("workflow: unknown step %q", step))
	}
	e.handlers[step] = h
}

// EnsureRun makes sure a run header exists for the site and returns it.
func (e *Executor) EnsureRun(ctx context.Context, siteID string) (*WorkflowRun, error) {
	run, err := LoadRun(ctx, e.store, siteID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		run = &WorkflowRun{
			RunID:     uuid.NewString(),
			SiteID:    siteID,
			State:     RunPending,
			StartedAt: time.Now().UTC(),
		}
		if err := SaveRun(ctx, e.store, run); err != nil {
			return nil, err
		}
	}
	return run, nil
}

// Cancel marks the site's run terminal. Already-succeeded steps are not
// rolled back; reversal is a distinct explicit operation. Steps that never
// started are marked Skipped so the record shows they will not run under
// this header.
func (e *Executor) Cancel(ctx context.Context, siteID string) error {
	run, err := e.EnsureRun(ctx, siteID)
	if err != nil {
		return err
	}
	run.State = RunCancelled
	if err := SaveRun(ctx, e.store, run); err != nil {
		return err
	}

	for _, step := range AllSteps() {
		rec, raw, err := LoadStepRecord(ctx, e.store, siteID, step)
		if err != nil {
			return err
		}
		if rec.Status != StatusPending {
			continue
		}
		skipped := *rec
		skipped.Status = StatusSkipped
		if _, err := swapStepRecord(ctx, e.store, &skipped, raw); err != nil && !errors.Is(err, store.ErrCASMismatch) {
			return err
		}
	}
	return nil
}

// Frontier returns the steps from the given set that are ready to run now:
// status Pending or Failed, with every direct predecessor Succeeded. A
// Running record whose owner has gone silent past the takeover window is
// treated as ready too, so a restarted executor picks up steps a crashed one
// left in flight. It is derived entirely from persisted records, which is how
// a restarted executor resumes mid-workflow.
func (e *Executor) Frontier(ctx context.Context, siteID string, steps []StepID) ([]StepID, error) {
	records, err := e.loadRecords(ctx, siteID)
	if err != nil {
		return nil, err
	}

	var ready []StepID
	for _, step := range steps {
		rec := records[step]
		switch rec.Status {
		case StatusPending, StatusFailed:
		case StatusRunning:
			if time.Since(rec.UpdatedAt) < e.takeoverAfter {
				continue
			}
			// Stale enough to presume the owning executor crashed mid-step.
		default:
			continue
		}
		ok := true
		for _, pred := range Predecessors(step) {
			if records[pred].Status != StatusSucceeded {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, step)
		}
	}
	return ready, nil
}

// RunSteps drives the given steps for a site until no further progress is
// possible. Ready steps execute concurrently; a failing step blocks only its
// transitive dependents, never its siblings. Failed steps are not re-entered
// within the same invocation; calling RunSteps again is the explicit retry.
//
// Cancellation is cooperative: the run header is checked between rounds, and
// in-flight executions complete and persist normally.
func (e *Executor) RunSteps(ctx context.Context, siteID string, steps []StepID) error {
	run, err := e.EnsureRun(ctx, siteID)
	if err != nil {
		return err
	}
	if run.State == RunCancelled {
		return ErrRunCancelled
	}
	if run.State != RunRunning {
		run.State = RunRunning
		if err := SaveRun(ctx, e.store, run); err != nil {
			return err
		}
	}

	failedThisRun := make(map[StepID]bool)
	var stepErrs []error

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		run, err := LoadRun(ctx, e.store, siteID)
		if err != nil {
			return err
		}
		if run != nil && run.State == RunCancelled {
			return ErrRunCancelled
		}

		ready, err := e.Frontier(ctx, siteID, steps)
		if err != nil {
			return err
		}
		ready = filterSteps(ready, failedThisRun)
		if len(ready) == 0 {
			break
		}

		for _, outcome := range e.runRound(ctx, siteID, ready) {
			if outcome.err != nil {
				failedThisRun[outcome.step] = true
				stepErrs = append(stepErrs, outcome.err)
			}
		}
	}

	records, err := e.loadRecords(ctx, siteID)
	if err != nil {
		return err
	}
	if err := e.finishRun(ctx, siteID, steps, records, stepErrs); err != nil {
		return err
	}
	if len(stepErrs) == 0 {
		// A step still Running here is owned by a live concurrent executor;
		// report it instead of pretending the invocation finished the work.
		for _, step := range steps {
			if records[step].Status == StatusRunning {
				stepErrs = append(stepErrs, fmt.Errorf("%w: %s for site %s", ErrStepInFlight, step, siteID))
			}
		}
	}
	return errors.Join(stepErrs...)
}

type roundResult struct {
	step    StepID
	outcome Outcome
	err     error
}

// runRound executes all ready steps concurrently and waits for every one of
// them, collecting per-step results.
func (e *Executor) runRound(ctx context.Context, siteID string, ready []StepID) []roundResult {
	results := make(chan roundResult, len(ready))
	for _, step := range ready {
		go func() {
			outcome, err := e.ExecuteStep(ctx, siteID, step)
			results <- roundResult{step: step, outcome: outcome, err: err}
		}()
	}

	out := make([]roundResult, 0, len(ready))
	for range ready {
		out = append(out, <-results)
	}
	return out
}

// ExecuteStep runs a single step through its full lifecycle: cached-replay
// check, precondition check, CAS to Running, execution under retry and
// timeout, CAS to the terminal status.
func (e *Executor) ExecuteStep(ctx context.Context, siteID string, stepID StepID) (Outcome, error) {
	handler, ok := e.handlers[stepID]
	if !ok {
		return OutcomeFailed, fmt.Errorf("no handler registered for step %s", stepID)
	}
	log := e.log.WithValues("site", siteID, "step", stepID)

	rec, raw, err := LoadStepRecord(ctx, e.store, siteID, stepID)
	if err != nil {
		return OutcomeFailed, err
	}

	if rec.Status == StatusSucceeded {
		fp, err := handler.Fingerprint(ctx, siteID)
		if err != nil {
			return OutcomeFailed, &StepError{SiteID: siteID, StepID: stepID, Err: err}
		}
		if fp == rec.Fingerprint {
			stepReplays.WithLabelValues(string(stepID)).Inc()
			log.V(1).Info("fingerprint unchanged, replaying cached result")
			return OutcomeReplayed, nil
		}
		log.Info("fingerprint changed, re-applying step")
	}

	if rec.Status == StatusRunning && time.Since(rec.UpdatedAt) < e.takeoverAfter {
		// Another executor owns this step right now.
		log.V(1).Info("step is running elsewhere, leaving it alone")
		return OutcomeLost, nil
	}

	if err := e.checkPredecessors(ctx, siteID, stepID); err != nil {
		return OutcomeBlocked, err
	}

	running := *rec
	running.Status = StatusRunning
	running.Attempt++
	running.LastError = ""
	runningRaw, err := swapStepRecord(ctx, e.store, &running, raw)
	if errors.Is(err, store.ErrCASMismatch) {
		// Another executor already progressed this step.
		log.V(1).Info("lost status transition to a concurrent executor")
		return OutcomeLost, nil
	}
	if err != nil {
		return OutcomeFailed, err
	}

	start := time.Now()
	execErr := retry.WithExponentialBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, e.stepTimeout)
		defer cancel()
		return handler.Execute(callCtx, siteID)
	}, append([]retry.Option{retry.WithRetryable(vendor.IsRetryable)}, e.retryOpts...)...)
	stepDuration.WithLabelValues(string(stepID)).Observe(time.Since(start).Seconds())

	if execErr != nil {
		failed := running
		failed.Status = StatusFailed
		failed.LastError = execErr.Error()
		if _, err := swapStepRecord(ctx, e.store, &failed, runningRaw); err != nil && !errors.Is(err, store.ErrCASMismatch) {
			log.Error(err, "failed to persist step failure")
		}
		stepExecutions.WithLabelValues(string(stepID), "failed").Inc()
		log.Error(execErr, "step failed", "attempt", failed.Attempt)
		return OutcomeFailed, &StepError{SiteID: siteID, StepID: stepID, Err: execErr}
	}

	fp, err := handler.Fingerprint(ctx, siteID)
	if err != nil {
		return OutcomeFailed, &StepError{SiteID: siteID, StepID: stepID, Err: err}
	}

	succeeded := running
	succeeded.Status = StatusSucceeded
	succeeded.Fingerprint = fp
	if _, err := swapStepRecord(ctx, e.store, &succeeded, runningRaw); err != nil {
		if errors.Is(err, store.ErrCASMismatch) {
			return OutcomeLost, nil
		}
		return OutcomeFailed, err
	}
	stepExecutions.WithLabelValues(string(stepID), "succeeded").Inc()
	log.Info("step succeeded", "attempt", succeeded.Attempt, "duration", time.Since(start).Round(time.Millisecond))
	return OutcomeSucceeded, nil
}

func (e *Executor) checkPredecessors(ctx context.Context, siteID string, stepID StepID) error {
	for _, pred := range Predecessors(stepID) {
		rec, _, err := LoadStepRecord(ctx, e.store, siteID, pred)
		if err != nil {
			return err
		}
		if rec.Status != StatusSucceeded {
			return fmt.Errorf("%w: %s requires %s (currently %s)",
				ErrDependencyNotSatisfied, stepID, pred, rec.Status)
		}
	}
	return nil
}

// finishRun recomputes the run state from persisted step records.
func (e *Executor) finishRun(ctx context.Context, siteID string, steps []StepID, records map[StepID]*StepRecord, stepErrs []error) error {
	run, err := LoadRun(ctx, e.store, siteID)
	if err != nil || run == nil {
		return err
	}
	if run.State == RunCancelled {
		return nil
	}

	switch {
	case len(stepErrs) > 0:
		run.State = RunFailed
	case allSucceeded(records, AllSteps()):
		run.State = RunSucceeded
	case allSucceeded(records, steps):
		// The requested subset is done but the full workflow is not.
		run.State = RunRunning
	}
	return SaveRun(ctx, e.store, run)
}

func (e *Executor) loadRecords(ctx context.Context, siteID string) (map[StepID]*StepRecord, error) {
	records := make(map[StepID]*StepRecord, len(predecessors))
	for _, step := range AllSteps() {
		rec, _, err := LoadStepRecord(ctx, e.store, siteID, step)
		if err != nil {
			return nil, err
		}
		records[step] = rec
	}
	return records, nil
}

func allSucceeded(records map[StepID]*StepRecord, steps []StepID) bool {
	for _, s := range steps {
		if records[s].Status != StatusSucceeded {
			return false
		}
	}
	return true
}

func filterSteps(steps []StepID, exclude map[StepID]bool) []StepID {
	out := steps[:0]
	for _, s := range steps {
		if !exclude[s] {
			out = append(out, s)
		}
	}
	return out
}
