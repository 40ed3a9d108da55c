package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/imamik/siteflow/internal/platform/store"
)

// Status is the execution state of one step for one site.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// StepRecord is the persisted state of a (site, step) pair.
type StepRecord struct {
	SiteID      string    `json:"site_id"`
	StepID      StepID    `json:"step_id"`
	Status      Status    `json:"status"`
	Attempt     int       `json:"attempt"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunState is the overall state of a site's workflow run.
type RunState string

const (
	RunPending   RunState = "pending"
	RunRunning   RunState = "running"
	RunSucceeded RunState = "succeeded"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// AssuranceVerdict is the post-deployment validation outcome, distinct from
// step failure. A failed verdict flags the site as unverified; it never rolls
// configuration back.
type AssuranceVerdict string

const (
	AssuranceUnknown  AssuranceVerdict = ""
	AssuranceVerified AssuranceVerdict = "verified"
	AssuranceFailed   AssuranceVerdict = "failed"
)

// WorkflowRun is the persisted header of one site's provisioning attempt.
type WorkflowRun struct {
	RunID     string           `json:"run_id"`
	SiteID    string           `json:"site_id"`
	State     RunState         `json:"state"`
	Assurance AssuranceVerdict `json:"assurance,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// LoadStepRecord fetches the step record, returning a fresh Pending record
// (and its raw stored form, nil when absent) if none exists yet.
func LoadStepRecord(ctx context.Context, st store.Store, siteID string, stepID StepID) (*StepRecord, []byte, error) {
	raw, err := st.Get(ctx, store.StepKey(siteID, string(stepID)))
	if errors.Is(err, store.ErrNotFound) {
		return &StepRecord{SiteID: siteID, StepID: stepID, Status: StatusPending}, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load step record %s/%s: %w", siteID, stepID, err)
	}

	var rec StepRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, nil, fmt.Errorf("corrupt step record %s/%s: %w", siteID, stepID, err)
	}
	return &rec, raw, nil
}

// swapStepRecord transitions a step record atomically, keyed on the raw form
// previously observed. expectedRaw nil means the record must not exist yet.
func swapStepRecord(ctx context.Context, st store.Store, rec *StepRecord, expectedRaw []byte) ([]byte, error) {
	rec.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode step record: %w", err)
	}
	key := store.StepKey(rec.SiteID, string(rec.StepID))
	if err := st.CompareAndSwap(ctx, key, expectedRaw, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// LoadRun fetches the run header for a site, or nil if none exists.
func LoadRun(ctx context.Context, st store.Store, siteID string) (*WorkflowRun, error) {
	raw, err := st.Get(ctx, store.RunKey(siteID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run for %s: %w", siteID, err)
	}
	var run WorkflowRun
	if err := json.Unmarshal(raw, &run); err != nil {
		return nil, fmt.Errorf("corrupt run record for %s: %w", siteID, err)
	}
	return &run, nil
}

// SaveRun persists the run header unconditionally.
func SaveRun(ctx context.Context, st store.Store, run *WorkflowRun) error {
	run.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	return st.Set(ctx, store.RunKey(run.SiteID), raw)
}
