package assurance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imamik/siteflow/internal/platform/store"
)

// CanaryState is the phase of a canary rollout. Promoted and RolledBack are
// terminal.
type CanaryState string

const (
	CanaryPending    CanaryState = "pending"
	CanaryDeployed   CanaryState = "canary_deployed"
	CanaryMeasuring  CanaryState = "measuring"
	CanaryPromoted   CanaryState = "promoted"
	CanaryRolledBack CanaryState = "rolled_back"
)

// Terminal reports whether the state allows a new rollout to start.
func (s CanaryState) Terminal() bool {
	return s == CanaryPromoted || s == CanaryRolledBack
}

// ErrCanaryInProgress is returned when a rollout is requested for a site that
// already has a non-terminal rollout recorded.
var ErrCanaryInProgress = errors.New("canary rollout already in progress for site")

// CanaryRollout is the persisted state of one staged device change. Every
// phase transition is written through before the next action, so a crashed
// rollout is inspectable and the device snapshot survives for manual restore.
type CanaryRollout struct {
	ID        string          `json:"id"`
	SiteID    string          `json:"site_id"`
	TargetMAC string          `json:"target_mac"`
	Change    json.RawMessage `json:"change"`
	Snapshot  []byte          `json:"snapshot,omitempty"`
	State     CanaryState     `json:"state"`
	Breach    *Breach         `json:"breach,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// CanaryStatus returns the most recent rollout recorded for a site, or nil if
// none exists.
func (g *Gate) CanaryStatus(ctx context.Context, siteID string) (*CanaryRollout, error) {
	r, _, err := g.loadCanary(ctx, siteID)
	return r, err
}

func (g *Gate) loadCanary(ctx context.Context, siteID string) (*CanaryRollout, []byte, error) {
	raw, err := g.store.Get(ctx, store.CanaryKey(siteID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load canary record for %s: %w", siteID, err)
	}
	var r CanaryRollout
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, nil, fmt.Errorf("corrupt canary record for %s: %w", siteID, err)
	}
	return &r, raw, nil
}

// swapCanary transitions the rollout record atomically, keyed on the raw form
// previously observed. A CAS mismatch means another process took over the
// site's canary slot.
func (g *Gate) swapCanary(ctx context.Context, r *CanaryRollout, expectedRaw []byte) ([]byte, error) {
	r.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode canary record: %w", err)
	}
	if err := g.store.CompareAndSwap(ctx, store.CanaryKey(r.SiteID), expectedRaw, raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// RunCanary stages a device change on one canary device, observes its SLE
// scores across the configured window, and either promotes the change to the
// rest of the site's devices or restores the canary from its snapshot.
//
// A single sample below the threshold rolls back immediately; the remaining
// window is not waited out. A breach is an expected outcome, not an error:
// the returned rollout carries the breach and the RolledBack state. Errors
// are reserved for operational failures (platform or store), which also roll
// the canary back when a change had already been applied.
//
// Only one rollout per site may be live at a time; the rollout record itself
// is the lock, acquired by compare-and-swap against the previous terminal
// record.
func (g *Gate) RunCanary(ctx context.Context, siteID, targetMAC string, change json.RawMessage) (*CanaryRollout, error) {
	log := g.log.WithValues("site", siteID, "device", targetMAC)

	prev, prevRaw, err := g.loadCanary(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if prev != nil && !prev.State.Terminal() {
		return prev, fmt.Errorf("%w: rollout %s is %s", ErrCanaryInProgress, prev.ID, prev.State)
	}

	r := &CanaryRollout{
		ID:        uuid.NewString(),
		SiteID:    siteID,
		TargetMAC: targetMAC,
		Change:    change,
		State:     CanaryPending,
		StartedAt: time.Now().UTC(),
	}
	raw, err := g.swapCanary(ctx, r, prevRaw)
	if errors.Is(err, store.ErrCASMismatch) {
		return nil, fmt.Errorf("%w: lost acquisition race", ErrCanaryInProgress)
	}
	if err != nil {
		return nil, err
	}
	log.Info("canary rollout started", "rollout", r.ID)

	r.Snapshot, err = g.client.SnapshotDevice(ctx, siteID, targetMAC)
	if err != nil {
		return g.finishRollout(ctx, r, raw, CanaryRolledBack, fmt.Errorf("failed to snapshot canary device: %w", err))
	}

	if err := g.client.ApplyDeviceChange(ctx, siteID, targetMAC, change); err != nil {
		g.restore(ctx, r)
		return g.finishRollout(ctx, r, raw, CanaryRolledBack, fmt.Errorf("failed to apply change to canary device: %w", err))
	}
	r.State = CanaryDeployed
	if raw, err = g.swapCanary(ctx, r, raw); err != nil {
		return r, err
	}

	r.State = CanaryMeasuring
	if raw, err = g.swapCanary(ctx, r, raw); err != nil {
		return r, err
	}

	samples := int(g.cfg.Window / g.cfg.Interval)
	if samples < 1 {
		samples = 1
	}
	threshold := g.cfg.threshold()
	for i := 0; i < samples; i++ {
		if err := g.sleep(ctx, g.cfg.Interval); err != nil {
			g.restore(ctx, r)
			return g.finishRollout(ctx, r, raw, CanaryRolledBack, fmt.Errorf("canary measurement aborted: %w", err))
		}
		scores, err := g.client.QueryDeviceSLE(ctx, siteID, targetMAC, g.cfg.metrics())
		if err != nil {
			g.restore(ctx, r)
			return g.finishRollout(ctx, r, raw, CanaryRolledBack, fmt.Errorf("failed to sample canary SLE scores: %w", err))
		}
		if verdict := Evaluate(scores, threshold); !verdict.Passed {
			b := verdict.Breaches[0]
			r.Breach = &b
			log.Info("canary breached threshold, rolling back",
				"metric", b.Metric, "value", b.Value, "threshold", b.Threshold)
			g.restore(ctx, r)
			r.State = CanaryRolledBack
			if raw, err = g.swapCanary(ctx, r, raw); err != nil {
				return r, err
			}
			return r, nil
		}
	}

	devices, err := g.client.ListSiteDevices(ctx, siteID)
	if err != nil {
		return g.finishRollout(ctx, r, raw, CanaryMeasuring, fmt.Errorf("failed to list devices for promotion: %w", err))
	}
	for _, d := range devices {
		if d.MAC == targetMAC {
			continue
		}
		if err := g.client.ApplyDeviceChange(ctx, siteID, d.MAC, change); err != nil {
			return g.finishRollout(ctx, r, raw, CanaryMeasuring, fmt.Errorf("failed to promote change to device %s: %w", d.MAC, err))
		}
	}

	r.State = CanaryPromoted
	if _, err := g.swapCanary(ctx, r, raw); err != nil {
		return r, err
	}
	log.Info("canary rollout promoted", "rollout", r.ID, "devices", len(devices))
	return r, nil
}

// AbortCanary restores the canary device of a stuck non-terminal rollout and
// marks it rolled back, freeing the site's canary slot.
func (g *Gate) AbortCanary(ctx context.Context, siteID string) (*CanaryRollout, error) {
	r, raw, err := g.loadCanary(ctx, siteID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, fmt.Errorf("no canary rollout recorded for site %s", siteID)
	}
	if r.State.Terminal() {
		return r, fmt.Errorf("canary rollout %s already %s", r.ID, r.State)
	}
	if r.State != CanaryPending {
		g.restore(ctx, r)
	}
	r.State = CanaryRolledBack
	r.LastError = "aborted by operator"
	if _, err := g.swapCanary(ctx, r, raw); err != nil {
		return r, err
	}
	return r, nil
}

// restore reverts the canary device from its snapshot. Best effort: a restore
// failure is logged and recorded but never masks the original failure.
func (g *Gate) restore(ctx context.Context, r *CanaryRollout) {
	if len(r.Snapshot) == 0 {
		return
	}
	if err := g.client.RestoreDevice(ctx, r.SiteID, r.TargetMAC, r.Snapshot); err != nil {
		g.log.Error(err, "failed to restore canary device from snapshot",
			"site", r.SiteID, "device", r.TargetMAC)
		r.LastError = fmt.Sprintf("restore failed: %v", err)
	}
}

// finishRollout persists a failed transition and returns the causing error.
func (g *Gate) finishRollout(ctx context.Context, r *CanaryRollout, raw []byte, state CanaryState, cause error) (*CanaryRollout, error) {
	r.State = state
	if r.LastError == "" {
		r.LastError = cause.Error()
	}
	if _, err := g.swapCanary(ctx, r, raw); err != nil {
		g.log.Error(err, "failed to persist canary failure", "site", r.SiteID)
	}
	return r, cause
}
