package assurance

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"

	"github.com/imamik/siteflow/internal/platform/store"
	"github.com/imamik/siteflow/internal/platform/vendor"
	"github.com/imamik/siteflow/internal/workflow"
)

// Config tunes the assurance gate and canary machine.
type Config struct {
	// Metrics are the SLE classifiers to sample. Empty means DefaultMetrics.
	Metrics []string
	// Threshold is the pass mark for every metric. Zero means
	// DefaultThreshold.
	Threshold float64
	// Window is how long a canary device is observed before promotion.
	Window time.Duration
	// Interval is the sampling period inside the window.
	Interval time.Duration
}

func (c Config) metrics() []string {
	if len(c.Metrics) == 0 {
		return DefaultMetrics
	}
	return c.Metrics
}

func (c Config) threshold() float64 {
	if c.Threshold == 0 {
		return DefaultThreshold
	}
	return c.Threshold
}

// Gate validates deployed sites against SLE telemetry and runs canary
// rollouts for device lifecycle changes.
type Gate struct {
	store  store.Store
	client vendor.Client
	cfg    Config
	log    logr.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewGate builds an assurance gate over the given state store and platform
// client.
func NewGate(st store.Store, client vendor.Client, cfg Config, log logr.Logger) *Gate {
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Gate{
		store:  st,
		client: client,
		cfg:    cfg,
		log:    log.WithName("assurance"),
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ValidateSite samples the site's SLE scores once and records the verdict on
// the site's workflow run. Validation is advisory: a failed verdict marks the
// run unverified but reverts nothing.
func (g *Gate) ValidateSite(ctx context.Context, siteID string) (Verdict, error) {
	log := g.log.WithValues("site", siteID)

	scores, err := g.client.QuerySiteSLE(ctx, siteID, g.cfg.metrics())
	if err != nil {
		return Verdict{}, fmt.Errorf("failed to query SLE scores for site %s: %w", siteID, err)
	}

	verdict := Evaluate(scores, g.cfg.threshold())
	if verdict.Passed {
		log.Info("site passed assurance validation", "metrics", len(scores))
	} else {
		for _, b := range verdict.Breaches {
			log.Info("assurance breach", "metric", b.Metric, "value", b.Value, "threshold", b.Threshold)
		}
	}

	run, err := workflow.LoadRun(ctx, g.store, siteID)
	if err != nil {
		return verdict, err
	}
	if run == nil {
		return verdict, fmt.Errorf("no workflow run recorded for site %s", siteID)
	}
	if verdict.Passed {
		run.Assurance = workflow.AssuranceVerified
	} else {
		run.Assurance = workflow.AssuranceFailed
	}
	if err := workflow.SaveRun(ctx, g.store, run); err != nil {
		return verdict, err
	}
	return verdict, nil
}
