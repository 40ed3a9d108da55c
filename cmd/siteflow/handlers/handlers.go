package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/imamik/siteflow/internal/assurance"
	"github.com/imamik/siteflow/internal/orchestration"
	"github.com/imamik/siteflow/internal/platform/vendor"
)

// Reachability probes the platform and persists the resolved org context.
func Reachability(ctx context.Context, configPath string) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}
	org, err := svc.Reachability(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Platform reachable: org %s via %s\n", org.OrgID, org.APIHost)
	return nil
}

// SiteOptions carries the site command's inputs.
type SiteOptions struct {
	Name        string
	Zone        int
	Ordinal     int
	Address     string
	Timezone    string
	CountryCode string
	Devices     []string
	Variables   map[string]string
}

// Site plans and creates one site.
func Site(ctx context.Context, configPath string, opts SiteOptions) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}

	res, err := svc.PlanAndCreateSite(ctx, orchestration.SiteRequest{
		Identity: vendor.SiteIdentity{
			Name:        opts.Name,
			Address:     opts.Address,
			Timezone:    opts.Timezone,
			CountryCode: opts.CountryCode,
		},
		ZoneIndex: opts.Zone,
		Ordinal:   opts.Ordinal,
		Devices:   opts.Devices,
		Variables: opts.Variables,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Site %s created (platform id %s)\n", res.SiteID, res.PlatformID)
	roles := make([]string, 0, len(res.Subnets))
	for role := range res.Subnets {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		fmt.Fprintf(stdout, "  %-8s %s\n", role, res.Subnets[role])
	}
	return nil
}

// Claim claims devices into the org and assigns them to a site.
func Claim(ctx context.Context, configPath, siteID string, macs []string) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}
	if err := svc.ClaimDevices(ctx, siteID, macs); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Claimed %d devices for site %s\n", len(macs), siteID)
	return nil
}

// Day1 applies one or all Day-1 configuration domains.
func Day1(ctx context.Context, configPath, siteID, domain string) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}
	if err := svc.ApplyDay1(ctx, siteID, domain); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Day-1 %s configuration applied for site %s\n", domain, siteID)
	return nil
}

// Assure validates the site against its SLE scores.
func Assure(ctx context.Context, configPath, siteID string) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}
	verdict, err := svc.Assure(ctx, siteID)
	if err != nil {
		return err
	}
	if verdict.Passed {
		fmt.Fprintf(stdout, "Site %s verified\n", siteID)
		return nil
	}
	fmt.Fprintf(stdout, "Site %s failed assurance:\n", siteID)
	for _, b := range verdict.Breaches {
		fmt.Fprintf(stdout, "  %s\n", b)
	}
	return nil
}

// CanaryOptions carries the canary command's inputs.
type CanaryOptions struct {
	Device string
	Change string
	Status bool
	Abort  bool
}

// Canary starts, inspects or aborts a canary rollout.
func Canary(ctx context.Context, configPath, siteID string, opts CanaryOptions) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}

	switch {
	case opts.Status:
		rollout, err := svc.CanaryStatus(ctx, siteID)
		if err != nil {
			return err
		}
		if rollout == nil {
			fmt.Fprintf(stdout, "No canary rollout recorded for site %s\n", siteID)
			return nil
		}
		printRollout(rollout)
		return nil

	case opts.Abort:
		rollout, err := svc.AbortCanary(ctx, siteID)
		if err != nil {
			return err
		}
		printRollout(rollout)
		return nil

	default:
		if opts.Device == "" || opts.Change == "" {
			return errors.New("--device and --change are required to start a rollout")
		}
		if !json.Valid([]byte(opts.Change)) {
			return fmt.Errorf("change document is not valid JSON")
		}
		rollout, err := svc.Canary(ctx, siteID, opts.Device, json.RawMessage(opts.Change))
		if rollout != nil {
			printRollout(rollout)
		}
		return err
	}
}

func printRollout(r *assurance.CanaryRollout) {
	fmt.Fprintf(stdout, "Rollout %s on %s: %s\n", r.ID, r.TargetMAC, r.State)
	if r.Breach != nil {
		fmt.Fprintf(stdout, "  breach: %s\n", r.Breach)
	}
	if r.LastError != "" {
		fmt.Fprintf(stdout, "  error: %s\n", r.LastError)
	}
}

// Rotate binds a new variable value and re-applies dependent steps.
func Rotate(ctx context.Context, configPath, siteID, name, value string) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}
	if err := svc.RotateVariable(ctx, siteID, name, value); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Variable %s rotated for site %s\n", name, siteID)
	return nil
}

// Status prints a site's persisted workflow state.
func Status(ctx context.Context, configPath, siteID string) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}
	st, err := svc.Status(ctx, siteID)
	if err != nil {
		return err
	}

	if st.Run == nil {
		fmt.Fprintf(stdout, "Site %s has no workflow run\n", siteID)
	} else {
		fmt.Fprintf(stdout, "Site %s: run %s %s", siteID, st.Run.RunID, st.Run.State)
		if st.Run.Assurance != "" {
			fmt.Fprintf(stdout, " (assurance %s)", st.Run.Assurance)
		}
		fmt.Fprintln(stdout)
	}
	if st.Alloc != nil {
		fmt.Fprintf(stdout, "Block %s (zone %d, ordinal %d)\n", st.Alloc.Block, st.Alloc.Zone, st.Alloc.Ordinal)
	}
	for _, step := range st.Steps {
		fmt.Fprintf(stdout, "  %-20s %-10s attempt=%d", step.StepID, step.Status, step.Attempt)
		if step.LastError != "" {
			fmt.Fprintf(stdout, " error=%s", step.LastError)
		}
		fmt.Fprintln(stdout)
	}
	if len(st.Blocked) > 0 {
		fmt.Fprintf(stdout, "Blocked until a failed step is retried: %v\n", st.Blocked)
	}
	return nil
}

// Cancel marks the site's workflow run cancelled.
func Cancel(ctx context.Context, configPath, siteID string) error {
	svc, err := newService(ctx, configPath)
	if err != nil {
		return err
	}
	if err := svc.Cancel(ctx, siteID); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Run cancelled for site %s\n", siteID)
	return nil
}
