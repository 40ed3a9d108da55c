package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"

	"github.com/go-logr/logr"

	"github.com/imamik/siteflow/internal/addrplan"
	"github.com/imamik/siteflow/internal/assurance"
	"github.com/imamik/siteflow/internal/binder"
	"github.com/imamik/siteflow/internal/platform/store"
	"github.com/imamik/siteflow/internal/platform/vendor"
	"github.com/imamik/siteflow/internal/workflow"
)

// NetworkConfig describes the org address plan: the root block, how many
// zones it splits into, and the per-site role table.
type NetworkConfig struct {
	Root  netip.Prefix
	Zones int
	Roles []addrplan.RoleSize
	VLANs map[addrplan.Role]int
}

// Service exposes the operational surface of the orchestrator.
type Service struct {
	store   store.Store
	client  vendor.Client
	exec    *workflow.Executor
	gate    *assurance.Gate
	net     NetworkConfig
	zones   []netip.Prefix
	catalog map[workflow.StepID]binder.Template
	index   *binder.VariableIndex
	log     logr.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithExecutorOptions forwards options to the workflow executor.
func WithExecutorOptions(opts ...workflow.ExecutorOption) ServiceOption {
	return func(s *Service) {
		s.exec = workflow.NewExecutor(s.store, s.log.WithName("workflow"), opts...)
	}
}

// WithTemplates overrides built-in catalog entries for individual steps.
func WithTemplates(overrides map[workflow.StepID]binder.Template) ServiceOption {
	return func(s *Service) {
		for step, tmpl := range overrides {
			s.catalog[step] = tmpl
		}
	}
}

// NewService builds the orchestrator over the given store and platform
// client. The zone split is computed once up front; a root block that cannot
// split into the configured zone count is a configuration error.
func NewService(st store.Store, client vendor.Client, net NetworkConfig, gateCfg assurance.Config, log logr.Logger, opts ...ServiceOption) (*Service, error) {
	zones, err := addrplan.SplitZones(net.Root, net.Zones)
	if err != nil {
		return nil, fmt.Errorf("invalid network configuration: %w", err)
	}

	s := &Service{
		store:   st,
		client:  client,
		net:     net,
		zones:   zones,
		catalog: DefaultCatalog(),
		index:   binder.NewVariableIndex(),
		log:     log.WithName("orchestration"),
	}
	s.exec = workflow.NewExecutor(st, s.log.WithName("workflow"))
	s.gate = assurance.NewGate(st, client, gateCfg, s.log)

	for _, opt := range opts {
		opt(s)
	}

	s.exec.Register(workflow.StepCreateSite, &createSiteHandler{svc: s})
	s.exec.Register(workflow.StepAssignDevices, &assignDevicesHandler{svc: s})
	for _, step := range workflow.AllSteps() {
		tmpl, ok := s.catalog[step]
		if !ok {
			continue
		}
		s.exec.Register(step, &intentHandler{svc: s, tmpl: tmpl})
		s.index.Register(string(step), tmpl)
	}
	return s, nil
}

// Reachability probes the platform, resolves the org identity and persists
// it under the org context key. The handshake every other operation assumes.
func (s *Service) Reachability(ctx context.Context) (*vendor.OrgContext, error) {
	org, err := s.client.Self(ctx)
	if err != nil {
		return nil, fmt.Errorf("platform reachability check failed: %w", err)
	}
	raw, err := json.Marshal(org)
	if err != nil {
		return nil, fmt.Errorf("failed to encode org context: %w", err)
	}
	if err := s.store.Set(ctx, store.OrgContextKey, raw); err != nil {
		return nil, err
	}
	s.log.Info("platform reachable", "org", org.OrgID, "host", org.APIHost)
	return org, nil
}

// SiteRequest is the operator input to PlanAndCreateSite.
type SiteRequest struct {
	Identity  vendor.SiteIdentity
	ZoneIndex int
	Ordinal   int
	Devices   []string
	Variables map[string]string
}

// SiteResult reports the outcome of site creation.
type SiteResult struct {
	SiteID     string
	PlatformID string
	Subnets    map[string]string
}

// PlanAndCreateSite persists the site's desired state and drives the
// create-site step: deterministic subnet planning, conflict check against
// every persisted allocation, site creation and variable binding. Safe to
// re-invoke; an unchanged request replays from cache.
func (s *Service) PlanAndCreateSite(ctx context.Context, req SiteRequest) (*SiteResult, error) {
	if req.Identity.Name == "" {
		return nil, errors.New("site name is required")
	}
	siteID := SiteID(req.Identity.Name)

	spec := &SiteSpec{
		SiteID:    siteID,
		Identity:  req.Identity,
		ZoneIndex: req.ZoneIndex,
		Ordinal:   req.Ordinal,
		Devices:   req.Devices,
		Variables: req.Variables,
	}
	if err := saveSpec(ctx, s.store, spec); err != nil {
		return nil, err
	}

	if err := s.exec.RunSteps(ctx, siteID, []workflow.StepID{workflow.StepCreateSite}); err != nil {
		return nil, err
	}

	alloc, err := loadAllocation(ctx, s.store, siteID)
	if err != nil {
		return nil, err
	}
	if alloc == nil {
		return nil, fmt.Errorf("site %s has no allocation after create", siteID)
	}
	return &SiteResult{SiteID: siteID, PlatformID: alloc.PlatformID, Subnets: alloc.Subnets}, nil
}

// ClaimDevices adds devices to the site's desired inventory and drives Day-0
// to completion: the devices are claimed into the org and assigned to the
// site.
func (s *Service) ClaimDevices(ctx context.Context, siteID string, macs []string) error {
	spec, err := loadSpec(ctx, s.store, siteID)
	if err != nil {
		return err
	}

	have := make(map[string]bool, len(spec.Devices))
	for _, mac := range spec.Devices {
		have[mac] = true
	}
	for _, mac := range macs {
		if !have[mac] {
			spec.Devices = append(spec.Devices, mac)
			have[mac] = true
		}
	}
	if err := saveSpec(ctx, s.store, spec); err != nil {
		return err
	}

	return s.exec.RunSteps(ctx, siteID, workflow.DomainSteps(workflow.DomainDay0))
}

// DomainAll selects every Day-1 subtree.
const DomainAll = "all"

// ApplyDay1 drives one Day-1 domain (wan, wired, wireless) or all three for
// a site. Subtrees are independent: a failure in one blocks only its own
// dependents.
func (s *Service) ApplyDay1(ctx context.Context, siteID, domain string) error {
	var steps []workflow.StepID
	switch domain {
	case DomainAll:
		for _, d := range workflow.Day1Domains() {
			steps = append(steps, workflow.DomainSteps(d)...)
		}
	case string(workflow.DomainWAN), string(workflow.DomainWired), string(workflow.DomainWireless):
		steps = workflow.DomainSteps(workflow.Domain(domain))
	default:
		return fmt.Errorf("unknown domain %q (want wan, wired, wireless or all)", domain)
	}
	return s.exec.RunSteps(ctx, siteID, steps)
}

// Assure validates the deployed site against its SLE scores and records the
// verdict on the workflow run.
func (s *Service) Assure(ctx context.Context, siteID string) (assurance.Verdict, error) {
	return s.gate.ValidateSite(ctx, siteID)
}

// Canary stages a device change through the canary state machine.
func (s *Service) Canary(ctx context.Context, siteID, targetMAC string, change json.RawMessage) (*assurance.CanaryRollout, error) {
	return s.gate.RunCanary(ctx, siteID, targetMAC, change)
}

// CanaryStatus reports the site's most recent rollout.
func (s *Service) CanaryStatus(ctx context.Context, siteID string) (*assurance.CanaryRollout, error) {
	return s.gate.CanaryStatus(ctx, siteID)
}

// AbortCanary frees a stuck rollout, restoring the canary device.
func (s *Service) AbortCanary(ctx context.Context, siteID string) (*assurance.CanaryRollout, error) {
	return s.gate.AbortCanary(ctx, siteID)
}

// Cancel marks the site's workflow run cancelled. In-flight steps complete
// and persist; nothing further starts.
func (s *Service) Cancel(ctx context.Context, siteID string) error {
	return s.exec.Cancel(ctx, siteID)
}

// RotateVariable binds a new value for one site variable and re-applies
// exactly the steps whose templates reference it. Steps that do not use the
// variable keep their cached results.
func (s *Service) RotateVariable(ctx context.Context, siteID, name, value string) error {
	vars, err := loadVars(ctx, s.store, siteID)
	if err != nil {
		return err
	}
	if _, ok := vars[name]; !ok {
		return fmt.Errorf("variable %q is not bound for site %s", name, siteID)
	}
	vars[name] = value
	if err := saveVars(ctx, s.store, siteID, vars); err != nil {
		return err
	}

	alloc, err := loadAllocation(ctx, s.store, siteID)
	if err != nil {
		return err
	}
	if alloc != nil && alloc.PlatformID != "" {
		if err := s.client.SetSiteVariables(ctx, alloc.PlatformID, vars); err != nil {
			return fmt.Errorf("failed to rebind variables for site %s: %w", siteID, err)
		}
	}

	var errs []error
	for _, stepID := range s.index.StepsReferencing(name) {
		step := workflow.StepID(stepID)
		rec, _, err := workflow.LoadStepRecord(ctx, s.store, siteID, step)
		if err != nil {
			return err
		}
		// Steps never applied to this site pick up the new value whenever
		// they first run; only applied steps need re-application now.
		if rec.Status != workflow.StatusSucceeded {
			continue
		}
		if _, err := s.exec.ExecuteStep(ctx, siteID, step); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StepStatus is one step's persisted state, for operator display.
type StepStatus struct {
	StepID      workflow.StepID
	Status      workflow.Status
	Attempt     int
	LastError   string
	Fingerprint string
}

// SiteStatus is the operator view of one site's workflow. Blocked lists the
// pending steps that cannot run until a failed step upstream is retried.
type SiteStatus struct {
	Run     *workflow.WorkflowRun
	Steps   []StepStatus
	Blocked []workflow.StepID
	Alloc   *Allocation
	Devices []string
}

// Status reports the persisted workflow state of a site.
func (s *Service) Status(ctx context.Context, siteID string) (*SiteStatus, error) {
	run, err := workflow.LoadRun(ctx, s.store, siteID)
	if err != nil {
		return nil, err
	}
	alloc, err := loadAllocation(ctx, s.store, siteID)
	if err != nil {
		return nil, err
	}

	st := &SiteStatus{Run: run, Alloc: alloc}
	if spec, err := loadSpec(ctx, s.store, siteID); err == nil {
		st.Devices = spec.Devices
	}

	statuses := make(map[workflow.StepID]workflow.Status)
	for _, step := range workflow.AllSteps() {
		rec, _, err := workflow.LoadStepRecord(ctx, s.store, siteID, step)
		if err != nil {
			return nil, err
		}
		statuses[step] = rec.Status
		st.Steps = append(st.Steps, StepStatus{
			StepID:      rec.StepID,
			Status:      rec.Status,
			Attempt:     rec.Attempt,
			LastError:   rec.LastError,
			Fingerprint: rec.Fingerprint,
		})
	}

	blocked := make(map[workflow.StepID]bool)
	for step, status := range statuses {
		if status != workflow.StatusFailed {
			continue
		}
		for _, dep := range workflow.TransitiveDependents(step) {
			blocked[dep] = true
		}
	}
	for _, step := range workflow.AllSteps() {
		if blocked[step] && statuses[step] == workflow.StatusPending {
			st.Blocked = append(st.Blocked, step)
		}
	}
	return st, nil
}
