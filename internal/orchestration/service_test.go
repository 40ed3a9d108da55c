package orchestration

import (
	"context"
	"encoding/json"
	"net/netip"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/siteflow/internal/addrplan"
	"github.com/imamik/siteflow/internal/assurance"
	"github.com/imamik/siteflow/internal/binder"
	"github.com/imamik/siteflow/internal/platform/store"
	"github.com/imamik/siteflow/internal/platform/vendor"
	"github.com/imamik/siteflow/internal/util/retry"
	"github.com/imamik/siteflow/internal/workflow"
)

func testNetwork() NetworkConfig {
	return NetworkConfig{
		Root:  netip.MustParsePrefix("10.0.0.0/8"),
		Zones: 8,
		Roles: []addrplan.RoleSize{
			{Role: addrplan.RoleManagement, Bits: 24},
			{Role: addrplan.RoleGuest, Bits: 24},
		},
		VLANs: map[addrplan.Role]int{
			addrplan.RoleManagement: 10,
			addrplan.RoleGuest:      30,
		},
	}
}

func newTestService(t *testing.T, mock *vendor.Mock, opts ...ServiceOption) (*Service, store.Store) {
	t.Helper()
	st := store.NewMemory()
	opts = append(opts, WithExecutorOptions(workflow.WithRetryOptions(retry.WithMaxRetries(1))))
	svc, err := NewService(st, mock, testNetwork(), assurance.Config{}, logr.Discard(), opts...)
	require.NoError(t, err)
	return svc, st
}

func TestSiteID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "branch-office-42", SiteID("Branch Office 42"))
	assert.Equal(t, "oslo-hq", SiteID("Oslo/HQ"))
	assert.Equal(t, SiteID("Oslo/HQ"), SiteID("oslo hq"))
}

func TestPlanAndCreateSite(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, st := newTestService(t, mock)
	ctx := context.Background()

	res, err := svc.PlanAndCreateSite(ctx, SiteRequest{
		Identity:  vendor.SiteIdentity{Name: "alpha", Timezone: "Europe/Oslo", CountryCode: "NO"},
		ZoneIndex: 0,
		Ordinal:   0,
	})
	require.NoError(t, err)

	assert.Equal(t, "alpha", res.SiteID)
	assert.Equal(t, "site-alpha", res.PlatformID)
	assert.Equal(t, "10.0.0.0/24", res.Subnets["mgmt"])
	assert.Equal(t, "10.0.1.0/24", res.Subnets["guest"])

	vars, err := loadVars(ctx, st, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.0/24", vars["subnet_mgmt"])
	assert.Equal(t, "10.0.0.1", vars["gateway_mgmt"])
	assert.Equal(t, "10", vars["vlan_mgmt"])
	assert.Equal(t, "30", vars["vlan_guest"])
	assert.NotEmpty(t, vars["wlan_psk"])
	assert.Equal(t, 1, mock.CallCount("SetSiteVariables"))
}

func TestPlanAndCreateSiteIsIdempotent(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, _ := newTestService(t, mock)
	ctx := context.Background()

	req := SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}}
	first, err := svc.PlanAndCreateSite(ctx, req)
	require.NoError(t, err)

	second, err := svc.PlanAndCreateSite(ctx, req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	// The replay served from persisted state without touching the platform.
	assert.Equal(t, 1, mock.CallCount("CreateSite"))
	assert.Equal(t, 1, mock.CallCount("SetSiteVariables"))
}

func TestPlanAndCreateSiteConflict(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, _ := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{
		Identity: vendor.SiteIdentity{Name: "alpha"}, ZoneIndex: 0, Ordinal: 0,
	})
	require.NoError(t, err)

	// Same zone and ordinal under a different name must surface, never be
	// silently re-planned.
	_, err = svc.PlanAndCreateSite(ctx, SiteRequest{
		Identity: vendor.SiteIdentity{Name: "beta"}, ZoneIndex: 0, Ordinal: 0,
	})
	require.Error(t, err)
	var conflict *addrplan.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "beta", conflict.SiteID)
	assert.Equal(t, "alpha", conflict.OtherSite)
}

func TestClaimDevicesCompletesDay0(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, st := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)

	require.NoError(t, svc.ClaimDevices(ctx, "alpha", []string{"aa:00", "aa:01"}))
	assert.Equal(t, 1, mock.CallCount("ClaimDevices"))
	assert.Equal(t, 1, mock.CallCount("AssignDevices"))

	rec, _, err := workflow.LoadStepRecord(ctx, st, "alpha", workflow.StepAssignDevices)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSucceeded, rec.Status)
}

func TestApplyDay1All(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, st := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)
	require.NoError(t, svc.ClaimDevices(ctx, "alpha", []string{"aa:00"}))
	require.NoError(t, svc.ApplyDay1(ctx, "alpha", DomainAll))

	// Eleven intent steps, one push each.
	assert.Equal(t, 11, mock.CallCount("ApplyConfig"))

	run, err := workflow.LoadRun(ctx, st, "alpha")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunSucceeded, run.State)
}

func TestApplyDay1SingleDomain(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, st := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)
	require.NoError(t, svc.ClaimDevices(ctx, "alpha", nil))
	require.NoError(t, svc.ApplyDay1(ctx, "alpha", "wired"))

	assert.Equal(t, 2, mock.CallCount("ApplyConfig"))
	rec, _, err := workflow.LoadStepRecord(ctx, st, "alpha", workflow.StepCreateWLANs)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusPending, rec.Status)
}

func TestApplyDay1UnknownDomain(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &vendor.Mock{})
	err := svc.ApplyDay1(context.Background(), "alpha", "underwater")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown domain")
}

func TestApplyDay1RequiresDay0(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, _ := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)

	// Day-1 roots depend on assign-devices; nothing may be pushed yet.
	require.NoError(t, svc.ApplyDay1(ctx, "alpha", DomainAll))
	assert.Zero(t, mock.CallCount("ApplyConfig"))
}

func TestMissingVariableFailsStepBeforePush(t *testing.T) {
	t.Parallel()

	broken := binder.Template{
		ID:      templateID("broken"),
		Name:    "broken",
		Version: 1,
		Kind:    "network",
		Body:    `{"subnet":"{{subnet_voice}}"}`,
	}
	mock := &vendor.Mock{}
	svc, st := newTestService(t, mock,
		WithTemplates(map[workflow.StepID]binder.Template{workflow.StepLANNetworks: broken}))
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)
	require.NoError(t, svc.ClaimDevices(ctx, "alpha", nil))

	err = svc.ApplyDay1(ctx, "alpha", "wired")
	require.Error(t, err)
	var missing *binder.MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "subnet_voice", missing.Variable)

	rec, _, err := workflow.LoadStepRecord(ctx, st, "alpha", workflow.StepLANNetworks)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusFailed, rec.Status)
	// Unbound variables are fatal: exactly one attempt, no push.
	assert.Equal(t, 1, rec.Attempt)
	assert.Zero(t, mock.CallCount("ApplyConfig"))
}

func TestRotateVariableReappliesOnlyDependents(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, st := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)
	require.NoError(t, svc.ClaimDevices(ctx, "alpha", nil))
	require.NoError(t, svc.ApplyDay1(ctx, "alpha", DomainAll))

	before := mock.CallCount("ApplyConfig")
	require.NoError(t, svc.RotateVariable(ctx, "alpha", "wlan_psk", "correct-horse-battery"))

	// Only create-wlans and org-psks reference the passphrase.
	assert.Equal(t, before+2, mock.CallCount("ApplyConfig"))

	vars, err := loadVars(ctx, st, "alpha")
	require.NoError(t, err)
	assert.Equal(t, "correct-horse-battery", vars["wlan_psk"])

	rec, _, err := workflow.LoadStepRecord(ctx, st, "alpha", workflow.StepOrgPSKs)
	require.NoError(t, err)
	assert.Equal(t, workflow.StatusSucceeded, rec.Status)
	assert.Equal(t, 2, rec.Attempt)
}

func TestRotateUnknownVariable(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, _ := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)

	err = svc.RotateVariable(ctx, "alpha", "nope", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not bound")
}

func TestReachabilityPersistsOrgContext(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, st := newTestService(t, mock)
	ctx := context.Background()

	org, err := svc.Reachability(ctx)
	require.NoError(t, err)
	assert.Equal(t, "org-1", org.OrgID)

	raw, err := st.Get(ctx, store.OrgContextKey)
	require.NoError(t, err)
	var stored vendor.OrgContext
	require.NoError(t, json.Unmarshal(raw, &stored))
	assert.Equal(t, *org, stored)
}

func TestStatus(t *testing.T) {
	t.Parallel()

	mock := &vendor.Mock{}
	svc, _ := newTestService(t, mock)
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)
	require.NoError(t, svc.ClaimDevices(ctx, "alpha", []string{"aa:00"}))

	st, err := svc.Status(ctx, "alpha")
	require.NoError(t, err)
	require.NotNil(t, st.Run)
	require.NotNil(t, st.Alloc)
	assert.Equal(t, []string{"aa:00"}, st.Devices)
	assert.Len(t, st.Steps, len(workflow.AllSteps()))
	assert.Equal(t, workflow.StepCreateSite, st.Steps[0].StepID)
	assert.Equal(t, workflow.StatusSucceeded, st.Steps[0].Status)
	assert.Empty(t, st.Blocked)
}

func TestStatusReportsBlockedSteps(t *testing.T) {
	t.Parallel()

	broken := binder.Template{
		ID:      templateID("broken"),
		Name:    "broken",
		Version: 1,
		Kind:    "network",
		Body:    `{"subnet":"{{subnet_voice}}"}`,
	}
	mock := &vendor.Mock{}
	svc, _ := newTestService(t, mock,
		WithTemplates(map[workflow.StepID]binder.Template{workflow.StepLANNetworks: broken}))
	ctx := context.Background()

	_, err := svc.PlanAndCreateSite(ctx, SiteRequest{Identity: vendor.SiteIdentity{Name: "alpha"}})
	require.NoError(t, err)
	require.NoError(t, svc.ClaimDevices(ctx, "alpha", nil))
	require.Error(t, svc.ApplyDay1(ctx, "alpha", "wired"))

	st, err := svc.Status(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, []workflow.StepID{workflow.StepSwitchTemplates}, st.Blocked,
		"only the failed step's own dependents wait on the retry")
}
