package handlers

import (
	"bytes"
	"context"
	"net/netip"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/siteflow/internal/addrplan"
	"github.com/imamik/siteflow/internal/assurance"
	"github.com/imamik/siteflow/internal/config"
	"github.com/imamik/siteflow/internal/orchestration"
	"github.com/imamik/siteflow/internal/platform/store"
	"github.com/imamik/siteflow/internal/platform/vendor"
)

// withTestService swaps the service factory and output writer for the test's
// lifetime, returning the captured output buffer.
func withTestService(t *testing.T, mock *vendor.Mock) *bytes.Buffer {
	t.Helper()

	svc, err := orchestration.NewService(store.NewMemory(), mock, orchestration.NetworkConfig{
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
	}, assurance.Config{}, logr.Discard())
	require.NoError(t, err)

	origService, origOut := newService, stdout
	newService = func(context.Context, string) (*orchestration.Service, error) {
		return svc, nil
	}
	out := &bytes.Buffer{}
	stdout = out
	t.Cleanup(func() {
		newService, stdout = origService, origOut
	})
	return out
}

func TestSiteHandler(t *testing.T) {
	out := withTestService(t, &vendor.Mock{})

	err := Site(context.Background(), "siteflow.yaml", SiteOptions{Name: "Branch 42"})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Site branch-42 created")
	assert.Contains(t, out.String(), "10.0.0.0/24")
}

func TestClaimAndDay1Handlers(t *testing.T) {
	out := withTestService(t, &vendor.Mock{})
	ctx := context.Background()

	require.NoError(t, Site(ctx, "siteflow.yaml", SiteOptions{Name: "alpha"}))
	require.NoError(t, Claim(ctx, "siteflow.yaml", "alpha", []string{"aa:00"}))
	require.NoError(t, Day1(ctx, "siteflow.yaml", "alpha", "all"))

	assert.Contains(t, out.String(), "Claimed 1 devices for site alpha")
	assert.Contains(t, out.String(), "Day-1 all configuration applied")
}

func TestAssureHandlerReportsBreaches(t *testing.T) {
	mock := &vendor.Mock{
		QuerySiteSLEFunc: func(context.Context, string, []string) ([]vendor.SLEScore, error) {
			return []vendor.SLEScore{
				{Name: "time-to-connect", Value: 92},
				{Name: "throughput", Value: 88},
			}, nil
		},
	}
	out := withTestService(t, mock)
	ctx := context.Background()

	require.NoError(t, Site(ctx, "siteflow.yaml", SiteOptions{Name: "alpha"}))
	require.NoError(t, Assure(ctx, "siteflow.yaml", "alpha"))

	assert.Contains(t, out.String(), "failed assurance")
	assert.Contains(t, out.String(), "throughput=88.0 below threshold 90.0")
}

func TestCanaryHandlerFlagValidation(t *testing.T) {
	withTestService(t, &vendor.Mock{})
	ctx := context.Background()

	err := Canary(ctx, "siteflow.yaml", "alpha", CanaryOptions{})
	require.Error(t, err)

	err = Canary(ctx, "siteflow.yaml", "alpha", CanaryOptions{Device: "aa:00", Change: "not-json"})
	require.Error(t, err)
}

func TestStatusHandler(t *testing.T) {
	out := withTestService(t, &vendor.Mock{})
	ctx := context.Background()

	require.NoError(t, Site(ctx, "siteflow.yaml", SiteOptions{Name: "alpha"}))
	require.NoError(t, Status(ctx, "siteflow.yaml", "alpha"))

	assert.Contains(t, out.String(), "create-site")
	assert.Contains(t, out.String(), "succeeded")
}

func TestNetworkFromConfig(t *testing.T) {
	t.Parallel()

	net, err := networkFromConfig(config.Network{
		RootCIDR: "10.0.0.0/8",
		Zones:    4,
		Roles:    []config.Role{{Name: "mgmt", Bits: 24}},
		VLANs:    map[string]int{"mgmt": 10},
	})
	require.NoError(t, err)
	assert.Equal(t, netip.MustParsePrefix("10.0.0.0/8"), net.Root)
	assert.Equal(t, addrplan.RoleSize{Role: addrplan.RoleManagement, Bits: 24}, net.Roles[0])
	assert.Equal(t, 10, net.VLANs[addrplan.RoleManagement])

	_, err = networkFromConfig(config.Network{RootCIDR: "bogus"})
	require.Error(t, err)
}
