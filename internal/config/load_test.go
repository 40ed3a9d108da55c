package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "https://api.mist.com", cfg.Platform.BaseURL)
	assert.Equal(t, "SITEFLOW_API_TOKEN", cfg.Platform.TokenEnv)
	assert.Equal(t, "10.0.0.0/8", cfg.Network.RootCIDR)
	assert.Equal(t, 8, cfg.Network.Zones)
	assert.Len(t, cfg.Network.Roles, 3)
	assert.Equal(t, 90.0, cfg.Assurance.Threshold)
	assert.Equal(t, 10*time.Minute, cfg.Assurance.Window)
	assert.Equal(t, time.Minute, cfg.Assurance.Interval)
	assert.Equal(t, "memory", cfg.Store.Backend)
}

func TestLoadFull(t *testing.T) {
	t.Parallel()

	cfg, err := Load([]byte(`
platform:
  base_url: https://api.eu.mist.com
  token_env: MIST_TOKEN
  org_id: org-123
network:
  root_cidr: 172.16.0.0/12
  zones: 4
  roles:
    - name: mgmt
      bits: 24
    - name: guest
      bits: 23
  vlans:
    mgmt: 100
    guest: 300
assurance:
  threshold: 85
  metrics: [throughput, roaming]
  window: 30m
  interval: 5m
store:
  backend: s3
  s3:
    bucket: siteflow-state
    region: eu-central-1
`))
	require.NoError(t, err)

	assert.Equal(t, "https://api.eu.mist.com", cfg.Platform.BaseURL)
	assert.Equal(t, "org-123", cfg.Platform.OrgID)
	assert.Equal(t, 4, cfg.Network.Zones)
	assert.Equal(t, Role{Name: "guest", Bits: 23}, cfg.Network.Roles[1])
	assert.Equal(t, 300, cfg.Network.VLANs["guest"])
	assert.Equal(t, 85.0, cfg.Assurance.Threshold)
	assert.Equal(t, 30*time.Minute, cfg.Assurance.Window)
	assert.Equal(t, "siteflow-state", cfg.Store.S3.Bucket)
	assert.Equal(t, "siteflow", cfg.Store.S3.Prefix)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "siteflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("network:\n  zones: 2\n"), 0o600))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Network.Zones)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "bad root cidr",
			mutate:  func(c *Config) { c.Network.RootCIDR = "not-a-cidr" },
			wantErr: "root_cidr",
		},
		{
			name:    "zones not a power of two",
			mutate:  func(c *Config) { c.Network.Zones = 6 },
			wantErr: "power of two",
		},
		{
			name:    "duplicate role",
			mutate:  func(c *Config) { c.Network.Roles = []Role{{Name: "mgmt", Bits: 24}, {Name: "mgmt", Bits: 25}} },
			wantErr: "duplicate role",
		},
		{
			name:    "role bits out of range",
			mutate:  func(c *Config) { c.Network.Roles = []Role{{Name: "mgmt", Bits: 31}} },
			wantErr: "out of range",
		},
		{
			name:    "vlan out of range",
			mutate:  func(c *Config) { c.Network.VLANs = map[string]int{"mgmt": 5000} },
			wantErr: "VLAN",
		},
		{
			name:    "threshold above 100",
			mutate:  func(c *Config) { c.Assurance.Threshold = 101 },
			wantErr: "threshold",
		},
		{
			name: "interval exceeds window",
			mutate: func(c *Config) {
				c.Assurance.Window = time.Minute
				c.Assurance.Interval = 2 * time.Minute
			},
			wantErr: "exceeds window",
		},
		{
			name:    "s3 without bucket",
			mutate:  func(c *Config) { c.Store.Backend = "s3"; c.Store.S3.Bucket = "" },
			wantErr: "bucket",
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Store.Backend = "etcd" },
			wantErr: "unknown",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg := &Config{}
			applyDefaults(cfg)
			tc.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTokenFromEnv(t *testing.T) {
	p := Platform{TokenEnv: "SITEFLOW_TEST_TOKEN"}

	_, err := p.Token()
	require.Error(t, err)

	t.Setenv("SITEFLOW_TEST_TOKEN", "secret")
	token, err := p.Token()
	require.NoError(t, err)
	assert.Equal(t, "secret", token)
}

func TestLoadTimeoutDefaults(t *testing.T) {
	timeouts := LoadTimeouts()
	assert.Equal(t, 2*time.Minute, timeouts.Step)
	assert.Equal(t, 30*time.Second, timeouts.Vendor)
	assert.Equal(t, 5, timeouts.RetryMaxAttempts)
	assert.Equal(t, time.Second, timeouts.RetryInitialDelay)
}

func TestLoadTimeoutOverrides(t *testing.T) {
	t.Setenv("SITEFLOW_TIMEOUT_STEP", "45s")
	t.Setenv("SITEFLOW_RETRY_MAX_ATTEMPTS", "2")
	t.Setenv("SITEFLOW_RETRY_INITIAL_DELAY", "bogus")

	timeouts := LoadTimeouts()
	assert.Equal(t, 45*time.Second, timeouts.Step)
	assert.Equal(t, 2, timeouts.RetryMaxAttempts)
	assert.Equal(t, time.Second, timeouts.RetryInitialDelay)
}
