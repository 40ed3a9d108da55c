package config

import "time"

// Config is the full orchestrator configuration.
type Config struct {
	Platform  Platform  `mapstructure:"platform"`
	Network   Network   `mapstructure:"network"`
	Assurance Assurance `mapstructure:"assurance"`
	Store     Store     `mapstructure:"store"`
}

// Platform locates the vendor API.
type Platform struct {
	BaseURL string `mapstructure:"base_url"`
	// TokenEnv names the environment variable holding the API token. The
	// token itself never appears in the config file.
	TokenEnv string `mapstructure:"token_env"`
	OrgID    string `mapstructure:"org_id"`
}

// Network describes the org address plan.
type Network struct {
	RootCIDR string         `mapstructure:"root_cidr"`
	Zones    int            `mapstructure:"zones"`
	Roles    []Role         `mapstructure:"roles"`
	VLANs    map[string]int `mapstructure:"vlans"`
}

// Role sizes one per-site subnet.
type Role struct {
	Name string `mapstructure:"name"`
	Bits int    `mapstructure:"bits"`
}

// Assurance tunes post-deployment validation and canary rollouts.
type Assurance struct {
	Threshold float64       `mapstructure:"threshold"`
	Metrics   []string      `mapstructure:"metrics"`
	Window    time.Duration `mapstructure:"window"`
	Interval  time.Duration `mapstructure:"interval"`
}

// Store selects the state store backend.
type Store struct {
	Backend string `mapstructure:"backend"` // memory or s3
	S3      S3     `mapstructure:"s3"`
}

// S3 configures the S3-compatible backend.
type S3 struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}
