package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// LoadFile reads and parses the configuration from a YAML file.
func LoadFile(path string) (*Config, error) {
	// #nosec G304
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Load(data)
}

// Load parses configuration from YAML bytes, applies defaults and validates.
func Load(data []byte) (*Config, error) {
	var rawConfig map[string]interface{}
	if err := yaml.Unmarshal(data, &rawConfig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal yaml: %w", err)
	}

	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &cfg,
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(rawConfig); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Platform.BaseURL == "" {
		cfg.Platform.BaseURL = "https://api.mist.com"
	}
	if cfg.Platform.TokenEnv == "" {
		cfg.Platform.TokenEnv = "SITEFLOW_API_TOKEN"
	}

	if cfg.Network.RootCIDR == "" {
		cfg.Network.RootCIDR = "10.0.0.0/8"
	}
	if cfg.Network.Zones == 0 {
		cfg.Network.Zones = 8
	}
	if len(cfg.Network.Roles) == 0 {
		cfg.Network.Roles = []Role{
			{Name: "mgmt", Bits: 24},
			{Name: "corp", Bits: 24},
			{Name: "guest", Bits: 24},
		}
	}
	if len(cfg.Network.VLANs) == 0 {
		cfg.Network.VLANs = map[string]int{
			"mgmt":  10,
			"corp":  20,
			"guest": 30,
			"voice": 40,
		}
	}

	if cfg.Assurance.Threshold == 0 {
		cfg.Assurance.Threshold = 90
	}
	if cfg.Assurance.Window == 0 {
		cfg.Assurance.Window = 10 * time.Minute
	}
	if cfg.Assurance.Interval == 0 {
		cfg.Assurance.Interval = time.Minute
	}

	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.Backend == "s3" && cfg.Store.S3.Prefix == "" {
		cfg.Store.S3.Prefix = "siteflow"
	}
}

// Token resolves the platform API token from the configured environment
// variable.
func (p Platform) Token() (string, error) {
	token := os.Getenv(p.TokenEnv)
	if token == "" {
		return "", fmt.Errorf("environment variable %s is not set", p.TokenEnv)
	}
	return token, nil
}
