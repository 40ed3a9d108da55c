package config

import (
	"fmt"
	"net/netip"
)

// Validate checks the configuration for internal consistency. Called by Load
// after defaults are applied.
func (c *Config) Validate() error {
	root, err := netip.ParsePrefix(c.Network.RootCIDR)
	if err != nil {
		return fmt.Errorf("network.root_cidr: %w", err)
	}
	if !root.Addr().Is4() {
		return fmt.Errorf("network.root_cidr: only IPv4 blocks are supported, got %s", root)
	}

	if c.Network.Zones < 1 {
		return fmt.Errorf("network.zones must be positive, got %d", c.Network.Zones)
	}
	if c.Network.Zones&(c.Network.Zones-1) != 0 {
		return fmt.Errorf("network.zones must be a power of two, got %d", c.Network.Zones)
	}

	seen := make(map[string]bool, len(c.Network.Roles))
	for _, role := range c.Network.Roles {
		if role.Name == "" {
			return fmt.Errorf("network.roles: role name must not be empty")
		}
		if seen[role.Name] {
			return fmt.Errorf("network.roles: duplicate role %q", role.Name)
		}
		seen[role.Name] = true
		if role.Bits <= root.Bits() || role.Bits > 30 {
			return fmt.Errorf("network.roles: %s bits /%d out of range (/%d, /30]",
				role.Name, role.Bits, root.Bits())
		}
	}

	for name, vlan := range c.Network.VLANs {
		if vlan < 1 || vlan > 4094 {
			return fmt.Errorf("network.vlans: %s VLAN %d out of range [1, 4094]", name, vlan)
		}
	}

	if c.Assurance.Threshold < 0 || c.Assurance.Threshold > 100 {
		return fmt.Errorf("assurance.threshold %.1f out of range [0, 100]", c.Assurance.Threshold)
	}
	if c.Assurance.Interval > c.Assurance.Window {
		return fmt.Errorf("assurance.interval %s exceeds window %s", c.Assurance.Interval, c.Assurance.Window)
	}

	switch c.Store.Backend {
	case "memory":
	case "s3":
		if c.Store.S3.Bucket == "" {
			return fmt.Errorf("store.s3.bucket is required for the s3 backend")
		}
	default:
		return fmt.Errorf("store.backend %q unknown (want memory or s3)", c.Store.Backend)
	}

	return nil
}
