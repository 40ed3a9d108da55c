package addrplan

import (
	"fmt"
	"math/bits"
	"net/netip"
)

// Role tags a subnet with its function inside a site.
type Role string

// Standard subnet roles. Deployments may configure additional ones.
const (
	RoleManagement Role = "mgmt"
	RoleCorporate  Role = "corp"
	RoleGuest      Role = "guest"
	RoleVoice      Role = "voice"
)

// RoleSize pairs a role with the prefix length of its subnet.
type RoleSize struct {
	Role Role
	Bits int
}

// RoleSubnet is one allocated subnet of a site plan.
type RoleSubnet struct {
	Role   Role
	Prefix netip.Prefix
}

// SitePlan is the full set of role subnets computed for one site.
type SitePlan struct {
	Zone    int
	Ordinal int
	Block   netip.Prefix
	Subnets []RoleSubnet
}

// Subnet returns the subnet allocated for the given role, if any.
func (p *SitePlan) Subnet(role Role) (netip.Prefix, bool) {
	for _, s := range p.Subnets {
		if s.Role == role {
			return s.Prefix, true
		}
	}
	return netip.Prefix{}, false
}

// Prefixes returns all allocated prefixes in role-table order.
func (p *SitePlan) Prefixes() []netip.Prefix {
	out := make([]netip.Prefix, len(p.Subnets))
	for i, s := range p.Subnets {
		out[i] = s.Prefix
	}
	return out
}

// SplitZones partitions the root block into count equal zone blocks using a
// pure bit-prefix split. count must be a power of two so every zone gets the
// same prefix length.
func SplitZones(root netip.Prefix, count int) ([]netip.Prefix, error) {
	if count < 1 {
		return nil, fmt.Errorf("zone count must be positive, got %d", count)
	}
	if count&(count-1) != 0 {
		return nil, fmt.Errorf("zone count must be a power of two, got %d", count)
	}

	newbits := bits.TrailingZeros(uint(count))
	zones := make([]netip.Prefix, count)
	for i := range count {
		z, err := Subnet(root, newbits, i)
		if err != nil {
			return nil, fmt.Errorf("failed to split zone %d: %w", i, err)
		}
		zones[i] = z
	}
	return zones, nil
}

// PlanSite derives the role subnets for the site at the given ordinal within
// a zone block. The same zone, ordinal and role table always yield the same
// subnets.
//
// Roles are laid out in table order inside a per-site block sized to the next
// power of two covering all roles, each role aligned to its own subnet size.
// Site blocks tile the zone, so distinct ordinals can never overlap.
func PlanSite(zone netip.Prefix, zoneIndex, ordinal int, roles []RoleSize) (*SitePlan, error) {
	if ordinal < 0 {
		return nil, &ExhaustedError{Zone: zone, Ordinal: ordinal, Reason: "negative ordinal"}
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("role table is empty")
	}

	offsets, span, err := layoutRoles(zone, roles)
	if err != nil {
		return nil, err
	}

	// Site block prefix length: next power of two >= span.
	siteBits := 32 - ceilLog2(span)
	if siteBits < zone.Bits() {
		return nil, &ExhaustedError{Zone: zone, Ordinal: ordinal,
			Reason: fmt.Sprintf("per-site span of %d addresses exceeds zone size", span)}
	}

	maxSites := 1 << (siteBits - zone.Bits())
	if ordinal >= maxSites {
		return nil, &ExhaustedError{Zone: zone, Ordinal: ordinal,
			Reason: fmt.Sprintf("zone holds at most %d sites of this size", maxSites)}
	}

	block, err := subnetAt(zone, siteBits, uint32(ordinal)<<(32-siteBits))
	if err != nil {
		return nil, err
	}

	plan := &SitePlan{Zone: zoneIndex, Ordinal: ordinal, Block: block}
	for i, r := range roles {
		p, err := subnetAt(block, r.Bits, offsets[i])
		if err != nil {
			return nil, fmt.Errorf("failed to place role %s: %w", r.Role, err)
		}
		plan.Subnets = append(plan.Subnets, RoleSubnet{Role: r.Role, Prefix: p})
	}
	return plan, nil
}

// CheckConflicts verifies that none of the planned subnets overlap prefixes
// already allocated to other sites. existing maps site IDs to their
// persisted prefixes; an entry for siteID itself is ignored (replanning the
// same site is idempotent, not a conflict).
func CheckConflicts(siteID string, plan *SitePlan, existing map[string][]netip.Prefix) error {
	for other, prefixes := range existing {
		if other == siteID {
			continue
		}
		for _, have := range prefixes {
			for _, want := range plan.Subnets {
				if want.Prefix.Overlaps(have) {
					return &ConflictError{
						SiteID:    siteID,
						OtherSite: other,
						Subnet:    want.Prefix,
						Existing:  have,
					}
				}
			}
		}
	}
	return nil
}

// layoutRoles computes the address offset of each role subnet inside the
// per-site block and the total span in addresses.
func layoutRoles(zone netip.Prefix, roles []RoleSize) ([]uint32, uint32, error) {
	offsets := make([]uint32, len(roles))
	var cursor uint32
	for i, r := range roles {
		if r.Bits <= 0 || r.Bits > 32 {
			return nil, 0, fmt.Errorf("invalid prefix length /%d for role %s", r.Bits, r.Role)
		}
		if r.Bits < zone.Bits() {
			return nil, 0, &ExhaustedError{Zone: zone, Ordinal: 0,
				Reason: fmt.Sprintf("role %s subnet /%d is larger than the zone", r.Role, r.Bits)}
		}
		size := uint32(1) << (32 - r.Bits)
		// Align the cursor to this role's subnet size.
		if rem := cursor % size; rem != 0 {
			cursor += size - rem
		}
		offsets[i] = cursor
		cursor += size
	}
	return offsets, cursor, nil
}

// ceilLog2 returns the smallest n such that 1<<n >= v.
func ceilLog2(v uint32) int {
	n := bits.Len32(v - 1)
	if v <= 1 {
		return 0
	}
	return n
}
