package addrplan

import (
	"fmt"
	"net/netip"
)

// ExhaustedError indicates a zone block cannot accommodate the requested
// site ordinal at the configured per-site size. It is fatal for the affected
// site and is never resolved automatically.
type ExhaustedError struct {
	Zone    netip.Prefix
	Ordinal int
	Reason  string
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("zone %s exhausted at site ordinal %d: %s", e.Zone, e.Ordinal, e.Reason)
}

// ConflictError indicates a computed subnet overlaps an allocation already
// persisted for a different site. This signals a configuration or
// ordinal-reuse bug and must surface to the operator.
type ConflictError struct {
	SiteID    string
	OtherSite string
	Subnet    netip.Prefix
	Existing  netip.Prefix
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("subnet %s planned for site %s overlaps %s already allocated to site %s",
		e.Subnet, e.SiteID, e.Existing, e.OtherSite)
}
