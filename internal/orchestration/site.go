package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"regexp"
	"strings"
	"time"

	"github.com/imamik/siteflow/internal/platform/store"
	"github.com/imamik/siteflow/internal/platform/vendor"
)

// SiteSpec is the persisted desired state of one site: everything a step
// handler needs to (re)execute without the original request in memory.
type SiteSpec struct {
	SiteID    string              `json:"site_id"`
	Identity  vendor.SiteIdentity `json:"identity"`
	ZoneIndex int                 `json:"zone_index"`
	Ordinal   int                 `json:"ordinal"`
	Devices   []string            `json:"devices,omitempty"` // MAC addresses
	Variables map[string]string   `json:"variables,omitempty"`
}

// Allocation is the persisted outcome of create-site: the platform identity
// plus the subnets planned for the site. Written once by compare-and-swap and
// never re-allocated.
type Allocation struct {
	SiteID     string            `json:"site_id"`
	PlatformID string            `json:"platform_id"`
	Zone       int               `json:"zone"`
	Ordinal    int               `json:"ordinal"`
	Block      string            `json:"block"`
	Subnets    map[string]string `json:"subnets"` // role -> CIDR
	CreatedAt  time.Time         `json:"created_at"`
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// SiteID derives the stable store identity of a site from its name. The same
// name always maps to the same ID, which is what makes PlanAndCreateSite
// safely re-invokable.
func SiteID(name string) string {
	id := nonSlug.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(id, "-")
}

func loadSpec(ctx context.Context, st store.Store, siteID string) (*SiteSpec, error) {
	raw, err := st.Get(ctx, store.SiteKey(siteID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("site %s has not been planned", siteID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load site spec for %s: %w", siteID, err)
	}
	var spec SiteSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return nil, fmt.Errorf("corrupt site spec for %s: %w", siteID, err)
	}
	return &spec, nil
}

func saveSpec(ctx context.Context, st store.Store, spec *SiteSpec) error {
	raw, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to encode site spec: %w", err)
	}
	return st.Set(ctx, store.SiteKey(spec.SiteID), raw)
}

func loadAllocation(ctx context.Context, st store.Store, siteID string) (*Allocation, error) {
	raw, err := st.Get(ctx, store.AllocKey(siteID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load allocation for %s: %w", siteID, err)
	}
	var alloc Allocation
	if err := json.Unmarshal(raw, &alloc); err != nil {
		return nil, fmt.Errorf("corrupt allocation for %s: %w", siteID, err)
	}
	return &alloc, nil
}

// loadAllAllocations returns every persisted allocation's prefixes keyed by
// site, the input to conflict checking.
func loadAllAllocations(ctx context.Context, st store.Store) (map[string][]netip.Prefix, error) {
	keys, err := st.List(ctx, store.AllocPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list allocations: %w", err)
	}

	existing := make(map[string][]netip.Prefix, len(keys))
	for _, key := range keys {
		siteID := strings.TrimPrefix(key, store.AllocPrefix)
		alloc, err := loadAllocation(ctx, st, siteID)
		if err != nil {
			return nil, err
		}
		if alloc == nil {
			continue
		}
		for _, cidr := range alloc.Subnets {
			p, err := netip.ParsePrefix(cidr)
			if err != nil {
				return nil, fmt.Errorf("corrupt allocation for %s: bad prefix %q: %w", siteID, cidr, err)
			}
			existing[siteID] = append(existing[siteID], p)
		}
	}
	return existing, nil
}

// loadVars returns the site's bound variables, empty when none exist yet.
func loadVars(ctx context.Context, st store.Store, siteID string) (map[string]string, error) {
	raw, err := st.Get(ctx, store.VarsKey(siteID))
	if errors.Is(err, store.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load variables for %s: %w", siteID, err)
	}
	var vars map[string]string
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil, fmt.Errorf("corrupt variables for %s: %w", siteID, err)
	}
	return vars, nil
}

func saveVars(ctx context.Context, st store.Store, siteID string, vars map[string]string) error {
	raw, err := json.Marshal(vars)
	if err != nil {
		return fmt.Errorf("failed to encode variables: %w", err)
	}
	return st.Set(ctx, store.VarsKey(siteID), raw)
}
