package orchestration

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"time"

	"github.com/imamik/siteflow/internal/addrplan"
	"github.com/imamik/siteflow/internal/binder"
	"github.com/imamik/siteflow/internal/platform/store"
	"github.com/imamik/siteflow/internal/util/retry"
)

// createSiteHandler plans the site's subnets, creates the site on the
// platform and binds the derived site variables. Allocation is written once
// by compare-and-swap; a replay after a crash reuses the persisted plan
// instead of re-allocating.
type createSiteHandler struct {
	svc *Service
}

func (h *createSiteHandler) Fingerprint(ctx context.Context, siteID string) (string, error) {
	spec, err := loadSpec(ctx, h.svc.store, siteID)
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(spec)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (h *createSiteHandler) Execute(ctx context.Context, siteID string) error {
	spec, err := loadSpec(ctx, h.svc.store, siteID)
	if err != nil {
		return retry.Fatal(err)
	}

	alloc, err := loadAllocation(ctx, h.svc.store, siteID)
	if err != nil {
		return err
	}
	if alloc == nil {
		alloc, err = h.allocate(ctx, spec)
		if err != nil {
			return err
		}
	}

	platformID, err := h.svc.client.CreateSite(ctx, spec.Identity)
	if err != nil {
		return fmt.Errorf("failed to create site %s: %w", siteID, err)
	}
	if alloc.PlatformID != platformID {
		alloc.PlatformID = platformID
		if err := h.saveAllocation(ctx, alloc, false); err != nil {
			return err
		}
	}

	vars, err := h.buildVars(ctx, spec, alloc)
	if err != nil {
		return err
	}
	if err := saveVars(ctx, h.svc.store, siteID, vars); err != nil {
		return err
	}
	if err := h.svc.client.SetSiteVariables(ctx, platformID, vars); err != nil {
		return fmt.Errorf("failed to bind variables for site %s: %w", siteID, err)
	}
	return nil
}

// allocate computes the site plan and persists it, checking every other
// persisted allocation for overlap first. Exhaustion and conflicts are fatal
// for this site and never retried or auto-resolved.
func (h *createSiteHandler) allocate(ctx context.Context, spec *SiteSpec) (*Allocation, error) {
	if spec.ZoneIndex < 0 || spec.ZoneIndex >= len(h.svc.zones) {
		return nil, retry.Fatal(fmt.Errorf("zone index %d out of range (have %d zones)", spec.ZoneIndex, len(h.svc.zones)))
	}
	plan, err := addrplan.PlanSite(h.svc.zones[spec.ZoneIndex], spec.ZoneIndex, spec.Ordinal, h.svc.net.Roles)
	if err != nil {
		return nil, retry.Fatal(err)
	}

	existing, err := loadAllAllocations(ctx, h.svc.store)
	if err != nil {
		return nil, err
	}
	if err := addrplan.CheckConflicts(spec.SiteID, plan, existing); err != nil {
		return nil, retry.Fatal(err)
	}

	alloc := &Allocation{
		SiteID:    spec.SiteID,
		Zone:      plan.Zone,
		Ordinal:   plan.Ordinal,
		Block:     plan.Block.String(),
		Subnets:   make(map[string]string, len(plan.Subnets)),
		CreatedAt: time.Now().UTC(),
	}
	for _, s := range plan.Subnets {
		alloc.Subnets[string(s.Role)] = s.Prefix.String()
	}

	if err := h.saveAllocation(ctx, alloc, true); err != nil {
		if errors.Is(err, store.ErrCASMismatch) {
			// A concurrent executor allocated first; use its plan.
			return loadAllocation(ctx, h.svc.store, spec.SiteID)
		}
		return nil, err
	}
	return alloc, nil
}

func (h *createSiteHandler) saveAllocation(ctx context.Context, alloc *Allocation, create bool) error {
	raw, err := json.Marshal(alloc)
	if err != nil {
		return fmt.Errorf("failed to encode allocation: %w", err)
	}
	key := store.AllocKey(alloc.SiteID)
	if create {
		return h.svc.store.CompareAndSwap(ctx, key, nil, raw)
	}
	return h.svc.store.Set(ctx, key, raw)
}

// buildVars derives the site's variable bindings: identity, one
// subnet/gateway/VLAN triple per role, the WLAN passphrase and any
// operator-supplied extras. Extras win over derived values.
func (h *createSiteHandler) buildVars(ctx context.Context, spec *SiteSpec, alloc *Allocation) (map[string]string, error) {
	prev, err := loadVars(ctx, h.svc.store, spec.SiteID)
	if err != nil {
		return nil, err
	}

	vars := map[string]string{
		"site_name":        spec.Identity.Name,
		"site_platform_id": alloc.PlatformID,
	}
	for role, cidr := range alloc.Subnets {
		p, err := netip.ParsePrefix(cidr)
		if err != nil {
			return nil, fmt.Errorf("corrupt allocation for %s: bad prefix %q: %w", spec.SiteID, cidr, err)
		}
		vars["subnet_"+role] = cidr
		vars["gateway_"+role] = p.Masked().Addr().Next().String()
		if vlan, ok := h.svc.net.VLANs[addrplan.Role(role)]; ok {
			vars["vlan_"+role] = strconv.Itoa(vlan)
		}
	}

	// The passphrase survives replays; rotation is an explicit operation.
	if psk, ok := prev["wlan_psk"]; ok {
		vars["wlan_psk"] = psk
	} else {
		psk, err := generatePSK()
		if err != nil {
			return nil, err
		}
		vars["wlan_psk"] = psk
	}

	for k, v := range spec.Variables {
		vars[k] = v
	}
	return vars, nil
}

func generatePSK() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// assignDevicesHandler claims the site's devices into the org inventory and
// binds them to the site. Claim and assign are both platform upserts, so
// replays are safe.
type assignDevicesHandler struct {
	svc *Service
}

func (h *assignDevicesHandler) Fingerprint(ctx context.Context, siteID string) (string, error) {
	spec, err := loadSpec(ctx, h.svc.store, siteID)
	if err != nil {
		return "", err
	}
	macs := append([]string(nil), spec.Devices...)
	sort.Strings(macs)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%v", macs)))
	return hex.EncodeToString(sum[:]), nil
}

func (h *assignDevicesHandler) Execute(ctx context.Context, siteID string) error {
	spec, err := loadSpec(ctx, h.svc.store, siteID)
	if err != nil {
		return retry.Fatal(err)
	}
	if len(spec.Devices) == 0 {
		return nil
	}

	alloc, err := loadAllocation(ctx, h.svc.store, siteID)
	if err != nil {
		return err
	}
	if alloc == nil || alloc.PlatformID == "" {
		return retry.Fatal(fmt.Errorf("site %s has no platform identity", siteID))
	}

	if _, err := h.svc.client.ClaimDevices(ctx, spec.Devices); err != nil {
		return fmt.Errorf("failed to claim devices for site %s: %w", siteID, err)
	}
	if err := h.svc.client.AssignDevices(ctx, alloc.PlatformID, spec.Devices); err != nil {
		return fmt.Errorf("failed to assign devices to site %s: %w", siteID, err)
	}
	return nil
}

// intentHandler resolves one template against the site's variables and pushes
// the concrete payload. An unbound variable fails before any platform call.
type intentHandler struct {
	svc  *Service
	tmpl binder.Template
}

func (h *intentHandler) Fingerprint(ctx context.Context, siteID string) (string, error) {
	vars, err := loadVars(ctx, h.svc.store, siteID)
	if err != nil {
		return "", err
	}
	return binder.Fingerprint(h.tmpl, vars), nil
}

func (h *intentHandler) Execute(ctx context.Context, siteID string) error {
	vars, err := loadVars(ctx, h.svc.store, siteID)
	if err != nil {
		return err
	}

	payload, err := binder.Resolve(h.tmpl, siteID, vars)
	if err != nil {
		var missing *binder.MissingVariableError
		if errors.As(err, &missing) {
			return retry.Fatal(err)
		}
		return err
	}

	alloc, err := loadAllocation(ctx, h.svc.store, siteID)
	if err != nil {
		return err
	}
	if alloc == nil || alloc.PlatformID == "" {
		return retry.Fatal(fmt.Errorf("site %s has no platform identity", siteID))
	}

	if err := h.svc.client.ApplyConfig(ctx, alloc.PlatformID, payload); err != nil {
		return fmt.Errorf("failed to apply %s config for site %s: %w", payload.Kind, siteID, err)
	}
	return nil
}
