package workflow

// StepID identifies one provisioning step. Step identity is stable across
// releases; persisted records key on it.
type StepID string

// Day-0 identity and topology.
const (
	StepCreateSite    StepID = "create-site"
	StepAssignDevices StepID = "assign-devices"
)

// Day-1 WAN.
const (
	StepCreateApplications StepID = "create-applications"
	StepHubProfiles        StepID = "hub-profiles"
	StepGatewayTemplates   StepID = "gateway-templates"
)

// Day-1 Wired.
const (
	StepLANNetworks     StepID = "lan-networks"
	StepSwitchTemplates StepID = "switch-templates"
)

// Day-1 Wireless.
const (
	StepWLANTemplates StepID = "wlan-templates"
	StepRFTemplates   StepID = "rf-templates"
	StepCreateWLANs   StepID = "create-wlans"
	StepCreateLabels  StepID = "create-labels"
	StepWLANPolicies  StepID = "wlan-policies"
	StepOrgPSKs       StepID = "org-psks"
)

// Domain groups the steps an operator can trigger together.
type Domain string

const (
	DomainDay0     Domain = "day0"
	DomainWAN      Domain = "wan"
	DomainWired    Domain = "wired"
	DomainWireless Domain = "wireless"
)

// predecessors is the full dependency DAG: step -> direct predecessors.
// Every Day-1 subtree root depends on Day-0 completing, because its
// templates reference site variables bound only after create-site.
var predecessors = map[StepID][]StepID{
	StepCreateSite:    {},
	StepAssignDevices: {StepCreateSite},

	StepCreateApplications: {StepAssignDevices},
	StepHubProfiles:        {StepCreateApplications},
	StepGatewayTemplates:   {StepHubProfiles},

	StepLANNetworks:     {StepAssignDevices},
	StepSwitchTemplates: {StepLANNetworks},

	StepWLANTemplates: {StepAssignDevices},
	StepRFTemplates:   {StepWLANTemplates},
	StepCreateWLANs:   {StepRFTemplates},
	StepCreateLabels:  {StepCreateWLANs},
	StepWLANPolicies:  {StepCreateLabels},
	StepOrgPSKs:       {StepWLANPolicies},
}

// domains maps each triggerable domain to its steps in dependency order.
var domains = map[Domain][]StepID{
	DomainDay0:     {StepCreateSite, StepAssignDevices},
	DomainWAN:      {StepCreateApplications, StepHubProfiles, StepGatewayTemplates},
	DomainWired:    {StepLANNetworks, StepSwitchTemplates},
	DomainWireless: {StepWLANTemplates, StepRFTemplates, StepCreateWLANs, StepCreateLabels, StepWLANPolicies, StepOrgPSKs},
}

// AllSteps returns every step in a valid topological order.
func AllSteps() []StepID {
	out := make([]StepID, 0, len(predecessors))
	for _, d := range []Domain{DomainDay0, DomainWAN, DomainWired, DomainWireless} {
		out = append(out, domains[d]...)
	}
	return out
}

// DomainSteps returns the steps of one domain in dependency order.
func DomainSteps(d Domain) []StepID {
	return append([]StepID(nil), domains[d]...)
}

// Day1Domains lists the three independent Day-1 subtrees.
func Day1Domains() []Domain {
	return []Domain{DomainWAN, DomainWired, DomainWireless}
}

// Predecessors returns the direct predecessors of a step.
func Predecessors(step StepID) []StepID {
	return append([]StepID(nil), predecessors[step]...)
}

// Known reports whether the step is part of the DAG.
func Known(step StepID) bool {
	_, ok := predecessors[step]
	return ok
}

// TransitiveDependents returns every step downstream of the given step.
func TransitiveDependents(step StepID) []StepID {
	blocked := map[StepID]bool{step: true}
	// The DAG is tiny; iterate to a fixed point instead of building a
	// reverse index.
	changed := true
	for changed {
		changed = false
		for s, preds := range predecessors {
			if blocked[s] {
				continue
			}
			for _, p := range preds {
				if blocked[p] {
					blocked[s] = true
					changed = true
					break
				}
			}
		}
	}
	delete(blocked, step)
	out := make([]StepID, 0, len(blocked))
	for _, s := range AllSteps() {
		if blocked[s] {
			out = append(out, s)
		}
	}
	return out
}
