package orchestration

import (
	"github.com/google/uuid"

	"github.com/imamik/siteflow/internal/binder"
	"github.com/imamik/siteflow/internal/workflow"
)

// templateNamespace seeds deterministic template identities, so every
// deployment derives the same UUID for the same built-in template.
var templateNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

func templateID(name string) uuid.UUID {
	return uuid.NewSHA1(templateNamespace, []byte("siteflow/template/"+name))
}

// DefaultCatalog returns the built-in template per intent step. Bodies are
// pure variable references; binding to concrete values happens per site at
// apply time. Deployments override individual entries through configuration.
func DefaultCatalog() map[workflow.StepID]binder.Template {
	catalog := map[workflow.StepID]binder.Template{
		workflow.StepCreateApplications: {
			Name: "applications",
			Kind: "application",
			Body: `{"name":"{{site_name}}-apps","apps":[{"name":"voice","traffic_class":"real-time","dscp":46},{"name":"web","traffic_class":"best-effort","dscp":0}]}`,
		},
		workflow.StepHubProfiles: {
			Name: "hub-profile",
			Kind: "gateway",
			Body: `{"name":"{{site_name}}-hub","overlay":{"networks":["{{subnet_mgmt}}"]}}`,
		},
		workflow.StepGatewayTemplates: {
			Name: "gateway-template",
			Kind: "gateway",
			Body: `{"name":"{{site_name}}-gw","lan":{"subnet":"{{subnet_mgmt}}","gateway":"{{gateway_mgmt}}","vlan_id":{{vlan_mgmt}}}}`,
		},
		workflow.StepLANNetworks: {
			Name: "lan-networks",
			Kind: "network",
			Body: `{"name":"{{site_name}}-mgmt","subnet":"{{subnet_mgmt}}","gateway":"{{gateway_mgmt}}","vlan_id":{{vlan_mgmt}}}`,
		},
		workflow.StepSwitchTemplates: {
			Name: "switch-template",
			Kind: "switch",
			Body: `{"name":"{{site_name}}-switch","mgmt_vlan":{{vlan_mgmt}},"networks":{"mgmt":{"vlan_id":{{vlan_mgmt}}},"guest":{"vlan_id":{{vlan_guest}}}}}`,
		},
		workflow.StepWLANTemplates: {
			Name: "wlan-template",
			Kind: "wlan",
			Body: `{"name":"{{site_name}}-wlan","applies":{"site_ids":["{{site_platform_id}}"]}}`,
		},
		workflow.StepRFTemplates: {
			Name: "rf-template",
			Kind: "rf",
			Body: `{"name":"{{site_name}}-rf","band_24":{"power":"auto"},"band_5":{"power":"auto"}}`,
		},
		workflow.StepCreateWLANs: {
			Name: "wlans",
			Kind: "wlan",
			Body: `{"ssid":"{{site_name}}","auth":{"type":"psk","psk":"{{wlan_psk}}"},"vlan_id":{{vlan_guest}},"subnet":"{{subnet_guest}}"}`,
		},
		workflow.StepCreateLabels: {
			Name: "labels",
			Kind: "label",
			Body: `{"name":"{{site_name}}","type":"site"}`,
		},
		workflow.StepWLANPolicies: {
			Name: "wlan-policies",
			Kind: "policy",
			Body: `{"name":"{{site_name}}-policy","src_labels":["{{site_name}}"],"action":"allow"}`,
		},
		workflow.StepOrgPSKs: {
			Name: "org-psks",
			Kind: "psk",
			Body: `{"name":"{{site_name}}","passphrase":"{{wlan_psk}}","usage":"multi"}`,
		},
	}

	for step, tmpl := range catalog {
		tmpl.ID = templateID(tmpl.Name)
		tmpl.Version = 1
		catalog[step] = tmpl
	}
	return catalog
}
