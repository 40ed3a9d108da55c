package binder

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wlanTemplate() Template {
	return Template{
		ID:      uuid.MustParse("8796ce94-b4e1-4e30-a743-5a0e1a1c01d6"),
		Name:    "branch-wlan",
		Version: 3,
		Kind:    "wlan",
		Body:    `{"ssid":"{{corp_ssid}}","vlan_id":{{corp_vlan}},"psk":"{{corp_psk}}"}`,
	}
}

func TestTemplate_Refs(t *testing.T) {
	t.Parallel()
	tmpl := Template{Body: `{"a":"{{x}}","b":"{{y}}","c":"{{x}}"}`}
	assert.Equal(t, []string{"x", "y"}, tmpl.Refs(), "duplicates collapse, order preserved")

	assert.Empty(t, Template{Body: `{"a":1}`}.Refs())
}

func TestResolve(t *testing.T) {
	t.Parallel()
	vars := map[string]string{
		"corp_ssid": "HQ-Corp",
		"corp_vlan": "120",
		"corp_psk":  "hunter2hunter2",
	}

	payload, err := Resolve(wlanTemplate(), "site-1", vars)
	require.NoError(t, err)
	assert.Equal(t, "wlan", payload.Kind)
	assert.JSONEq(t, `{"ssid":"HQ-Corp","vlan_id":120,"psk":"hunter2hunter2"}`, string(payload.Body))
}

func TestResolve_MissingVariable(t *testing.T) {
	t.Parallel()
	vars := map[string]string{"corp_ssid": "HQ-Corp", "corp_vlan": "120"}

	_, err := Resolve(wlanTemplate(), "site-1", vars)
	require.Error(t, err)

	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, "corp_psk", missing.Variable)
	assert.Equal(t, "site-1", missing.SiteID)
	assert.Equal(t, wlanTemplate().ID.String(), missing.TemplateID)
}

func TestResolve_NoDefaultsInvented(t *testing.T) {
	t.Parallel()
	_, err := Resolve(wlanTemplate(), "site-1", nil)
	var missing *MissingVariableError
	require.ErrorAs(t, err, &missing)
}

func TestFingerprint(t *testing.T) {
	t.Parallel()
	tmpl := wlanTemplate()
	vars := map[string]string{"corp_ssid": "HQ-Corp", "corp_vlan": "120", "corp_psk": "a"}

	fp1 := Fingerprint(tmpl, vars)
	fp2 := Fingerprint(tmpl, vars)
	assert.Equal(t, fp1, fp2, "fingerprint is deterministic")

	rotated := map[string]string{"corp_ssid": "HQ-Corp", "corp_vlan": "120", "corp_psk": "b"}
	assert.NotEqual(t, fp1, Fingerprint(tmpl, rotated), "rotated variable changes fingerprint")

	bumped := tmpl
	bumped.Version = 4
	assert.NotEqual(t, fp1, Fingerprint(bumped, vars), "new template version changes fingerprint")

	unrelated := map[string]string{"corp_ssid": "HQ-Corp", "corp_vlan": "120", "corp_psk": "a", "guest_vlan": "200"}
	assert.Equal(t, fp1, Fingerprint(tmpl, unrelated), "unreferenced variables do not affect the fingerprint")
}

func TestVariableIndex(t *testing.T) {
	t.Parallel()
	idx := NewVariableIndex()

	wlan := wlanTemplate()
	psks := Template{ID: uuid.New(), Kind: "psk", Body: `{"psk":"{{corp_psk}}"}`}
	rf := Template{ID: uuid.New(), Kind: "rf", Body: `{"band":"{{rf_band}}"}`}

	idx.Register("create-wlans", wlan)
	idx.Register("org-psks", psks)
	idx.Register("rf-templates", rf)
	idx.Register("create-wlans", wlan) // re-registration is a no-op

	assert.Equal(t, []string{"create-wlans", "org-psks"}, idx.StepsReferencing("corp_psk"))
	assert.Equal(t, []string{"rf-templates"}, idx.StepsReferencing("rf_band"))
	assert.Empty(t, idx.StepsReferencing("unknown"))
}
