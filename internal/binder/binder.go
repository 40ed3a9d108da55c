package binder

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/imamik/siteflow/internal/platform/vendor"
)

// MissingVariableError reports a template reference with no bound value for
// the target site. Raised before any platform mutation, so a partially
// resolved template is never pushed.
type MissingVariableError struct {
	Variable   string
	TemplateID string
	SiteID     string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("template %s references variable %q with no bound value for site %s",
		e.TemplateID, e.Variable, e.SiteID)
}

// Resolve substitutes every variable reference in the template with the
// site's bound value and returns the concrete configuration payload.
// Resolution never invents defaults: any unbound reference fails the whole
// template.
func Resolve(tmpl Template, siteID string, vars map[string]string) (vendor.ConfigPayload, error) {
	body := tmpl.Body
	for _, name := range tmpl.Refs() {
		value, ok := vars[name]
		if !ok {
			return vendor.ConfigPayload{}, &MissingVariableError{
				Variable:   name,
				TemplateID: tmpl.ID.String(),
				SiteID:     siteID,
			}
		}
		body = strings.ReplaceAll(body, "{{"+name+"}}", value)
	}

	return vendor.ConfigPayload{
		TemplateID: tmpl.ID.String(),
		Kind:       tmpl.Kind,
		Body:       json.RawMessage(body),
	}, nil
}
