package binder

import (
	"regexp"

	"github.com/google/uuid"
)

// Template is a named, versioned bundle of intent expressed purely in terms
// of variable references. One template is applied to many sites; binding
// happens per site at apply time.
type Template struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Version int       `json:"version"`
	Kind    string    `json:"kind"` // gateway, switch, wlan, rf, label, policy, psk, ...
	Body    string    `json:"body"` // JSON document with {{name}} references
}

var refPattern = regexp.MustCompile(`\{\{([A-Za-z0-9_.-]+)\}\}`)

// Refs returns the distinct variable names the template references, in order
// of first appearance.
func (t Template) Refs() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, m := range refPattern.FindAllStringSubmatch(t.Body, -1) {
		name := m[1]
		if !seen[name] {
			seen[name] = true
			refs = append(refs, name)
		}
	}
	return refs
}
