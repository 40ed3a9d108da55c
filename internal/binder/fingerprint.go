package binder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Fingerprint identifies what a step would apply: the template identity and
// version plus the resolved values of every variable it references. A step
// whose fingerprint is unchanged since its last success replays from cache;
// a changed fingerprint (new template version, rotated variable) forces
// re-application.
func Fingerprint(tmpl Template, vars map[string]string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s/%d\n", tmpl.ID, tmpl.Version)

	refs := tmpl.Refs()
	sort.Strings(refs)
	for _, name := range refs {
		fmt.Fprintf(h, "%s=%s\n", name, vars[name])
	}
	return hex.EncodeToString(h.Sum(nil))
}
