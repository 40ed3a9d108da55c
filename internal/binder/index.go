package binder

// VariableIndex tracks which workflow steps reference which variables, so a
// rotation (e.g. a new PSK) re-triggers only the steps whose templates
// actually use the rotated value.
type VariableIndex struct {
	byVariable map[string][]string
	seen       map[string]map[string]bool
}

// NewVariableIndex creates an empty index.
func NewVariableIndex() *VariableIndex {
	return &VariableIndex{
		byVariable: make(map[string][]string),
		seen:       make(map[string]map[string]bool),
	}
}

// Register records that stepID applies the given template.
func (idx *VariableIndex) Register(stepID string, tmpl Template) {
	for _, name := range tmpl.Refs() {
		if idx.seen[name] == nil {
			idx.seen[name] = make(map[string]bool)
		}
		if idx.seen[name][stepID] {
			continue
		}
		idx.seen[name][stepID] = true
		idx.byVariable[name] = append(idx.byVariable[name], stepID)
	}
}

// StepsReferencing returns the steps whose templates reference the variable,
// in registration order.
func (idx *VariableIndex) StepsReferencing(variable string) []string {
	return append([]string(nil), idx.byVariable[variable]...)
}
