// Package binder resolves intent templates against site-scoped variables.
//
// Templates carry no literal values: every concrete setting is a {{name}}
// reference bound late, when the template is applied to one site. Resolution
// is pure substitution against the site's variable map and fails before any
// platform mutation if a reference has no bound value.
package binder
