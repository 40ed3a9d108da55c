// Package config loads and validates the orchestrator configuration: the
// platform endpoint, the org address plan, assurance thresholds and the
// state store backend. YAML on disk, environment variables for secrets and
// timeout tuning.
package config
