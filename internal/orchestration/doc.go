// Package orchestration wires the address planner, template binder, workflow
// executor and assurance gate into the service operations the CLI exposes:
// reachability, site planning and creation, device claim, Day-1 configuration
// by domain, assurance validation, canary rollouts and variable rotation.
//
// The service holds no in-memory authority. Desired state (site spec,
// allocation, variables) and execution state (step records, run headers,
// canary records) live in the state store, so any process can resume any
// site's workflow.
package orchestration
