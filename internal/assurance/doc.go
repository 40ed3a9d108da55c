// Package assurance validates deployments against service-level-expectation
// telemetry and drives the canary state machine for Day-N lifecycle changes.
//
// Both responsibilities share one evaluation primitive: compare each sampled
// SLE score against its pass threshold. Post-deployment validation is
// advisory (it flags, never reverts); the canary machine is fail-fast (one
// bad sample rolls the canary device back and leaves the rest of the site
// untouched).
package assurance
