// Package workflow executes the per-site provisioning plan as a fixed
// dependency DAG of idempotent steps.
//
// All authoritative state lives in the store; the executor holds nothing but
// a transient view, so any number of executor processes can be restarted and
// resume from whatever step records already exist. Step status transitions go
// through compare-and-swap, which is the only coordination between
// concurrent executors.
package workflow
