// Package store defines the durable key-value store used for workflow state,
// address allocations and canary locks, together with an in-memory
// implementation for tests and an S3-backed implementation for production.
//
// Compare-and-swap is the only coordination primitive the rest of the system
// relies on. Two executors racing on the same key resolve through CAS: the
// loser observes ErrCASMismatch and treats the key as already progressed.
package store
