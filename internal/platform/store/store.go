package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = errors.New("key not found")

// ErrCASMismatch is returned by CompareAndSwap when the stored value does not
// match the expected value. Callers treat this as "someone else already
// progressed this key", not as a failure.
var ErrCASMismatch = errors.New("compare-and-swap mismatch")

// Store is a durable key-value store with atomic compare-and-swap.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key unconditionally.
	Set(ctx context.Context, key string, value []byte) error

	// CompareAndSwap writes value only if the current stored value equals
	// expected. A nil expected means the key must not exist yet.
	// Returns ErrCASMismatch if the precondition fails.
	CompareAndSwap(ctx context.Context, key string, expected, value []byte) error

	// List returns all keys with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Key layout. All state lives under a flat namespace keyed by site.
func StepKey(siteID, stepID string) string { return fmt.Sprintf("step:%s:%s", siteID, stepID) }
func RunKey(siteID string) string          { return "run:" + siteID }
func AllocKey(siteID string) string        { return "alloc:" + siteID }
func SiteKey(siteID string) string         { return "site:" + siteID }
func CanaryKey(siteID string) string       { return "canary:" + siteID }
func VarsKey(siteID string) string         { return "vars:" + siteID }

// OrgContextKey holds the organization identity resolved by the reachability
// handshake (API host and org ID).
const OrgContextKey = "org:context"

// AllocPrefix is the List prefix covering every persisted site allocation.
const AllocPrefix = "alloc:"
