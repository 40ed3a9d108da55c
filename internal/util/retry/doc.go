// Package retry provides exponential backoff retry logic for transient failures.
//
// [WithExponentialBackoff] retries an operation with configurable max
// attempts, initial delay and maximum delay. It wraps every platform API
// call the orchestrator makes; errors marked with [Fatal] or rejected by a
// [WithRetryable] classifier stop the loop immediately.
package retry
