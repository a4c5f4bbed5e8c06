// Package retry provides retry policies for transient failures.
//
// A [Policy] bundles the attempt budget, the delay schedule (fixed or
// exponential) and a retryable-error predicate. The remote executor uses
// fixed policies for SSH connects and command execution; errors wrapped
// with [Fatal] short-circuit every policy.
package retry
