// Package schederrors defines the sentinel error kinds raised by the
// scheduler, as specified in spec.md §7.
package schederrors

import "errors"

var (
	// ErrNoExecutors is returned by the scan assigner when the membership
	// snapshot it was given contains no executor backends.
	ErrNoExecutors = errors.New("NO_EXECUTORS: no executor backends in snapshot")

	// ErrMalformedPlan is returned when a plan-local host index referenced
	// by a scan range's replica list falls outside the plan's host list, or
	// when fragment planning finds a scan node with no recorded assignment.
	ErrMalformedPlan = errors.New("MALFORMED_PLAN: plan references an invalid host index or unassigned scan")

	// ErrPoolResolutionFailed is surfaced verbatim by the caller before the
	// scheduler is ever invoked; it is declared here so callers can use a
	// single import for every scheduling-adjacent error kind.
	ErrPoolResolutionFailed = errors.New("POOL_RESOLUTION_FAILED: request pool could not be resolved")

	// ErrMembershipDecodeFailed marks a single topic entry the membership
	// tracker could not decode. It is always logged and skipped, never
	// propagated to a scheduling call.
	ErrMembershipDecodeFailed = errors.New("MEMBERSHIP_DECODE_FAILED: malformed backend descriptor payload")

	// ErrDuplicateBackendID marks two live registrations resolving to the
	// same backend address (IP and port). The most recently observed entry
	// wins; the conflict is logged at WARN and never propagated to a
	// scheduling call.
	ErrDuplicateBackendID = errors.New("DUPLICATE_BACKEND_ID: two registrations share a backend address")

	// ErrInternal marks a fragment-planning invariant violation: fragment
	// expansion is pure, so any inconsistency here is a programming error.
	ErrInternal = errors.New("INTERNAL: fragment planning invariant violated")
)
