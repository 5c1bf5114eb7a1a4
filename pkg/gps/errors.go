package gps

import "errors"

// Acquisition error kinds. Callers distinguish these to drive user-facing
// remediation: permission failures are actionable in device settings while
// timeouts warrant a retry affordance.
var (
	// ErrUnsupported means no positioning capability exists on this platform.
	ErrUnsupported = errors.New("positioning not supported")

	// ErrPermissionDenied means the platform refused access to positioning.
	ErrPermissionDenied = errors.New("positioning permission denied")

	// ErrTimeout means the positioning request exceeded its deadline.
	ErrTimeout = errors.New("positioning request timed out")

	// ErrPositionUnavailable means the provider could not produce a fix.
	ErrPositionUnavailable = errors.New("position unavailable")
)
