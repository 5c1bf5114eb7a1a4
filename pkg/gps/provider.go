package gps

import "context"

// Provider abstracts the device positioning capability. Implementations map
// platform failures onto the package error kinds so the engine can decide
// which failures are worth a watch-mode fallback.
type Provider interface {
	// Current performs a one-shot positioning request. It honors ctx
	// cancellation and returns ErrTimeout when the request deadline expires.
	Current(ctx context.Context, opts Options) (*Reading, error)

	// Watch starts a continuous position stream. The returned cancel func
	// must be safe to call on every exit path; it releases the underlying
	// subscription and closes the channel.
	Watch(ctx context.Context, opts Options) (<-chan Reading, func(), error)
}
