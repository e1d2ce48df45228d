// Package client is the Go client of the console's module registry API.
//
// Requests pass a client-side rate limiter and a circuit breaker, carry the
// caller's trace id, and decode failures into errors that match the
// registry's typed kinds:
//
//	_, err := c.Activate(ctx, "inventory")
//	if errors.Is(err, types.ErrConflict) { ... }
//
// Reads and imports are retried on transport errors and 5xx responses.
// Imports are safe to repeat because the server verifies the package
// digest and converges on the same content. Lifecycle transitions are
// never retried.
package client
