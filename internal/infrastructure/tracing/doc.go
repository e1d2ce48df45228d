/*
Package tracing gives every console request a trace id.

The HTTP middleware continues an incoming X-Trace-ID (or mints a ULID-based
one), stores it on the request context, echoes it in the response, and logs
one span per request through zap when the request finishes. The module API
client injects the same headers so operator CLI calls can be correlated with
server logs.

# Usage

	tracer := tracing.New("console", logger)
	defer tracer.Close()
	router.Use(tracing.HTTPMiddleware(tracer))

	// inside a handler
	log := tracing.Logger(c.Request.Context(), logger)
*/
package tracing
