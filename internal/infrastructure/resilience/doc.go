/*
Package resilience provides the circuit breaker used by the module API client.

# Overview

Operator tooling talks to the console over HTTP. When the server is down or
overloaded, the breaker fails calls fast instead of stacking retries on top
of a struggling process. Errors the server returned on purpose (conflict,
invalid package, not found) are successes from the breaker's point of view;
only transport errors and 5xx responses count as failures.

# Usage

	breaker := resilience.New("console", resilience.Settings{
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isClientError(err)
		},
	})

	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return client.Do(ctx)
	})

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           v
	                                         Open
*/
package resilience
