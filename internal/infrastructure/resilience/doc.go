/*
Package resilience provides the circuit breaker that guards content loads.

# Overview

When the dev server is down or the packaged dist directory is missing, every
new window would otherwise wait out its full load timeout. The breaker trips
after repeated failures so later windows fail fast and are closed, which
runs the normal close path for their sessions.

A call cancelled by its caller (for example a window closed mid-load) is not
counted as a failure.

# Usage

	breaker := resilience.New("content", resilience.Settings{
		Timeout: 10 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})

	err := breaker.Do(ctx, func(ctx context.Context) error {
		return handle.LoadContent(ctx, target)
	})
	if resilience.IsRejection(err) {
		// breaker open; the load was never attempted
	}

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                    [failure]
	                                           |
	                                           v
	                                         Open
*/
package resilience
