/*
Package resilience provides the failure-handling primitives of the fabric:
a circuit breaker and a retry executor.

# Circuit breaker

Three-state breaker (closed, open, half-open) guarding one downstream
target. Failure classification is delegated to the caller through the
IsFailure predicate so the breaker stays transport-agnostic.

	breaker := resilience.New("orders", resilience.Settings{
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.Trip(5, 0.6, 10),
		OnStateChange: func(name string, from, to resilience.State) {
			log.Printf("breaker %s: %s -> %s", name, from, to)
		},
	})

	result, err := breaker.Execute(func() (interface{}, error) {
		return client.Call()
	})

State transitions:

	Closed --[trip]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                        |
	                                    [failure]
	                                        |
	                                        v
	                                      Open

# Retry executor

Bounded exponential backoff with jitter, cancellable between attempts:

	retryer, _ := resilience.NewRetryer(resilience.DefaultPolicy(), nil)
	err := retryer.Do(ctx, op, client.DefaultRetryable)

All retry behavior in the fabric is centralized here; no other component
re-attempts I/O on its own.

Both primitives take an injected clock so tests drive time-based
transitions without sleeping.
*/
package resilience
