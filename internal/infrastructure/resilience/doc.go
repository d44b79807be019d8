/*
Package resilience provides a circuit breaker for work that can fail in a
row, such as sandbox simulations that keep hitting their timeout.

# States

	Closed --[failures]-> Open --[timeout]-> Half-Open --[successes]-> Closed
	                                           |
	                                       [failure]
	                                           v
	                                         Open

# Usage

	breaker := resilience.New("sandbox", resilience.Settings{
		Timeout:     30 * time.Second,
		ReadyToTrip: resilience.TripAfter(5),
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	err := breaker.Execute(ctx, func(ctx context.Context) error {
		return run(ctx)
	})
*/
package resilience
