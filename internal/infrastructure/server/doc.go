// Package server wires the preview service together.
//
// Server Lifecycle:
//  1. Load configuration from environment/flags
//  2. Initialize logger, metrics and tracer
//  3. Create the sandbox pool and its circuit breaker
//  4. Build the renderer, simulator and provider prober
//  5. Setup HTTP routes, middleware and the event stream
//  6. Start HTTP server
//  7. Graceful shutdown on signal, then close the pool
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	srv, err := server.NewServer(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	go srv.Run()
//	defer srv.Close()
package server
