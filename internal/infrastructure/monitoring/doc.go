/*
Package monitoring provides Prometheus metrics for the preview service.

# Overview

Each Metrics value owns a private registry, so tests and embedded services
can create as many as they need without colliding on the default registry.

# Features

- HTTP request metrics (latency, throughput, response size)
- Documents rendered per provider variant
- Lifecycle events relayed per kind, malformed messages and checkpoints
- Sandbox simulations per scenario and outcome
- Sandbox pool and circuit breaker gauges
- A JSON snapshot for the health endpoint

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "verify")
	// ... run the simulation ...
	timer.Stop("ok")
*/
package monitoring
