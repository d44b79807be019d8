// Package upstream talks to the provider hosts documents load scripts from.
//
// Client wraps resty with a rate limiter and a circuit breaker. Prober uses
// it to check that the standard and enterprise scripts are reachable and
// caches the result.
package upstream
