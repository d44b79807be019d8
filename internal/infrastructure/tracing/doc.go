/*
Package tracing provides lightweight request tracing.

# Overview

Every HTTP request gets a span. Work done on behalf of the request, such
as a sandbox simulation, opens child spans from the request context. Spans
are collected on a buffered channel and written to the zap logger.

# Usage

	tracer := tracing.New("captchaview", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartSpan(ctx, "simulate")
	defer func() {
		span.Finish()
		tracer.Submit(span)
	}()
	span.SetTag("scenario", "verify")

# Trace Format

IDs are prefixed ULIDs from package id. They travel in two headers:
  - X-Trace-ID: identifier for the whole request flow
  - X-Span-ID: identifier for the current operation

Incoming headers that do not hold a valid ID are ignored and a fresh trace
is started.
*/
package tracing
