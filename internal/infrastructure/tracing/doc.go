/*
Package tracing provides lightweight span tracing for the host.

# Overview

Each HTTP request and each message handled by the router gets a span. Spans
are collected on a buffered channel and written through zap by a single
collector goroutine, so recording never blocks the event loop.

# Usage

	tracer := tracing.New("windowsync", logger)
	defer tracer.Close()

	router.Use(tracing.HTTPMiddleware(tracer))

	span, ctx := tracer.StartDispatch(ctx, "update-value", sender.ID())
	defer tracer.End(span, nil)

A nil *Tracer is valid and records nothing.

# Trace Format

Trace context travels in two headers:
- X-Trace-ID: identifier for the whole request flow
- X-Span-ID: identifier for the current operation
*/
package tracing
