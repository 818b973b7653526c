/*
Package monitoring provides Prometheus metrics for the host.

# Overview

Metrics live on a private registry owned by *Metrics, so tests and multiple
hosts in one process never collide on registration.

# Features

- HTTP request metrics (count, latency) labelled by route template
- Routed message counts and drops by channel and reason
- Session and window lifecycle counters
- Content load latency and failures
- Bridge connection and frame counts

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	timer := monitoring.NewTimer(metrics, "url")
	err := handle.LoadContent(ctx, target)
	timer.Stop(err)
*/
package monitoring
