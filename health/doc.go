// Package health checks the dependencies a Sentinel process talks to and
// folds the results into one status.
//
//	status := health.Combine(
//	    health.URLCheck(ctx, cfg.AI.BaseURL),
//	    health.PingCheck(ctx, "redis", queue.Ping),
//	)
//	if status.IsUnhealthy() {
//	    // report NOT_SERVING
//	}
//
// Monitor runs a set of named checks on an interval and reports the
// combined status through a callback.
package health
