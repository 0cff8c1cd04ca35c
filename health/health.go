package health

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"
)

const defaultDialTimeout = 5 * time.Second

// NetworkCheck dials host:port over TCP.
func NetworkCheck(ctx context.Context, host string, port int) Status {
	if host == "" {
		return Unhealthy("host cannot be empty", nil)
	}
	if port <= 0 || port > 65535 {
		return Unhealthy(fmt.Sprintf("invalid port number: %d", port), map[string]any{"port": port})
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultDialTimeout)
		defer cancel()
	}

	address := net.JoinHostPort(host, strconv.Itoa(port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return Unhealthy(fmt.Sprintf("failed to connect to %s", address), map[string]any{
			"address": address,
			"error":   err.Error(),
		})
	}
	_ = conn.Close()

	return Healthy(fmt.Sprintf("connected to %s", address))
}

// URLCheck dials the host of rawURL. Without an explicit port, https uses
// 443 and http uses 80.
func URLCheck(ctx context.Context, rawURL string) Status {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return Unhealthy(fmt.Sprintf("invalid URL %q", rawURL), nil)
	}

	port := 0
	switch {
	case u.Port() != "":
		port, _ = strconv.Atoi(u.Port())
	case u.Scheme == "https":
		port = 443
	case u.Scheme == "http":
		port = 80
	default:
		return Unhealthy(fmt.Sprintf("cannot infer port for scheme %q", u.Scheme), nil)
	}
	return NetworkCheck(ctx, u.Hostname(), port)
}

// PingCheck reports whether ping succeeds. A ping slower than one second
// is reported as degraded.
func PingCheck(ctx context.Context, name string, ping func(context.Context) error) Status {
	start := time.Now()
	if err := ping(ctx); err != nil {
		return Unhealthy(fmt.Sprintf("%s ping failed", name), map[string]any{"error": err.Error()})
	}
	if took := time.Since(start); took > time.Second {
		return Degraded(fmt.Sprintf("%s ping slow", name), map[string]any{"latency_ms": took.Milliseconds()})
	}
	return Healthy(fmt.Sprintf("%s reachable", name))
}

// Combine folds statuses into one: unhealthy if any is unhealthy, degraded
// if any is degraded, healthy otherwise.
func Combine(statuses ...Status) Status {
	if len(statuses) == 0 {
		return Healthy("no checks configured")
	}

	var failed, degraded []string
	for _, s := range statuses {
		msg := s.Message
		if msg == "" {
			msg = "unnamed check"
		}
		switch s.State {
		case StateUnhealthy:
			failed = append(failed, msg)
		case StateDegraded:
			degraded = append(degraded, msg)
		}
	}

	switch {
	case len(failed) > 0:
		return Unhealthy(fmt.Sprintf("%d check(s) failed", len(failed)), map[string]any{
			"total":         len(statuses),
			"failed_checks": failed,
		})
	case len(degraded) > 0:
		return Degraded(fmt.Sprintf("%d check(s) degraded", len(degraded)), map[string]any{
			"total":           len(statuses),
			"degraded_checks": degraded,
		})
	default:
		return Healthy(fmt.Sprintf("all %d check(s) passed", len(statuses)))
	}
}
