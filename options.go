package sentinel

import (
	"io"
	"log/slog"
	"net"
	"os"
)

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	logger   *slog.Logger
	output   io.Writer
	listener net.Listener
	version  string
	hostname string
}

func defaultOptions() appOptions {
	return appOptions{
		output:  os.Stderr,
		version: "dev",
	}
}

// WithLogger sets the logger. Without it the logger is built from the log
// section of the configuration.
func WithLogger(logger *slog.Logger) Option {
	return func(o *appOptions) {
		o.logger = logger
	}
}

// WithOutput sets where the configured logger writes. Default: stderr.
// Ignored when WithLogger is used.
func WithOutput(w io.Writer) Option {
	return func(o *appOptions) {
		if w != nil {
			o.output = w
		}
	}
}

// WithListener makes Serve use lis instead of opening server.port.
func WithListener(lis net.Listener) Option {
	return func(o *appOptions) {
		o.listener = lis
	}
}

// WithVersion sets the version reported to the service registry.
func WithVersion(version string) Option {
	return func(o *appOptions) {
		if version != "" {
			o.version = version
		}
	}
}

// WithHostname sets the host part of the endpoint registered for the API
// server. Defaults to os.Hostname().
func WithHostname(host string) Option {
	return func(o *appOptions) {
		o.hostname = host
	}
}
