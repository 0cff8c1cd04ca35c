package serve

import (
	"log/slog"
	"net"
	"time"

	"github.com/zero-day-ai/sentinel/registry"
)

// Option is a functional option for configuring a Server.
type Option func(*Config)

// WithPort sets the TCP port for the gRPC server.
// Use port 0 to automatically select an available port.
//
// Example:
//
//	serve.NewServer(nil, serve.WithPort(8080))
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithGracefulShutdown sets the maximum duration to wait for active
// requests to complete during graceful shutdown.
// After this timeout, the server will force shutdown.
func WithGracefulShutdown(timeout time.Duration) Option {
	return func(c *Config) {
		c.GracefulTimeout = timeout
	}
}

// WithTLS enables TLS encryption for the gRPC server.
// Both certFile and keyFile must be valid paths to PEM-encoded files.
// If either path is empty, TLS will be disabled.
//
// Example:
//
//	serve.NewServer(nil, serve.WithTLS("/etc/certs/server.crt", "/etc/certs/server.key"))
func WithTLS(certFile, keyFile string) Option {
	return func(c *Config) {
		c.TLSCertFile = certFile
		c.TLSKeyFile = keyFile
	}
}

// WithListener serves on lis instead of opening a TCP port.
func WithListener(lis net.Listener) Option {
	return func(c *Config) {
		c.Listener = lis
	}
}

// WithRegistry registers info with reg while the server runs.
// Registration failures are logged and do not stop the server.
//
// Example:
//
//	reg, _ := registry.NewClient(cfg, logger)
//	serve.NewServer(nil, serve.WithRegistry(reg, registry.Instance{
//	    Role:       registry.RoleAPI,
//	    InstanceID: id,
//	    Endpoint:   "10.0.0.5:50051",
//	}))
func WithRegistry(reg registry.Registry, info registry.Instance) Option {
	return func(c *Config) {
		c.Registry = reg
		c.Instance = info
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
