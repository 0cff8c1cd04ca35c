package serve

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/zero-day-ai/sentinel/health"
	"github.com/zero-day-ai/sentinel/registry"
)

// Config holds serve configuration.
// It defines the server's network settings, graceful shutdown behavior,
// optional TLS settings and optional registry self-registration.
type Config struct {
	// Port is the TCP port on which the gRPC server listens.
	// Port 0 picks a free port. Ignored when Listener is set.
	// Default: 50051
	Port int

	// GracefulTimeout is the maximum duration to wait for active requests
	// to complete during graceful shutdown.
	// Default: 30 seconds
	GracefulTimeout time.Duration

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// Listener replaces the TCP listener, e.g. with a bufconn listener.
	Listener net.Listener

	// Registry, when set, receives Instance once the server is serving and
	// a deregistration during shutdown.
	Registry registry.Registry
	Instance registry.Instance

	Logger *slog.Logger
}

// DefaultConfig returns default serve configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:            50051,
		GracefulTimeout: 30 * time.Second,
	}
}

// Server wraps a gRPC server with lifecycle management.
// It handles server initialization, startup, graceful shutdown,
// health check registration and registry membership.
type Server struct {
	grpcServer   *grpc.Server
	listener     net.Listener
	config       *Config
	healthServer *grpchealth.Server
	logger       *slog.Logger

	stopOnce sync.Once
}

// NewServer creates a new gRPC server. Options are applied on top of cfg,
// or on top of DefaultConfig when cfg is nil.
func NewServer(cfg *Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = 30 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var serverOpts []grpc.ServerOption
	if cfg.TLSCertFile != "" && cfg.TLSKeyFile != "" {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCertFile, cfg.TLSKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS credentials: %w", err)
		}
		serverOpts = append(serverOpts, grpc.Creds(creds))
	}

	listener := cfg.Listener
	if listener == nil {
		var err error
		listener, err = net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
		if err != nil {
			return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.Port, err)
		}
	}

	grpcServer := grpc.NewServer(serverOpts...)

	healthServer := grpchealth.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	return &Server{
		grpcServer:   grpcServer,
		listener:     listener,
		config:       cfg,
		healthServer: healthServer,
		logger:       logger.With("component", "grpc_server"),
	}, nil
}

// GRPCServer returns the underlying gRPC server.
// This allows callers to register additional services.
func (s *Server) GRPCServer() *grpc.Server {
	return s.grpcServer
}

// HealthServer returns the health check server.
func (s *Server) HealthServer() *grpchealth.Server {
	return s.healthServer
}

// RegisterVulnerabilityService registers svc on the server.
func (s *Server) RegisterVulnerabilityService(svc VulnerabilityServiceServer) {
	RegisterVulnerabilityServiceServer(s.grpcServer, svc)
	s.healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

// ReportHealth maps a dependency status onto the gRPC health service.
// Degraded still serves; only an unhealthy status reports NOT_SERVING.
func (s *Server) ReportHealth(st health.Status) {
	serving := grpc_health_v1.HealthCheckResponse_SERVING
	if st.IsUnhealthy() {
		serving = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	s.healthServer.SetServingStatus("", serving)
	s.healthServer.SetServingStatus(ServiceName, serving)
}

// Serve starts the gRPC server and blocks until shutdown.
// It handles graceful shutdown on SIGINT/SIGTERM signals.
// The context can be used to initiate shutdown programmatically, in which
// case ctx.Err() is returned.
func (s *Server) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		if err := s.grpcServer.Serve(s.listener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()
	s.logger.Info("serving", "addr", s.listener.Addr().String())

	if reg := s.config.Registry; reg != nil {
		if err := reg.Register(ctx, s.config.Instance); err != nil {
			s.logger.Warn("failed to register instance", "instance_id", s.config.Instance.InstanceID, "error", err)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case <-ctx.Done():
		s.GracefulStop()
		return ctx.Err()
	case sig := <-sigCh:
		s.logger.Info("received signal, shutting down", "signal", sig.String())
		s.GracefulStop()
		return nil
	case err := <-errCh:
		return err
	}
}

// Stop immediately stops the gRPC server.
// Active RPCs will be terminated abruptly.
func (s *Server) Stop() {
	s.deregister()
	s.grpcServer.Stop()
}

// GracefulStop stops accepting new connections and waits for active RPCs
// to complete within the configured timeout, then forces a stop.
func (s *Server) GracefulStop() {
	s.deregister()
	s.healthServer.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), s.config.GracefulTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("server stopped gracefully")
	case <-ctx.Done():
		s.logger.Warn("graceful shutdown timeout, forcing stop", "timeout", s.config.GracefulTimeout)
		s.grpcServer.Stop()
	}
}

func (s *Server) deregister() {
	s.stopOnce.Do(func() {
		reg := s.config.Registry
		if reg == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := reg.Deregister(ctx, s.config.Instance); err != nil {
			s.logger.Warn("failed to deregister instance", "instance_id", s.config.Instance.InstanceID, "error", err)
		}
	})
}

// Port returns the port the server is listening on.
// This is useful when using port 0 to get an available port.
func (s *Server) Port() int {
	if s.listener != nil {
		if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return s.config.Port
}

// Addr returns the listener address.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}
