package serve

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/test/bufconn"

	"github.com/zero-day-ai/sentinel/registry"
)

func TestWithPort(t *testing.T) {
	cfg := DefaultConfig()
	WithPort(8080)(cfg)

	assert.Equal(t, 8080, cfg.Port)
}

func TestWithGracefulShutdown(t *testing.T) {
	cfg := DefaultConfig()
	WithGracefulShutdown(60 * time.Second)(cfg)

	assert.Equal(t, 60*time.Second, cfg.GracefulTimeout)
}

func TestWithTLS(t *testing.T) {
	cfg := DefaultConfig()
	WithTLS("/etc/certs/server.crt", "/etc/certs/server.key")(cfg)

	assert.Equal(t, "/etc/certs/server.crt", cfg.TLSCertFile)
	assert.Equal(t, "/etc/certs/server.key", cfg.TLSKeyFile)
}

func TestMultipleOptions(t *testing.T) {
	cfg := DefaultConfig()
	lis := bufconn.Listen(1024)
	defer lis.Close()
	reg := &fakeRegistry{}
	info := registry.Instance{Role: registry.RoleAPI, InstanceID: "api-1"}
	logger := slog.Default()

	opts := []Option{
		WithPort(9090),
		WithGracefulShutdown(45 * time.Second),
		WithTLS("cert.pem", "key.pem"),
		WithListener(lis),
		WithRegistry(reg, info),
		WithLogger(logger),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 45*time.Second, cfg.GracefulTimeout)
	assert.Equal(t, "cert.pem", cfg.TLSCertFile)
	assert.Equal(t, "key.pem", cfg.TLSKeyFile)
	assert.Same(t, lis, cfg.Listener)
	assert.Same(t, reg, cfg.Registry)
	assert.Equal(t, info, cfg.Instance)
	assert.Same(t, logger, cfg.Logger)
}
