// Package registry registers running Sentinel processes in etcd so API
// servers and scan workers can find each other.
//
// Each process writes one key, /{namespace}/{role}/{instance-id}, bound to
// a lease. The lease is kept alive while the process runs; a crashed
// process disappears once its lease expires.
package registry

import (
	"context"
	"time"
)

// Roles a Sentinel process can register under.
const (
	RoleAPI    = "api"
	RoleWorker = "worker"
)

// Defaults for Config.
const (
	DefaultNamespace   = "sentinel"
	DefaultTTL         = 30 * time.Second
	DefaultDialTimeout = 5 * time.Second
)

// Instance describes one running Sentinel process.
type Instance struct {
	Role       string            `json:"role"`
	InstanceID string            `json:"instance_id"`
	Endpoint   string            `json:"endpoint,omitempty"`
	Version    string            `json:"version,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
}

// Registry registers instances and discovers them by role.
type Registry interface {
	// Register writes info under a fresh lease and keeps it alive.
	// Registering the same InstanceID again replaces the entry.
	Register(ctx context.Context, info Instance) error

	// Deregister revokes the instance's lease. Unknown instances are a no-op.
	Deregister(ctx context.Context, info Instance) error

	// Discover lists the instances registered under role.
	Discover(ctx context.Context, role string) ([]Instance, error)

	// Watch sends the instance list for role now and after every change.
	// The channel closes when ctx ends or the registry is closed.
	Watch(ctx context.Context, role string) (<-chan []Instance, error)

	Close() error
}

// Config holds the etcd connection settings.
type Config struct {
	Endpoints   []string
	Namespace   string
	TTL         time.Duration
	DialTimeout time.Duration
	TLS         *TLSConfig
}

// TLSConfig enables mutual TLS towards etcd.
type TLSConfig struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`
}

func (c Config) withDefaults() Config {
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.TTL < time.Second {
		c.TTL = DefaultTTL
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	return c
}
