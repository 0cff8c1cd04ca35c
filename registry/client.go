package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// ErrClosed is returned by every method after Close.
var ErrClosed = errors.New("registry client is closed")

// etcd is the subset of *clientv3.Client the registry uses.
type etcd interface {
	clientv3.KV
	clientv3.Lease
	clientv3.Watcher
	Close() error
}

// Client implements Registry on etcd. It is safe for concurrent use.
type Client struct {
	etcd      etcd
	namespace string
	ttl       time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	leases  map[string]clientv3.LeaseID
	cancels map[string]context.CancelFunc
	closed  bool
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ Registry = (*Client)(nil)

// NewClient connects to etcd and checks that it answers.
func NewClient(cfg Config, logger *slog.Logger) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, errors.New("registry endpoints cannot be empty")
	}
	cfg = cfg.withDefaults()

	etcdCfg := clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	}
	if cfg.TLS != nil {
		tlsCfg, err := cfg.TLS.clientTLS()
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
		etcdCfg.TLS = tlsCfg
	}

	cli, err := clientv3.New(etcdCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if _, err := cli.Get(ctx, path.Join("/", cfg.Namespace), clientv3.WithCountOnly()); err != nil {
		_ = cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return newClient(cli, cfg, logger), nil
}

func newClient(e etcd, cfg Config, logger *slog.Logger) *Client {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		etcd:      e,
		namespace: cfg.Namespace,
		ttl:       cfg.TTL,
		logger:    logger.With("component", "registry"),
		leases:    make(map[string]clientv3.LeaseID),
		cancels:   make(map[string]context.CancelFunc),
		done:      make(chan struct{}),
	}
}

// Register implements Registry.
func (c *Client) Register(ctx context.Context, info Instance) error {
	if info.Role == "" || info.InstanceID == "" {
		return errors.New("instance role and id are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if cancel, ok := c.cancels[info.InstanceID]; ok {
		cancel()
		delete(c.cancels, info.InstanceID)
	}

	lease, err := c.etcd.Grant(ctx, int64(c.ttl/time.Second))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal instance: %w", err)
	}
	if _, err := c.etcd.Put(ctx, c.key(info.Role, info.InstanceID), string(data), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	keepalive, err := c.etcd.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to start lease keepalive: %w", err)
	}

	c.leases[info.InstanceID] = lease.ID
	c.cancels[info.InstanceID] = cancel

	c.wg.Add(1)
	go c.drain(info, keepalive)

	c.logger.Info("instance registered", "role", info.Role, "instance_id", info.InstanceID, "endpoint", info.Endpoint)
	return nil
}

// drain consumes keepalive responses. The channel closes when the lease is
// lost or keepalive is cancelled.
func (c *Client) drain(info Instance, keepalive <-chan *clientv3.LeaseKeepAliveResponse) {
	defer c.wg.Done()
	for range keepalive {
	}

	select {
	case <-c.done:
		return
	default:
	}

	c.mu.Lock()
	_, still := c.cancels[info.InstanceID]
	c.mu.Unlock()
	if still {
		c.logger.Warn("registry lease lost", "role", info.Role, "instance_id", info.InstanceID)
	}
}

// Deregister implements Registry.
func (c *Client) Deregister(ctx context.Context, info Instance) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if cancel, ok := c.cancels[info.InstanceID]; ok {
		cancel()
		delete(c.cancels, info.InstanceID)
	}
	lease, ok := c.leases[info.InstanceID]
	if !ok {
		return nil
	}
	delete(c.leases, info.InstanceID)

	if _, err := c.etcd.Revoke(ctx, lease); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	c.logger.Info("instance deregistered", "role", info.Role, "instance_id", info.InstanceID)
	return nil
}

// Discover implements Registry. Entries that fail to decode are skipped.
func (c *Client) Discover(ctx context.Context, role string) ([]Instance, error) {
	if c.isClosed() {
		return nil, ErrClosed
	}

	resp, err := c.etcd.Get(ctx, c.prefix(role), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover instances: %w", err)
	}

	out := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var info Instance
		if err := json.Unmarshal(kv.Value, &info); err != nil {
			c.logger.Warn("skipping malformed registry entry", "key", string(kv.Key), "error", err)
			continue
		}
		out = append(out, info)
	}
	return out, nil
}

// Watch implements Registry.
func (c *Client) Watch(ctx context.Context, role string) (<-chan []Instance, error) {
	initial, err := c.Discover(ctx, role)
	if err != nil {
		return nil, err
	}

	ch := make(chan []Instance, 1)
	ch <- initial
	events := c.etcd.Watch(ctx, c.prefix(role), clientv3.WithPrefix())

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer close(ch)

		for {
			select {
			case <-ctx.Done():
				return
			case <-c.done:
				return
			case resp, ok := <-events:
				if !ok || resp.Err() != nil {
					return
				}
				list, err := c.Discover(ctx, role)
				if err != nil {
					c.logger.Warn("registry watch refresh failed", "role", role, "error", err)
					continue
				}
				select {
				case ch <- list:
				case <-ctx.Done():
					return
				case <-c.done:
					return
				}
			}
		}
	}()
	return ch, nil
}

// Close stops keepalives and watches, then closes the etcd client. Leases
// are left to expire.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = make(map[string]context.CancelFunc)
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
	return c.etcd.Close()
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) prefix(role string) string {
	return path.Join("/", c.namespace, role) + "/"
}

func (c *Client) key(role, instanceID string) string {
	return path.Join("/", c.namespace, role, instanceID)
}
