package queue

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zero-day-ai/sentinel/store"
)

// DefaultScanQueue is the list scan jobs are pushed to.
const DefaultScanQueue = "sentinel:scan:queue"

// EventsChannel is the pub/sub channel carrying store change events.
const EventsChannel = "sentinel:events"

const (
	workerCountKey = "sentinel:scan:workers"
	heartbeatTTL   = 30 * time.Second
)

// ResultChannel returns the pub/sub channel for a job's result.
func ResultChannel(jobID string) string {
	return "sentinel:scan:results:" + jobID
}

// Client defines the interface for the Redis-backed scan queue and event bus.
type Client interface {
	// PushJob adds a scan job to the end of a queue (LPUSH).
	PushJob(ctx context.Context, queue string, job ScanJob) error

	// PopJob removes the oldest job from a queue (BRPOP). It waits at most
	// the configured pop timeout and returns nil, nil when nothing arrived.
	PopJob(ctx context.Context, queue string) (*ScanJob, error)

	// PublishResult sends a result to the job's result channel.
	PublishResult(ctx context.Context, result ScanResult) error

	// SubscribeResults subscribes to a job's result channel.
	SubscribeResults(ctx context.Context, jobID string) (<-chan ScanResult, error)

	// PublishEvent sends a store change event to EventsChannel.
	PublishEvent(ctx context.Context, ev store.Event) error

	// SubscribeEvents subscribes to EventsChannel.
	SubscribeEvents(ctx context.Context) (<-chan store.Event, error)

	// Heartbeat refreshes the health key for a worker with a 30s TTL.
	Heartbeat(ctx context.Context, workerID string) error

	// WorkerCount returns the number of registered scan workers.
	WorkerCount(ctx context.Context) (int, error)

	// IncrementWorkerCount registers a scan worker.
	IncrementWorkerCount(ctx context.Context) error

	// DecrementWorkerCount unregisters a scan worker.
	DecrementWorkerCount(ctx context.Context) error

	// Ping checks the Redis connection.
	Ping(ctx context.Context) error

	// Close closes the Redis connection.
	Close() error
}

// RedisOptions configures the Redis connection.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// PopTimeout bounds how long PopJob blocks waiting for a job
	PopTimeout time.Duration

	// Logger receives decode failures on subscriptions
	Logger *slog.Logger
}

// RedisClient implements Client using go-redis/v9.
// It also implements store.Notifier, publishing every change event.
type RedisClient struct {
	client     *redis.Client
	popTimeout time.Duration
	logger     *slog.Logger
}

var _ store.Notifier = (*RedisClient)(nil)

// NewRedisClient creates a new Redis queue client with the given options.
func NewRedisClient(opts RedisOptions) (*RedisClient, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.PopTimeout == 0 {
		opts.PopTimeout = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout
	redisOpts.ContextTimeoutEnabled = true

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{
		client:     client,
		popTimeout: opts.PopTimeout,
		logger:     opts.Logger.With("component", "queue"),
	}, nil
}

// PushJob adds a scan job to the end of a queue.
func (c *RedisClient) PushJob(ctx context.Context, queue string, job ScanJob) error {
	if err := job.IsValid(); err != nil {
		return fmt.Errorf("invalid scan job: %w", err)
	}

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal scan job: %w", err)
	}

	if err := c.client.LPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", queue, err)
	}
	return nil
}

// PopJob removes and returns the oldest job in a queue.
func (c *RedisClient) PopJob(ctx context.Context, queue string) (*ScanJob, error) {
	// BRPOP returns [queue_name, value] or redis.Nil on timeout
	result, err := c.client.BRPop(ctx, c.popTimeout, queue).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", queue, err)
	}

	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result length: %d", len(result))
	}

	var job ScanJob
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal scan job: %w", err)
	}
	return &job, nil
}

// PublishResult sends a result to the job's result channel.
func (c *RedisClient) PublishResult(ctx context.Context, result ScanResult) error {
	if result.JobID == "" {
		return fmt.Errorf("job_id is required")
	}
	return c.publish(ctx, ResultChannel(result.JobID), result)
}

// SubscribeResults subscribes to a job's result channel.
func (c *RedisClient) SubscribeResults(ctx context.Context, jobID string) (<-chan ScanResult, error) {
	return subscribe[ScanResult](ctx, c, ResultChannel(jobID))
}

// PublishEvent sends a store change event to EventsChannel.
func (c *RedisClient) PublishEvent(ctx context.Context, ev store.Event) error {
	return c.publish(ctx, EventsChannel, ev)
}

// SubscribeEvents subscribes to EventsChannel.
func (c *RedisClient) SubscribeEvents(ctx context.Context) (<-chan store.Event, error) {
	return subscribe[store.Event](ctx, c, EventsChannel)
}

// Notify implements store.Notifier.
func (c *RedisClient) Notify(ctx context.Context, ev store.Event) error {
	return c.PublishEvent(ctx, ev)
}

// Heartbeat refreshes the health key for a worker.
func (c *RedisClient) Heartbeat(ctx context.Context, workerID string) error {
	key := fmt.Sprintf("sentinel:worker:%s:health", workerID)
	if err := c.client.Set(ctx, key, "ok", heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("failed to set heartbeat for worker %s: %w", workerID, err)
	}
	return nil
}

// WorkerCount returns the number of registered scan workers.
func (c *RedisClient) WorkerCount(ctx context.Context) (int, error) {
	countStr, err := c.client.Get(ctx, workerCountKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get worker count: %w", err)
	}

	count, err := strconv.Atoi(countStr)
	if err != nil {
		return 0, fmt.Errorf("invalid worker count value: %w", err)
	}
	return count, nil
}

// IncrementWorkerCount registers a scan worker.
func (c *RedisClient) IncrementWorkerCount(ctx context.Context) error {
	if err := c.client.Incr(ctx, workerCountKey).Err(); err != nil {
		return fmt.Errorf("failed to increment worker count: %w", err)
	}
	return nil
}

// DecrementWorkerCount unregisters a scan worker.
func (c *RedisClient) DecrementWorkerCount(ctx context.Context) error {
	if err := c.client.Decr(ctx, workerCountKey).Err(); err != nil {
		return fmt.Errorf("failed to decrement worker count: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *RedisClient) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (c *RedisClient) Close() error {
	return c.client.Close()
}

func (c *RedisClient) publish(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", channel, err)
	}
	if err := c.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// subscribe decodes JSON messages from channel until ctx is done.
// Messages that fail to decode are logged and skipped.
func subscribe[T any](ctx context.Context, c *RedisClient, channel string) (<-chan T, error) {
	pubsub := c.client.Subscribe(ctx, channel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", channel, err)
	}

	out := make(chan T)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var v T
				if err := json.Unmarshal([]byte(msg.Payload), &v); err != nil {
					c.logger.Warn("dropping undecodable message", "channel", channel, "error", err)
					continue
				}

				select {
				case out <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
