package sentinel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/zero-day-ai/sentinel/advisor"
	"github.com/zero-day-ai/sentinel/config"
	"github.com/zero-day-ai/sentinel/feed"
	"github.com/zero-day-ai/sentinel/health"
	"github.com/zero-day-ai/sentinel/llm"
	"github.com/zero-day-ai/sentinel/mockdata"
	"github.com/zero-day-ai/sentinel/queue"
	"github.com/zero-day-ai/sentinel/registry"
	"github.com/zero-day-ai/sentinel/scan"
	"github.com/zero-day-ai/sentinel/serve"
	"github.com/zero-day-ai/sentinel/store"
	"github.com/zero-day-ai/sentinel/telemetry"
	"github.com/zero-day-ai/sentinel/traffic"
	"github.com/zero-day-ai/sentinel/vuln"
)

// App wires the Sentinel components of one process: the record store, the
// traffic sampler, the scan wizard sessions, the AI advisor, and the
// optional Redis queue and etcd registry.
type App struct {
	cfg    *config.Config
	opts   appOptions
	logger *slog.Logger

	tracerProvider *sdktrace.TracerProvider
	store          *store.Store
	sampler        *traffic.Sampler
	simulator      *scan.Simulator
	sessions       *scan.Sessions
	tokens         *llm.DefaultTokenTracker
	advisor        *advisor.Client
	queue          *queue.RedisClient
	registry       registry.Registry

	closeOnce sync.Once
	closeErr  error
}

// New validates cfg and builds every component. A nil cfg uses
// config.Default(). Redis is connected when redis.url is set; a registry
// that cannot be reached is logged and skipped.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	const op = "sentinel.New"

	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigurationError(op, fmt.Errorf("%w: %w", ErrInvalidConfig, err))
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = cfg.Log.NewLogger(o.output)
	}

	a := &App{
		cfg:    cfg,
		opts:   o,
		logger: logger,
		tokens: llm.NewTokenTracker(),
	}
	a.tracerProvider = telemetry.NewTracerProvider(telemetry.Config{
		ServiceName: cfg.Telemetry.ServiceName,
		LogSpans:    cfg.Telemetry.LogSpans,
	}, logger)

	if err := a.init(); err != nil {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("cleanup after failed start", "error", closeErr)
		}
		return nil, err
	}
	return a, nil
}

func (a *App) init() error {
	const op = "sentinel.New"
	cfg := a.cfg

	if cfg.Redis.Enabled() {
		q, err := queue.NewRedisClient(queue.RedisOptions{
			URL:        cfg.Redis.URL,
			PopTimeout: cfg.Redis.GetPopTimeout(),
			Logger:     a.logger,
		})
		if err != nil {
			return NewNetworkError(op, err).WithContext(map[string]any{"redis_url": cfg.Redis.URL})
		}
		a.queue = q
	}

	records, err := a.initialRecords()
	if err != nil {
		return err
	}
	storeOpts := []store.Option{store.WithLogger(a.logger)}
	if a.queue != nil {
		storeOpts = append(storeOpts, store.WithNotifier(a.queue))
	}
	a.store, err = store.New(records, storeOpts...)
	if err != nil {
		return NewValidationError(op, err)
	}

	a.sampler = traffic.NewSampler(
		traffic.WithWindow(cfg.Traffic.GetWindow()),
		traffic.WithInterval(cfg.Traffic.GetInterval()),
		traffic.WithLogger(a.logger),
	)

	a.simulator = scan.NewSimulator(scan.WithDelay(cfg.Scan.GetDelay()))
	var runner scan.Runner = scan.NewLocalRunner(a.simulator)
	if cfg.Scan.GetDispatch() == config.DispatchQueue {
		runner = scan.NewQueueRunner(a.queue, cfg.Scan.GetQueue(), a.logger)
	}
	a.sessions = scan.NewSessions(runner, a.store, a.logger)

	if cfg.AI.APIKey == "" {
		a.logger.Warn("AI API key is not set; remediation and CVE lookups will fail", "env", cfg.AI.GetAPIKeyEnv())
	}
	provider := llm.NewGeminiProvider(llm.GeminiOptions{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Timeout: cfg.AI.GetTimeout(),
		Logger:  a.logger,
	})
	a.advisor = advisor.New(provider,
		advisor.WithModels(cfg.AI.Models),
		advisor.WithTokenTracker(a.tokens),
		advisor.WithLogger(a.logger),
	)

	if cfg.Registry.Enabled() {
		reg, err := registry.NewClient(cfg.Registry.Registry(), a.logger)
		if err != nil {
			a.logger.Warn("service registry unavailable, continuing unregistered", "endpoints", cfg.Registry.Endpoints, "error", err)
		} else {
			a.registry = reg
		}
	}

	return nil
}

// initialRecords loads data.file when set, otherwise generates records.
func (a *App) initialRecords() ([]vuln.Vulnerability, error) {
	const op = "sentinel.New"
	data := a.cfg.Data

	if data.File != "" {
		f, err := feed.Load(data.File, feed.Options{SignatureFile: data.Signature, KeyringFile: data.Keyring})
		if err != nil {
			ctx := map[string]any{"file": data.File}
			if errors.Is(err, feed.ErrRead) {
				return nil, NewConfigurationError(op, err).WithContext(ctx)
			}
			return nil, NewValidationError(op, err).WithContext(ctx)
		}
		a.logger.Info("loaded records", "file", data.File, "count", len(f.Records), "signer", f.Signer)
		return f.Records, nil
	}

	var genOpts []mockdata.Option
	if data.Seed != 0 {
		genOpts = append(genOpts, mockdata.WithRand(rand.New(rand.NewPCG(data.Seed, data.Seed))))
	}
	if len(data.Team) > 0 {
		genOpts = append(genOpts, mockdata.WithTeam(data.Team))
	}
	return mockdata.Generate(data.GetRecords(), genOpts...), nil
}

func (a *App) Config() *config.Config { return a.cfg }
func (a *App) Logger() *slog.Logger { return a.logger }
func (a *App) Store() *store.Store { return a.store }
func (a *App) Sampler() *traffic.Sampler { return a.sampler }
func (a *App) Sessions() *scan.Sessions { return a.sessions }
func (a *App) Advisor() *advisor.Client { return a.advisor }
func (a *App) Tokens() llm.TokenTracker { return a.tokens }
func (a *App) Registry() registry.Registry { return a.registry }
func (a *App) Queue() *queue.RedisClient { return a.queue }
func (a *App) Simulator() *scan.Simulator { return a.simulator }

// HealthChecks returns the dependency checks for this configuration:
// Redis when the queue is enabled and the AI endpoint when a key is set.
func (a *App) HealthChecks() []health.Check {
	var checks []health.Check
	if a.queue != nil {
		checks = append(checks, health.Check{
			Name: "redis",
			Run: func(ctx context.Context) health.Status {
				return health.PingCheck(ctx, "redis", a.queue.Ping)
			},
		})
	}
	if a.cfg.AI.APIKey != "" {
		base := a.cfg.AI.BaseURL
		if base == "" {
			base = llm.DefaultGeminiBaseURL
		}
		checks = append(checks, health.Check{
			Name: "ai",
			Run: func(ctx context.Context) health.Status {
				return health.URLCheck(ctx, base)
			},
		})
	}
	return checks
}

// Serve runs the gRPC API until ctx ends. The traffic sampler and the
// health monitor run for the lifetime of the server. A cancelled ctx is a
// clean shutdown and returns nil.
func (a *App) Serve(ctx context.Context) error {
	const op = "App.Serve"
	cfg := a.cfg.Server

	srvOpts := []serve.Option{
		serve.WithPort(cfg.GetPort()),
		serve.WithGracefulShutdown(cfg.GetGracefulTimeout()),
		serve.WithTLS(cfg.TLSCertFile, cfg.TLSKeyFile),
		serve.WithLogger(a.logger),
	}
	if a.opts.listener != nil {
		srvOpts = append(srvOpts, serve.WithListener(a.opts.listener))
	}
	if a.registry != nil {
		info := a.instance(registry.RoleAPI)
		info.Endpoint = net.JoinHostPort(a.hostname(), strconv.Itoa(cfg.GetPort()))
		srvOpts = append(srvOpts, serve.WithRegistry(a.registry, info))
	}

	srv, err := serve.NewServer(nil, srvOpts...)
	if err != nil {
		return NewNetworkError(op, err)
	}
	srv.RegisterVulnerabilityService(serve.NewService(a.store,
		serve.WithTraffic(a.sampler),
		serve.WithScans(a.sessions),
		serve.WithAdvisor(a.advisor),
		serve.WithServiceLogger(a.logger),
	))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.sampler.Start(ctx)
	defer a.sampler.Stop()

	monitor := health.NewMonitor(cfg.GetHealthInterval(), srv.ReportHealth, a.logger, a.HealthChecks()...)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(ctx)
	}()
	defer wg.Wait()

	a.logger.Info("sentinel API starting",
		"records", a.store.Len(),
		"dispatch", a.cfg.Scan.GetDispatch(),
		"registry", a.registry != nil,
	)
	err = srv.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunWorker pops scan jobs from the Redis queue until ctx ends.
func (a *App) RunWorker(ctx context.Context) error {
	const op = "App.RunWorker"
	if a.queue == nil {
		return NewConfigurationError(op, ErrQueueRequired)
	}

	w := scan.NewWorker(a.queue, a.simulator, scan.WorkerOptions{
		Queue:             a.cfg.Scan.GetQueue(),
		Concurrency:       a.cfg.Scan.GetWorkerConcurrency(),
		HeartbeatInterval: a.cfg.Scan.GetHeartbeatInterval(),
		Logger:            a.logger,
	})

	if a.registry != nil {
		info := a.instance(registry.RoleWorker)
		info.InstanceID = w.ID()
		if err := a.registry.Register(ctx, info); err != nil {
			a.logger.Warn("failed to register worker", "worker_id", w.ID(), "error", err)
		}
		defer func() {
			cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.registry.Deregister(cleanupCtx, info); err != nil {
				a.logger.Warn("failed to deregister worker", "worker_id", w.ID(), "error", err)
			}
		}()
	}

	return w.Run(ctx)
}

// Discover lists the registered instances of role.
func (a *App) Discover(ctx context.Context, role string) ([]registry.Instance, error) {
	if a.registry == nil {
		return nil, NewConfigurationError("App.Discover", ErrRegistryDisabled)
	}
	instances, err := a.registry.Discover(ctx, role)
	if err != nil {
		return nil, NewNetworkError("App.Discover", err)
	}
	return instances, nil
}

func (a *App) instance(role string) registry.Instance {
	return registry.Instance{
		Role:       role,
		InstanceID: role + "-" + uuid.NewString(),
		Version:    a.opts.version,
		Metadata: map[string]string{
			"dispatch": a.cfg.Scan.GetDispatch(),
		},
		StartedAt: time.Now(),
	}
}

func (a *App) hostname() string {
	if a.opts.hostname != "" {
		return a.opts.hostname
	}
	host, err := os.Hostname()
	if err != nil {
		return "localhost"
	}
	return host
}

// Close releases Redis, the registry and the tracer provider. It is safe
// to call more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs []error
		if a.sampler != nil {
			a.sampler.Stop()
		}
		if a.registry != nil {
			if err := a.registry.Close(); err != nil {
				errs = append(errs, fmt.Errorf("registry: %w", err))
			}
		}
		if a.queue != nil {
			if err := a.queue.Close(); err != nil {
				errs = append(errs, fmt.Errorf("redis: %w", err))
			}
		}
		if a.tracerProvider != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider: %w", err))
			}
		}
		a.closeErr = errors.Join(errs...)
	})
	return a.closeErr
}
