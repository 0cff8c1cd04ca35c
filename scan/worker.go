package scan

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zero-day-ai/sentinel/queue"
	"github.com/zero-day-ai/sentinel/telemetry"
)

// WorkerOptions configures a scan Worker.
type WorkerOptions struct {
	// Queue is the list jobs are popped from. Defaults to queue.DefaultScanQueue.
	Queue string

	// Concurrency is the number of worker goroutines. Defaults to 4.
	Concurrency int

	// HeartbeatInterval is how often the worker refreshes its health key.
	// Defaults to 10s.
	HeartbeatInterval time.Duration

	// Logger is the structured logger for worker operations.
	Logger *slog.Logger
}

// Worker pops scan jobs from Redis, simulates them and publishes results.
type Worker struct {
	client queue.Client
	sim    *Simulator
	opts   WorkerOptions
	id     string
	logger *slog.Logger
}

// NewWorker creates a worker.
func NewWorker(client queue.Client, sim *Simulator, opts WorkerOptions) *Worker {
	if opts.Queue == "" {
		opts.Queue = queue.DefaultScanQueue
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := generateWorkerID()
	return &Worker{
		client: client,
		sim:    sim,
		opts:   opts,
		id:     id,
		logger: opts.Logger.With("component", "scan_worker", "worker_id", id),
	}
}

// ID returns the worker's unique identifier.
func (w *Worker) ID() string {
	return w.id
}

// Run processes jobs until ctx is cancelled, then waits for in-flight
// scans to finish.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.Info("scan worker starting", "concurrency", w.opts.Concurrency, "queue", w.opts.Queue)

	if err := w.client.IncrementWorkerCount(ctx); err != nil {
		w.logger.Error("failed to increment worker count", "error", err)
	}
	defer func() {
		// ctx is already cancelled here
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := w.client.DecrementWorkerCount(cleanupCtx); err != nil {
			w.logger.Error("failed to decrement worker count", "error", err)
		}
	}()

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.runHeartbeat(ctx)
	}()

	for i := 0; i < w.opts.Concurrency; i++ {
		wg.Add(1)
		go func(workerNum int) {
			defer wg.Done()
			w.loop(ctx, workerNum)
		}(i)
	}

	wg.Wait()
	w.logger.Info("scan worker stopped")
	return nil
}

func (w *Worker) runHeartbeat(ctx context.Context) {
	ticker := time.NewTicker(w.opts.HeartbeatInterval)
	defer ticker.Stop()

	if err := w.client.Heartbeat(ctx, w.id); err != nil {
		w.logger.Debug("heartbeat failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.client.Heartbeat(ctx, w.id); err != nil {
				// heartbeat failures are transient
				w.logger.Debug("heartbeat failed", "error", err)
			}
		}
	}
}

func (w *Worker) loop(ctx context.Context, workerNum int) {
	logger := w.logger.With("worker_num", workerNum)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.client.PopJob(ctx, w.opts.Queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("failed to pop scan job", "error", err)
			continue
		}
		if job == nil {
			continue
		}

		logger.Info("received scan job", "job_id", job.JobID, "target", job.TargetURL)

		result := w.process(ctx, *job)
		if err := w.client.PublishResult(ctx, result); err != nil {
			logger.Error("failed to publish scan result", "job_id", job.JobID, "error", err)
		}
	}
}

// process always returns a result so the submitter is never left waiting.
func (w *Worker) process(ctx context.Context, job queue.ScanJob) queue.ScanResult {
	result := queue.ScanResult{
		JobID:     job.JobID,
		WorkerID:  w.id,
		StartedAt: time.Now().UnixMilli(),
	}

	if err := job.IsValid(); err != nil {
		result.Error = fmt.Sprintf("invalid job: %v", err)
		result.CompletedAt = time.Now().UnixMilli()
		return result
	}

	ctx = telemetry.ParentContext(ctx, job.TraceID, job.SpanID)
	outcome, err := w.sim.Simulate(ctx, job.TargetURL)
	if err != nil {
		result.Error = err.Error()
		result.CompletedAt = time.Now().UnixMilli()
		return result
	}

	result.Record = outcome.Record
	result.EndpointsScanned = outcome.Summary.EndpointsScanned
	result.CompletedAt = time.Now().UnixMilli()

	w.logger.Info("scan job completed",
		"job_id", job.JobID,
		"vuln_id", outcome.Record.ID,
		"duration_ms", result.CompletedAt-result.StartedAt,
	)
	return result
}

// generateWorkerID creates a unique identifier from hostname, PID and a UUID prefix.
func generateWorkerID() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), uuid.New().String()[:8])
}
