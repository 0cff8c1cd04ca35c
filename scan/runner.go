package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/zero-day-ai/sentinel/queue"
)

// ErrScanFailed is returned when a remote worker reports a failure.
var ErrScanFailed = errors.New("scan failed")

// Runner executes a validated scan form.
type Runner interface {
	Run(ctx context.Context, form Form) (Outcome, error)
}

// LocalRunner runs scans in process.
type LocalRunner struct {
	sim *Simulator
}

// NewLocalRunner creates a runner backed by sim.
func NewLocalRunner(sim *Simulator) *LocalRunner {
	return &LocalRunner{sim: sim}
}

// Run simulates a scan of form.TargetURL.
func (r *LocalRunner) Run(ctx context.Context, form Form) (Outcome, error) {
	return r.sim.Simulate(ctx, form.TargetURL)
}

// QueueRunner dispatches scans to workers over the Redis scan queue and
// waits for the result on the job's channel.
type QueueRunner struct {
	client queue.Client
	queue  string
	logger *slog.Logger
}

// NewQueueRunner creates a runner that pushes jobs to queueName.
// An empty queueName uses queue.DefaultScanQueue.
func NewQueueRunner(client queue.Client, queueName string, logger *slog.Logger) *QueueRunner {
	if queueName == "" {
		queueName = queue.DefaultScanQueue
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueueRunner{
		client: client,
		queue:  queueName,
		logger: logger.With("component", "scan_runner", "queue", queueName),
	}
}

// Run pushes a job and blocks until a worker publishes its result or ctx ends.
func (r *QueueRunner) Run(ctx context.Context, form Form) (Outcome, error) {
	job := queue.ScanJob{
		JobID:       uuid.NewString(),
		Name:        form.Name,
		TargetURL:   form.TargetURL,
		Profile:     string(form.Profile),
		Depth:       string(form.Depth),
		SubmittedAt: time.Now().UnixMilli(),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		job.TraceID = sc.TraceID().String()
		job.SpanID = sc.SpanID().String()
	}

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Subscribe before pushing so a fast worker cannot publish into the void.
	results, err := r.client.SubscribeResults(subCtx, job.JobID)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to subscribe to scan results: %w", err)
	}

	if err := r.client.PushJob(ctx, r.queue, job); err != nil {
		return Outcome{}, fmt.Errorf("failed to dispatch scan: %w", err)
	}
	r.logger.Info("scan dispatched", "job_id", job.JobID, "target", job.TargetURL)

	select {
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	case res, ok := <-results:
		if !ok {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			return Outcome{}, fmt.Errorf("%w: result subscription closed", ErrScanFailed)
		}
		if res.HasError() {
			return Outcome{}, fmt.Errorf("%w: %s", ErrScanFailed, res.Error)
		}
		r.logger.Info("scan result received",
			"job_id", job.JobID,
			"worker_id", res.WorkerID,
			"duration_ms", res.Duration().Milliseconds(),
		)
		return Outcome{
			Record: res.Record,
			Summary: Summary{
				VulnerabilitiesFound: 1,
				HighestSeverity:      res.Record.Severity,
				EndpointsScanned:     res.EndpointsScanned,
			},
		}, nil
	}
}
