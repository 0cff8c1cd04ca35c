package queue

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/sentinel/mockdata"
	"github.com/zero-day-ai/sentinel/store"
	"github.com/zero-day-ai/sentinel/vuln"
)

// setupTestClient creates a miniredis instance and returns a connected RedisClient.
func setupTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(RedisOptions{
		URL:            fmt.Sprintf("redis://%s", mr.Addr()),
		ConnectTimeout: 5 * time.Second,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   5 * time.Second,
		PopTimeout:     200 * time.Millisecond,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = client.Close()
	})

	return client, mr
}

func testJob(id string) ScanJob {
	return ScanJob{
		JobID:       id,
		Name:        "Nightly",
		TargetURL:   "https://api.example.com/v2/products/search",
		Profile:     "Quick Scan",
		SubmittedAt: time.Now().UnixMilli(),
	}
}

func testRecord(id string) vuln.Vulnerability {
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	return vuln.NewRecord(id, mockdata.NewScanFinding, vuln.Endpoint{Method: vuln.MethodGet, Path: "/v2/products/search"}, at)
}

func TestNewRedisClient(t *testing.T) {
	t.Run("successful connection", func(t *testing.T) {
		mr := miniredis.RunT(t)

		client, err := NewRedisClient(RedisOptions{
			URL: fmt.Sprintf("redis://%s", mr.Addr()),
		})
		require.NoError(t, err)
		require.NotNil(t, client)
		defer client.Close()

		assert.NoError(t, client.Ping(context.Background()))
	})

	t.Run("connection failure", func(t *testing.T) {
		_, err := NewRedisClient(RedisOptions{
			URL:            "redis://localhost:1",
			ConnectTimeout: 100 * time.Millisecond,
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to Redis")
	})

	t.Run("invalid URL", func(t *testing.T) {
		_, err := NewRedisClient(RedisOptions{
			URL: "invalid://url",
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse Redis URL")
	})
}

func TestPushPopJob(t *testing.T) {
	t.Run("fields survive the queue", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx := context.Background()

		job := testJob("job-123")
		job.TraceID = "trace-123"
		require.NoError(t, client.PushJob(ctx, DefaultScanQueue, job))

		popped, err := client.PopJob(ctx, DefaultScanQueue)
		require.NoError(t, err)
		require.NotNil(t, popped)
		assert.Equal(t, job, *popped)
	})

	t.Run("FIFO order", func(t *testing.T) {
		client, _ := setupTestClient(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			require.NoError(t, client.PushJob(ctx, DefaultScanQueue, testJob(fmt.Sprintf("job-%d", i))))
		}
		for i := 0; i < 3; i++ {
			popped, err := client.PopJob(ctx, DefaultScanQueue)
			require.NoError(t, err)
			require.NotNil(t, popped)
			assert.Equal(t, fmt.Sprintf("job-%d", i), popped.JobID)
		}
	})

	t.Run("empty queue times out with nil", func(t *testing.T) {
		client, _ := setupTestClient(t)

		popped, err := client.PopJob(context.Background(), "empty-queue")
		require.NoError(t, err)
		assert.Nil(t, popped)
	})

	t.Run("invalid job rejected", func(t *testing.T) {
		client, mr := setupTestClient(t)

		err := client.PushJob(context.Background(), DefaultScanQueue, ScanJob{JobID: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid scan job")
		assert.False(t, mr.Exists(DefaultScanQueue))
	})

	t.Run("malformed payload", func(t *testing.T) {
		client, mr := setupTestClient(t)

		_, err := mr.Lpush(DefaultScanQueue, "not json")
		require.NoError(t, err)

		_, err = client.PopJob(context.Background(), DefaultScanQueue)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal scan job")
	})
}

func TestPublishSubscribeResults(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	results, err := client.SubscribeResults(ctx, "job-1")
	require.NoError(t, err)

	now := time.Now().UnixMilli()
	want := ScanResult{
		JobID:            "job-1",
		Record:           testRecord("vuln-1"),
		EndpointsScanned: 42,
		WorkerID:         "worker-a",
		StartedAt:        now,
		CompletedAt:      now + 3000,
	}
	require.NoError(t, want.IsValid())
	require.NoError(t, client.PublishResult(ctx, want))

	select {
	case got := <-results:
		assert.Equal(t, want.JobID, got.JobID)
		assert.Equal(t, want.EndpointsScanned, got.EndpointsScanned)
		assert.Equal(t, want.Record.ID, got.Record.ID)
		assert.True(t, want.Record.DiscoveredAt.Equal(got.Record.DiscoveredAt))
		assert.Equal(t, 3*time.Second, got.Duration())
	case <-time.After(2 * time.Second):
		t.Fatal("no result received")
	}

	cancel()
	select {
	case _, ok := <-results:
		assert.False(t, ok, "channel closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed after cancel")
	}
}

func TestPublishResult_RequiresJobID(t *testing.T) {
	client, _ := setupTestClient(t)
	err := client.PublishResult(context.Background(), ScanResult{})
	assert.Error(t, err)
}

func TestEvents_StoreNotifier(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := client.SubscribeEvents(ctx)
	require.NoError(t, err)

	s, err := store.New([]vuln.Vulnerability{testRecord("vuln-1")}, store.WithNotifier(client))
	require.NoError(t, err)

	_, err = s.Transition(ctx, "vuln-1", vuln.StatusAcknowledged)
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, store.EventStatusChanged, ev.Kind)
		assert.Equal(t, "vuln-1", ev.Record.ID)
		assert.Equal(t, vuln.StatusAcknowledged, ev.Record.Status)
		assert.Equal(t, uint64(1), ev.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestHeartbeat(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Heartbeat(ctx, "worker-a"))

	key := "sentinel:worker:worker-a:health"
	assert.True(t, mr.Exists(key))
	assert.Equal(t, heartbeatTTL, mr.TTL(key))

	mr.FastForward(heartbeatTTL + time.Second)
	assert.False(t, mr.Exists(key))
}

func TestWorkerCount(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	count, err := client.WorkerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	require.NoError(t, client.IncrementWorkerCount(ctx))
	require.NoError(t, client.IncrementWorkerCount(ctx))
	require.NoError(t, client.DecrementWorkerCount(ctx))

	count, err = client.WorkerCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWorkerCount_InvalidValue(t *testing.T) {
	client, mr := setupTestClient(t)
	require.NoError(t, mr.Set(workerCountKey, "many"))

	_, err := client.WorkerCount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid worker count value")
}

func TestScanJobValidation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ScanJob)
		wantErr string
	}{
		{name: "valid", mutate: func(*ScanJob) {}},
		{name: "missing job id", mutate: func(j *ScanJob) { j.JobID = "" }, wantErr: "job_id is required"},
		{name: "missing name", mutate: func(j *ScanJob) { j.Name = "" }, wantErr: "scan name is required"},
		{name: "missing target", mutate: func(j *ScanJob) { j.TargetURL = "" }, wantErr: "target_url is required"},
		{name: "missing submitted_at", mutate: func(j *ScanJob) { j.SubmittedAt = 0 }, wantErr: "submitted_at must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := testJob("job-1")
			tt.mutate(&job)
			err := job.IsValid()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScanResultValidation(t *testing.T) {
	failed := ScanResult{JobID: "j", WorkerID: "w", StartedAt: 10, CompletedAt: 20, Error: "boom"}
	assert.NoError(t, failed.IsValid())
	assert.True(t, failed.HasError())

	missingRecord := ScanResult{JobID: "j", WorkerID: "w", StartedAt: 10, CompletedAt: 20}
	assert.ErrorContains(t, missingRecord.IsValid(), "record is invalid")

	backwards := ScanResult{JobID: "j", WorkerID: "w", StartedAt: 20, CompletedAt: 10, Error: "x"}
	assert.ErrorContains(t, backwards.IsValid(), "cannot be before")

	assert.Equal(t, time.Duration(0), (&ScanResult{}).Duration())
}
