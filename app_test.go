package sentinel

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/zero-day-ai/sentinel/config"
	"github.com/zero-day-ai/sentinel/query"
	"github.com/zero-day-ai/sentinel/registry"
	"github.com/zero-day-ai/sentinel/serve"
	"github.com/zero-day-ai/sentinel/vuln"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Data.Records = 8
	cfg.Data.Seed = 42
	cfg.Scan.Delay = "0s"
	cfg.Traffic.Interval = "50ms"
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	app, err := New(cfg, append([]Option{WithOutput(io.Discard)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func writeRecords(t *testing.T, records ...vuln.Vulnerability) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.jsonl")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, r := range records {
		require.NoError(t, enc.Encode(r))
	}
	return path
}

func TestNew_GeneratedRecords(t *testing.T) {
	app := newTestApp(t, testConfig())

	assert.Equal(t, 8, app.Store().Len())
	assert.Nil(t, app.Queue())
	assert.Nil(t, app.Registry())
	assert.NotNil(t, app.Advisor())
	assert.NotNil(t, app.Sessions())
	assert.NotNil(t, app.Sampler())
	assert.NotNil(t, app.Tokens())
	assert.Empty(t, app.HealthChecks())
}

func TestNew_NilConfigUsesDefaults(t *testing.T) {
	app := newTestApp(t, nil)

	assert.Equal(t, 50, app.Store().Len())
	assert.Equal(t, config.DispatchLocal, app.Config().Scan.GetDispatch())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Log.Level = "verbose"

	_, err := New(cfg, WithOutput(io.Discard))

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestNew_DataFile(t *testing.T) {
	discovered := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	tmpl := vuln.Template{Type: "SQL Injection", OWASPID: "API8:2023", Description: "unsanitized query", Severity: vuln.SeverityCritical}
	path := writeRecords(t,
		vuln.NewRecord("imported-1", tmpl, vuln.Endpoint{Method: vuln.MethodGet, Path: "/api/v1/search"}, discovered),
		vuln.NewRecord("imported-2", tmpl, vuln.Endpoint{Method: vuln.MethodPost, Path: "/api/v1/orders"}, discovered.Add(time.Hour)),
	)

	cfg := testConfig()
	cfg.Data.File = path
	app := newTestApp(t, cfg)

	require.Equal(t, 2, app.Store().Len())
	got, err := app.Store().Get("imported-2")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/orders", got.Endpoint.Path)
}

func TestNew_DataFileErrors(t *testing.T) {
	broken := filepath.Join(t.TempDir(), "broken.jsonl")
	require.NoError(t, os.WriteFile(broken, []byte("{\"id\":\n"), 0o600))

	invalid := filepath.Join(t.TempDir(), "invalid.jsonl")
	require.NoError(t, os.WriteFile(invalid, []byte(`{"id":"x","type":"XSS","severity":"severe"}`+"\n"), 0o600))

	tests := []struct {
		name string
		file string
		kind string
	}{
		{"missing file", filepath.Join(t.TempDir(), "absent.jsonl"), KindConfiguration},
		{"malformed json", broken, KindValidation},
		{"invalid record", invalid, KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Data.File = tt.file

			_, err := New(cfg, WithOutput(io.Discard))

			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestNew_RedisUnreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Redis.URL = "not a url"

	_, err := New(cfg, WithOutput(io.Discard))

	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestRunWorker_RequiresQueue(t *testing.T) {
	app := newTestApp(t, testConfig())

	err := app.RunWorker(context.Background())

	assert.ErrorIs(t, err, ErrQueueRequired)
	assert.Equal(t, KindConfiguration, KindOf(err))
}

func TestDiscover_RequiresRegistry(t *testing.T) {
	app := newTestApp(t, testConfig())

	_, err := app.Discover(context.Background(), registry.RoleAPI)

	assert.ErrorIs(t, err, ErrRegistryDisabled)
}

func TestQueueMode(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.Redis.URL = "redis://" + mr.Addr()
	cfg.Redis.PopTimeout = "100ms"
	cfg.Scan.Dispatch = config.DispatchQueue
	cfg.Scan.WorkerConcurrency = 2

	app := newTestApp(t, cfg)
	require.NotNil(t, app.Queue())

	checks := app.HealthChecks()
	require.Len(t, checks, 1)
	assert.Equal(t, "redis", checks[0].Name)
	assert.True(t, checks[0].Run(context.Background()).IsHealthy())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.RunWorker(ctx) }()

	assert.Eventually(t, func() bool {
		n, err := app.Queue().WorkerCount(context.Background())
		return err == nil && n == 1
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}

	n, err := app.Queue().WorkerCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestServe(t *testing.T) {
	lis := bufconn.Listen(1024 * 1024)
	app := newTestApp(t, testConfig(), WithListener(lis))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Serve(ctx) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	defer conn.Close()
	client := serve.NewClient(conn)

	callCtx, callCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer callCancel()

	resp, err := client.ListVulnerabilities(callCtx, query.Options{})
	require.NoError(t, err)
	assert.Equal(t, 8, resp.Total)
	assert.Len(t, resp.Records, 8)

	summary, err := client.GetSummary(callCtx)
	require.NoError(t, err)
	assert.Equal(t, 8, summary.Total)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
