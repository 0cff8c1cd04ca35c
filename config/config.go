// Package config loads sentinel.yaml.
//
// Durations are written as Go duration strings ("2s", "1m"). Every section
// has GetX accessors that fall back to defaults when a value is unset or
// cannot be parsed, so a missing file section behaves like an empty one.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zero-day-ai/sentinel/advisor"
	"github.com/zero-day-ai/sentinel/registry"
)

// File names searched when Load is given a directory.
var fileNames = []string{"sentinel.yaml", "sentinel.yml"}

// DefaultAPIKeyEnv is the environment variable holding the AI API key.
const DefaultAPIKeyEnv = "API_KEY"

// Dispatch modes for scans.
const (
	DispatchLocal = "local"
	DispatchQueue = "queue"
)

// Config is the root of sentinel.yaml.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	AI        AIConfig        `yaml:"ai"`
	Scan      ScanConfig      `yaml:"scan"`
	Traffic   TrafficConfig   `yaml:"traffic"`
	Data      DataConfig      `yaml:"data"`
	Redis     RedisConfig     `yaml:"redis"`
	Registry  RegistryConfig  `yaml:"registry"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ServerConfig configures the gRPC listener.
type ServerConfig struct {
	Port            int    `yaml:"port,omitempty"`
	GracefulTimeout string `yaml:"graceful_timeout,omitempty"`
	TLSCertFile     string `yaml:"tls_cert_file,omitempty"`
	TLSKeyFile      string `yaml:"tls_key_file,omitempty"`

	// HealthInterval is how often dependency checks run.
	HealthInterval string `yaml:"health_interval,omitempty"`
}

// GetPort returns the port, 50051 by default. Port 0 picks a free port
// only when set explicitly through the API, not from YAML.
func (s ServerConfig) GetPort() int {
	if s.Port <= 0 {
		return 50051
	}
	return s.Port
}

func (s ServerConfig) GetGracefulTimeout() time.Duration {
	return parseDuration(s.GracefulTimeout, 30*time.Second)
}

func (s ServerConfig) GetHealthInterval() time.Duration {
	return parseDuration(s.HealthInterval, 15*time.Second)
}

// AIConfig configures the generative-AI provider.
type AIConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`

	// APIKey is normally left empty and read from APIKeyEnv.
	APIKey    string         `yaml:"api_key,omitempty"`
	APIKeyEnv string         `yaml:"api_key_env,omitempty"`
	Timeout   string         `yaml:"timeout,omitempty"`
	Models    advisor.Models `yaml:"models,omitempty"`
}

func (a AIConfig) GetTimeout() time.Duration {
	return parseDuration(a.Timeout, 60*time.Second)
}

func (a AIConfig) GetAPIKeyEnv() string {
	if a.APIKeyEnv == "" {
		return DefaultAPIKeyEnv
	}
	return a.APIKeyEnv
}

// ScanConfig configures scan simulation and dispatch.
type ScanConfig struct {
	Delay             string `yaml:"delay,omitempty"`
	Dispatch          string `yaml:"dispatch,omitempty"`
	Queue             string `yaml:"queue,omitempty"`
	WorkerConcurrency int    `yaml:"worker_concurrency,omitempty"`
	HeartbeatInterval string `yaml:"heartbeat_interval,omitempty"`
}

func (s ScanConfig) GetDelay() time.Duration {
	return parseDuration(s.Delay, 3*time.Second)
}

func (s ScanConfig) GetDispatch() string {
	if s.Dispatch == "" {
		return DispatchLocal
	}
	return s.Dispatch
}

func (s ScanConfig) GetQueue() string {
	if s.Queue == "" {
		return "sentinel:scan:queue"
	}
	return s.Queue
}

func (s ScanConfig) GetWorkerConcurrency() int {
	if s.WorkerConcurrency <= 0 {
		return 4
	}
	return s.WorkerConcurrency
}

func (s ScanConfig) GetHeartbeatInterval() time.Duration {
	return parseDuration(s.HeartbeatInterval, 10*time.Second)
}

// TrafficConfig configures the live traffic sampler.
type TrafficConfig struct {
	Interval string `yaml:"interval,omitempty"`
	Window   int    `yaml:"window,omitempty"`
}

func (t TrafficConfig) GetInterval() time.Duration {
	return parseDuration(t.Interval, 2*time.Second)
}

func (t TrafficConfig) GetWindow() int {
	if t.Window == 0 {
		return 30
	}
	return t.Window
}

// DataConfig controls the session's initial records.
type DataConfig struct {
	// Records is the number of generated records. Ignored when File is set.
	Records int `yaml:"records,omitempty"`

	// Seed makes generation reproducible. Zero means random.
	Seed uint64 `yaml:"seed,omitempty"`

	Team []string `yaml:"team,omitempty"`

	// File is a JSON-lines file of records loaded instead of generated data.
	File string `yaml:"file,omitempty"`

	// Signature is a detached OpenPGP signature over File. When set, File
	// is only loaded if a key in Keyring made the signature.
	Signature string `yaml:"signature,omitempty"`
	Keyring   string `yaml:"keyring,omitempty"`
}

func (d DataConfig) GetRecords() int {
	if d.Records <= 0 {
		return 50
	}
	return d.Records
}

// RedisConfig enables the Redis-backed scan queue and event fan-out.
type RedisConfig struct {
	URL        string `yaml:"url,omitempty"`
	PopTimeout string `yaml:"pop_timeout,omitempty"`
}

func (r RedisConfig) Enabled() bool { return r.URL != "" }

func (r RedisConfig) GetPopTimeout() time.Duration {
	return parseDuration(r.PopTimeout, time.Second)
}

// RegistryConfig enables etcd self-registration.
type RegistryConfig struct {
	Endpoints []string            `yaml:"endpoints,omitempty"`
	Namespace string              `yaml:"namespace,omitempty"`
	TTL       string              `yaml:"ttl,omitempty"`
	TLS       *registry.TLSConfig `yaml:"tls,omitempty"`
}

func (r RegistryConfig) Enabled() bool { return len(r.Endpoints) > 0 }

// Registry converts the section into a registry.Config.
func (r RegistryConfig) Registry() registry.Config {
	return registry.Config{
		Endpoints: r.Endpoints,
		Namespace: r.Namespace,
		TTL:       parseDuration(r.TTL, registry.DefaultTTL),
		TLS:       r.TLS,
	}
}

// TelemetryConfig configures tracing.
type TelemetryConfig struct {
	ServiceName string `yaml:"service_name,omitempty"`
	LogSpans    bool   `yaml:"log_spans,omitempty"`
}

// Default returns a configuration with every section empty, which means
// every accessor returns its default.
func Default() *Config {
	return &Config{}
}

// Load reads a sentinel.yaml file. If path is a directory, sentinel.yaml or
// sentinel.yml inside it is used. The AI key environment variable is applied
// afterwards.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat path: %w", err)
	}

	file := path
	if info.IsDir() {
		file = ""
		for _, name := range fileNames {
			candidate := filepath.Join(path, name)
			if _, err := os.Stat(candidate); err == nil {
				file = candidate
				break
			}
		}
		if file == "" {
			return nil, fmt.Errorf("no %s found in %s", strings.Join(fileNames, " or "), path)
		}
	}

	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	return cfg, nil
}

// Parse decodes YAML and applies the environment. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// ApplyEnv sets the AI key from its environment variable when present.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(c.AI.GetAPIKeyEnv()); ok && v != "" {
		c.AI.APIKey = v
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, errors.New("server.tls_cert_file and server.tls_key_file must be set together"))
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "" && f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", f))
	}

	switch c.Scan.GetDispatch() {
	case DispatchLocal:
	case DispatchQueue:
		if !c.Redis.Enabled() {
			errs = append(errs, errors.New("scan.dispatch queue requires redis.url"))
		}
	default:
		errs = append(errs, fmt.Errorf("scan.dispatch must be local or queue, got %q", c.Scan.Dispatch))
	}
	if c.Traffic.Window < 0 {
		errs = append(errs, fmt.Errorf("traffic.window must not be negative, got %d", c.Traffic.Window))
	}
	if c.Data.Records < 0 {
		errs = append(errs, fmt.Errorf("data.records must not be negative, got %d", c.Data.Records))
	}
	if c.Data.Signature != "" && c.Data.File == "" {
		errs = append(errs, errors.New("data.signature requires data.file"))
	}
	if (c.Data.Signature == "") != (c.Data.Keyring == "") {
		errs = append(errs, errors.New("data.signature and data.keyring must be set together"))
	}

	for key, value := range map[string]string{
		"server.graceful_timeout": c.Server.GracefulTimeout,
		"server.health_interval":  c.Server.HealthInterval,
		"ai.timeout":              c.AI.Timeout,
		"scan.delay":              c.Scan.Delay,
		"scan.heartbeat_interval": c.Scan.HeartbeatInterval,
		"traffic.interval":        c.Traffic.Interval,
		"redis.pop_timeout":       c.Redis.PopTimeout,
		"registry.ttl":            c.Registry.TTL,
	} {
		if value == "" {
			continue
		}
		if d, err := time.ParseDuration(value); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, value))
		}
	}

	return errors.Join(errs...)
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}
