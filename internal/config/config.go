// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Headless   HeadlessConfig   `mapstructure:"headless"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Aggregator AggregatorConfig `mapstructure:"aggregator"`
	Retailers  RetailersConfig  `mapstructure:"retailers"`
	Alerts     AlertsConfig     `mapstructure:"alerts"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Matcher    MatcherConfig    `mapstructure:"matcher"`
	Storage    StorageConfig    `mapstructure:"storage"`
	DB         DBConfig         `mapstructure:"db"`
	Snapshots  SnapshotsConfig  `mapstructure:"snapshots"`
	PubSub     PubSubConfig     `mapstructure:"pubsub"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Progress   ProgressConfig   `mapstructure:"progress"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	ReadTimeoutSeconds     int `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds    int `mapstructure:"write_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// HTTPConfig configures per-request timeouts and retry behavior.
type HTTPConfig struct {
	TimeoutSeconds   int `mapstructure:"timeout_seconds"`
	MaxRetries       int `mapstructure:"max_retries"`
	BackoffInitialMs int `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int `mapstructure:"backoff_max_ms"`
	MaxBodyBytes     int `mapstructure:"max_body_bytes"`
}

// FetchConfig tunes document validation.
type FetchConfig struct {
	MinBodyBytes       int      `mapstructure:"min_body_bytes"`
	WrongTargetMarkers []string `mapstructure:"wrong_target_markers"`
	RespectRobots      bool     `mapstructure:"respect_robots"`
	UserAgents         []string `mapstructure:"user_agents"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxParallel   int  `mapstructure:"max_parallel"`
	NavTimeoutSec int  `mapstructure:"nav_timeout_seconds"`
	SettleDelayMs int  `mapstructure:"settle_delay_ms"`
}

// RateLimitConfig paces requests to each retailer host.
type RateLimitConfig struct {
	Enabled      bool        `mapstructure:"enabled"`
	DefaultRPS   float64     `mapstructure:"default_rps"`
	DefaultBurst int         `mapstructure:"default_burst"`
	Hosts        []HostLimit `mapstructure:"hosts"`
}

// HostLimit overrides the default rate for one hostname.
type HostLimit struct {
	Host string  `mapstructure:"host"`
	RPS  float64 `mapstructure:"rps"`
}

// HostRPS indexes the per-host overrides by hostname.
func (c RateLimitConfig) HostRPS() map[string]float64 {
	out := make(map[string]float64, len(c.Hosts))
	for _, h := range c.Hosts {
		out[h.Host] = h.RPS
	}
	return out
}

// AggregatorConfig bounds each adapter call.
type AggregatorConfig struct {
	AdapterTimeoutSeconds int `mapstructure:"adapter_timeout_seconds"`
}

// RetailersConfig selects adapters and overrides their origins.
type RetailersConfig struct {
	Enabled  []string          `mapstructure:"enabled"`
	BaseURLs map[string]string `mapstructure:"base_urls"`
}

// AlertsConfig holds the savings threshold, dedup policy and notification topic.
type AlertsConfig struct {
	MinSavingsPercent float64     `mapstructure:"min_savings_percent"`
	Topic             string      `mapstructure:"topic"`
	Dedup             DedupConfig `mapstructure:"dedup"`
	// MemoryBuffer caps alerts retained in memory when Pub/Sub is disabled.
	MemoryBuffer int `mapstructure:"memory_buffer"`
}

// DedupConfig selects how repeated alerts are suppressed.
type DedupConfig struct {
	Policy     string `mapstructure:"policy"`
	TTLMinutes int    `mapstructure:"ttl_minutes"`
}

// EvaluationConfig gates the item evaluation endpoint.
type EvaluationConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MatcherConfig tunes product matching.
type MatcherConfig struct {
	MinScore float64 `mapstructure:"min_score"`
}

// StorageConfig selects the pricing store.
type StorageConfig struct {
	Backend string `mapstructure:"backend"`
	// Items seed the memory backend.
	Items []ItemConfig `mapstructure:"items"`
}

// ItemConfig describes one tracked item. ReferencePrice is a decimal string.
type ItemConfig struct {
	ID                  string `mapstructure:"id"`
	Name                string `mapstructure:"name"`
	ReferencePrice      string `mapstructure:"reference_price"`
	QuantityPerOrder    int    `mapstructure:"quantity_per_order"`
	ReorderIntervalDays int    `mapstructure:"reorder_interval_days"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN                    string `mapstructure:"dsn"`
	Schema                 string `mapstructure:"schema"`
	MaxConns               int32  `mapstructure:"max_conns"`
	MinConns               int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinutes int    `mapstructure:"max_conn_lifetime_minutes"`
}

// SnapshotsConfig selects where failed extraction pages are kept.
type SnapshotsConfig struct {
	Backend  string `mapstructure:"backend"`
	LocalDir string `mapstructure:"local_dir"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds the Pub/Sub project used for alert notifications.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
}

// RedisConfig configures the Redis client used by the redis dedup policy.
type RedisConfig struct {
	Addr       string `mapstructure:"addr"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	PoolSize   int    `mapstructure:"pool_size"`
	MaxRetries int    `mapstructure:"max_retries"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// ProgressConfig tunes adapter event batching.
type ProgressConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
}

// TracingConfig controls OpenTelemetry span sampling.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Supported values for the enum-like settings.
var (
	storageBackends  = []string{"memory", "postgres"}
	snapshotBackends = []string{"none", "memory", "local", "gcs"}
	dedupPolicies    = []string{"none", "memory", "redis"}
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 120)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 250)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("http.max_body_bytes", 8<<20)
	v.SetDefault("fetch.min_body_bytes", 512)
	v.SetDefault("fetch.respect_robots", false)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 45)
	v.SetDefault("headless.settle_delay_ms", 750)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_rps", 2.0)
	v.SetDefault("rate_limit.default_burst", 2)
	v.SetDefault("aggregator.adapter_timeout_seconds", 30)
	v.SetDefault("alerts.min_savings_percent", 0.05)
	v.SetDefault("alerts.dedup.policy", "none")
	v.SetDefault("alerts.dedup.ttl_minutes", 24*60)
	v.SetDefault("alerts.memory_buffer", 1000)
	v.SetDefault("evaluation.enabled", true)
	v.SetDefault("matcher.min_score", 0.0)
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("db.schema", "public")
	v.SetDefault("snapshots.backend", "none")
	v.SetDefault("snapshots.local_dir", "snapshots")
	v.SetDefault("snapshots.bucket", "")
	v.SetDefault("snapshots.prefix", "")
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.max_batch_events", 256)
	v.SetDefault("progress.max_batch_wait_ms", 500)
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "pricewatch")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return errors.New("auth.api_key must be set when auth is enabled")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return errors.New("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffMaxMs < c.HTTP.BackoffInitialMs {
		return errors.New("http.backoff_max_ms must be >= http.backoff_initial_ms")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return errors.New("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultBurst <= 0 {
		return errors.New("rate_limit.default_burst must be > 0 when rate limiting is enabled")
	}
	if c.Aggregator.AdapterTimeoutSeconds <= 0 {
		return errors.New("aggregator.adapter_timeout_seconds must be > 0")
	}
	if c.Alerts.MinSavingsPercent < 0 || c.Alerts.MinSavingsPercent >= 1 {
		return fmt.Errorf("alerts.min_savings_percent must be in [0, 1), got %v", c.Alerts.MinSavingsPercent)
	}
	if err := oneOf("alerts.dedup.policy", c.Alerts.Dedup.Policy, dedupPolicies); err != nil {
		return err
	}
	if c.Alerts.Dedup.Policy != "none" && c.Alerts.Dedup.TTLMinutes <= 0 {
		return errors.New("alerts.dedup.ttl_minutes must be > 0 when dedup is enabled")
	}
	if c.Alerts.MemoryBuffer <= 0 {
		return fmt.Errorf("alerts.memory_buffer must be > 0, got %d", c.Alerts.MemoryBuffer)
	}
	if c.Alerts.Dedup.Policy == "redis" && c.Redis.Addr == "" {
		return errors.New("redis.addr must be set when alerts.dedup.policy is redis")
	}
	if c.Matcher.MinScore < 0 || c.Matcher.MinScore > 1 {
		return fmt.Errorf("matcher.min_score must be in [0, 1], got %v", c.Matcher.MinScore)
	}
	if err := oneOf("storage.backend", c.Storage.Backend, storageBackends); err != nil {
		return err
	}
	if c.Storage.Backend == "postgres" && c.DB.DSN == "" {
		return errors.New("db.dsn must be set when storage.backend is postgres")
	}
	if err := oneOf("snapshots.backend", c.Snapshots.Backend, snapshotBackends); err != nil {
		return err
	}
	if c.Snapshots.Backend == "gcs" && c.Snapshots.Bucket == "" {
		return errors.New("snapshots.bucket must be set when snapshots.backend is gcs")
	}
	if c.PubSub.Enabled && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id must be set when pubsub is enabled")
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing.sample_ratio must be in [0, 1], got %v", c.Tracing.SampleRatio)
	}
	return nil
}

func oneOf(key, value string, allowed []string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, "|"), value)
}

// FetchTimeout is the per-attempt HTTP timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// AdapterTimeout bounds one adapter call inside an aggregation.
func (c Config) AdapterTimeout() time.Duration {
	return time.Duration(c.Aggregator.AdapterTimeoutSeconds) * time.Second
}

// DedupTTL is the window in which a repeated alert is suppressed.
func (c Config) DedupTTL() time.Duration {
	return time.Duration(c.Alerts.Dedup.TTLMinutes) * time.Minute
}
