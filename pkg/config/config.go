package config

import "time"

// Config is the fully resolved runtime configuration.
type Config struct {
	Server    *ServerConfig    `yaml:"server"`
	Limits    *LimitsConfig    `yaml:"limits"`
	Cost      *CostConfig      `yaml:"cost"`
	Queue     *QueueConfig     `yaml:"queue"`
	Progress  *ProgressConfig  `yaml:"progress"`
	Registry  *RegistryConfig  `yaml:"registry"`
	Redis     *RedisConfig     `yaml:"redis"`
	Retention *RetentionConfig `yaml:"retention"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// AllowedWSOrigins lists extra origins accepted on the progress
	// WebSocket beyond same-origin.
	AllowedWSOrigins []string `yaml:"allowed_ws_origins"`
}

// LimitsConfig holds per-role hourly request quotas.
type LimitsConfig struct {
	Demo          int `yaml:"demo"`
	Authenticated int `yaml:"authenticated"`
	Admin         int `yaml:"admin"`

	// WindowSpan is the sliding window length.
	WindowSpan time.Duration `yaml:"window_span"`
}

// ForRole returns the hourly quota for a role. Unknown roles get the
// demo quota.
func (l *LimitsConfig) ForRole(role Role) int {
	switch role {
	case RoleAdmin:
		return l.Admin
	case RoleAuthenticated:
		return l.Authenticated
	default:
		return l.Demo
	}
}

// CostConfig holds cost accounting settings.
type CostConfig struct {
	// MaxCostPerRequest is the advisory ceiling surfaced in estimates.
	// Execution is not aborted when exceeded; a warning is published.
	MaxCostPerRequest float64 `yaml:"max_cost_per_request"`

	// DiscrepancyThreshold is the |actual-estimated|/estimated ratio above
	// which a discrepancy event is emitted.
	DiscrepancyThreshold float64 `yaml:"discrepancy_threshold"`

	// EstimateCacheTTL bounds how long cached estimates are served.
	EstimateCacheTTL time.Duration `yaml:"estimate_cache_ttl"`
}

// QueueConfig contains queue and worker pool configuration.
// These values control how requests are polled, claimed, and processed.
type QueueConfig struct {
	// WorkerCount is the number of worker goroutines per replica/pod.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentRequests is the global limit of concurrent requests
	// being processed across ALL replicas. Enforced by database COUNT(*).
	MaxConcurrentRequests int `yaml:"max_concurrent_requests"`

	// PollInterval is the base interval for checking pending requests.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// RequestTimeout is the maximum time a request can be processed.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// HeartbeatInterval is how often workers refresh their claim on an
	// in-flight request and poll for cancellation.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// GracefulShutdownTimeout is the max time to wait for active requests
	// to complete during shutdown.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanDetectionInterval is how often to scan for orphaned requests.
	OrphanDetectionInterval time.Duration `yaml:"orphan_detection_interval"`

	// OrphanThreshold is how long a request can go without a heartbeat
	// before it is considered orphaned.
	OrphanThreshold time.Duration `yaml:"orphan_threshold"`
}

// ProgressConfig holds progress channel settings.
type ProgressConfig struct {
	// HeartbeatInterval is how often idle subscriptions receive a heartbeat.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// IdleTimeout closes subscribers that have sent nothing for this long.
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MessageTTL is how long unacknowledged messages are retained.
	MessageTTL time.Duration `yaml:"message_ttl"`

	// CatchupLimit caps messages fetched per store read during replay;
	// subscribe pages until the backlog is drained.
	CatchupLimit int `yaml:"catchup_limit"`
}

// RegistryConfig holds provider registry settings.
type RegistryConfig struct {
	DeploymentMode DeploymentMode `yaml:"deployment_mode"`

	// HealthInterval is how often providers are re-probed in the
	// background. Zero disables periodic probing.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// RetentionConfig controls how long finished requests are kept.
type RetentionConfig struct {
	// RequestRetentionDays is the age past which terminal requests and
	// their dependent rows are purged.
	RequestRetentionDays int `yaml:"request_retention_days"`

	// CleanupInterval is how often the retention sweep runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DefaultConfig returns the built-in defaults, used when councild.yaml is
// absent or partial.
func DefaultConfig() *Config {
	return &Config{
		Server: &ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Limits: &LimitsConfig{
			Demo:          3,
			Authenticated: 100,
			Admin:         1000,
			WindowSpan:    time.Hour,
		},
		Cost: &CostConfig{
			MaxCostPerRequest:    10.0,
			DiscrepancyThreshold: 0.5,
			EstimateCacheTTL:     time.Hour,
		},
		Queue: &QueueConfig{
			WorkerCount:             5,
			MaxConcurrentRequests:   5,
			PollInterval:            1 * time.Second,
			PollIntervalJitter:      500 * time.Millisecond,
			RequestTimeout:          5 * time.Minute,
			HeartbeatInterval:       10 * time.Second,
			GracefulShutdownTimeout: 5 * time.Minute,
			OrphanDetectionInterval: 5 * time.Minute,
			OrphanThreshold:         5 * time.Minute,
		},
		Progress: &ProgressConfig{
			HeartbeatInterval: 30 * time.Second,
			IdleTimeout:       300 * time.Second,
			MessageTTL:        24 * time.Hour,
			CatchupLimit:      200,
		},
		Registry: &RegistryConfig{
			DeploymentMode: DeploymentHybrid,
			HealthInterval: 5 * time.Minute,
		},
		Redis: &RedisConfig{
			Addr: "localhost:6379",
		},
		Retention: &RetentionConfig{
			RequestRetentionDays: 30,
			CleanupInterval:      6 * time.Hour,
		},
	}
}
