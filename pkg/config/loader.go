package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the YAML file looked up under the config directory.
const ConfigFileName = "councild.yaml"

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Start from built-in defaults
//  2. Load councild.yaml from configDir (optional)
//  3. Expand environment variables
//  4. Merge user values over defaults
//  5. Validate
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg := DefaultConfig()

	user, err := loadYAML(filepath.Join(configDir, ConfigFileName))
	if err != nil {
		return nil, NewLoadError(ConfigFileName, err)
	}
	if user != nil {
		// Non-zero user values override defaults section by section.
		if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge configuration: %w", err)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	log.Info("Configuration initialized successfully",
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"deployment_mode", cfg.Registry.DeploymentMode,
		"workers", cfg.Queue.WorkerCount)

	return cfg, nil
}

// loadYAML returns nil without error when the file does not exist; the
// built-in defaults are a complete configuration on their own.
func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No configuration file found, using defaults", "path", path)
			return nil, nil
		}
		return nil, err
	}

	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return NewValidationError("server", "port", fmt.Errorf("%w: %d", ErrInvalidValue, cfg.Server.Port))
	}
	if cfg.Limits.Demo <= 0 || cfg.Limits.Authenticated <= 0 || cfg.Limits.Admin <= 0 {
		return NewValidationError("limits", "", fmt.Errorf("%w: quotas must be positive", ErrInvalidValue))
	}
	if cfg.Limits.WindowSpan <= 0 {
		return NewValidationError("limits", "window_span", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if cfg.Cost.DiscrepancyThreshold <= 0 {
		return NewValidationError("cost", "discrepancy_threshold", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if cfg.Queue.WorkerCount <= 0 {
		return NewValidationError("queue", "worker_count", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if cfg.Queue.MaxConcurrentRequests < cfg.Queue.WorkerCount {
		slog.Warn("max_concurrent_requests below worker_count, workers will idle",
			"max_concurrent_requests", cfg.Queue.MaxConcurrentRequests,
			"worker_count", cfg.Queue.WorkerCount)
	}
	if cfg.Progress.HeartbeatInterval <= 0 || cfg.Progress.IdleTimeout <= 0 {
		return NewValidationError("progress", "", fmt.Errorf("%w: intervals must be positive", ErrInvalidValue))
	}
	if cfg.Progress.CatchupLimit <= 0 {
		return NewValidationError("progress", "catchup_limit", fmt.Errorf("%w: must be positive", ErrInvalidValue))
	}
	if !cfg.Registry.DeploymentMode.IsValid() {
		return NewValidationError("registry", "deployment_mode", fmt.Errorf("%w: %q", ErrInvalidValue, cfg.Registry.DeploymentMode))
	}
	if cfg.Redis.Addr == "" {
		return NewValidationError("redis", "addr", fmt.Errorf("%w: must not be empty", ErrInvalidValue))
	}
	return nil
}
