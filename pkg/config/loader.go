package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the YAML file Initialize looks for in the config
// directory.
const ConfigFileName = "scenario.yaml"

// Initialize loads, merges and validates the configuration. A missing file
// is not an error: the built-in defaults then apply unchanged.
func Initialize(path string) (*Config, error) {
	cfg := DefaultConfig()

	user, err := loadYAML(path)
	if err != nil {
		if errors.Is(err, ErrConfigNotFound) {
			slog.Info("No configuration file, using built-in defaults", "path", path)
			if err := validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, NewLoadError(path, err)
	}

	// User values override defaults; unset fields keep the defaults.
	if err := mergo.Merge(cfg, user, mergo.WithOverride); err != nil {
		return nil, fmt.Errorf("merge configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	slog.Info("Configuration initialized",
		"path", path,
		"cache_backend", cfg.Cache.Backend,
		"queue_workers", cfg.Queue.WorkerCount,
		"scheduler_enabled", cfg.SchedulerEnabled())
	return cfg, nil
}

func loadYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, err
	}

	// Environment variables use {{.VAR}} template syntax; see ExpandEnv.
	data = ExpandEnv(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Engine.MaxNestingDepth < 1 {
		return NewValidationError("engine", "max_nesting_depth", ErrInvalidValue)
	}
	if cfg.Engine.MaxSystemTenantID < 0 {
		return NewValidationError("engine", "max_system_tenant_id", ErrInvalidValue)
	}
	if cfg.Queue.WorkerCount < 1 {
		return NewValidationError("queue", "worker_count", ErrInvalidValue)
	}
	if cfg.Queue.BufferSize < 1 {
		return NewValidationError("queue", "buffer_size", ErrInvalidValue)
	}
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return NewValidationError("cache", "backend", ErrInvalidValue)
	}
	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		return NewValidationError("http", "port", ErrInvalidValue)
	}
	return nil
}
