package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the solver tuning parameters and the service settings. Adjust
// these to trade speed for memory and responsiveness.
type Config struct {
	// Workers is the number of search goroutines. Zero uses GOMAXPROCS.
	Workers int `yaml:"workers"`
	// MaxSteps bounds the length of any rotation considered.
	MaxSteps int `yaml:"max_steps"`
	// ProgressInterval is the number of node expansions between progress notifications.
	ProgressInterval uint64 `yaml:"progress_interval"`
	// CancelPollInterval is the number of node expansions between cancellation checks.
	CancelPollInterval uint64 `yaml:"cancel_poll_interval"`
	// MemoLimit caps the relaxed states each worker's bound evaluator keeps.
	MemoLimit int `yaml:"memo_limit"`
	// TimeLimit stops the search and reports the best rotation found. Zero means no limit.
	TimeLimit time.Duration `yaml:"time_limit"`
	// CachePath is the SQLite solution cache. Empty disables caching.
	CachePath string `yaml:"cache_path"`
	// Listen is the HTTP address of the solve service.
	Listen string `yaml:"listen"`
	// RateLimit caps solve requests per second across the service. Zero
	// disables limiting.
	RateLimit float64 `yaml:"rate_limit"`
	RateBurst int     `yaml:"rate_burst"`
}

// MaxStepsLimit is the largest accepted MaxSteps.
const MaxStepsLimit = 1000

// DefaultConfig returns the built-in tuning.
func DefaultConfig() Config {
	return Config{
		Workers:            0,
		MaxSteps:           40,
		ProgressInterval:   1 << 14,
		CancelPollInterval: 1 << 10,
		MemoLimit:          1 << 20,
		Listen:             ":8080",
		RateBurst:          4,
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects values the solver cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must not be negative, got %d", c.Workers))
	}
	if c.MaxSteps <= 0 || c.MaxSteps > MaxStepsLimit {
		errs = append(errs, fmt.Errorf("max_steps must be in [1, %d], got %d", MaxStepsLimit, c.MaxSteps))
	}
	if c.ProgressInterval == 0 {
		errs = append(errs, errors.New("progress_interval must be positive"))
	}
	if c.CancelPollInterval == 0 {
		errs = append(errs, errors.New("cancel_poll_interval must be positive"))
	}
	if c.MemoLimit < 0 {
		errs = append(errs, fmt.Errorf("memo_limit must not be negative, got %d", c.MemoLimit))
	}
	if c.TimeLimit < 0 {
		errs = append(errs, fmt.Errorf("time_limit must not be negative, got %s", c.TimeLimit))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %g", c.RateLimit))
	}
	if c.RateLimit > 0 && c.RateBurst <= 0 {
		errs = append(errs, fmt.Errorf("rate_burst must be positive when rate_limit is set, got %d", c.RateBurst))
	}
	return errors.Join(errs...)
}

// WorkerCount resolves Workers against the available processors.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
