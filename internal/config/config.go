// Package config handles terramesh processing configuration.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Accepted range for the per-tile point budget.
const (
	MinMaxPoints     = 33
	MaxMaxPoints     = 2047
	DefaultMaxPoints = 512
)

// ErrInvalidConfig is returned by Validate for settings that cannot be used.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all processing settings.
type Config struct {
	Processing ProcessingConfig `yaml:"processing"`
	Lock       LockConfig       `yaml:"lock"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ProcessingConfig controls tile generation.
type ProcessingConfig struct {
	DataDir      string  `yaml:"data_dir"`      // Root holding one directory per layer
	MaxPoints    int     `yaml:"max_points"`    // Point budget per tile
	Workers      int     `yaml:"workers"`       // 0 = one per CPU
	Curtain      bool    `yaml:"curtain"`       // Emit skirt geometry in JSON tiles
	CurtainDepth float64 `yaml:"curtain_depth"` // Meters below the lowest tile vertex
}

// LockConfig controls the file lock protocol.
type LockConfig struct {
	RetryInterval time.Duration `yaml:"retry_interval"`
	Timeout       time.Duration `yaml:"timeout"` // 0 waits forever
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with the stock processing values.
func Default() *Config {
	return &Config{
		Processing: ProcessingConfig{
			DataDir:      ".",
			MaxPoints:    DefaultMaxPoints,
			Workers:      0,
			Curtain:      true,
			CurtainDepth: 1000,
		},
		Lock: LockConfig{
			RetryInterval: time.Second,
			Timeout:       0,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate clamps the point budget into its accepted range and rejects
// values that have no sensible interpretation.
func (c *Config) Validate() error {
	c.Processing.MaxPoints = ClampMaxPoints(c.Processing.MaxPoints)
	if c.Processing.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, c.Processing.Workers)
	}
	if c.Processing.CurtainDepth < 0 {
		return fmt.Errorf("%w: curtain_depth %g", ErrInvalidConfig, c.Processing.CurtainDepth)
	}
	if c.Lock.RetryInterval <= 0 {
		return fmt.Errorf("%w: lock retry_interval %v", ErrInvalidConfig, c.Lock.RetryInterval)
	}
	if c.Lock.Timeout < 0 {
		return fmt.Errorf("%w: lock timeout %v", ErrInvalidConfig, c.Lock.Timeout)
	}
	return nil
}

// WorkerCount resolves the configured worker count.
func (c *Config) WorkerCount() int {
	if c.Processing.Workers > 0 {
		return c.Processing.Workers
	}
	return runtime.NumCPU()
}

// ClampMaxPoints limits n to [MinMaxPoints, MaxMaxPoints].
func ClampMaxPoints(n int) int {
	if n < MinMaxPoints {
		return MinMaxPoints
	}
	if n > MaxMaxPoints {
		return MaxMaxPoints
	}
	return n
}
