package app

import (
	"errors"
	"fmt"

	"github.com/vk/detsumm/internal/state"
)

// Config holds everything an App instance needs to run.
type Config struct {
	ConfigPath string // .hcl file or directory
	Output     string // overrides the report output directory
	DataURL    string // base URL of the data service; empty = no fetching

	LogFormat     string
	LogLevel      string
	WorkerCount   int
	SegmentPolicy string // raise, warn, or ignore
}

// NewConfig validates a Config.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.WorkerCount < 0 {
		return nil, fmt.Errorf("worker count must not be negative, got %d", cfg.WorkerCount)
	}
	if _, err := state.ParsePolicy(cfg.SegmentPolicy); err != nil {
		return nil, err
	}
	return &cfg, nil
}
