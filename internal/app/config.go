package app

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds everything an App needs to run one router configuration.
type Config struct {
	ConfigPath string // HCL file or directory

	Threads  int
	Stride   bool
	MaxDepth int
	HTTPPort int

	LogFormat string
	LogLevel  string

	// Handlers are read after the router stops and printed.
	Handlers []string
	// Time prints the elapsed run time.
	Time bool
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ConfigPath == "" {
		return nil, errors.New("ConfigPath is a required configuration field and cannot be empty")
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}
	if cfg.Threads < 0 {
		return nil, fmt.Errorf("threads must be positive, got %d", cfg.Threads)
	}
	if cfg.MaxDepth < 0 {
		return nil, fmt.Errorf("max-depth must not be negative, got %d", cfg.MaxDepth)
	}
	if cfg.HTTPPort < 0 || cfg.HTTPPort > 65535 {
		return nil, fmt.Errorf("http-port out of range: %d", cfg.HTTPPort)
	}
	for _, h := range cfg.Handlers {
		if strings.TrimSpace(h) == "" {
			return nil, errors.New("empty handler name")
		}
	}
	return &cfg, nil
}
