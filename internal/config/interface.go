package config

import (
	"context"
)

// Loader is the interface for a format-specific configuration loader.
type Loader interface {
	// Load reads every configuration file found under paths (directories
	// are searched recursively) and merges them into one model.
	Load(ctx context.Context, paths ...string) (*Model, error)

	// LoadString parses an in-memory configuration. name is used in source
	// ranges.
	LoadString(ctx context.Context, name, src string) (*Model, error)
}
