package config

import (
	"context"

	"github.com/vk/bootforge/internal/rules"
)

// Loader is the interface for a format-specific build-file loader.
type Loader interface {
	// Load reads the build files found under paths and registers every rule
	// they declare with b.
	Load(ctx context.Context, b *rules.Builder, paths ...string) error
}
