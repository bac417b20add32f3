package app

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/vk/bootforge/internal/workspace"
)

// Defaults applied by NewConfig.
const (
	DefaultRegistry = ".bootforge/registry.db"
	DefaultTarget   = "default"
	DefaultWorkers  = 4
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	// Root is the workspace directory. Target names are relative to it.
	Root string
	// Buildfiles are .hcl files or directories, relative to Root.
	Buildfiles []string
	// Registry is the SQLite registry path, relative to Root.
	Registry string
	Targets  []string

	Workers int
	// Jobs caps concurrently running external processes.
	Jobs        int
	LogFormat   string
	LogLevel    string
	Fingerprint string
	FailFast    bool
	DryRun      bool
	Variables   map[string]any
}

// NewConfig validates cfg and fills in defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.Root == "" {
		return nil, errors.New("Root is a required configuration field and cannot be empty")
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	cfg.Root = root

	if len(cfg.Buildfiles) == 0 {
		cfg.Buildfiles = []string{"."}
	}
	if cfg.Registry == "" {
		cfg.Registry = DefaultRegistry
	}
	if len(cfg.Targets) == 0 {
		cfg.Targets = []string{DefaultTarget}
	}
	if cfg.Workers == 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must be positive, got %d", cfg.Workers)
	}
	if cfg.Jobs == 0 {
		cfg.Jobs = cfg.Workers
	}
	if cfg.Jobs < 0 {
		return nil, fmt.Errorf("jobs must be positive, got %d", cfg.Jobs)
	}

	switch cfg.LogFormat {
	case "":
		cfg.LogFormat = "text"
	case "text", "json":
	default:
		return nil, fmt.Errorf("invalid log format %q: must be 'text' or 'json'", cfg.LogFormat)
	}
	switch cfg.LogLevel {
	case "":
		cfg.LogLevel = "info"
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.LogLevel)
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = workspace.Content.String()
	}
	if _, err := workspace.ParseFingerprintMode(cfg.Fingerprint); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// path resolves a workspace-relative path.
func (c *Config) path(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Root, p)
}
