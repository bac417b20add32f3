package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/config"
	"github.com/vk/bootforge/internal/ctxlog"
	"github.com/vk/bootforge/internal/engine"
	"github.com/vk/bootforge/internal/hcl_adapter"
	"github.com/vk/bootforge/internal/resultstore"
	"github.com/vk/bootforge/internal/rules"
	"github.com/vk/bootforge/internal/sqlitestore"
	"github.com/vk/bootforge/internal/workspace"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW   io.Writer
	logger *slog.Logger
	cfg    *Config

	ws      *workspace.Workspace
	loader  config.Loader
	runner  command.Runner
	results resultstore.Store
	engine  *engine.Engine
}

// Option customizes an App, mostly for tests.
type Option func(*App)

// WithRunner replaces the process runner. The job limit still applies.
func WithRunner(r command.Runner) Option {
	return func(a *App) { a.runner = r }
}

// WithLoader replaces the HCL build-file loader.
func WithLoader(l config.Loader) Option {
	return func(a *App) { a.loader = l }
}

// WithStore replaces the SQLite registry.
func WithStore(s resultstore.Store) Option {
	return func(a *App) { a.results = s }
}

// New creates an App with its own logger, loads the build files and opens
// the registry. The caller must Close the App.
func New(ctx context.Context, outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	logger := newLogger(cfg, outW)
	ctx = ctxlog.WithLogger(ctx, logger)
	logger.Debug("Logger configured successfully.")

	mode, err := workspace.ParseFingerprintMode(cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	a := &App{
		outW:   outW,
		logger: logger,
		cfg:    cfg,
		ws:     workspace.New(cfg.Root, mode),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.loader == nil {
		a.loader = hcl_adapter.NewLoader(a.ws, cfg.Variables)
	}
	if a.runner == nil {
		a.runner = &command.ExecRunner{BaseDir: cfg.Root}
	}
	a.runner = command.NewLimited(a.runner, cfg.Jobs)

	table, err := a.load(ctx)
	if err != nil {
		return nil, err
	}
	if a.results == nil {
		store, err := openRegistry(ctx, cfg.path(cfg.Registry))
		if err != nil {
			return nil, err
		}
		a.results = store
	}
	a.engine = a.newEngine(table)
	return a, nil
}

// load reads the build files into a fresh rule table.
func (a *App) load(ctx context.Context) (*rules.Table, error) {
	paths := make([]string, len(a.cfg.Buildfiles))
	for i, p := range a.cfg.Buildfiles {
		paths[i] = a.cfg.path(p)
	}
	b := rules.NewBuilder()
	if err := a.loader.Load(ctx, b, paths...); err != nil {
		return nil, fmt.Errorf("failed to load build files: %w", err)
	}
	table := b.Build()
	a.logger.Debug("Build files loaded.", "rules", table.Len())
	return table, nil
}

func (a *App) newEngine(table *rules.Table) *engine.Engine {
	return engine.New(table, a.results, a.ws, a.runner, engine.Options{
		Workers:  a.cfg.Workers,
		FailFast: a.cfg.FailFast,
		DryRun:   a.cfg.DryRun,
	})
}

// openRegistry opens the SQLite registry. An unreadable file is moved aside
// and replaced by an empty registry, which makes every target stale once.
func openRegistry(ctx context.Context, path string) (*sqlitestore.Store, error) {
	logger := ctxlog.FromContext(ctx)
	store, err := sqlitestore.Open(ctx, path)
	if errors.Is(err, resultstore.ErrRegistryCorrupt) {
		backup := path + ".corrupt"
		logger.Warn("Registry is unreadable, starting with an empty one.", "path", path, "backup", backup, "error", err)
		if rerr := os.Rename(path, backup); rerr != nil {
			return nil, fmt.Errorf("moving corrupt registry aside: %w", rerr)
		}
		store, err = sqlitestore.Open(ctx, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	logger.Debug("Registry opened.", "path", path)
	return store, nil
}

// Engine returns the application's engine. This is primarily for testing.
func (a *App) Engine() *engine.Engine {
	return a.engine
}

// Close releases the registry.
func (a *App) Close() error {
	if a.results == nil {
		return nil
	}
	return a.results.Close()
}
