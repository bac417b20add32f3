package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/vk/bootforge/internal/ctxlog"
	"github.com/vk/bootforge/internal/engine"
)

// ErrBuildFailed is returned by Run when a requested target did not build.
var ErrBuildFailed = errors.New("build failed")

// Run brings the configured targets up to date and logs a summary.
func (a *App) Run(ctx context.Context) (*engine.Report, error) {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "targets", a.cfg.Targets)

	if a.cfg.DryRun {
		a.logger.Info("🔍 Dry run, no recipe will be executed.")
	}
	a.logger.Info("🚀 Starting build...", "targets", a.cfg.Targets, "workers", a.cfg.Workers, "jobs", a.cfg.Jobs)
	report, err := a.engine.Build(ctx, a.cfg.Targets...)
	if report != nil {
		a.logReport(report)
	}
	if err != nil {
		// Without a report the graph was never run.
		if report == nil {
			return nil, err
		}
		return report, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	a.logger.Info("🏁 Build finished.")
	return report, nil
}

func (a *App) logReport(r *engine.Report) {
	verb := "rebuilt"
	if a.cfg.DryRun {
		verb = "would_rebuild"
	}
	for _, name := range r.Failed() {
		out := r.Outcomes[name]
		a.logger.Error("❌ Target failed.", "target", name, "error", out.Err)
	}
	for _, name := range r.Skipped() {
		a.logger.Warn("Target skipped.", "target", name)
	}
	a.logger.Info("Build summary.",
		verb, len(r.Rebuilt()),
		"up_to_date", len(r.UpToDate()),
		"failed", len(r.Failed()),
		"skipped", len(r.Skipped()),
	)
	if a.cfg.DryRun {
		for _, name := range r.Rebuilt() {
			a.logger.Info("Would rebuild.", "target", name, "reason", r.Outcomes[name].Reason)
		}
	}
}
