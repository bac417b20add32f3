// Package harness runs complete bootforge invocations against temporary
// workspaces for the integration tests.
package harness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/app"
	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/testutil"
)

// Config returns a debug-level configuration for w building targets.
func Config(w *testutil.Workspace, targets ...string) app.Config {
	return app.Config{Root: w.Root, Targets: targets, LogLevel: "debug"}
}

// Build performs one invocation: it opens the workspace registry, runs the
// build and closes the registry again, like a separate process would.
func Build(t *testing.T, w *testutil.Workspace, runner command.Runner, cfg app.Config) *testutil.HarnessResult {
	t.Helper()
	appCfg, err := app.NewConfig(cfg)
	require.NoError(t, err, "invalid test configuration")

	w.Logs.Reset()
	a, err := app.New(context.Background(), w.Logs, appCfg, app.WithRunner(runner))
	if err != nil {
		return &testutil.HarnessResult{LogOutput: w.Logs.String(), Err: err}
	}
	defer func() { require.NoError(t, a.Close()) }()

	report, err := a.Run(context.Background())
	return &testutil.HarnessResult{LogOutput: w.Logs.String(), Report: report, Err: err}
}
