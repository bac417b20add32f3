package integration_tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/integration_tests/harness"
	"github.com/vk/bootforge/internal/testutil"
)

var independent = map[string][]string{"A": nil, "B": nil, "C": nil, "D": nil}

// Test for: independent targets are built concurrently.
func TestDagConcurrency_IndependentTargetsOverlap(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl": stepHCL([]string{"A", "B", "C", "D"}, independent),
	})
	runner := testutil.NewFakeRunner()
	runner.Delay = 100 * time.Millisecond
	cfg := harness.Config(w)
	cfg.Workers = 4

	// --- Act ---
	result := harness.Build(t, w, runner, cfg)

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	testutil.AssertRebuilt(t, result, "A", "B", "C", "D")
	assert.Greater(t, maxOverlap(runner.Calls()), 1, "expected independent targets to run in parallel")
}

// Test for: the jobs limit caps concurrent commands below the worker count.
func TestDagConcurrency_JobsLimitSerializesCommands(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl": stepHCL([]string{"A", "B", "C", "D"}, independent),
	})
	runner := testutil.NewFakeRunner()
	runner.Delay = 20 * time.Millisecond
	cfg := harness.Config(w)
	cfg.Workers = 4
	cfg.Jobs = 1

	// --- Act ---
	result := harness.Build(t, w, runner, cfg)

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	require.Len(t, runner.Calls(), 4)
	assert.Equal(t, 1, maxOverlap(runner.Calls()))
}
