package integration_tests

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/integration_tests/harness"
	"github.com/vk/bootforge/internal/testutil"
)

// Test for: Fan-in synchronization waits for all parallel nodes.
func TestDagConcurrency_FanInSynchronization(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl": stepHCL([]string{"D"}, map[string][]string{
			"A": nil,
			"B": nil,
			"C": nil,
			"D": {"A", "B", "C"},
		}),
	})
	runner := testutil.NewFakeRunner()
	runner.Delay = 50 * time.Millisecond

	// --- Act ---
	result := harness.Build(t, w, runner, harness.Config(w))

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	testutil.AssertRebuilt(t, result, "A", "B", "C", "D")

	records := invocations(t, runner)
	require.Len(t, records, 4)
	for _, prereq := range []string{"A", "B", "C"} {
		require.False(t, records["D"].Start.Before(records[prereq].End),
			"fan-in synchronization failed: D started before %s was complete", prereq)
	}
}
