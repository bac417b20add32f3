package testutil

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/require"
)

// AssertRebuilt checks that exactly the given targets had their recipe run.
func AssertRebuilt(t *testing.T, result *HarnessResult, targets ...string) {
	t.Helper()
	require.NotNil(t, result.Report, "run produced no report: %v", result.Err)
	want := slices.Clone(targets)
	slices.Sort(want)
	got := result.Report.Rebuilt()
	if len(want) == 0 {
		require.Empty(t, got, "expected no target to be rebuilt")
		return
	}
	require.Equal(t, want, got, "unexpected set of rebuilt targets")
}

// AssertFailed checks that target failed in the run.
func AssertFailed(t *testing.T, result *HarnessResult, target string) {
	t.Helper()
	require.NotNil(t, result.Report, "run produced no report: %v", result.Err)
	require.Contains(t, result.Report.Failed(), target)
}
