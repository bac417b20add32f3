package integration_tests

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/app"
	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/integration_tests/harness"
	"github.com/vk/bootforge/internal/testutil"
)

const failingHCL = `
group "default" { members = ["out/site.txt", "out/other.txt"] }

target "out/page.txt" {
	command {
		program = "broken"
		stdout  = target
	}
}

target "out/site.txt" {
	deps = ["out/page.txt"]
	write { content = "site" }
}

target "out/other.txt" {
	write { content = "other" }
}
`

// Test for: a failed target skips its dependents but not unrelated targets.
func TestErrorHandling_FailureSkipsDependents(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{"build.hcl": failingHCL})
	runner := testutil.NewFakeRunner().Handle("broken", testutil.Fail(2, "template error"))

	// --- Act ---
	result := harness.Build(t, w, runner, harness.Config(w))

	// --- Assert ---
	require.Error(t, result.Err)
	assert.ErrorIs(t, result.Err, app.ErrBuildFailed)
	assert.ErrorIs(t, result.Err, command.ErrCommandFailed)

	testutil.AssertFailed(t, result, "out/page.txt")
	assert.Equal(t, []string{"default", "out/site.txt"}, result.Report.Skipped())
	assert.Equal(t, []string{"out/other.txt"}, result.Report.Rebuilt())
	assert.False(t, w.Exists("out/site.txt"))
	assert.Contains(t, result.LogOutput, "template error")

	var failed *command.ExternalCommandFailed
	require.True(t, errors.As(result.Err, &failed))
	assert.Equal(t, 2, failed.ExitCode)
}

// Test for: a failed target is retried on the next invocation and nothing
// about its failed attempt is recorded.
func TestErrorHandling_FailedTargetIsRetried(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{"build.hcl": failingHCL})
	runner := testutil.NewFakeRunner().Handle("broken", testutil.Fail(1, "flaky"))
	first := harness.Build(t, w, runner, harness.Config(w))
	require.Error(t, first.Err)

	// --- Act ---
	runner.Handle("broken", testutil.Stdout("page"))
	second := harness.Build(t, w, runner, harness.Config(w))

	// --- Assert ---
	require.NoError(t, second.Err, second.LogOutput)
	testutil.AssertRebuilt(t, second, "out/page.txt", "out/site.txt")
	assert.Equal(t, "page", w.Read("out/page.txt"))
}
