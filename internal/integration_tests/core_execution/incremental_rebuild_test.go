package integration_tests

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/integration_tests/harness"
	"github.com/vk/bootforge/internal/testutil"
)

const chainHCL = `
group "default" { members = ["out/bundle.txt", "out/other.txt"] }

target "out/config.json" {
	deps = ["src/config.txt"]
	command {
		program = "render"
		args    = [deps[0]]
		stdout  = target
	}
}

target "out/bundle.txt" {
	deps = ["out/config.json"]
	command {
		program = "render"
		args    = [deps[0]]
		stdout  = target
	}
}

target "out/other.txt" {
	deps = ["src/other.txt"]
	command {
		program = "render"
		args    = [deps[0]]
		stdout  = target
	}
}
`

// renderRunner answers "render" with the prefixed content of its argument.
func renderRunner(w *testutil.Workspace) *testutil.FakeRunner {
	return testutil.NewFakeRunner().Handle("render", func(_ context.Context, c *command.Cmd) (*command.Result, error) {
		data, err := os.ReadFile(w.Path(c.Args[0]))
		if err != nil {
			return nil, err
		}
		return &command.Result{Stdout: append([]byte("rendered:"), data...)}, nil
	})
}

// Test for: a second invocation with no changes runs no recipe.
func TestCoreExecution_NoChangesNoWork(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl":      chainHCL,
		"src/config.txt": "a",
		"src/other.txt":  "b",
	})
	runner := renderRunner(w)
	first := harness.Build(t, w, runner, harness.Config(w))
	require.NoError(t, first.Err, first.LogOutput)
	testutil.AssertRebuilt(t, first, "out/bundle.txt", "out/config.json", "out/other.txt")
	runner.Reset()

	// --- Act ---
	second := harness.Build(t, w, runner, harness.Config(w))

	// --- Assert ---
	require.NoError(t, second.Err, second.LogOutput)
	testutil.AssertRebuilt(t, second)
	assert.Empty(t, runner.Calls())
	assert.Equal(t, []string{"out/bundle.txt", "out/config.json", "out/other.txt"}, second.Report.UpToDate())
	assert.Equal(t, "rendered:rendered:a", w.Read("out/bundle.txt"))
}

// Test for: changing a source rebuilds its transitive dependents only.
func TestCoreExecution_ChangedSourceRebuildsDependents(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl":      chainHCL,
		"src/config.txt": "a",
		"src/other.txt":  "b",
	})
	runner := renderRunner(w)
	require.NoError(t, harness.Build(t, w, runner, harness.Config(w)).Err)
	w.Write("src/config.txt", "changed")

	// --- Act ---
	result := harness.Build(t, w, runner, harness.Config(w))

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	testutil.AssertRebuilt(t, result, "out/bundle.txt", "out/config.json")
	assert.Equal(t, "rendered:rendered:changed", w.Read("out/bundle.txt"))
	assert.Equal(t, "rendered:b", w.Read("out/other.txt"))
}

// Test for: rewriting a source with identical content is not a change.
func TestCoreExecution_IdenticalContentIsNotAChange(t *testing.T) {
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl":      chainHCL,
		"src/config.txt": "a",
		"src/other.txt":  "b",
	})
	runner := renderRunner(w)
	require.NoError(t, harness.Build(t, w, runner, harness.Config(w)).Err)
	w.Write("src/config.txt", "a")

	result := harness.Build(t, w, runner, harness.Config(w))

	require.NoError(t, result.Err, result.LogOutput)
	testutil.AssertRebuilt(t, result)
}

// Test for: a deleted output is rebuilt even though nothing else changed.
func TestCoreExecution_MissingOutputIsRebuilt(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl":      chainHCL,
		"src/config.txt": "a",
		"src/other.txt":  "b",
	})
	runner := renderRunner(w)
	require.NoError(t, harness.Build(t, w, runner, harness.Config(w)).Err)
	require.NoError(t, os.Remove(w.Path("out/other.txt")))

	// --- Act ---
	result := harness.Build(t, w, runner, harness.Config(w))

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	testutil.AssertRebuilt(t, result, "out/other.txt")
	assert.Equal(t, "rendered:b", w.Read("out/other.txt"))
}

// Test for: changing the declared dependency set rebuilds the target.
func TestCoreExecution_ChangedDependencySetRebuilds(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl": `
			target "out.txt" {
				deps = ["a.txt"]
				command {
					program = "render"
					args    = deps
					stdout  = target
				}
			}
		`,
		"a.txt": "a",
		"b.txt": "b",
	})
	runner := renderRunner(w)
	require.NoError(t, harness.Build(t, w, runner, harness.Config(w, "out.txt")).Err)

	w.Write("build.hcl", `
		target "out.txt" {
			deps = ["a.txt", "b.txt"]
			command {
				program = "render"
				args    = deps
				stdout  = target
			}
		}
	`)

	// --- Act ---
	result := harness.Build(t, w, runner, harness.Config(w, "out.txt"))

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	testutil.AssertRebuilt(t, result, "out.txt")
}
