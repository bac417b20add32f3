package integration_tests

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/integration_tests/harness"
	"github.com/vk/bootforge/internal/testutil"
)

const manifestsHCL = `
group "default" { members = ["out/a.yaml", "out/b.yaml", "out/c.yaml"] }

pattern "manifest" {
	regex = "out/(?P<name>.*)\\.yaml"
	deps  = ["src/${named.name}.jsonnet"]
	scan {
		program = "imports"
		args    = ["src/${named.name}.jsonnet"]
	}
	command {
		program = "render"
		args    = [target]
		stdout  = target
	}
}
`

// Test for: the dependency scans of independent targets run concurrently.
func TestDagConcurrency_IndependentScansOverlap(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl":     manifestsHCL,
		"src/a.jsonnet": "a",
		"src/b.jsonnet": "b",
		"src/c.jsonnet": "c",
	})
	runner := testutil.NewFakeRunner().
		Handle("imports", func(_ context.Context, c *command.Cmd) (*command.Result, error) {
			return &command.Result{Stdout: []byte(c.Args[0])}, nil
		})
	runner.Delay = 100 * time.Millisecond
	cfg := harness.Config(w)
	cfg.Workers = 4

	// --- Act ---
	result := harness.Build(t, w, runner, cfg)

	// --- Assert ---
	require.NoError(t, result.Err, result.LogOutput)
	testutil.AssertRebuilt(t, result, "out/a.yaml", "out/b.yaml", "out/c.yaml")

	var scans []testutil.Invocation
	for _, c := range runner.Calls() {
		if c.Program == "imports" {
			scans = append(scans, c)
		}
	}
	require.Len(t, scans, 3, fmt.Sprint(runner.Calls()))
	assert.Equal(t, 3, maxOverlap(scans), "expected the three scans to run in parallel")
}
