package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/integration_tests/harness"
	"github.com/vk/bootforge/internal/testutil"
)

const imagesHCL = `
group "images" {
	members = [for dir in glob("images/*") : "docker-${basename(dir)}"]
}

always "docker" {
	for_each = glob("images/*")
	name     = "docker-${basename(each.value)}"
	deps     = [each.value]
	command {
		program = "docker"
		args    = ["build", "-t", "registry.local/${basename(each.value)}", each.value]
	}
}
`

// Test for: for_each declares one target per element of a directory listing.
func TestHCLFeatures_ForEachFollowsDirectoryListing(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl":             imagesHCL,
		"images/api/Dockerfile": "FROM scratch",
		"images/web/Dockerfile": "FROM scratch",
	})
	runner := testutil.NewFakeRunner()
	first := harness.Build(t, w, runner, harness.Config(w, "images"))
	require.NoError(t, first.Err, first.LogOutput)
	testutil.AssertRebuilt(t, first, "docker-api", "docker-web")

	// --- Act ---
	w.Write("images/worker/Dockerfile", "FROM scratch")
	runner.Reset()
	second := harness.Build(t, w, runner, harness.Config(w, "images"))

	// --- Assert ---
	require.NoError(t, second.Err, second.LogOutput)
	testutil.AssertRebuilt(t, second, "docker-api", "docker-web", "docker-worker")
	var built []string
	for _, c := range runner.Calls() {
		built = append(built, c.Args[len(c.Args)-1])
	}
	assert.ElementsMatch(t, []string{"images/api", "images/web", "images/worker"}, built)
}
