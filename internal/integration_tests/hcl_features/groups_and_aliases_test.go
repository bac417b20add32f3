package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/integration_tests/harness"
	"github.com/vk/bootforge/internal/testutil"
)

const aliasHCL = `
group "certs" { members = ["ca/root.pem", "ca/api.pem"] }
alias "root" { target = "ca/root.pem" }

target "ca/root.pem" {
	deps = ["ca/root.json"]
	command {
		program = "cfssl"
		args    = ["gencert", "-initca", deps[0]]
		stdout  = target
	}
}

target "ca/api.pem" {
	deps = ["ca/root.pem"]
	command {
		program = "cfssl"
		args    = ["gencert", "-ca", deps[0]]
		stdout  = target
	}
}
`

// Test for: aliases and groups build their members and record nothing themselves.
func TestHCLFeatures_GroupsAndAliases(t *testing.T) {
	// --- Arrange ---
	w := testutil.NewWorkspace(t, map[string]string{
		"build.hcl":    aliasHCL,
		"ca/root.json": `{"CN":"root"}`,
	})
	runner := testutil.NewFakeRunner().Handle("cfssl", testutil.Echo())

	// --- Act ---
	viaAlias := harness.Build(t, w, runner, harness.Config(w, "root"))
	viaGroup := harness.Build(t, w, runner, harness.Config(w, "certs"))

	// --- Assert ---
	require.NoError(t, viaAlias.Err, viaAlias.LogOutput)
	testutil.AssertRebuilt(t, viaAlias, "ca/root.pem")
	assert.Equal(t, "gencert -initca ca/root.json", w.Read("ca/root.pem"))

	require.NoError(t, viaGroup.Err, viaGroup.LogOutput)
	testutil.AssertRebuilt(t, viaGroup, "ca/api.pem")
	assert.Equal(t, []string{"ca/root.pem"}, viaGroup.Report.UpToDate())
	assert.False(t, w.Exists("certs"))
	assert.False(t, w.Exists("root"))
}
