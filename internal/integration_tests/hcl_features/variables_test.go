package integration_tests

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/bootforge/internal/integration_tests/harness"
	"github.com/vk/bootforge/internal/testutil"
)

const nodesHCL = `
variable "nodes" {
	default     = ["charm"]
	description = "Cluster nodes that get a kubeconfig."
}
variable "domain" { default = "example.org" }

group "default" {
	members = [for n in var.nodes : "kubeconfigs/${n}.kubeconfig"]
}

pattern "kubeconfig" {
	regex = "kubeconfigs/(?P<node>.*)\\.kubeconfig"
	write {
		content = jsonencode({
			server = "https://${named.node}.${var.domain}:6443"
			user   = "system:node:${named.node}"
		})
	}
}
`

// Test for: variables shape the default group and every pattern recipe.
func TestHCLFeatures_VariablesAndOverrides(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		w := testutil.NewWorkspace(t, map[string]string{"build.hcl": nodesHCL})

		result := harness.Build(t, w, testutil.NewFakeRunner(), harness.Config(w))

		require.NoError(t, result.Err, result.LogOutput)
		testutil.AssertRebuilt(t, result, "kubeconfigs/charm.kubeconfig")
		assert.JSONEq(t,
			`{"server":"https://charm.example.org:6443","user":"system:node:charm"}`,
			w.Read("kubeconfigs/charm.kubeconfig"))
	})

	t.Run("overrides", func(t *testing.T) {
		w := testutil.NewWorkspace(t, map[string]string{"build.hcl": nodesHCL})
		cfg := harness.Config(w)
		cfg.Variables = map[string]any{"nodes": []any{"charm", "spell"}, "domain": "lab"}

		result := harness.Build(t, w, testutil.NewFakeRunner(), cfg)

		require.NoError(t, result.Err, result.LogOutput)
		testutil.AssertRebuilt(t, result, "kubeconfigs/charm.kubeconfig", "kubeconfigs/spell.kubeconfig")
		assert.Contains(t, w.Read("kubeconfigs/spell.kubeconfig"), "https://spell.lab:6443")
	})

	t.Run("undeclared", func(t *testing.T) {
		w := testutil.NewWorkspace(t, map[string]string{"build.hcl": nodesHCL})
		cfg := harness.Config(w)
		cfg.Variables = map[string]any{"zone": "eu"}

		result := harness.Build(t, w, testutil.NewFakeRunner(), cfg)

		require.Error(t, result.Err)
		assert.Contains(t, result.Err.Error(), `variable "zone" is set but not declared`)
	})
}
