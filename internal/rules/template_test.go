package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	m := &Match{
		Name:   "ca/nodes/charm.pem",
		Groups: []string{"ca/nodes/charm.pem", "nodes/charm"},
		Named:  map[string]string{"name": "charm"},
	}

	got, err := Expand([]Template{
		Literal("ca/root.pem"),
		Concat(Literal("ca/"), Capture(1), Literal("-csr.json")),
		Concat(Named("name"), Literal(".key")),
		TemplateFunc(func(m *Match) (string, error) { return strings.ToUpper(m.Named["name"]), nil }),
	}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"ca/root.pem", "ca/nodes/charm-csr.json", "charm.key", "CHARM"}, got)
}

func TestExpand_Errors(t *testing.T) {
	m := exactMatch("a")

	_, err := Expand([]Template{Capture(2)}, m)
	require.Error(t, err)

	_, err = Expand([]Template{Named("node")}, m)
	require.Error(t, err)

	_, err = Expand([]Template{Literal("")}, m)
	require.ErrorContains(t, err, "empty name")
}

type listTemplate []string

func (l listTemplate) Expand(*Match) (string, error) { return "", nil }

func (l listTemplate) ExpandAll(*Match) ([]string, error) { return l, nil }

func TestExpand_ListTemplatesAreFlattened(t *testing.T) {
	got, err := Expand([]Template{
		Literal("a.jsonnet"),
		listTemplate{"secrets/x.json", "secrets/y.json"},
		listTemplate{},
	}, exactMatch("a.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a.jsonnet", "secrets/x.json", "secrets/y.json"}, got)

	_, err = Expand([]Template{listTemplate{"ok", ""}}, exactMatch("a.yaml"))
	require.ErrorContains(t, err, "empty name")
}
