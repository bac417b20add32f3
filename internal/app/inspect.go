package app

import (
	"context"
	"fmt"
	"io"

	"github.com/vk/bootforge/internal/ctxlog"
	"gopkg.in/yaml.v3"
)

// Output formats of Graph.
const (
	FormatText = "text"
	FormatYAML = "yaml"
)

type graphNode struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"`
	Rule     string   `yaml:"rule,omitempty"`
	Deps     []string `yaml:"deps,omitempty"`
	Vanished []string `yaml:"vanished,omitempty"`
}

// Graph resolves the configured targets without building anything and
// prints the graph in dependency order. Dynamic targets show the
// dependencies recorded by their last discovery.
func (a *App) Graph(ctx context.Context, w io.Writer, format string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	g, err := a.engine.Plan(ctx, a.cfg.Targets...)
	if err != nil {
		return err
	}
	order, err := g.TopologicalOrder()
	if err != nil {
		return err
	}

	nodes := make([]graphNode, 0, len(order))
	for _, name := range order {
		n, _ := g.Node(name)
		gn := graphNode{Name: n.Name, Kind: n.Kind.String(), Deps: n.Deps, Vanished: n.Vanished}
		if n.Rule != nil {
			gn.Rule = n.Rule.String()
		}
		nodes = append(nodes, gn)
	}

	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(nodes); err != nil {
			return err
		}
		return enc.Close()
	case FormatText, "":
		for _, n := range nodes {
			fmt.Fprintf(w, "%s [%s]\n", n.Name, n.Kind)
			for _, d := range n.Deps {
				fmt.Fprintf(w, "  <- %s\n", d)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown graph format %q", format)
	}
}

// ShowRegistry writes the recorded entries of targets, or of every target
// when none are given, as YAML.
func (a *App) ShowRegistry(ctx context.Context, w io.Writer, targets ...string) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	entries, err := a.engine.Results(ctx, targets...)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, err := io.WriteString(w, "# no recorded results\n")
		return err
	}
	for _, e := range entries {
		e.BuiltAt = e.BuiltAt.UTC()
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
