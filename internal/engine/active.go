package engine

import (
	"context"
	"slices"

	"github.com/vk/bootforge/internal/dag"
	"github.com/vk/bootforge/internal/resolver"
)

type activeKey struct{}

// withActive records that target's recipe is running in this call chain.
func withActive(ctx context.Context, target string) context.Context {
	chain := append(slices.Clone(active(ctx)), target)
	return context.WithValue(ctx, activeKey{}, chain)
}

func active(ctx context.Context) []string {
	chain, _ := ctx.Value(activeKey{}).([]string)
	return chain
}

// checkReentry rejects a nested build whose graph contains a target whose
// recipe is waiting on that very build.
func checkReentry(ctx context.Context, g *dag.Graph, requested []string) error {
	chain := active(ctx)
	for i, name := range chain {
		if !g.Has(name) {
			continue
		}
		path := slices.Clone(chain[i:])
		if len(requested) > 0 && requested[0] != name {
			path = append(path, requested[0])
		}
		return &resolver.CycleError{Path: append(path, name)}
	}
	return nil
}
