package engine

import (
	"context"
	"sort"

	"github.com/vk/bootforge/internal/dag"
	"github.com/vk/bootforge/internal/executor"
	"github.com/vk/bootforge/internal/nodestore"
)

// Report describes how every target of a build finished.
type Report struct {
	Roots    []string
	Outcomes map[string]nodestore.Outcome
}

func (s *Session) report(ctx context.Context, g *dag.Graph, er *executor.Report) *Report {
	r := &Report{Roots: g.Roots(), Outcomes: make(map[string]nodestore.Outcome, g.Len())}
	for _, n := range g.Nodes() {
		if out, ok := s.memo.GetOutcome(ctx, n.Name); ok {
			r.Outcomes[n.Name] = out
			continue
		}
		out := nodestore.Outcome{Status: nodestore.StatusSkipped, Kind: n.Kind}
		if er != nil {
			out.Err = er.Errors[n.Name]
		}
		r.Outcomes[n.Name] = out
	}
	return r
}

func (r *Report) filter(keep func(nodestore.Outcome) bool) []string {
	var out []string
	for name, o := range r.Outcomes {
		if keep(o) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Rebuilt lists targets whose recipe ran, or would have run in a dry run.
func (r *Report) Rebuilt() []string {
	return r.filter(func(o nodestore.Outcome) bool {
		return o.Status == nodestore.StatusCompleted && o.Rebuilt && o.Kind.HasRecipe()
	})
}

// UpToDate lists targets with a recipe that did not need to run.
func (r *Report) UpToDate() []string {
	return r.filter(func(o nodestore.Outcome) bool {
		return o.Status == nodestore.StatusCompleted && !o.Rebuilt && o.Kind.HasRecipe()
	})
}

// Failed lists targets whose build failed.
func (r *Report) Failed() []string {
	return r.filter(func(o nodestore.Outcome) bool { return o.Status == nodestore.StatusFailed })
}

// Skipped lists targets not built because a dependency failed.
func (r *Report) Skipped() []string {
	return r.filter(func(o nodestore.Outcome) bool { return o.Status == nodestore.StatusSkipped })
}
