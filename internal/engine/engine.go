package engine

import (
	"context"

	"github.com/vk/bootforge/internal/command"
	"github.com/vk/bootforge/internal/dag"
	"github.com/vk/bootforge/internal/inmemorystore"
	"github.com/vk/bootforge/internal/resolver"
	"github.com/vk/bootforge/internal/resultstore"
	"github.com/vk/bootforge/internal/rules"
	"github.com/vk/bootforge/internal/staleness"
	"github.com/vk/bootforge/internal/workspace"
)

// Options tune a build invocation.
type Options struct {
	// Workers is the number of targets built concurrently per graph.
	Workers int
	// FailFast stops starting new targets after the first failure.
	FailFast bool
	// DryRun decides staleness without running recipes or writing the registry.
	DryRun bool
}

// Engine builds targets from a rule table.
type Engine struct {
	table   *rules.Table
	results *resultstore.Locked
	ws      *workspace.Workspace
	runner  command.Runner
	checker *staleness.Checker
	opts    Options
}

// New returns an Engine. results is wrapped for per-target locking.
func New(table *rules.Table, results resultstore.Store, ws *workspace.Workspace, runner command.Runner, opts Options) *Engine {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Engine{
		table:   table,
		results: resultstore.NewLocked(results),
		ws:      ws,
		runner:  runner,
		checker: staleness.NewChecker(ws),
		opts:    opts,
	}
}

// Table returns the rule table the engine builds from.
func (e *Engine) Table() *rules.Table { return e.table }

// Build brings targets up to date in a fresh invocation.
func (e *Engine) Build(ctx context.Context, targets ...string) (*Report, error) {
	return e.NewSession().Build(ctx, targets...)
}

// NewSession opens an invocation scope. Sessions are safe for concurrent use.
func (e *Engine) NewSession() *Session {
	return &Session{engine: e, memo: inmemorystore.New()}
}

// Plan resolves targets without building anything. Dynamic targets use the
// dependency lists recorded by their last discovery.
func (e *Engine) Plan(ctx context.Context, targets ...string) (*dag.Graph, error) {
	return resolver.New(e.table, e.results, e.ws, nil).Resolve(ctx, targets...)
}

// Results lists recorded entries, limited to targets when any are given.
func (e *Engine) Results(ctx context.Context, targets ...string) ([]*resultstore.Entry, error) {
	if len(targets) == 0 {
		return e.results.List(ctx)
	}
	var out []*resultstore.Entry
	for _, t := range targets {
		entry, ok, err := e.results.Get(ctx, t)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, entry)
		}
	}
	return out, nil
}
