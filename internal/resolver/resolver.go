// Package resolver turns requested target names into a dependency graph.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/vk/bootforge/internal/ctxlog"
	"github.com/vk/bootforge/internal/dag"
	"github.com/vk/bootforge/internal/resultstore"
	"github.com/vk/bootforge/internal/rules"
)

// Discovery is the outcome of bringing one deps_of: target up to date.
type Discovery struct {
	Deps []string
	// Err is set when the scan failed. Only the dynamic target and its
	// dependents are affected by it.
	Err error
}

// Discoverer brings deps_of: targets up to date together and returns the
// dependency list each of them recorded. A returned error aborts resolution.
type Discoverer interface {
	Discover(ctx context.Context, depsTargets []string) (map[string]Discovery, error)
}

// Results reads recorded build results.
type Results interface {
	Get(ctx context.Context, target string) (*resultstore.Entry, bool, error)
}

// Files answers whether an unruled name exists in the workspace.
type Files interface {
	Exists(name string) bool
}

// Resolver resolves names against a rule table. A Resolver is meant for a
// single call to Resolve.
type Resolver struct {
	table    *rules.Table
	results  Results
	files    Files
	discover Discoverer

	// known holds discovery outcomes keyed by deps_of: name; it survives
	// between passes.
	known   map[string]Discovery
	pending []string

	graph  *dag.Graph
	path   []string
	onPath map[string]bool
}

// New returns a Resolver. discover may be nil, in which case dynamic targets
// are resolved against their previously recorded dependencies.
func New(table *rules.Table, results Results, files Files, discover Discoverer) *Resolver {
	return &Resolver{
		table:    table,
		results:  results,
		files:    files,
		discover: discover,
		known:    make(map[string]Discovery),
	}
}

// Resolve returns the graph of roots and their transitive dependencies.
// Resolution itself never writes; for dynamic targets the Discoverer may
// build deps_of: targets.
//
// Resolution runs in passes. Each pass walks the whole graph and collects the
// dynamic targets whose dependencies are not known yet; their deps_of: targets
// are then discovered in one batch so independent scans run concurrently.
// The walk ends once a pass finds nothing new.
func (r *Resolver) Resolve(ctx context.Context, roots ...string) (*dag.Graph, error) {
	for {
		r.graph = dag.New()
		r.path = nil
		r.onPath = make(map[string]bool)
		r.pending = nil

		for _, root := range roots {
			if err := r.resolve(ctx, root, ""); err != nil {
				return nil, err
			}
		}
		if len(r.pending) == 0 {
			break
		}
		if err := r.discoverPending(ctx); err != nil {
			return nil, err
		}
	}
	r.graph.SetRoots(roots)
	return r.graph, nil
}

func (r *Resolver) discoverPending(ctx context.Context) error {
	ctxlog.FromContext(ctx).Debug("Discovering dependencies.", "targets", r.pending)
	found, err := r.discover.Discover(ctx, r.pending)
	if err != nil {
		return err
	}
	for _, depsTarget := range r.pending {
		r.known[depsTarget] = found[depsTarget]
	}
	return nil
}

func (r *Resolver) resolve(ctx context.Context, name, parent string) error {
	if r.onPath[name] {
		start := slices.Index(r.path, name)
		cycle := append(slices.Clone(r.path[start:]), name)
		return &CycleError{Path: cycle}
	}
	if r.graph.Has(name) {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.onPath[name] = true
	r.path = append(r.path, name)
	defer func() {
		r.path = r.path[:len(r.path)-1]
		delete(r.onPath, name)
	}()

	node, err := r.node(ctx, name, parent)
	if err != nil {
		return err
	}
	ctxlog.FromContext(ctx).Debug("Resolved target.", "target", name, "kind", node.Kind, "deps", node.Deps)

	for _, dep := range node.Deps {
		if err := r.resolve(ctx, dep, name); err != nil {
			return err
		}
	}
	r.graph.AddNode(node)
	for _, dep := range node.Deps {
		if err := r.graph.AddEdge(dep, name); err != nil {
			return err
		}
	}
	return nil
}

func (r *Resolver) node(ctx context.Context, name, parent string) (*dag.Node, error) {
	if base, ok := rules.SplitDepsOf(name); ok {
		return r.discoveryNode(ctx, name, base, parent)
	}

	rule, match, err := r.table.Lookup(name)
	if errors.Is(err, rules.ErrTargetNotFound) {
		if r.files.Exists(name) {
			return &dag.Node{Name: name, Kind: rules.Source}, nil
		}
		return nil, &NotFoundError{Name: name, RequiredBy: parent}
	}
	if err != nil {
		return nil, err
	}

	deps, err := rules.Expand(rule.Deps, match)
	if err != nil {
		return nil, fmt.Errorf("expanding dependencies of %q (%s): %w", name, rule, err)
	}
	n := &dag.Node{Name: name, Kind: rule.Kind, Rule: rule, Match: match}
	if rule.Dynamic() {
		d, ok := r.discovered(ctx, name)
		switch {
		case !ok:
			// A leaf until its discovery batch ran.
			return n, nil
		case d.Err != nil:
			n.Err = fmt.Errorf("discovering dependencies of %q: %w", name, d.Err)
			return n, nil
		}
		deps = append(slices.Clone(d.Deps), deps...)
	}
	n.Deps = dedupe(deps)
	return n, nil
}

// discovered returns the outcome of the first phase of dynamic resolution
// for name. When it is not known yet, the deps_of: companion is queued for
// the next discovery batch and ok is false.
func (r *Resolver) discovered(ctx context.Context, name string) (d Discovery, ok bool) {
	depsTarget := rules.DepsOf(name)
	if d, ok := r.known[depsTarget]; ok {
		return d, true
	}
	if r.discover == nil {
		d := Discovery{Deps: r.previous(ctx, depsTarget)}
		r.known[depsTarget] = d
		return d, true
	}
	if !slices.Contains(r.pending, depsTarget) {
		r.pending = append(r.pending, depsTarget)
	}
	return Discovery{}, false
}

// discoveryNode synthesizes the deps_of: companion of a dynamic target. Its
// dependencies are the list discovered by its previous build. Entries that no
// longer resolve are dropped and make the node stale.
func (r *Resolver) discoveryNode(ctx context.Context, name, base, parent string) (*dag.Node, error) {
	rule, match, err := r.table.Lookup(base)
	if errors.Is(err, rules.ErrTargetNotFound) {
		return nil, &NotFoundError{Name: name, RequiredBy: parent}
	}
	if err != nil {
		return nil, err
	}
	if !rule.Dynamic() {
		return nil, fmt.Errorf("%q: %s does not discover dependencies: %w", name, rule, rules.ErrTargetNotFound)
	}

	n := &dag.Node{Name: name, Kind: rules.Virtual, Rule: rules.DiscoveryRule(rule, base), Match: match}
	for _, dep := range r.previous(ctx, name) {
		if dep == base || r.resolvable(dep) {
			if dep != base {
				n.Deps = append(n.Deps, dep)
			}
			continue
		}
		n.Vanished = append(n.Vanished, dep)
	}
	n.Deps = dedupe(n.Deps)
	return n, nil
}

func (r *Resolver) resolvable(name string) bool {
	if r.graph.Has(name) || r.onPath[name] {
		return true
	}
	if _, ok := rules.SplitDepsOf(name); ok {
		return true
	}
	if _, _, err := r.table.Lookup(name); err == nil {
		return true
	}
	return r.files.Exists(name)
}

// previous returns the recorded discovery list, or nothing if there is none
// or it cannot be read.
func (r *Resolver) previous(ctx context.Context, depsTarget string) []string {
	e, ok, err := r.results.Get(ctx, depsTarget)
	if err != nil {
		ctxlog.FromContext(ctx).Warn("Ignoring unreadable discovery result.", "target", depsTarget, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	return slices.Clone(e.Discovered)
}

func dedupe(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
