package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/vk/bootforge/internal/ctxlog"
	"github.com/vk/bootforge/internal/dag"
	"github.com/vk/bootforge/internal/executor"
	"github.com/vk/bootforge/internal/nodestore"
	"github.com/vk/bootforge/internal/resolver"
	"github.com/vk/bootforge/internal/resultstore"
	"github.com/vk/bootforge/internal/rules"
	"github.com/vk/bootforge/internal/staleness"
)

// Session is one build invocation. Every target is built at most once per
// Session, however many graphs reach it.
type Session struct {
	engine *Engine
	memo   nodestore.Store
}

// Build resolves targets and runs the resulting graph. Targets already
// finished earlier in the session are not rebuilt.
func (s *Session) Build(ctx context.Context, targets ...string) (*Report, error) {
	g, err := resolver.New(s.engine.table, s.engine.results, s.engine.ws, s).Resolve(ctx, targets...)
	if err != nil {
		return nil, err
	}
	if err := checkReentry(ctx, g, targets); err != nil {
		return nil, err
	}

	execReport, runErr := executor.New(g, s,
		executor.WithWorkers(s.engine.opts.Workers),
		executor.WithFailFast(s.engine.opts.FailFast),
	).Run(ctx)
	return s.report(ctx, g, execReport), runErr
}

// Discover implements resolver.Discoverer. The deps_of: targets are built
// as one graph of this session, so independent scans run concurrently. A
// failed scan becomes that target's Discovery.Err; only an unresolvable
// graph fails the whole call.
func (s *Session) Discover(ctx context.Context, depsTargets []string) (map[string]resolver.Discovery, error) {
	out := make(map[string]resolver.Discovery, len(depsTargets))
	if !s.engine.opts.DryRun {
		report, err := s.Build(ctx, depsTargets...)
		if report == nil {
			return nil, err
		}
		for _, t := range depsTargets {
			o := report.Outcomes[t]
			if o.Status == nodestore.StatusCompleted {
				continue
			}
			cause := o.Err
			if cause == nil {
				cause = err
			}
			out[t] = resolver.Discovery{Err: cause}
		}
	}
	for _, t := range depsTargets {
		if _, failed := out[t]; failed {
			continue
		}
		list, err := s.recordedList(ctx, t)
		if err != nil {
			return nil, err
		}
		out[t] = resolver.Discovery{Deps: list}
	}
	return out, nil
}

func (s *Session) recordedList(ctx context.Context, depsTarget string) ([]string, error) {
	entry, ok, err := s.engine.results.Get(ctx, depsTarget)
	if err != nil {
		if errors.Is(err, resultstore.ErrRegistryCorrupt) {
			ctxlog.FromContext(ctx).Warn("Ignoring unreadable discovery result.", "target", depsTarget, "error", err)
			return nil, nil
		}
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return slices.Clone(entry.Discovered), nil
}

// Execute implements executor.Handler. The first graph to reach a target
// builds it; every other graph waits for that outcome.
func (s *Session) Execute(ctx context.Context, n *dag.Node) error {
	owner, done := s.memo.Claim(ctx, n.Name)
	if !owner {
		ctxlog.FromContext(ctx).Debug("Waiting for target claimed by another graph.",
			"target", n.Name, "status", s.memo.GetStatus(ctx, n.Name))
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		out, _ := s.memo.GetOutcome(ctx, n.Name)
		if out.Status == nodestore.StatusSkipped {
			return &executor.SkippedError{Target: n.Name, Upstream: n.Name}
		}
		return out.Err
	}

	_ = s.memo.SetStatus(ctx, n.Name, nodestore.StatusRunning)
	out := s.build(ctx, n)
	out.Kind = n.Kind
	if err := s.memo.Finish(ctx, n.Name, out); err != nil {
		return err
	}
	return out.Err
}

func failed(err error) nodestore.Outcome {
	return nodestore.Outcome{Status: nodestore.StatusFailed, Err: err}
}

func (s *Session) build(ctx context.Context, n *dag.Node) nodestore.Outcome {
	e := s.engine
	ctx, logger := ctxlog.With(ctx, "target", n.Name)
	if n.Err != nil {
		logger.Error("Target failed.", "error", n.Err)
		return failed(n.Err)
	}

	deps, err := s.depStates(ctx, n)
	if err != nil {
		return failed(err)
	}

	switch n.Kind {
	case rules.Source:
		fp, err := e.checker.Fingerprint(n, nil, nil)
		if err != nil {
			return failed(fmt.Errorf("reading source %q: %w", n.Name, err))
		}
		return nodestore.Outcome{Status: nodestore.StatusCompleted, Fingerprint: fp, Reason: "source"}
	case rules.Group, rules.Alias:
		d := e.checker.Decide(n, deps, nil)
		fp, _ := e.checker.Fingerprint(n, deps, nil)
		return nodestore.Outcome{Status: nodestore.StatusCompleted, Rebuilt: d.Stale, Fingerprint: fp, Reason: d.Reason}
	}

	// The key stays locked from the staleness decision until the new entry
	// is recorded, so readers never see a half-finished build.
	var (
		out   nodestore.Outcome
		start time.Time
	)
	_, err = e.results.Update(ctx, n.Name, func(entry *resultstore.Entry) (*resultstore.Entry, error) {
		d := e.checker.Decide(n, deps, entry)
		if !d.Stale {
			fp, err := e.checker.Fingerprint(n, deps, entry)
			if err != nil {
				return nil, fmt.Errorf("fingerprinting %q: %w", n.Name, err)
			}
			logger.Debug("Target is up to date.")
			out = nodestore.Outcome{Status: nodestore.StatusCompleted, Fingerprint: fp, Reason: d.Reason}
			return nil, nil
		}

		if e.opts.DryRun {
			logger.Info("Would rebuild target.", "reason", d.Reason)
			out = nodestore.Outcome{Status: nodestore.StatusCompleted, Rebuilt: true, Reason: d.Reason}
			return nil, nil
		}

		logger.Info("▶️ Building target", "reason", d.Reason)
		start = time.Now()
		next, err := s.runRecipe(ctx, n, deps)
		if err != nil {
			logger.Error("Target failed.", "error", err)
			return nil, err
		}
		out = nodestore.Outcome{Status: nodestore.StatusCompleted, Rebuilt: true, Fingerprint: next.Fingerprint, Reason: d.Reason}
		return next, nil
	})
	switch {
	case err != nil && out.Rebuilt:
		return failed(fmt.Errorf("recording result of %q: %w", n.Name, err))
	case err != nil:
		return failed(err)
	}
	if !start.IsZero() {
		logger.Info("✅ Built target", "duration", time.Since(start).Round(time.Millisecond))
	}
	return out
}

func (s *Session) depStates(ctx context.Context, n *dag.Node) ([]staleness.Dep, error) {
	deps := make([]staleness.Dep, 0, len(n.Deps))
	for _, name := range n.Deps {
		out, ok := s.memo.GetOutcome(ctx, name)
		if !ok || out.Status != nodestore.StatusCompleted {
			return nil, fmt.Errorf("dependency %q of %q has not completed", name, n.Name)
		}
		deps = append(deps, staleness.Dep{Name: name, Kind: out.Kind, Rebuilt: out.Rebuilt, Fingerprint: out.Fingerprint})
	}
	return deps, nil
}

func (s *Session) runRecipe(ctx context.Context, n *dag.Node, deps []staleness.Dep) (*resultstore.Entry, error) {
	e := s.engine
	builtAt := time.Now()
	next := &resultstore.Entry{
		Target:          n.Name,
		DepFingerprints: staleness.Fingerprints(deps),
		BuiltAt:         builtAt,
	}
	rctx := withActive(ctx, n.Name)

	if base := n.Rule.Discovers(); base != nil {
		list, err := s.scan(rctx, n, base)
		if err != nil {
			return nil, err
		}
		next.Discovered = list
		// The next invocation resolves this node against list, so that is
		// the dependency set to compare with.
		next.DepFingerprints = s.currentFingerprints(ctx, list)
	} else if err := n.Rule.Recipe(rctx, newJob(s, n, n.Match, n.Name, n.Deps)); err != nil {
		return nil, err
	}

	if n.Kind == rules.File {
		fp, err := e.ws.Fingerprint(n.Name)
		if err != nil {
			return nil, fmt.Errorf("recipe did not produce %q: %w", n.Name, err)
		}
		next.Fingerprint = fp
	} else {
		next.Fingerprint = staleness.BuildStamp(builtAt)
	}
	return next, nil
}

// scan runs the discovery recipe of a deps_of: node: refresh targets are
// updated first, then the rule's scan lists the dependencies of the base target.
func (s *Session) scan(ctx context.Context, n *dag.Node, base *rules.Rule) ([]string, error) {
	target := n.Match.Name
	static, err := rules.Expand(base.Deps, n.Match)
	if err != nil {
		return nil, fmt.Errorf("expanding dependencies of %q: %w", target, err)
	}
	job := newJob(s, n, n.Match, target, static)

	for _, r := range n.Rule.Refresh {
		if _, err := job.Update(ctx, r); err != nil {
			return nil, fmt.Errorf("refreshing %q: %w", r, err)
		}
	}
	list, err := n.Rule.Scan(ctx, job)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(list))
	for _, dep := range list {
		if dep != "" && dep != target {
			out = append(out, dep)
		}
	}
	slices.Sort(out)
	out = slices.Compact(out)
	ctxlog.FromContext(ctx).Debug("Discovered dependencies.", "of", target, "deps", out)
	return out, nil
}

// currentFingerprints fingerprints names as the next invocation will see
// them: files on disk, everything else by its recorded fingerprint.
func (s *Session) currentFingerprints(ctx context.Context, names []string) map[string]string {
	out := make(map[string]string, len(names))
	for _, name := range names {
		if o, ok := s.memo.GetOutcome(ctx, name); ok && o.Status == nodestore.StatusCompleted && o.Fingerprint != "" {
			out[name] = o.Fingerprint
			continue
		}
		if fp, err := s.engine.ws.Fingerprint(name); err == nil {
			out[name] = fp
			continue
		}
		if entry, ok, err := s.engine.results.Get(ctx, name); err == nil && ok {
			out[name] = entry.Fingerprint
			continue
		}
		out[name] = ""
	}
	return out
}
