package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/vk/bootforge/internal/ctxlog"
)

// Report is the per-node result of a Run.
type Report struct {
	States map[string]State
	Errors map[string]error
	// Completed lists successfully finished nodes in completion order.
	Completed []string
}

// Failed returns the sorted names of nodes whose handler failed.
func (r *Report) Failed() []string { return r.inState(Failed) }

// Skipped returns the sorted names of nodes that never ran.
func (r *Report) Skipped() []string { return r.inState(Skipped) }

func (r *Report) inState(s State) []string {
	var out []string
	for name, st := range r.States {
		if st == s {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Run executes the entire graph concurrently. It returns an error naming the
// failed nodes if any handler failed. Run respects cancellation of ctx:
// nodes not yet started are skipped and ctx's error is returned. A cyclic
// graph is rejected before any node runs, since its nodes would never
// become ready.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	if err := e.graph.DetectCycles(); err != nil {
		return nil, err
	}

	readyChan := make(chan *nodeState, len(e.order))
	stopCtx, stop := context.WithCancel(ctx)
	defer stop()

	rootNodeCount := 0
	for _, ns := range e.order {
		if ns.depCount.Load() == 0 {
			readyChan <- ns
			rootNodeCount++
		}
	}
	logger.Debug("Found all leaf nodes.", "count", rootNodeCount, "nodes", len(e.order))

	e.wg.Add(len(e.order))
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(ctx, stopCtx, readyChan, stop, i)
	}
	e.wg.Wait()
	close(readyChan)

	report := &Report{
		States:    make(map[string]State, len(e.order)),
		Errors:    make(map[string]error),
		Completed: e.completed,
	}
	var failed []string
	var causes []error
	for _, ns := range e.order {
		st := State(ns.state.Load())
		report.States[ns.node.Name] = st
		if ns.err != nil {
			report.Errors[ns.node.Name] = ns.err
		}
		if st == Failed {
			failed = append(failed, ns.node.Name)
			causes = append(causes, fmt.Errorf("%s: %w", ns.node.Name, ns.err))
		}
	}

	if len(failed) > 0 {
		return report, fmt.Errorf("build failed for %s: %w", strings.Join(failed, ", "), errors.Join(causes...))
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	if skipped := report.Skipped(); len(skipped) > 0 {
		return report, fmt.Errorf("build incomplete for %s: %w", strings.Join(skipped, ", "), ErrSkipped)
	}
	return report, nil
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx, stopCtx context.Context, readyChan chan *nodeState, stop context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)

	for ns := range readyChan {
		name := ns.node.Name
		workerLogger := logger.With("workerID", workerID, "target", name)

		if err := ctx.Err(); err != nil {
			e.skip(ctx, ns, err)
			continue
		}
		if stopCtx.Err() != nil {
			e.skip(ctx, ns, &SkippedError{Target: name, Upstream: e.firstFailure()})
			continue
		}

		ns.state.Store(int32(Running))
		err := e.handler.Execute(ctx, ns.node)

		if errors.Is(err, ErrSkipped) {
			e.skip(ctx, ns, err)
			continue
		}
		if err != nil {
			workerLogger.Debug("Node execution failed.", "error", err)
			e.finish(ns, Failed, err)
			e.recordFailure(name)
			if e.failFast {
				stop()
			}
			e.skipDependents(ctx, ns)
			continue
		}

		e.finish(ns, Done, nil)
		for _, dependent := range ns.dependents {
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependent", dependent.node.Name)
				readyChan <- dependent
			}
		}
	}
}

// finish records the final state of a node exactly once.
func (e *Executor) finish(ns *nodeState, st State, err error) bool {
	finished := false
	ns.finishOnce.Do(func() {
		ns.err = err
		ns.state.Store(int32(st))
		if st == Done {
			e.mu.Lock()
			e.completed = append(e.completed, ns.node.Name)
			e.mu.Unlock()
		}
		e.wg.Done()
		finished = true
	})
	return finished
}

func (e *Executor) skip(ctx context.Context, ns *nodeState, err error) {
	if e.finish(ns, Skipped, err) {
		ctxlog.FromContext(ctx).Debug("Skipping node.", "target", ns.node.Name, "reason", err)
		e.skipDependents(ctx, ns)
	}
}

// skipDependents recursively marks all downstream nodes as skipped.
func (e *Executor) skipDependents(ctx context.Context, ns *nodeState) {
	for _, dependent := range ns.dependents {
		e.skip(ctx, dependent, &SkippedError{Target: dependent.node.Name, Upstream: ns.node.Name})
	}
}

func (e *Executor) recordFailure(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.firstFail == "" {
		e.firstFail = name
	}
}

func (e *Executor) firstFailure() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.firstFail
}
