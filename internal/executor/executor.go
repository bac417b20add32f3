// Package executor runs a resolved dependency graph with a pool of workers.
//
// Nodes become ready when all of their dependencies have completed. A failed
// node causes its dependents to be skipped; independent parts of the graph
// keep running unless fail-fast is requested, in which case nodes that have
// not started yet are pruned.
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/vk/bootforge/internal/dag"
)

// Handler builds a single node. It is called at most once per node and only
// after every dependency of the node completed successfully.
type Handler interface {
	Execute(ctx context.Context, n *dag.Node) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, n *dag.Node) error

func (f HandlerFunc) Execute(ctx context.Context, n *dag.Node) error { return f(ctx, n) }

// State is the execution state of a node within one Run.
type State int32

const (
	Pending State = iota
	Running
	Done
	Failed
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ErrSkipped matches every *SkippedError with errors.Is.
var ErrSkipped = errors.New("skipped")

// SkippedError marks a node that was not built because Upstream failed.
// Handlers return it for targets whose failure was already reported.
type SkippedError struct {
	Target   string
	Upstream string
}

func (e *SkippedError) Error() string {
	return fmt.Sprintf("skipped %q due to upstream failure of %q", e.Target, e.Upstream)
}

func (e *SkippedError) Is(target error) bool { return target == ErrSkipped }

// Option configures an Executor.
type Option func(*Executor)

// WithWorkers sets the number of concurrent workers. Values below 1 mean 1.
func WithWorkers(n int) Option {
	return func(e *Executor) {
		if n < 1 {
			n = 1
		}
		e.numWorkers = n
	}
}

// WithFailFast stops starting new nodes after the first failure.
func WithFailFast(on bool) Option {
	return func(e *Executor) { e.failFast = on }
}

// Executor runs one graph once.
type Executor struct {
	graph      *dag.Graph
	handler    Handler
	numWorkers int
	failFast   bool

	wg    sync.WaitGroup
	nodes map[string]*nodeState
	order []*nodeState

	mu        sync.Mutex
	completed []string
	firstFail string
}

type nodeState struct {
	node       *dag.Node
	depCount   atomic.Int32
	state      atomic.Int32
	err        error
	finishOnce sync.Once
	dependents []*nodeState
}

// New prepares an executor for g.
func New(g *dag.Graph, h Handler, opts ...Option) *Executor {
	e := &Executor{graph: g, handler: h, numWorkers: 1, nodes: make(map[string]*nodeState)}
	for _, opt := range opts {
		opt(e)
	}
	for _, n := range g.Nodes() {
		ns := &nodeState{node: n}
		e.nodes[n.Name] = ns
		e.order = append(e.order, ns)
	}
	for _, ns := range e.order {
		deps, _ := g.Dependencies(ns.node.Name)
		ns.depCount.Store(int32(len(deps)))
		dependents, _ := g.Dependents(ns.node.Name)
		for _, d := range dependents {
			ns.dependents = append(ns.dependents, e.nodes[d])
		}
	}
	return e
}
