package dag

import (
	"sync"

	"github.com/vk/bootforge/internal/rules"
)

// Node is a resolved target: its rule, the match that selected the rule and
// its dependency names in declaration order.
type Node struct {
	Name  string
	Kind  rules.Kind
	Rule  *rules.Rule
	Match *rules.Match
	Deps  []string
	// Vanished lists previously discovered dependencies of a deps_of: node
	// that no longer resolve. Their disappearance makes the node stale.
	Vanished []string
	// Err is a resolution failure confined to this node, such as a failed
	// dependency scan. Building the node reports it.
	Err error
}

// Graph is a collection of nodes and their dependencies, representing a DAG.
// All operations on the graph are concurrency-safe.
type Graph struct {
	// mutex protects the vertices map during concurrent access.
	mutex sync.RWMutex
	// vertices stores all nodes in the graph, keyed by target name.
	vertices map[string]*vertex
	// order is the insertion order, which the resolver makes post-order.
	order []string
	roots []string
}

// vertex is un-exported to enforce interaction with the graph via the public
// API (using target names), not by direct struct manipulation.
type vertex struct {
	node *Node
	// deps holds the set of vertices that this vertex depends on (predecessors).
	deps map[string]*vertex
	// dependents holds the set of vertices that depend on this vertex (successors).
	dependents map[string]*vertex
}
