package dag

import (
	"fmt"
	"sort"
	"strings"
)

// New creates and returns an initialized, empty Graph.
func New() *Graph {
	return &Graph{
		vertices: make(map[string]*vertex),
	}
}

// AddNode adds n to the graph. If a node with the same name already exists,
// the function does nothing and reports false.
func (g *Graph) AddNode(n *Node) bool {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if _, ok := g.vertices[n.Name]; ok {
		return false
	}

	g.vertices[n.Name] = &vertex{
		node:       n,
		deps:       make(map[string]*vertex),
		dependents: make(map[string]*vertex),
	}
	g.order = append(g.order, n.Name)
	return true
}

// AddEdge creates a directed edge from the `from` node to the `to` node.
// This signifies that `to` has a dependency on `from`. An error is returned
// if either node does not exist or if the edge would create a self-reference.
func (g *Graph) AddEdge(from, to string) error {
	if from == to {
		return fmt.Errorf("self-referential edge not allowed: %s -> %s", from, from)
	}

	g.mutex.Lock()
	defer g.mutex.Unlock()

	fromV, ok := g.vertices[from]
	if !ok {
		return fmt.Errorf("source node not found: %s", from)
	}

	toV, ok := g.vertices[to]
	if !ok {
		return fmt.Errorf("destination node not found: %s", to)
	}

	toV.deps[from] = fromV
	fromV.dependents[to] = toV

	return nil
}

// Node returns the node with the given name.
func (g *Graph) Node(name string) (*Node, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.vertices[name]
	if !ok {
		return nil, false
	}
	return v.node, true
}

// Nodes returns every node in insertion order.
func (g *Graph) Nodes() []*Node {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	out := make([]*Node, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.vertices[name].node)
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.vertices)
}

// Has reports whether name is part of the graph.
func (g *Graph) Has(name string) bool {
	_, ok := g.Node(name)
	return ok
}

// SetRoots records the names the graph was resolved for.
func (g *Graph) SetRoots(roots []string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.roots = append([]string(nil), roots...)
}

// Roots returns the names the graph was resolved for.
func (g *Graph) Roots() []string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return append([]string(nil), g.roots...)
}

// Dependencies returns the sorted names of the nodes the given node depends on.
func (g *Graph) Dependencies(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.vertices[name]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", name)
	}
	return sortedKeys(v.deps), nil
}

// Dependents returns the sorted names of the nodes that depend on the given node.
func (g *Graph) Dependents(name string) ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	v, ok := g.vertices[name]
	if !ok {
		return nil, fmt.Errorf("node not found: %s", name)
	}
	return sortedKeys(v.dependents), nil
}

// DetectCycles checks the graph for any cycles. It returns a non-nil error
// naming the nodes of the first cycle found.
func (g *Graph) DetectCycles() error {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	// Classic depth-first search with three colours: permanent nodes are
	// fully visited, temporary nodes are on the current recursion stack.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(v *vertex) error
	visit = func(v *vertex) error {
		name := v.node.Name
		if permanent[name] {
			return nil
		}
		if temporary[name] {
			start := 0
			for i, s := range stack {
				if s == name {
					start = i
				}
			}
			cycle := append(append([]string(nil), stack[start:]...), name)
			return fmt.Errorf("cycle detected: %s", strings.Join(cycle, " -> "))
		}

		temporary[name] = true
		stack = append(stack, name)

		for _, depName := range sortedKeys(v.dependents) {
			if err := visit(v.dependents[depName]); err != nil {
				return err
			}
		}

		stack = stack[:len(stack)-1]
		delete(temporary, name)
		permanent[name] = true
		return nil
	}

	for _, name := range g.order {
		if err := visit(g.vertices[name]); err != nil {
			return err
		}
	}
	return nil
}

// TopologicalOrder returns the node names with every dependency before its
// dependents. Ties are broken by name so the order is deterministic.
func (g *Graph) TopologicalOrder() ([]string, error) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	pending := make(map[string]int, len(g.vertices))
	var ready []string
	for name, v := range g.vertices {
		pending[name] = len(v.deps)
		if len(v.deps) == 0 {
			ready = append(ready, name)
		}
	}
	sort.Strings(ready)

	out := make([]string, 0, len(g.vertices))
	for len(ready) > 0 {
		name := ready[0]
		ready = ready[1:]
		out = append(out, name)

		var unlocked []string
		for depName := range g.vertices[name].dependents {
			pending[depName]--
			if pending[depName] == 0 {
				unlocked = append(unlocked, depName)
			}
		}
		sort.Strings(unlocked)
		ready = append(ready, unlocked...)
	}
	if len(out) != len(g.vertices) {
		return nil, fmt.Errorf("graph has a cycle among %d nodes", len(g.vertices)-len(out))
	}
	return out, nil
}

func sortedKeys(m map[string]*vertex) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
