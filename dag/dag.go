// Package dag builds the in-memory pipeline graph from the local area and
// validates it: topological ordering, cycle detection, and connectivity
// (spec §4.7). It replaces the original implementation's petgraph+bimap
// combination with a pair of plain slices/maps, since no graph or bimap
// library exists anywhere in the example pack.
package dag

import (
	"context"
	"fmt"

	"holium/localstore"
)

// ErrCycle is returned when the pipeline graph contains a cycle; Node names
// one vertex that is part of it (spec §4.7, §7).
type ErrCycle struct{ Node string }

func (e ErrCycle) Error() string {
	return fmt.Sprintf("pipeline graph contains a cycle involving %q", e.Node)
}

// ErrDisconnected is returned when the pipeline graph is not a single weakly
// connected component.
var ErrDisconnected = fmt.Errorf("pipeline graph is not a single connected component")

// ErrUnknownEndpoint is returned when a connection references a typed name
// with no corresponding vertex.
type ErrUnknownEndpoint struct{ TypedName string }

func (e ErrUnknownEndpoint) Error() string {
	return fmt.Sprintf("connection references unknown vertex %q", e.TypedName)
}

// Edge is a directed connection between two vertices, carried alongside its
// store id for error attribution and for the executor's selector lookup.
type Edge struct {
	Tail         int
	Head         int
	ConnectionID string
}

// Graph is the in-memory pipeline DAG: a typed-name <-> node-index bijection
// plus an adjacency list built from the local area's vertices and
// connections.
type Graph struct {
	names   []string       // index -> typed name
	indices map[string]int // typed name -> index
	edges   []Edge
	out     map[int][]int // index -> indices of direct successors
	in      map[int][]Edge
}

// TypedName returns the typed name of the vertex at index i.
func (g *Graph) TypedName(i int) string { return g.names[i] }

// NumVertices returns the number of vertices in the graph.
func (g *Graph) NumVertices() int { return len(g.names) }

// IncomingEdges returns every edge whose head is the vertex at index i, in
// the order connections were added to the graph.
func (g *Graph) IncomingEdges(i int) []Edge { return g.in[i] }

// BuildFromLocalStore constructs a Graph from every vertex and connection
// currently recorded in the local area.
func BuildFromLocalStore(ctx context.Context, ls *localstore.Store) (*Graph, error) {
	g := &Graph{
		indices: make(map[string]int),
		out:     make(map[int][]int),
		in:      make(map[int][]Edge),
	}

	addVertices := func(t localstore.NodeType, names []string) {
		for _, name := range names {
			typedName := localstore.BuildTypedName(t, name)
			idx := len(g.names)
			g.names = append(g.names, typedName)
			g.indices[typedName] = idx
		}
	}

	sourceNames, err := ls.ListSourceNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}
	shaperNames, err := ls.ListShaperNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}
	transformationNames, err := ls.ListTransformationNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}
	addVertices(localstore.NodeTypeSource, sourceNames)
	addVertices(localstore.NodeTypeShaper, shaperNames)
	addVertices(localstore.NodeTypeTransformation, transformationNames)

	connectionIDs, err := ls.ListConnectionIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("build pipeline graph: %w", err)
	}
	for _, id := range connectionIDs {
		tailTypedName, headTypedName, err := localstore.ParseConnectionID(id)
		if err != nil {
			return nil, fmt.Errorf("build pipeline graph: %w", err)
		}
		tailIdx, ok := g.indices[tailTypedName]
		if !ok {
			return nil, ErrUnknownEndpoint{TypedName: tailTypedName}
		}
		headIdx, ok := g.indices[headTypedName]
		if !ok {
			return nil, ErrUnknownEndpoint{TypedName: headTypedName}
		}
		edge := Edge{Tail: tailIdx, Head: headIdx, ConnectionID: id}
		g.edges = append(g.edges, edge)
		g.out[tailIdx] = append(g.out[tailIdx], headIdx)
		g.in[headIdx] = append(g.in[headIdx], edge)
	}

	return g, nil
}

// nodeState tracks a vertex's position during depth-first cycle detection.
type nodeState int

const (
	unvisited nodeState = iota
	visiting
	visited
)

// Validate checks the graph is acyclic and weakly connected, and returns a
// topological vertex order on success (spec §4.7).
func (g *Graph) Validate() ([]int, error) {
	order, err := g.toposort()
	if err != nil {
		return nil, err
	}
	if g.NumVertices() > 0 && g.weaklyConnectedComponents() != 1 {
		return nil, ErrDisconnected
	}
	return order, nil
}

func (g *Graph) toposort() ([]int, error) {
	state := make([]nodeState, len(g.names))
	order := make([]int, 0, len(g.names))

	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case visited:
			return nil
		case visiting:
			return ErrCycle{Node: g.names[i]}
		}
		state[i] = visiting
		for _, next := range g.out[i] {
			if err := visit(next); err != nil {
				return err
			}
		}
		state[i] = visited
		order = append(order, i)
		return nil
	}

	for i := range g.names {
		if state[i] == unvisited {
			if err := visit(i); err != nil {
				return nil, err
			}
		}
	}

	// visit() appends in post-order (dependencies after dependents); reverse
	// to get a schedule where every vertex follows all of its predecessors.
	for l, r := 0, len(order)-1; l < r; l, r = l+1, r-1 {
		order[l], order[r] = order[r], order[l]
	}
	return order, nil
}

func (g *Graph) weaklyConnectedComponents() int {
	parent := make([]int, len(g.names))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, e := range g.edges {
		union(e.Tail, e.Head)
	}
	roots := make(map[int]struct{})
	for i := range g.names {
		roots[find(i)] = struct{}{}
	}
	return len(roots)
}
