package graph

import "fmt"

// SceneGraph is the top-level immutable data structure produced by Lisp
// evaluation. It is never mutated in place; each evaluation produces a new
// graph.
type SceneGraph struct {
	Nodes     map[NodeID]*Node  `json:"nodes"`
	Roots     []NodeID          `json:"roots"`
	NameIndex map[string]NodeID `json:"name_index"`
}

// New creates an empty SceneGraph.
func New() *SceneGraph {
	return &SceneGraph{
		Nodes:     make(map[NodeID]*Node),
		NameIndex: make(map[string]NodeID),
	}
}

// AddNode adds a node to the graph. It does not check for duplicates.
func (g *SceneGraph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
	if n.Name != "" {
		g.NameIndex[n.Name] = n.ID
	}
}

// AddRoot registers a node ID as a root of the graph.
func (g *SceneGraph) AddRoot(id NodeID) {
	g.Roots = append(g.Roots, id)
}

// Lookup returns the node with the given user-assigned name, or nil.
func (g *SceneGraph) Lookup(name string) *Node {
	id, ok := g.NameIndex[name]
	if !ok {
		return nil
	}
	return g.Nodes[id]
}

// MustLookup returns the node with the given name, or panics.
func (g *SceneGraph) MustLookup(name string) *Node {
	n := g.Lookup(name)
	if n == nil {
		panic(fmt.Sprintf("graph: no node named %q", name))
	}
	return n
}

// Get returns the node with the given ID, or nil.
func (g *SceneGraph) Get(id NodeID) *Node {
	return g.Nodes[id]
}

// Primitives returns all primitive nodes in the graph.
func (g *SceneGraph) Primitives() []*Node {
	return g.ofKind(NodePrimitive)
}

// Booleans returns all boolean nodes in the graph.
func (g *SceneGraph) Booleans() []*Node {
	return g.ofKind(NodeBoolean)
}

func (g *SceneGraph) ofKind(k NodeKind) []*Node {
	var out []*Node
	for _, n := range g.Nodes {
		if n.Kind == k {
			out = append(out, n)
		}
	}
	return out
}

// Children returns the child nodes of the given node.
func (g *SceneGraph) Children(n *Node) []*Node {
	children := make([]*Node, 0, len(n.Children))
	for _, cid := range n.Children {
		if c := g.Nodes[cid]; c != nil {
			children = append(children, c)
		}
	}
	return children
}

// NodeCount returns the total number of nodes.
func (g *SceneGraph) NodeCount() int {
	return len(g.Nodes)
}

// Depth returns the length of the longest path from n to a leaf, counting
// n itself. Cycles are not detected here; run Validate first.
func (g *SceneGraph) Depth(n *Node) int {
	d := 0
	for _, c := range g.Children(n) {
		d = max(d, g.Depth(c))
	}
	return d + 1
}
