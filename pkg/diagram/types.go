package diagram

import "slices"

// Position is a top-left anchored screen coordinate in pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is a labelled box in the diagram.
type Node struct {
	ID       string   `json:"id"`
	Label    string   `json:"label"`
	Position Position `json:"position"`
	Color    string   `json:"color,omitempty"` // Resolved color, empty when unset
}

// Edge is a directed relation from Source to Target.
// Its ID is derived with [EdgeID] and is unique per ordered pair.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

// EdgeID derives the identifier of the edge from source to target.
func EdgeID(source, target string) string {
	return source + "-" + target
}

// NewEdge builds an edge with its derived identifier.
func NewEdge(source, target, label string) Edge {
	return Edge{ID: EdgeID(source, target), Source: source, Target: target, Label: label}
}

// Touches reports whether the edge has id as source or target.
func (e Edge) Touches(id string) bool {
	return e.Source == id || e.Target == id
}

// Graph is an ordered snapshot of a diagram.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	if i := IndexOf(g.Nodes, id); i >= 0 {
		return g.Nodes[i], true
	}
	return Node{}, false
}

// HasNode reports whether a node with the given id exists.
func (g Graph) HasNode(id string) bool {
	return IndexOf(g.Nodes, id) >= 0
}

// HasEdge reports whether an edge with the given id exists.
func (g Graph) HasEdge(id string) bool {
	return slices.ContainsFunc(g.Edges, func(e Edge) bool { return e.ID == id })
}

// Empty reports whether the graph has neither nodes nor edges.
func (g Graph) Empty() bool {
	return len(g.Nodes) == 0 && len(g.Edges) == 0
}

// Clone returns a deep copy of the graph.
func (g Graph) Clone() Graph {
	return Graph{Nodes: slices.Clone(g.Nodes), Edges: slices.Clone(g.Edges)}
}

// IndexOf returns the index of the node with the given id, or -1.
func IndexOf(nodes []Node, id string) int {
	return slices.IndexFunc(nodes, func(n Node) bool { return n.ID == id })
}

// Last returns the most recently inserted node.
func Last(nodes []Node) (Node, bool) {
	if len(nodes) == 0 {
		return Node{}, false
	}
	return nodes[len(nodes)-1], true
}
