package diagram

// Placement defaults in pixels.
const (
	DefaultVerticalOffset = 100
	DefaultColumnGap      = 200
)

// Placer computes initial positions for new nodes.
//
// New nodes start stacked under the most recently inserted node rather than
// at the center of the canvas, so the layout pass that follows moves them
// as little as possible.
type Placer struct {
	VerticalOffset float64 // Distance below the last node for a new node
	ColumnGap      float64 // Horizontal gap used by Column
}

// DefaultPlacer returns a placer with the default offsets.
func DefaultPlacer() Placer {
	return Placer{VerticalOffset: DefaultVerticalOffset, ColumnGap: DefaultColumnGap}
}

// PlaceNew returns the position for a node appended to nodes.
func (p Placer) PlaceNew(nodes []Node) Position {
	last, ok := Last(nodes)
	if !ok {
		return Position{}
	}
	return Position{X: last.Position.X, Y: last.Position.Y + p.VerticalOffset}
}

// Column returns the position that starts a new column: right of every node
// by ColumnGap, at the topmost y in use. It reports false for an empty
// sequence.
func (p Placer) Column(nodes []Node) (Position, bool) {
	if len(nodes) == 0 {
		return Position{}, false
	}
	maxX, minY := nodes[0].Position.X, nodes[0].Position.Y
	for _, n := range nodes[1:] {
		maxX = max(maxX, n.Position.X)
		minY = min(minY, n.Position.Y)
	}
	return Position{X: maxX + p.ColumnGap, Y: minY}, true
}
