package domain

import "fmt"

// Edge represents a directed dependency from one node to another.
// Duplicate edges are permitted and no cycle check is performed.
type Edge struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// NewEdge creates a new edge
func NewEdge(from, to string) Edge {
	return Edge{From: from, To: to}
}

// String renders the edge as "from->to"
func (e Edge) String() string {
	return fmt.Sprintf("%s->%s", e.From, e.To)
}

// CloneEdges copies an edge list
func CloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	return append(make([]Edge, 0, len(edges)), edges...)
}
