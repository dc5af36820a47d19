package domain

// NodeKind distinguishes macro risk factors from portfolio holdings
type NodeKind string

const (
	NodeKindRisk  NodeKind = "risk"
	NodeKindAsset NodeKind = "asset"
)

// Node represents a vertex in the risk dependency network
type Node struct {
	ID           string   `json:"id" yaml:"id"`
	Label        string   `json:"label" yaml:"label"`
	Kind         NodeKind `json:"type" yaml:"type"`
	States       []string `json:"states" yaml:"states"`
	CurrentState string   `json:"currentState" yaml:"current_state"`
	Position     Position `json:"position" yaml:"position"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`

	// Probability of a significant drop, set on asset nodes after analysis
	Impact *float64 `json:"impact,omitempty" yaml:"impact,omitempty"`
}

// NewRiskNode creates a risk factor node starting in the given state
func NewRiskNode(id, label string, states []string, current string, pos Position, deps ...string) Node {
	return Node{
		ID:           id,
		Label:        label,
		Kind:         NodeKindRisk,
		States:       append([]string(nil), states...),
		CurrentState: current,
		Position:     pos,
		Dependencies: append([]string{}, deps...),
	}
}

// NewAssetNode creates a holding node. Asset nodes carry no states.
func NewAssetNode(ticker string, pos Position, deps []string) Node {
	return Node{
		ID:           ticker,
		Label:        ticker,
		Kind:         NodeKindAsset,
		States:       []string{},
		CurrentState: "",
		Position:     pos,
		Dependencies: append([]string{}, deps...),
	}
}

// IsRisk reports whether the node is a risk factor
func (n Node) IsRisk() bool {
	return n.Kind == NodeKindRisk
}

// IsAsset reports whether the node is a portfolio holding
func (n Node) IsAsset() bool {
	return n.Kind == NodeKindAsset
}

// HasState reports whether state is one of the node's declared states
func (n Node) HasState(state string) bool {
	for _, s := range n.States {
		if s == state {
			return true
		}
	}
	return false
}

// ImpactValue returns the impact probability, or 0 when none is set
func (n Node) ImpactValue() float64 {
	if n.Impact == nil {
		return 0
	}
	return *n.Impact
}

// WithImpact returns a copy of the node carrying the given impact
func (n Node) WithImpact(p float64) Node {
	out := n.Clone()
	out.Impact = &p
	return out
}

// Clone returns a deep copy of the node
func (n Node) Clone() Node {
	out := n
	out.States = append([]string(nil), n.States...)
	out.Dependencies = append([]string(nil), n.Dependencies...)
	if n.States != nil && out.States == nil {
		out.States = []string{}
	}
	if n.Dependencies != nil && out.Dependencies == nil {
		out.Dependencies = []string{}
	}
	if n.Impact != nil {
		v := *n.Impact
		out.Impact = &v
	}
	return out
}

// CloneNodes deep-copies a node sequence, preserving order
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// FindNode returns the index of the node with the given id, or -1
func FindNode(nodes []Node, id string) int {
	for i := range nodes {
		if nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// NodeStates returns the current state of every risk node keyed by id
func NodeStates(nodes []Node) map[string]string {
	states := make(map[string]string)
	for _, n := range nodes {
		if n.IsRisk() {
			states[n.ID] = n.CurrentState
		}
	}
	return states
}
