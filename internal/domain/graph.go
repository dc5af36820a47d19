package domain

// Graph is the complete dependency network: risk nodes first, then assets
type Graph struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// InitialGraph returns the risk network with no assets loaded
func InitialGraph() Graph {
	return Graph{
		Nodes: RiskNodes(),
		Edges: BaseEdges(),
	}
}

// BuildGraph turns a portfolio into the fixed risk nodes followed by one
// positioned asset node per holding, plus the base edges and one edge per
// (asset, dependency) pair. The result depends only on the input.
func BuildGraph(assets []Asset) Graph {
	nodes := RiskNodes()
	edges := BaseEdges()

	for i, asset := range assets {
		node := NewAssetNode(asset.Ticker, AssetPosition(i, len(assets)), InferDependencies(asset.Sector))
		nodes = append(nodes, node)
	}

	for _, node := range nodes[len(nodes)-len(assets):] {
		for _, dep := range node.Dependencies {
			edges = append(edges, NewEdge(dep, node.ID))
		}
	}

	return Graph{Nodes: nodes, Edges: edges}
}

// InferDependencies maps a sector to the risk factors an asset depends on.
// The first factor is sentiment or spending driven, the second is oil or
// growth driven; duplicates are removed preserving order.
func InferDependencies(sector string) []string {
	first := RiskConsumerSpending
	if sector == SectorTechnology || sector == SectorConsumerDiscretionary {
		first = RiskTechSentiment
	}

	second := RiskGDPGrowth
	if sector == SectorEnergy {
		second = RiskOilPrice
	}

	return dedupe([]string{first, second})
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// AssetNodes returns the asset nodes of the graph in order
func (g Graph) AssetNodes() []Node {
	var out []Node
	for _, n := range g.Nodes {
		if n.IsAsset() {
			out = append(out, n)
		}
	}
	return out
}

// Node looks up a node by id
func (g Graph) Node(id string) (Node, bool) {
	if i := FindNode(g.Nodes, id); i >= 0 {
		return g.Nodes[i], true
	}
	return Node{}, false
}

// Clone returns a deep copy of the graph
func (g Graph) Clone() Graph {
	return Graph{
		Nodes: CloneNodes(g.Nodes),
		Edges: CloneEdges(g.Edges),
	}
}
