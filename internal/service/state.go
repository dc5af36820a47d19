package service

import (
	"encoding/json"

	"riskgraph/internal/domain"
)

// State is the complete dashboard state. It is only replaced through the
// reducers below and is handed out as deep copies.
type State struct {
	Assets         []domain.Asset         `json:"assets"`
	Nodes          []domain.Node          `json:"nodes"`
	Edges          []domain.Edge          `json:"edges"`
	Result         *domain.AnalysisResult `json:"analysisResult"`
	Loading        bool                   `json:"isLoading"`
	LoadingMessage string                 `json:"loadingMessage"`
	SelectedAsset  string                 `json:"selectedAsset,omitempty"`
	LastError      string                 `json:"error,omitempty"`
	Revision       uint64                 `json:"revision"`
}

// stateJSON has State's fields without its methods
type stateJSON State

// MarshalJSON adds the derived flags to the serialized state
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		stateJSON
		PortfolioLoaded bool `json:"portfolioLoaded"`
		AnalysisDone    bool `json:"analysisDone"`
	}{stateJSON(s), s.PortfolioLoaded(), s.AnalysisDone()})
}

// PortfolioLoaded reports whether any holdings are loaded
func (s State) PortfolioLoaded() bool {
	return len(s.Assets) > 0
}

// AnalysisDone reports whether a risk analysis result is available for
// hedging. Diagnoses do not count.
func (s State) AnalysisDone() bool {
	return s.Result != nil && !s.Result.IsDiagnosis()
}

// Graph returns the node and edge view of the state
func (s State) Graph() domain.Graph {
	return domain.Graph{Nodes: domain.CloneNodes(s.Nodes), Edges: domain.CloneEdges(s.Edges)}
}

// Clone returns a deep copy
func (s State) Clone() State {
	out := s
	out.Assets = domain.CloneAssets(s.Assets)
	out.Nodes = domain.CloneNodes(s.Nodes)
	out.Edges = domain.CloneEdges(s.Edges)
	out.Result = s.Result.Clone()
	return out
}

// initialState is the risk network with no holdings
func initialState() State {
	g := domain.InitialGraph()
	return State{
		Assets: []domain.Asset{},
		Nodes:  g.Nodes,
		Edges:  g.Edges,
	}
}

// withPortfolio rebuilds the graph for a new portfolio. Risk factors reset
// to their defaults and any previous analysis is dropped.
func withPortfolio(s State, assets []domain.Asset) State {
	g := domain.BuildGraph(assets)
	s.Assets = domain.CloneAssets(assets)
	s.Nodes = g.Nodes
	s.Edges = g.Edges
	s.Result = nil
	s.SelectedAsset = ""
	s.LastError = ""
	s.Revision++
	return s
}

func withNodes(s State, nodes []domain.Node) State {
	s.Nodes = nodes
	s.Revision++
	return s
}

// withSelection selects an asset node. Any other id clears the selection.
func withSelection(s State, id string) State {
	s.SelectedAsset = ""
	if i := domain.FindNode(s.Nodes, id); i >= 0 && s.Nodes[i].IsAsset() {
		s.SelectedAsset = id
	}
	s.Revision++
	return s
}

// beginAnalysis enters the loading state, clearing the previous result and
// the selection
func beginAnalysis(s State, message string) State {
	s.Loading = true
	s.LoadingMessage = message
	s.Result = nil
	s.SelectedAsset = ""
	s.LastError = ""
	s.Revision++
	return s
}

// completeAnalysis stores the result and merges impacts into asset nodes
func completeAnalysis(s State, result *domain.AnalysisResult) State {
	s.Loading = false
	s.LoadingMessage = ""
	s.Result = result
	s.Nodes = domain.MergeImpacts(s.Nodes, result)
	s.Revision++
	return s
}

// failAnalysis leaves the loading state without touching nodes
func failAnalysis(s State, err error) State {
	s.Loading = false
	s.LoadingMessage = ""
	s.LastError = err.Error()
	s.Revision++
	return s
}

// beginHedging enters the loading state, keeping the current result
func beginHedging(s State, message string) State {
	s.Loading = true
	s.LoadingMessage = message
	s.LastError = ""
	s.Revision++
	return s
}

// completeHedging attaches suggestions to the current result
func completeHedging(s State, suggestions string) State {
	s.Loading = false
	s.LoadingMessage = ""
	s.Result = s.Result.WithHedges(suggestions)
	s.Revision++
	return s
}
