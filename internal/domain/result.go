package domain

import "time"

// AssetImpact is the model's drop probability for a single holding
type AssetImpact struct {
	Ticker            string  `json:"ticker"`
	ProbabilityOfDrop float64 `json:"probabilityOfDrop"`
}

// CausalFactor is a candidate explanation for an observed drop
type CausalFactor struct {
	Factor      string  `json:"factor"`
	Probability float64 `json:"probability"`
}

// AnalysisResult is the outcome of a risk analysis or drop diagnosis
type AnalysisResult struct {
	AssetImpacts       []AssetImpact  `json:"assetImpacts"`
	PortfolioDrawdown  float64        `json:"portfolioDrawdown"`
	VulnerableAssets   []string       `json:"vulnerableAssets"`
	Summary            string         `json:"summary"`
	HedgingSuggestions string         `json:"hedgingSuggestions,omitempty"`
	CausalFactors      []CausalFactor `json:"causalFactors,omitempty"`
}

// IsDiagnosis reports whether the result explains an observed drop
func (r *AnalysisResult) IsDiagnosis() bool {
	return r != nil && r.CausalFactors != nil
}

// Impact returns the drop probability for ticker
func (r *AnalysisResult) Impact(ticker string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	for _, a := range r.AssetImpacts {
		if a.Ticker == ticker {
			return a.ProbabilityOfDrop, true
		}
	}
	return 0, false
}

// Clone returns a deep copy of the result
func (r *AnalysisResult) Clone() *AnalysisResult {
	if r == nil {
		return nil
	}
	out := *r
	if r.AssetImpacts != nil {
		out.AssetImpacts = append([]AssetImpact{}, r.AssetImpacts...)
	}
	if r.VulnerableAssets != nil {
		out.VulnerableAssets = append([]string{}, r.VulnerableAssets...)
	}
	if r.CausalFactors != nil {
		out.CausalFactors = append([]CausalFactor{}, r.CausalFactors...)
	}
	return &out
}

// WithHedges returns a copy of the result carrying the hedging text.
// All other fields are preserved.
func (r *AnalysisResult) WithHedges(suggestions string) *AnalysisResult {
	out := r.Clone()
	if out == nil {
		return nil
	}
	out.HedgingSuggestions = suggestions
	return out
}

// MergeImpacts copies nodes and overwrites the impact of every asset node
// with its matched probability, or 0 when the result has no entry for it.
// Risk nodes pass through unchanged. A result without asset impacts
// leaves the nodes untouched.
func MergeImpacts(nodes []Node, result *AnalysisResult) []Node {
	out := CloneNodes(nodes)
	if result == nil || len(result.AssetImpacts) == 0 {
		return out
	}
	for i := range out {
		if !out[i].IsAsset() {
			continue
		}
		p, _ := result.Impact(out[i].ID)
		out[i].Impact = &p
	}
	return out
}

// Correlation between the selected asset and another holding
type Correlation struct {
	Ticker      string  `json:"ticker"`
	Correlation float64 `json:"correlation"`
}

// AssetDetails is a per-holding deep dive
type AssetDetails struct {
	HistoricalVolatility float64       `json:"historicalVolatility"`
	CorrelationMatrix    []Correlation `json:"correlationMatrix"`
	Insight              string        `json:"insight"`
}

// AnalysisKind identifies which external call produced a run
type AnalysisKind string

const (
	AnalysisKindRisk     AnalysisKind = "risk"
	AnalysisKindDiagnose AnalysisKind = "diagnose"
	AnalysisKindHedge    AnalysisKind = "hedge"
)

// AnalysisRun records one attempt against the analysis service
type AnalysisRun struct {
	ID         string            `json:"id"`
	Kind       AnalysisKind      `json:"kind"`
	Trigger    string            `json:"trigger,omitempty"`
	Assets     []Asset           `json:"assets"`
	NodeStates map[string]string `json:"nodeStates"`
	Result     *AnalysisResult   `json:"result,omitempty"`
	Hedges     string            `json:"hedges,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"startedAt"`
	DurationMS int64             `json:"durationMs"`
}

// Succeeded reports whether the run completed without error
func (r AnalysisRun) Succeeded() bool {
	return r.Error == ""
}
