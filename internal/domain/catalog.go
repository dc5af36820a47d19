package domain

// Risk factor node ids
const (
	RiskInterestRate     = "interestRate"
	RiskInflation        = "inflation"
	RiskGDPGrowth        = "gdpGrowth"
	RiskOilPrice         = "oilPrice"
	RiskGeopolitical     = "geopolitical"
	RiskSupplyChain      = "supplyChain"
	RiskTechSentiment    = "techSentiment"
	RiskConsumerSpending = "consumerSpending"
)

// RiskNodes returns a fresh copy of the fixed risk factor network.
// Column 1 is macroeconomic, column 2 geopolitical, column 3 sector-specific.
func RiskNodes() []Node {
	return []Node{
		NewRiskNode(RiskInterestRate, "Interest Rate", []string{"Cut", "Hold", "Hike"}, "Hold", NewPosition(2, 10)),
		NewRiskNode(RiskInflation, "Inflation Rate", []string{"Low", "Medium", "High"}, "Medium", NewPosition(2, 32), RiskOilPrice),
		NewRiskNode(RiskGDPGrowth, "GDP Growth", []string{"Recession", "Slow", "Robust"}, "Slow", NewPosition(2, 54), RiskInterestRate),
		NewRiskNode(RiskOilPrice, "Oil Price", []string{"Low", "Stable", "High"}, "Stable", NewPosition(2, 76), RiskGeopolitical),
		NewRiskNode(RiskGeopolitical, "Geopolitical Stability", []string{"Stable", "Tense", "Conflict"}, "Stable", NewPosition(27, 25)),
		NewRiskNode(RiskSupplyChain, "Supply Chain Disruption", []string{"None", "Moderate", "Severe"}, "None", NewPosition(27, 55), RiskGeopolitical),
		NewRiskNode(RiskTechSentiment, "Tech Sector Sentiment", []string{"Bearish", "Neutral", "Bullish"}, "Neutral", NewPosition(52, 25), RiskInterestRate, RiskSupplyChain),
		NewRiskNode(RiskConsumerSpending, "Consumer Spending", []string{"Weak", "Normal", "Strong"}, "Normal", NewPosition(52, 55), RiskGDPGrowth, RiskInflation),
	}
}

// BaseEdges returns the fixed edges between risk factors
func BaseEdges() []Edge {
	return []Edge{
		NewEdge(RiskInterestRate, RiskGDPGrowth),
		NewEdge(RiskInterestRate, RiskTechSentiment),
		NewEdge(RiskOilPrice, RiskInflation),
		NewEdge(RiskGeopolitical, RiskOilPrice),
		NewEdge(RiskGeopolitical, RiskSupplyChain),
		NewEdge(RiskSupplyChain, RiskTechSentiment),
		NewEdge(RiskGDPGrowth, RiskConsumerSpending),
		NewEdge(RiskInflation, RiskConsumerSpending),
	}
}

// DefaultAssets is the portfolio loaded when nothing else is configured
func DefaultAssets() []Asset {
	return []Asset{
		{Ticker: "NVDA", Weight: 30, Sector: SectorTechnology},
		{Ticker: "MSFT", Weight: 25, Sector: SectorTechnology},
		{Ticker: "MCD", Weight: 20, Sector: SectorConsumerDiscretionary},
		{Ticker: "CVX", Weight: 15, Sector: SectorEnergy},
		{Ticker: "GS", Weight: 10, Sector: SectorFinancials},
	}
}

// IsRiskNodeID reports whether id names one of the fixed risk factors
func IsRiskNodeID(id string) bool {
	switch id {
	case RiskInterestRate, RiskInflation, RiskGDPGrowth, RiskOilPrice,
		RiskGeopolitical, RiskSupplyChain, RiskTechSentiment, RiskConsumerSpending:
		return true
	}
	return false
}
