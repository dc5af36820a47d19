package analysis

import (
	"fmt"
	"strings"

	"riskgraph/internal/domain"
)

func writePortfolio(b *strings.Builder, assets []domain.Asset) {
	b.WriteString("Portfolio (ticker, weight %, sector):\n")
	for _, a := range assets {
		fmt.Fprintf(b, "- %s, %.2f%%, %s\n", a.Ticker, a.Weight, a.Sector)
	}
	fmt.Fprintf(b, "Total weight: %s%%\n", domain.TotalWeight(assets).StringFixed(2))
}

func writeRiskFactors(b *strings.Builder, nodes []domain.Node) {
	b.WriteString("Current risk factor states:\n")
	for _, n := range nodes {
		if !n.IsRisk() {
			continue
		}
		fmt.Fprintf(b, "- %s: %s", n.Label, n.CurrentState)
		if len(n.States) > 0 {
			fmt.Fprintf(b, " (possible: %s)", strings.Join(n.States, ", "))
		}
		if len(n.Dependencies) > 0 {
			fmt.Fprintf(b, " [driven by: %s]", strings.Join(n.Dependencies, ", "))
		}
		b.WriteString("\n")
	}
}

func riskPrompt(assets []domain.Asset, nodes []domain.Node) string {
	var b strings.Builder
	b.WriteString("You are a senior portfolio risk analyst.\n\n")
	writePortfolio(&b, assets)
	b.WriteString("\n")
	writeRiskFactors(&b, nodes)
	b.WriteString(`
Given these macroeconomic and geopolitical conditions, estimate for every
holding the probability (0 to 1) of a price drop greater than 5% over the
next quarter. Estimate the expected portfolio drawdown in percent, list the
most vulnerable tickers, and write a concise summary of the main risk
channels. Use the exact tickers above.`)
	return b.String()
}

func diagnosePrompt(assets []domain.Asset, nodes []domain.Node) string {
	var b strings.Builder
	b.WriteString("You are a senior portfolio risk analyst investigating a sudden portfolio drop.\n\n")
	writePortfolio(&b, assets)
	b.WriteString("\n")
	writeRiskFactors(&b, nodes)
	b.WriteString(`
The portfolio has just fallen sharply. Working backwards from the holdings
and the risk factor states, identify the most likely causal factors with a
probability for each. Also estimate every holding's probability (0 to 1) of
a further drop greater than 5%, the expected drawdown in percent, the most
vulnerable tickers, and a concise summary. Use the exact tickers above.`)
	return b.String()
}

func hedgePrompt(assets []domain.Asset, result *domain.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("You are a derivatives strategist.\n\n")
	writePortfolio(&b, assets)
	fmt.Fprintf(&b, "\nExpected drawdown: %.2f%%\n", result.PortfolioDrawdown)
	if len(result.VulnerableAssets) > 0 {
		fmt.Fprintf(&b, "Most vulnerable: %s\n", strings.Join(result.VulnerableAssets, ", "))
	}
	if len(result.AssetImpacts) > 0 {
		b.WriteString("Drop probabilities:\n")
		for _, a := range result.AssetImpacts {
			fmt.Fprintf(&b, "- %s: %.0f%%\n", a.Ticker, a.ProbabilityOfDrop*100)
		}
	}
	if result.Summary != "" {
		fmt.Fprintf(&b, "Risk summary: %s\n", result.Summary)
	}
	b.WriteString(`
Suggest specific, actionable hedging strategies (options, inverse ETFs,
sector rotation, cash allocation) for the most vulnerable positions. Keep it
under 200 words and use short bullet points.`)
	return b.String()
}

func assetDetailsPrompt(asset domain.Asset, portfolio []domain.Asset) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an equity analyst. Provide a risk profile for %s (%s sector).\n\n", asset.Ticker, asset.Sector)
	writePortfolio(&b, portfolio)
	b.WriteString(`
Estimate its annualized historical volatility in percent, its correlation
(-1 to 1) with every other holding in the portfolio, and give a one-paragraph
insight on its role in the portfolio's risk.`)
	return b.String()
}
