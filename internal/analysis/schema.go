package analysis

import "google.golang.org/genai"

func probabilitySchema(desc string) *genai.Schema {
	lo, hi := 0.0, 1.0
	return &genai.Schema{
		Type:        genai.TypeNumber,
		Description: desc,
		Minimum:     &lo,
		Maximum:     &hi,
	}
}

func assetImpactsSchema() *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Description: "Drop probability for every holding in the portfolio",
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"ticker":            {Type: genai.TypeString},
				"probabilityOfDrop": probabilitySchema("Probability of a price drop greater than 5%"),
			},
			Required: []string{"ticker", "probabilityOfDrop"},
		},
	}
}

// riskSchema constrains AnalyzeRisk output
func riskSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"assetImpacts": assetImpactsSchema(),
			"portfolioDrawdown": {
				Type:        genai.TypeNumber,
				Description: "Expected portfolio drawdown in percent",
			},
			"vulnerableAssets": {
				Type:  genai.TypeArray,
				Items: &genai.Schema{Type: genai.TypeString},
			},
			"summary": {Type: genai.TypeString},
		},
		Required:         []string{"assetImpacts", "portfolioDrawdown", "vulnerableAssets", "summary"},
		PropertyOrdering: []string{"assetImpacts", "portfolioDrawdown", "vulnerableAssets", "summary"},
	}
}

// diagnosisSchema extends riskSchema with causal factors
func diagnosisSchema() *genai.Schema {
	s := riskSchema()
	s.Properties["causalFactors"] = &genai.Schema{
		Type:        genai.TypeArray,
		Description: "Most likely causes of the drop, most probable first",
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"factor":      {Type: genai.TypeString},
				"probability": probabilitySchema("Likelihood this factor caused the drop"),
			},
			Required: []string{"factor", "probability"},
		},
	}
	s.Required = append(s.Required, "causalFactors")
	s.PropertyOrdering = append(s.PropertyOrdering, "causalFactors")
	return s
}

// assetDetailsSchema constrains AssetDetails output
func assetDetailsSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"historicalVolatility": {
				Type:        genai.TypeNumber,
				Description: "Annualized historical volatility in percent",
			},
			"correlationMatrix": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"ticker":      {Type: genai.TypeString},
						"correlation": {Type: genai.TypeNumber},
					},
					Required: []string{"ticker", "correlation"},
				},
			},
			"insight": {Type: genai.TypeString},
		},
		Required: []string{"historicalVolatility", "correlationMatrix", "insight"},
	}
}
