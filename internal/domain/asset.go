package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Well-known sector names used for dependency inference
const (
	SectorTechnology            = "Technology"
	SectorConsumerDiscretionary = "Consumer Discretionary"
	SectorEnergy                = "Energy"
	SectorFinancials            = "Financials"
)

// Asset is a portfolio holding
type Asset struct {
	Ticker string  `json:"ticker" yaml:"ticker"`
	Weight float64 `json:"weight" yaml:"weight"` // portfolio %
	Sector string  `json:"sector" yaml:"sector"`
}

// NormalizeTicker upper-cases and trims a ticker symbol
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// CloneAssets copies an asset list
func CloneAssets(assets []Asset) []Asset {
	if assets == nil {
		return nil
	}
	return append(make([]Asset, 0, len(assets)), assets...)
}

// FindAsset returns the asset with the given ticker
func FindAsset(assets []Asset, ticker string) (Asset, bool) {
	for _, a := range assets {
		if a.Ticker == ticker {
			return a, true
		}
	}
	return Asset{}, false
}

// TotalWeight sums portfolio weights without float drift
func TotalWeight(assets []Asset) decimal.Decimal {
	total := decimal.Zero
	for _, a := range assets {
		total = total.Add(decimal.NewFromFloat(a.Weight))
	}
	return total
}
