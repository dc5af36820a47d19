package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNodeClone(t *testing.T) {
	n := NewRiskNode("x", "X", []string{"a", "b"}, "a", NewPosition(1, 2), "y").WithImpact(0.4)
	c := n.Clone()
	c.States[0] = "z"
	c.Dependencies[0] = "z"
	*c.Impact = 0.9

	assert.Equal(t, "a", n.States[0])
	assert.Equal(t, "y", n.Dependencies[0])
	assert.Equal(t, 0.4, *n.Impact)
}

func TestNodeCloneKeepsEmptySlices(t *testing.T) {
	n := NewAssetNode("AAPL", NewPosition(80, 10), nil)
	c := n.Clone()
	assert.NotNil(t, c.States)
	assert.NotNil(t, c.Dependencies)
}

func TestNodeHasState(t *testing.T) {
	n := RiskNodes()[0]
	assert.True(t, n.HasState("Hike"))
	assert.False(t, n.HasState("hike"))
}

func TestNodeStates(t *testing.T) {
	states := NodeStates(BuildGraph(DefaultAssets()).Nodes)
	assert.Len(t, states, 8)
	assert.Equal(t, "Hold", states[RiskInterestRate])
	_, hasAsset := states["NVDA"]
	assert.False(t, hasAsset)
}

func TestTotalWeight(t *testing.T) {
	assert.True(t, TotalWeight(DefaultAssets()).Equal(decimal.NewFromInt(100)))
	assert.True(t, TotalWeight([]Asset{{Weight: 0.1}, {Weight: 0.2}}).Equal(decimal.RequireFromString("0.3")))
	assert.True(t, TotalWeight(nil).IsZero())
}

func TestNormalizeTicker(t *testing.T) {
	assert.Equal(t, "NVDA", NormalizeTicker(" nvda "))
}
