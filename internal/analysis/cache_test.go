package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"riskgraph/internal/domain"
	"riskgraph/internal/metrics"
)

type countingAnalyzer struct {
	calls  int
	err    error
	result *domain.AnalysisResult
}

func (c *countingAnalyzer) AnalyzeRisk(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.result.Clone(), nil
}

func (c *countingAnalyzer) DiagnosePortfolioDrop(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error) {
	c.calls++
	r := c.result.Clone()
	r.CausalFactors = []domain.CausalFactor{}
	return r, c.err
}

func (c *countingAnalyzer) SuggestHedges(ctx context.Context, assets []domain.Asset, result *domain.AnalysisResult) (string, error) {
	c.calls++
	return "hedge", c.err
}

func (c *countingAnalyzer) AssetDetails(ctx context.Context, asset domain.Asset, portfolio []domain.Asset) (*domain.AssetDetails, error) {
	c.calls++
	return &domain.AssetDetails{Insight: asset.Ticker, CorrelationMatrix: []domain.Correlation{{Ticker: "X"}}}, c.err
}

func newCountingAnalyzer() *countingAnalyzer {
	return &countingAnalyzer{result: &domain.AnalysisResult{
		AssetImpacts: []domain.AssetImpact{{Ticker: "NVDA", ProbabilityOfDrop: 0.3}},
		Summary:      "s",
	}}
}

func TestCacheReusesIdenticalRequests(t *testing.T) {
	next := newCountingAnalyzer()
	m := metrics.New()
	c := NewCache(next, time.Minute, m)
	ctx := context.Background()
	assets := domain.DefaultAssets()
	nodes := domain.BuildGraph(assets).Nodes

	first, err := c.AnalyzeRisk(ctx, assets, nodes)
	require.NoError(t, err)
	second, err := c.AnalyzeRisk(ctx, assets, nodes)
	require.NoError(t, err)

	assert.Equal(t, 1, next.calls)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))

	// callers own their copy
	second.AssetImpacts[0].ProbabilityOfDrop = 1
	third, _ := c.AnalyzeRisk(ctx, assets, nodes)
	assert.Equal(t, 0.3, third.AssetImpacts[0].ProbabilityOfDrop)
}

func TestCacheKeyIncludesNodeStates(t *testing.T) {
	next := newCountingAnalyzer()
	c := NewCache(next, time.Minute, nil)
	ctx := context.Background()
	assets := domain.DefaultAssets()
	nodes := domain.BuildGraph(assets).Nodes

	_, _ = c.AnalyzeRisk(ctx, assets, nodes)
	changed, _ := domain.SetNodeState(nodes, domain.RiskOilPrice, "High")
	_, _ = c.AnalyzeRisk(ctx, assets, changed)
	_, _ = c.DiagnosePortfolioDrop(ctx, assets, nodes)

	assert.Equal(t, 3, next.calls)
}

func TestCacheExpires(t *testing.T) {
	next := newCountingAnalyzer()
	c := NewCache(next, time.Minute, nil)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	_, _ = c.SuggestHedges(ctx, nil, next.result)
	assert.Equal(t, 1, c.Len())

	now = now.Add(2 * time.Minute)
	assert.Equal(t, 0, c.Len())
	_, _ = c.SuggestHedges(ctx, nil, next.result)
	assert.Equal(t, 2, next.calls)
}

func TestCacheDisabled(t *testing.T) {
	next := newCountingAnalyzer()
	c := NewCache(next, 0, nil)
	ctx := context.Background()

	_, _ = c.AssetDetails(ctx, domain.Asset{Ticker: "A"}, nil)
	_, _ = c.AssetDetails(ctx, domain.Asset{Ticker: "A"}, nil)
	assert.Equal(t, 2, next.calls)
	assert.Equal(t, 0, c.Len())
}

func TestCacheDoesNotStoreErrors(t *testing.T) {
	next := newCountingAnalyzer()
	next.err = errors.New("down")
	c := NewCache(next, time.Minute, nil)

	_, err := c.AnalyzeRisk(context.Background(), nil, nil)
	assert.Error(t, err)
	_, err = c.AnalyzeRisk(context.Background(), nil, nil)
	assert.Error(t, err)
	assert.Equal(t, 2, next.calls)
}

func TestFingerprintStable(t *testing.T) {
	a := map[string]string{"x": "1", "y": "2"}
	b := map[string]string{"y": "2", "x": "1"}
	assert.Equal(t, fingerprint("k", a), fingerprint("k", b))
	assert.NotEqual(t, fingerprint("k", a), fingerprint("j", a))
	assert.Len(t, fingerprint("k"), 64)
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	next := newCountingAnalyzer()
	c := NewCache(next, time.Minute, nil)
	c.maxEntries = 2
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	assets := domain.DefaultAssets()
	nodes := domain.BuildGraph(assets).Nodes

	_, _ = c.AnalyzeRisk(ctx, assets, nodes)
	now = now.Add(time.Second)
	_, _ = c.DiagnosePortfolioDrop(ctx, assets, nodes)
	now = now.Add(time.Second)
	_, _ = c.SuggestHedges(ctx, assets, next.result)
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 3, next.calls)

	// the risk entry was the oldest and is gone; the diagnosis is still cached
	_, _ = c.DiagnosePortfolioDrop(ctx, assets, nodes)
	assert.Equal(t, 3, next.calls)
	_, _ = c.AnalyzeRisk(ctx, assets, nodes)
	assert.Equal(t, 4, next.calls)
}
