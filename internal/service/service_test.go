package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"riskgraph/internal/domain"
	"riskgraph/internal/repository/sqlite"
)

// fakeAnalyzer returns canned answers and counts calls
type fakeAnalyzer struct {
	risk      *domain.AnalysisResult
	diagnosis *domain.AnalysisResult
	hedges    string
	details   *domain.AssetDetails
	err       error

	// block, when set, holds risk calls until closed
	block   chan struct{}
	started chan struct{}

	riskCalls    atomic.Int32
	hedgeCalls   atomic.Int32
	lastNodes    []domain.Node
	lastResult   *domain.AnalysisResult
	lastAsset    domain.Asset
	lastPortList []domain.Asset
}

func (f *fakeAnalyzer) AnalyzeRisk(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error) {
	f.riskCalls.Add(1)
	f.lastNodes = domain.CloneNodes(nodes)
	if f.block != nil {
		if f.started != nil {
			close(f.started)
		}
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.risk.Clone(), nil
}

func (f *fakeAnalyzer) DiagnosePortfolioDrop(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.diagnosis.Clone(), nil
}

func (f *fakeAnalyzer) SuggestHedges(ctx context.Context, assets []domain.Asset, result *domain.AnalysisResult) (string, error) {
	f.hedgeCalls.Add(1)
	f.lastResult = result.Clone()
	if f.err != nil {
		return "", f.err
	}
	return f.hedges, nil
}

func (f *fakeAnalyzer) AssetDetails(ctx context.Context, asset domain.Asset, portfolio []domain.Asset) (*domain.AssetDetails, error) {
	f.lastAsset = asset
	f.lastPortList = portfolio
	if f.err != nil {
		return nil, f.err
	}
	return f.details, nil
}

func newFakeAnalyzer() *fakeAnalyzer {
	return &fakeAnalyzer{
		risk: &domain.AnalysisResult{
			AssetImpacts: []domain.AssetImpact{
				{Ticker: "NVDA", ProbabilityOfDrop: 0.42},
				{Ticker: "MSFT", ProbabilityOfDrop: 0.3},
			},
			PortfolioDrawdown: 12.5,
			VulnerableAssets:  []string{"NVDA"},
			Summary:           "tech heavy",
		},
		diagnosis: &domain.AnalysisResult{
			AssetImpacts:  []domain.AssetImpact{{Ticker: "CVX", ProbabilityOfDrop: 0.7}},
			Summary:       "oil shock",
			CausalFactors: []domain.CausalFactor{{Factor: "Oil Price", Probability: 0.8}},
		},
		hedges: "Buy puts on QQQ",
		details: &domain.AssetDetails{
			HistoricalVolatility: 45.2,
			CorrelationMatrix:    []domain.Correlation{{Ticker: "MSFT", Correlation: 0.8}},
			Insight:              "momentum name",
		},
	}
}

func newTestDashboard(t *testing.T, a *fakeAnalyzer) (*Dashboard, chan Event) {
	t.Helper()
	bus := NewEventBus()
	events := make(chan Event, 64)
	bus.Subscribe(events)
	d := NewDashboard(Options{
		Analyzer: a,
		EventBus: bus,
		Logger:   zaptest.NewLogger(t),
	})
	return d, events
}

func drain(events chan Event) []EventType {
	var out []EventType
	for {
		select {
		case e := <-events:
			out = append(out, e.Type)
		default:
			return out
		}
	}
}

func impactOf(t *testing.T, st State, id string) *float64 {
	t.Helper()
	i := domain.FindNode(st.Nodes, id)
	require.GreaterOrEqual(t, i, 0, "node %s missing", id)
	return st.Nodes[i].Impact
}

func TestNewDashboard(t *testing.T) {
	d, _ := newTestDashboard(t, newFakeAnalyzer())
	st := d.Snapshot()

	assert.Len(t, st.Nodes, 8)
	assert.Len(t, st.Edges, 8)
	assert.False(t, st.PortfolioLoaded())
	assert.False(t, st.AnalysisDone())
	assert.False(t, st.Loading)
	assert.Len(t, d.Scenarios(), 3)
	assert.False(t, d.Busy())
}

func TestLoadPortfolio(t *testing.T) {
	t.Run("without analysis", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, events := newTestDashboard(t, a)

		st, err := d.LoadPortfolio(context.Background(), domain.DefaultAssets(), false)
		require.NoError(t, err)

		assert.Len(t, st.Nodes, 13)
		assert.Len(t, st.Edges, 18)
		assert.True(t, st.PortfolioLoaded())
		assert.Nil(t, st.Result)
		assert.Equal(t, int32(0), a.riskCalls.Load())
		assert.Equal(t, []EventType{EventPortfolioLoaded}, drain(events))
	})

	t.Run("with analysis merges impacts", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, events := newTestDashboard(t, a)

		st, err := d.LoadPortfolio(context.Background(), domain.DefaultAssets(), true)
		require.NoError(t, err)

		require.NotNil(t, st.Result)
		assert.False(t, st.Loading)
		assert.Empty(t, st.LoadingMessage)
		assert.True(t, st.AnalysisDone())
		assert.Equal(t, 0.42, *impactOf(t, st, "NVDA"))
		assert.Equal(t, 0.3, *impactOf(t, st, "MSFT"))
		assert.Equal(t, 0.0, *impactOf(t, st, "GS"))
		assert.Nil(t, impactOf(t, st, domain.RiskOilPrice))
		assert.Equal(t, []EventType{EventPortfolioLoaded, EventAnalysisStarted, EventAnalysisCompleted}, drain(events))
	})

	t.Run("empty portfolio rejected", func(t *testing.T) {
		d, _ := newTestDashboard(t, newFakeAnalyzer())
		_, err := d.LoadPortfolio(context.Background(), nil, true)
		assert.ErrorIs(t, err, ErrNoPortfolio)
	})

	t.Run("reload resets risk factors and result", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, _ := newTestDashboard(t, a)
		ctx := context.Background()

		_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), true)
		require.NoError(t, err)
		_, err = d.SetNodeState(ctx, domain.RiskOilPrice, "High")
		require.NoError(t, err)

		st, err := d.LoadPortfolio(ctx, []domain.Asset{{Ticker: "XOM", Weight: 100, Sector: domain.SectorEnergy}}, false)
		require.NoError(t, err)
		assert.Nil(t, st.Result)
		assert.Len(t, st.Nodes, 9)
		assert.Equal(t, "Stable", st.Nodes[domain.FindNode(st.Nodes, domain.RiskOilPrice)].CurrentState)
	})
}

func TestAnalyze(t *testing.T) {
	t.Run("requires portfolio", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, _ := newTestDashboard(t, a)
		_, err := d.Analyze(context.Background())
		assert.ErrorIs(t, err, ErrNoPortfolio)
		assert.Equal(t, int32(0), a.riskCalls.Load())
	})

	t.Run("failure leaves nodes untouched", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, events := newTestDashboard(t, a)
		ctx := context.Background()
		_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), false)
		require.NoError(t, err)
		before := d.Snapshot()
		drain(events)

		a.err = errors.New("quota exceeded")
		st, err := d.Analyze(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")

		assert.False(t, st.Loading)
		assert.Nil(t, st.Result)
		assert.Contains(t, st.LastError, "quota exceeded")
		assert.Equal(t, before.Nodes, st.Nodes)
		assert.Equal(t, []EventType{EventAnalysisStarted, EventAnalysisFailed}, drain(events))
	})

	t.Run("empty impacts leave previous impacts", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, _ := newTestDashboard(t, a)
		ctx := context.Background()
		_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), true)
		require.NoError(t, err)

		a.risk = &domain.AnalysisResult{Summary: "nothing to report"}
		st, err := d.Analyze(ctx)
		require.NoError(t, err)
		assert.Equal(t, "nothing to report", st.Result.Summary)
		assert.Equal(t, 0.42, *impactOf(t, st, "NVDA"))
	})

	t.Run("clears selection", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, _ := newTestDashboard(t, a)
		ctx := context.Background()
		_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), false)
		require.NoError(t, err)
		_, err = d.SelectNode("NVDA")
		require.NoError(t, err)

		st, err := d.Analyze(ctx)
		require.NoError(t, err)
		assert.Empty(t, st.SelectedAsset)
	})

	t.Run("timeout", func(t *testing.T) {
		a := newFakeAnalyzer()
		a.block = make(chan struct{})
		d := NewDashboard(Options{Analyzer: a, Timeout: 20 * time.Millisecond})
		_, err := d.LoadPortfolio(context.Background(), domain.DefaultAssets(), false)
		require.NoError(t, err)

		_, err = d.Analyze(context.Background())
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.False(t, d.Snapshot().Loading)
		assert.False(t, d.Busy())
	})
}

func TestAnalysisInFlight(t *testing.T) {
	a := newFakeAnalyzer()
	d, _ := newTestDashboard(t, a)
	ctx := context.Background()
	_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), false)
	require.NoError(t, err)

	a.block = make(chan struct{})
	a.started = make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := d.ApplyScenario(ctx, domain.ScenarioStagflation)
		done <- err
	}()
	<-a.started

	st := d.Snapshot()
	assert.True(t, st.Loading)
	assert.Equal(t, "Analyzing scenario: "+domain.ScenarioStagflation+"...", st.LoadingMessage)
	assert.True(t, d.Busy())

	_, err = d.Analyze(ctx)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)
	_, err = d.ApplyScenario(ctx, domain.ScenarioFinancialCrisis)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)
	_, err = d.LoadPortfolio(ctx, domain.DefaultAssets(), false)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)
	_, err = d.SetNodeState(ctx, domain.RiskInflation, "Low")
	assert.ErrorIs(t, err, ErrAnalysisInFlight)
	_, err = d.SuggestHedges(ctx)
	assert.ErrorIs(t, err, ErrAnalysisInFlight)

	close(a.block)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), a.riskCalls.Load())

	st = d.Snapshot()
	assert.False(t, st.Loading)
	assert.Equal(t, 0.42, *impactOf(t, st, "NVDA"))
	assert.Equal(t, "High", st.Nodes[domain.FindNode(st.Nodes, domain.RiskInflation)].CurrentState)
}

func TestBusyDoesNotRejectMutations(t *testing.T) {
	d, _ := newTestDashboard(t, newFakeAnalyzer())
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					d.Busy()
				}
			}
		}()
	}

	rejected := 0
	for i := 0; i < 2000; i++ {
		if _, err := d.SetNodeState(ctx, domain.RiskInflation, "High"); errors.Is(err, ErrAnalysisInFlight) {
			rejected++
		}
	}
	close(stop)
	wg.Wait()

	assert.Zero(t, rejected)
	assert.False(t, d.Busy())
}

func TestAnalysisOutlivesCaller(t *testing.T) {
	a := newFakeAnalyzer()
	d, events := newTestDashboard(t, a)
	_, err := d.LoadPortfolio(context.Background(), domain.DefaultAssets(), true)
	require.NoError(t, err)
	drain(events)

	ctx, cancel := context.WithCancel(context.Background())
	a.block = make(chan struct{})
	a.started = make(chan struct{})
	type outcome struct {
		st  State
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		st, err := d.ApplyScenario(ctx, domain.ScenarioSupplyShock)
		done <- outcome{st, err}
	}()
	<-a.started

	// the requesting client disconnects mid-call
	cancel()
	close(a.block)

	res := <-done
	require.NoError(t, res.err)
	assert.Empty(t, res.st.LastError)
	require.NotNil(t, res.st.Result)
	assert.Equal(t, 0.42, *impactOf(t, res.st, "NVDA"))
	assert.NotContains(t, drain(events), EventAnalysisFailed)

	a.block, a.started = nil, nil
	hedgeCtx, hedgeCancel := context.WithCancel(context.Background())
	hedgeCancel()
	st, err := d.SuggestHedges(hedgeCtx)
	require.NoError(t, err)
	assert.Equal(t, "Buy puts on QQQ", st.Result.HedgingSuggestions)
}

func TestApplyScenario(t *testing.T) {
	t.Run("unknown scenario", func(t *testing.T) {
		d, _ := newTestDashboard(t, newFakeAnalyzer())
		_, err := d.ApplyScenario(context.Background(), "Alien Invasion")
		assert.ErrorIs(t, err, ErrUnknownScenario)
	})

	t.Run("without portfolio only sets states", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, events := newTestDashboard(t, a)

		st, err := d.ApplyScenario(context.Background(), domain.ScenarioFinancialCrisis)
		require.NoError(t, err)
		assert.Equal(t, "Recession", st.Nodes[domain.FindNode(st.Nodes, domain.RiskGDPGrowth)].CurrentState)
		assert.Equal(t, int32(0), a.riskCalls.Load())
		assert.Equal(t, []EventType{EventScenarioApplied}, drain(events))
	})

	t.Run("analyzes the scenario nodes", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, _ := newTestDashboard(t, a)
		ctx := context.Background()
		_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), false)
		require.NoError(t, err)

		st, err := d.ApplyScenario(ctx, domain.ScenarioFinancialCrisis)
		require.NoError(t, err)

		states := domain.NodeStates(a.lastNodes)
		assert.Equal(t, "Recession", states[domain.RiskGDPGrowth])
		assert.Equal(t, "Cut", states[domain.RiskInterestRate])
		assert.Equal(t, "Weak", states[domain.RiskConsumerSpending])
		assert.Equal(t, "Medium", states[domain.RiskInflation])
		assert.NotNil(t, st.Result)
	})
}

func TestSetNodeState(t *testing.T) {
	a := newFakeAnalyzer()
	d, events := newTestDashboard(t, a)
	ctx := context.Background()
	_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), false)
	require.NoError(t, err)
	drain(events)

	st, err := d.SetNodeState(ctx, domain.RiskTechSentiment, "Bearish")
	require.NoError(t, err)
	assert.Equal(t, "Bearish", st.Nodes[domain.FindNode(st.Nodes, domain.RiskTechSentiment)].CurrentState)
	assert.Equal(t, int32(0), a.riskCalls.Load())
	assert.Equal(t, []EventType{EventNodeStateChanged}, drain(events))

	_, err = d.SetNodeState(ctx, "NVDA", "High")
	assert.ErrorIs(t, err, ErrUnknownNode)
	_, err = d.SetNodeState(ctx, "nope", "High")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestSelectNode(t *testing.T) {
	d, _ := newTestDashboard(t, newFakeAnalyzer())
	_, err := d.LoadPortfolio(context.Background(), domain.DefaultAssets(), false)
	require.NoError(t, err)

	st, err := d.SelectNode("MSFT")
	require.NoError(t, err)
	assert.Equal(t, "MSFT", st.SelectedAsset)

	st, err = d.SelectNode(domain.RiskInflation)
	require.NoError(t, err)
	assert.Empty(t, st.SelectedAsset)

	_, err = d.SelectNode("TSLA")
	assert.ErrorIs(t, err, ErrUnknownNode)
}

func TestSuggestHedges(t *testing.T) {
	t.Run("no result is a no-op", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, events := newTestDashboard(t, a)
		_, err := d.LoadPortfolio(context.Background(), domain.DefaultAssets(), false)
		require.NoError(t, err)
		drain(events)

		st, err := d.SuggestHedges(context.Background())
		assert.ErrorIs(t, err, ErrNoAnalysis)
		assert.Nil(t, st.Result)
		assert.Equal(t, int32(0), a.hedgeCalls.Load())
		assert.Empty(t, drain(events))
	})

	t.Run("adds suggestions preserving result", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, _ := newTestDashboard(t, a)
		ctx := context.Background()
		before, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), true)
		require.NoError(t, err)

		st, err := d.SuggestHedges(ctx)
		require.NoError(t, err)
		assert.Equal(t, "Buy puts on QQQ", st.Result.HedgingSuggestions)
		assert.Equal(t, before.Result.AssetImpacts, st.Result.AssetImpacts)
		assert.Equal(t, before.Result.Summary, st.Result.Summary)
		assert.Equal(t, before.Result.PortfolioDrawdown, st.Result.PortfolioDrawdown)
		assert.Equal(t, before.Result.Summary, a.lastResult.Summary)
		assert.False(t, st.Loading)
	})

	t.Run("failure keeps result", func(t *testing.T) {
		a := newFakeAnalyzer()
		d, _ := newTestDashboard(t, a)
		ctx := context.Background()
		_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), true)
		require.NoError(t, err)

		a.err = errors.New("boom")
		st, err := d.SuggestHedges(ctx)
		require.Error(t, err)
		require.NotNil(t, st.Result)
		assert.Empty(t, st.Result.HedgingSuggestions)
		assert.Contains(t, st.LastError, "boom")
	})
}

func TestDiagnose(t *testing.T) {
	a := newFakeAnalyzer()
	d, _ := newTestDashboard(t, a)
	ctx := context.Background()
	_, err := d.LoadPortfolio(ctx, domain.DefaultAssets(), false)
	require.NoError(t, err)

	st, err := d.Diagnose(ctx)
	require.NoError(t, err)
	require.NotNil(t, st.Result)
	assert.True(t, st.Result.IsDiagnosis())
	assert.False(t, st.AnalysisDone())
	assert.Equal(t, 0.7, *impactOf(t, st, "CVX"))
	assert.Equal(t, 0.0, *impactOf(t, st, "NVDA"))
}

func TestAssetDetails(t *testing.T) {
	a := newFakeAnalyzer()
	d, _ := newTestDashboard(t, a)
	ctx := context.Background()

	_, err := d.AssetDetails(ctx, "NVDA")
	assert.ErrorIs(t, err, ErrUnknownAsset)

	_, err = d.LoadPortfolio(ctx, domain.DefaultAssets(), false)
	require.NoError(t, err)

	details, err := d.AssetDetails(ctx, "NVDA")
	require.NoError(t, err)
	assert.Equal(t, 45.2, details.HistoricalVolatility)
	assert.Equal(t, "NVDA", a.lastAsset.Ticker)
	assert.Len(t, a.lastPortList, 5)
}

func TestReplaceScenarios(t *testing.T) {
	d, events := newTestDashboard(t, newFakeAnalyzer())
	custom := domain.Scenario{Name: "Rate Shock", Settings: map[string]string{domain.RiskInterestRate: "Hike"}}

	d.ReplaceScenarios([]domain.Scenario{custom})
	assert.Equal(t, []EventType{EventScenariosReloaded}, drain(events))
	require.Len(t, d.Scenarios(), 1)

	st, err := d.ApplyScenario(context.Background(), "Rate Shock")
	require.NoError(t, err)
	assert.Equal(t, "Hike", st.Nodes[domain.FindNode(st.Nodes, domain.RiskInterestRate)].CurrentState)

	_, err = d.ApplyScenario(context.Background(), domain.ScenarioStagflation)
	assert.ErrorIs(t, err, ErrUnknownScenario)
}

func TestHistory(t *testing.T) {
	repo, err := sqlite.New(":memory:")
	require.NoError(t, err)
	defer repo.Close()

	a := newFakeAnalyzer()
	d := NewDashboard(Options{Analyzer: a, Repository: repo})
	ctx := context.Background()

	runs, err := d.History(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, runs)

	_, err = d.LoadPortfolio(ctx, domain.DefaultAssets(), true)
	require.NoError(t, err)
	_, err = d.SuggestHedges(ctx)
	require.NoError(t, err)
	a.err = errors.New("offline")
	_, err = d.Analyze(ctx)
	require.Error(t, err)

	runs, err = d.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)

	kinds := map[domain.AnalysisKind]int{}
	failed := 0
	for _, r := range runs {
		kinds[r.Kind]++
		if !r.Succeeded() {
			failed++
		}
		assert.NotEmpty(t, r.ID)
		assert.Len(t, r.Assets, 5)
	}
	assert.Equal(t, 2, kinds[domain.AnalysisKindRisk])
	assert.Equal(t, 1, kinds[domain.AnalysisKindHedge])
	assert.Equal(t, 1, failed)

	restored, err := d.RestorePortfolio(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultAssets(), restored)
}

func TestStateJSON(t *testing.T) {
	d, _ := newTestDashboard(t, newFakeAnalyzer())
	_, err := d.LoadPortfolio(context.Background(), domain.DefaultAssets(), true)
	require.NoError(t, err)

	data, err := json.Marshal(d.Snapshot())
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, true, decoded["portfolioLoaded"])
	assert.Equal(t, true, decoded["analysisDone"])
	assert.Equal(t, false, decoded["isLoading"])
	assert.Contains(t, decoded, "analysisResult")
	assert.Contains(t, decoded, "nodes")
}

func TestSnapshotIsolation(t *testing.T) {
	d, _ := newTestDashboard(t, newFakeAnalyzer())
	_, err := d.LoadPortfolio(context.Background(), domain.DefaultAssets(), true)
	require.NoError(t, err)

	st := d.Snapshot()
	st.Nodes[0].CurrentState = "mutated"
	st.Assets[0].Ticker = "XXX"
	st.Result.Summary = "mutated"

	fresh := d.Snapshot()
	assert.NotEqual(t, "mutated", fresh.Nodes[0].CurrentState)
	assert.Equal(t, "NVDA", fresh.Assets[0].Ticker)
	assert.Equal(t, "tech heavy", fresh.Result.Summary)
}
