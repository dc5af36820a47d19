package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"riskgraph/internal/analysis"
	"riskgraph/internal/domain"
	"riskgraph/internal/metrics"
	"riskgraph/internal/repository"
)

var (
	// ErrAnalysisInFlight is returned when a mutation arrives while an
	// analysis call is outstanding
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrNoPortfolio      = errors.New("no portfolio loaded")
	// ErrNoAnalysis signals that hedging was requested without a result
	ErrNoAnalysis      = errors.New("no analysis result to hedge")
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrUnknownNode     = errors.New("unknown node")
	ErrUnknownAsset    = errors.New("unknown asset")
)

// Loading messages shown while the analysis service is working
const (
	msgAnalyzing   = "Analyzing portfolio risk..."
	msgDiagnosing  = "Diagnosing portfolio drop..."
	msgHedging     = "Generating hedging strategies..."
	msgScenarioFmt = "Analyzing scenario: %s..."
)

// Triggers recorded with each analysis run
const (
	TriggerManual    = "manual"
	TriggerPortfolio = "portfolio"
	triggerScenario  = "scenario:"
)

// Options configures a Dashboard
type Options struct {
	Analyzer   analysis.Analyzer
	Repository repository.Repository // optional history store
	EventBus   *EventBus
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
	// Timeout bounds every analysis call. Zero waits indefinitely.
	Timeout   time.Duration
	Scenarios []domain.Scenario
}

// Dashboard owns the application state and coordinates the analysis
// service. At most one mutation runs at a time; analysis calls hold the
// guard for their whole duration.
type Dashboard struct {
	analyzer analysis.Analyzer
	repo     repository.Repository
	bus      *EventBus
	metrics  *metrics.Metrics
	logger   *zap.Logger
	timeout  time.Duration
	guard    *semaphore.Weighted
	inFlight atomic.Bool

	mu        sync.RWMutex
	state     State
	scenarios []domain.Scenario
}

// NewDashboard creates a dashboard with the risk network and no holdings
func NewDashboard(opts Options) *Dashboard {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	scenarios := opts.Scenarios
	if scenarios == nil {
		scenarios = domain.DefaultScenarios()
	}
	return &Dashboard{
		analyzer:  opts.Analyzer,
		repo:      opts.Repository,
		bus:       opts.EventBus,
		metrics:   opts.Metrics,
		logger:    logger.Named("dashboard"),
		timeout:   opts.Timeout,
		guard:     semaphore.NewWeighted(1),
		state:     initialState(),
		scenarios: cloneScenarios(scenarios),
	}
}

// Snapshot returns a copy of the current state
func (d *Dashboard) Snapshot() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state.Clone()
}

// Busy reports whether a mutation or analysis is in progress
func (d *Dashboard) Busy() bool {
	return d.inFlight.Load()
}

// acquire takes the mutation guard without waiting
func (d *Dashboard) acquire() error {
	if !d.guard.TryAcquire(1) {
		d.metrics.RejectAnalysis()
		return ErrAnalysisInFlight
	}
	d.inFlight.Store(true)
	return nil
}

func (d *Dashboard) release() {
	d.inFlight.Store(false)
	d.guard.Release(1)
}

// update applies a reducer and returns the new state
func (d *Dashboard) update(reduce func(State) State) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = reduce(d.state)
	return d.state.Clone()
}

func (d *Dashboard) publish(t EventType, payload interface{}) {
	d.bus.Publish(Event{Type: t, Payload: payload})
}

// LoadPortfolio replaces the holdings and rebuilds the graph. With analyze
// set, a risk analysis runs on the new graph before returning.
func (d *Dashboard) LoadPortfolio(ctx context.Context, assets []domain.Asset, analyze bool) (State, error) {
	if len(assets) == 0 {
		return d.Snapshot(), ErrNoPortfolio
	}
	if err := d.acquire(); err != nil {
		return d.Snapshot(), err
	}
	defer d.release()

	st := d.update(func(s State) State { return withPortfolio(s, assets) })
	d.logger.Info("portfolio loaded",
		zap.Int("assets", len(assets)),
		zap.String("total_weight", domain.TotalWeight(assets).String()))
	d.publish(EventPortfolioLoaded, st)

	if d.repo != nil {
		if err := d.repo.SavePortfolio(ctx, assets); err != nil {
			d.logger.Warn("failed to persist portfolio", zap.Error(err))
		}
	}

	if !analyze {
		return st, nil
	}
	return d.runAnalysis(ctx, domain.AnalysisKindRisk, TriggerPortfolio, msgAnalyzing)
}

// SetNodeState changes one risk factor's state. The value is not checked
// against the node's states and no analysis is triggered.
func (d *Dashboard) SetNodeState(ctx context.Context, id, state string) (State, error) {
	if err := d.acquire(); err != nil {
		return d.Snapshot(), err
	}
	defer d.release()

	d.mu.Lock()
	nodes, ok := domain.SetNodeState(d.state.Nodes, id, state)
	if !ok || !domain.IsRiskNodeID(id) {
		d.mu.Unlock()
		return d.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	d.state = withNodes(d.state, nodes)
	st := d.state.Clone()
	d.mu.Unlock()

	d.logger.Debug("node state changed", zap.String("node", id), zap.String("state", state))
	d.publish(EventNodeStateChanged, st)
	return st, nil
}

// SelectNode selects an asset node for the details panel. Selecting a risk
// factor or the empty id clears the selection.
func (d *Dashboard) SelectNode(id string) (State, error) {
	d.mu.Lock()
	if id != "" && domain.FindNode(d.state.Nodes, id) < 0 {
		d.mu.Unlock()
		return d.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownNode, id)
	}
	d.state = withSelection(d.state, id)
	st := d.state.Clone()
	d.mu.Unlock()

	d.publish(EventSelectionChanged, st)
	return st, nil
}

// ApplyScenario sets the scenario's risk factor states and, when holdings
// are loaded, re-runs the risk analysis.
func (d *Dashboard) ApplyScenario(ctx context.Context, name string) (State, error) {
	sc, ok := d.Scenario(name)
	if !ok {
		return d.Snapshot(), fmt.Errorf("%w: %s", ErrUnknownScenario, name)
	}
	if err := d.acquire(); err != nil {
		return d.Snapshot(), err
	}
	defer d.release()

	st := d.update(func(s State) State {
		return withNodes(s, domain.ApplyScenario(s.Nodes, sc))
	})
	d.logger.Info("scenario applied", zap.String("scenario", sc.Name))
	d.publish(EventScenarioApplied, st)

	if !st.PortfolioLoaded() {
		return st, nil
	}
	return d.runAnalysis(ctx, domain.AnalysisKindRisk, triggerScenario+sc.Name, fmt.Sprintf(msgScenarioFmt, sc.Name))
}

// Analyze runs a risk analysis on the current graph
func (d *Dashboard) Analyze(ctx context.Context) (State, error) {
	if err := d.acquire(); err != nil {
		return d.Snapshot(), err
	}
	defer d.release()

	if !d.Snapshot().PortfolioLoaded() {
		return d.Snapshot(), ErrNoPortfolio
	}
	return d.runAnalysis(ctx, domain.AnalysisKindRisk, TriggerManual, msgAnalyzing)
}

// Diagnose asks the analysis service to explain an observed drop
func (d *Dashboard) Diagnose(ctx context.Context) (State, error) {
	if err := d.acquire(); err != nil {
		return d.Snapshot(), err
	}
	defer d.release()

	if !d.Snapshot().PortfolioLoaded() {
		return d.Snapshot(), ErrNoPortfolio
	}
	return d.runAnalysis(ctx, domain.AnalysisKindDiagnose, TriggerManual, msgDiagnosing)
}

// runAnalysis performs one analysis call. The caller holds the guard.
func (d *Dashboard) runAnalysis(ctx context.Context, kind domain.AnalysisKind, trigger, message string) (State, error) {
	st := d.update(func(s State) State { return beginAnalysis(s, message) })
	d.publish(EventAnalysisStarted, st)

	run := d.newRun(kind, trigger, st)
	// the result is shared by every subscriber; a caller going away must
	// not fail it, only the configured timeout bounds the call
	ctx, cancel := d.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	var (
		result *domain.AnalysisResult
		err    error
	)
	switch kind {
	case domain.AnalysisKindDiagnose:
		result, err = d.analyzer.DiagnosePortfolioDrop(ctx, st.Assets, st.Nodes)
	default:
		result, err = d.analyzer.AnalyzeRisk(ctx, st.Assets, st.Nodes)
	}
	if err == nil && result == nil {
		err = errors.New("analysis service returned no result")
	}
	elapsed := d.finishRun(ctx, run, result, "", err)

	if err != nil {
		err = fmt.Errorf("%s analysis: %w", kind, err)
		st = d.update(func(s State) State { return failAnalysis(s, err) })
		d.logger.Error("analysis failed",
			zap.String("kind", string(kind)),
			zap.String("trigger", trigger),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		d.publish(EventAnalysisFailed, FailurePayload{Kind: string(kind), Error: err.Error()})
		return st, err
	}

	st = d.update(func(s State) State { return completeAnalysis(s, result) })
	d.logger.Info("analysis completed",
		zap.String("kind", string(kind)),
		zap.String("trigger", trigger),
		zap.Int("impacts", len(result.AssetImpacts)),
		zap.Duration("elapsed", elapsed))
	d.publish(EventAnalysisCompleted, st)
	return st, nil
}

// SuggestHedges attaches hedging suggestions to the current result. Without
// a result it returns ErrNoAnalysis and the analysis service is not called.
func (d *Dashboard) SuggestHedges(ctx context.Context) (State, error) {
	if err := d.acquire(); err != nil {
		return d.Snapshot(), err
	}
	defer d.release()

	current := d.Snapshot()
	if current.Result == nil {
		return current, ErrNoAnalysis
	}

	st := d.update(func(s State) State { return beginHedging(s, msgHedging) })
	d.publish(EventAnalysisStarted, st)

	run := d.newRun(domain.AnalysisKindHedge, TriggerManual, st)
	ctx, cancel := d.withTimeout(context.WithoutCancel(ctx))
	defer cancel()

	text, err := d.analyzer.SuggestHedges(ctx, st.Assets, st.Result)
	elapsed := d.finishRun(ctx, run, nil, text, err)
	if err != nil {
		err = fmt.Errorf("hedge suggestions: %w", err)
		st = d.update(func(s State) State { return failAnalysis(s, err) })
		d.logger.Error("hedge suggestions failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		d.publish(EventAnalysisFailed, FailurePayload{Kind: string(domain.AnalysisKindHedge), Error: err.Error()})
		return st, err
	}

	st = d.update(func(s State) State { return completeHedging(s, text) })
	d.logger.Info("hedge suggestions added", zap.Duration("elapsed", elapsed))
	d.publish(EventHedgesSuggested, st)
	return st, nil
}

// AssetDetails fetches the deep dive for one holding. It does not touch
// the dashboard state.
func (d *Dashboard) AssetDetails(ctx context.Context, ticker string) (*domain.AssetDetails, error) {
	st := d.Snapshot()
	asset, ok := domain.FindAsset(st.Assets, ticker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAsset, ticker)
	}

	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	details, err := d.analyzer.AssetDetails(ctx, asset, st.Assets)
	if err != nil {
		return nil, fmt.Errorf("asset details for %s: %w", ticker, err)
	}
	return details, nil
}

// Scenarios returns the scenario catalog
func (d *Dashboard) Scenarios() []domain.Scenario {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return cloneScenarios(d.scenarios)
}

// Scenario looks up a scenario by name
func (d *Dashboard) Scenario(name string) (domain.Scenario, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	sc, ok := domain.FindScenario(d.scenarios, name)
	if !ok {
		return domain.Scenario{}, false
	}
	return sc.Clone(), true
}

// ReplaceScenarios swaps the scenario catalog
func (d *Dashboard) ReplaceScenarios(scenarios []domain.Scenario) {
	d.mu.Lock()
	d.scenarios = cloneScenarios(scenarios)
	d.mu.Unlock()

	d.logger.Info("scenario catalog replaced", zap.Int("scenarios", len(scenarios)))
	d.publish(EventScenariosReloaded, map[string]int{"count": len(scenarios)})
}

// History returns recorded analysis runs, newest first
func (d *Dashboard) History(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	if d.repo == nil {
		return []domain.AnalysisRun{}, nil
	}
	runs, err := d.repo.ListRuns(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list analysis history: %w", err)
	}
	return runs, nil
}

// RestorePortfolio loads the last persisted portfolio, if any
func (d *Dashboard) RestorePortfolio(ctx context.Context) ([]domain.Asset, error) {
	if d.repo == nil {
		return nil, nil
	}
	return d.repo.LoadPortfolio(ctx)
}

func (d *Dashboard) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

func (d *Dashboard) newRun(kind domain.AnalysisKind, trigger string, st State) *domain.AnalysisRun {
	return &domain.AnalysisRun{
		ID:         uuid.NewString(),
		Kind:       kind,
		Trigger:    trigger,
		Assets:     domain.CloneAssets(st.Assets),
		NodeStates: domain.NodeStates(st.Nodes),
		StartedAt:  time.Now(),
	}
}

// finishRun records the outcome of a run and returns its duration
func (d *Dashboard) finishRun(ctx context.Context, run *domain.AnalysisRun, result *domain.AnalysisResult, hedges string, err error) time.Duration {
	elapsed := time.Since(run.StartedAt)
	run.DurationMS = elapsed.Milliseconds()
	run.Result = result.Clone()
	run.Hedges = hedges
	if err != nil {
		run.Error = err.Error()
	}
	d.metrics.ObserveAnalysis(string(run.Kind), err, elapsed)

	if d.repo != nil {
		if rerr := d.repo.RecordRun(context.WithoutCancel(ctx), run); rerr != nil {
			d.logger.Warn("failed to record analysis run", zap.String("run", run.ID), zap.Error(rerr))
		}
	}
	return elapsed
}

func cloneScenarios(in []domain.Scenario) []domain.Scenario {
	out := make([]domain.Scenario, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
