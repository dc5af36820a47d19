// Package analysis is the boundary to the external AI analysis service.
//
// Service turns portfolio composition and risk factor states into prompts,
// asks a Generator for schema-constrained JSON and decodes the answer into
// domain types. Fields missing from the response decode to zero values.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"riskgraph/internal/domain"
)

// Analyzer is the contract of the analysis collaborator
type Analyzer interface {
	AnalyzeRisk(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error)
	DiagnosePortfolioDrop(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error)
	SuggestHedges(ctx context.Context, assets []domain.Asset, result *domain.AnalysisResult) (string, error)
	AssetDetails(ctx context.Context, asset domain.Asset, portfolio []domain.Asset) (*domain.AssetDetails, error)
}

// Service implements Analyzer on top of a Generator
type Service struct {
	gen    Generator
	logger *zap.Logger
}

// NewService creates a new analysis service
func NewService(gen Generator, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{gen: gen, logger: logger.Named("analysis")}
}

// AnalyzeRisk estimates per-asset drop probabilities under the current states
func (s *Service) AnalyzeRisk(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error) {
	raw, err := s.gen.GenerateJSON(ctx, riskPrompt(assets, nodes), riskSchema())
	if err != nil {
		return nil, fmt.Errorf("analyze risk: %w", err)
	}
	result, err := decodeResult(raw)
	if err != nil {
		return nil, fmt.Errorf("analyze risk: %w", err)
	}
	s.logger.Debug("risk analysis decoded",
		zap.Int("impacts", len(result.AssetImpacts)),
		zap.Float64("drawdown", result.PortfolioDrawdown))
	return result, nil
}

// DiagnosePortfolioDrop explains an observed drop, populating causal factors
func (s *Service) DiagnosePortfolioDrop(ctx context.Context, assets []domain.Asset, nodes []domain.Node) (*domain.AnalysisResult, error) {
	raw, err := s.gen.GenerateJSON(ctx, diagnosePrompt(assets, nodes), diagnosisSchema())
	if err != nil {
		return nil, fmt.Errorf("diagnose drop: %w", err)
	}
	result, err := decodeResult(raw)
	if err != nil {
		return nil, fmt.Errorf("diagnose drop: %w", err)
	}
	if result.CausalFactors == nil {
		result.CausalFactors = []domain.CausalFactor{}
	}
	s.logger.Debug("diagnosis decoded", zap.Int("factors", len(result.CausalFactors)))
	return result, nil
}

// SuggestHedges returns free-text hedging ideas for the latest result
func (s *Service) SuggestHedges(ctx context.Context, assets []domain.Asset, result *domain.AnalysisResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("suggest hedges: no analysis result")
	}
	text, err := s.gen.GenerateText(ctx, hedgePrompt(assets, result))
	if err != nil {
		return "", fmt.Errorf("suggest hedges: %w", err)
	}
	return text, nil
}

// AssetDetails returns volatility, correlations and an insight for one holding
func (s *Service) AssetDetails(ctx context.Context, asset domain.Asset, portfolio []domain.Asset) (*domain.AssetDetails, error) {
	raw, err := s.gen.GenerateJSON(ctx, assetDetailsPrompt(asset, portfolio), assetDetailsSchema())
	if err != nil {
		return nil, fmt.Errorf("asset details: %w", err)
	}
	var details domain.AssetDetails
	if err := json.Unmarshal([]byte(stripFences(raw)), &details); err != nil {
		return nil, fmt.Errorf("asset details: parse response: %w", err)
	}
	if details.CorrelationMatrix == nil {
		details.CorrelationMatrix = []domain.Correlation{}
	}
	return &details, nil
}

func decodeResult(raw string) (*domain.AnalysisResult, error) {
	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(stripFences(raw)), &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.AssetImpacts == nil {
		result.AssetImpacts = []domain.AssetImpact{}
	}
	if result.VulnerableAssets == nil {
		result.VulnerableAssets = []string{}
	}
	return &result, nil
}

// stripFences removes a markdown code fence some models wrap JSON in
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
