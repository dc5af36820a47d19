package repository

import (
	"context"

	"riskgraph/internal/domain"
)

// Repository defines the interface for dashboard data access
type Repository interface {
	// Analysis history
	RecordRun(ctx context.Context, run *domain.AnalysisRun) error
	GetRun(ctx context.Context, id string) (*domain.AnalysisRun, error)
	ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error)

	// Portfolio persistence
	SavePortfolio(ctx context.Context, assets []domain.Asset) error
	LoadPortfolio(ctx context.Context) ([]domain.Asset, error)

	// Close releases resources
	Close() error
}
