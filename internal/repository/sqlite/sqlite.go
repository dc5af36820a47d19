package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"riskgraph/internal/domain"

	_ "modernc.org/sqlite"
)

const portfolioKey = "portfolio"

// Repository implements repository.Repository using SQLite
type Repository struct {
	db *sql.DB
}

// New creates a new SQLite repository
func New(dbPath string) (*Repository, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps :memory: databases shared and writes serialized
	db.SetMaxOpenConns(1)

	repo := &Repository{db: db}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return repo, nil
}

func (r *Repository) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS analysis_runs (
		id TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		trigger_name TEXT,
		assets JSON,
		node_states JSON,
		result JSON,
		hedges TEXT,
		error TEXT,
		started_at INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value JSON NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_analysis_runs_started ON analysis_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_analysis_runs_kind ON analysis_runs(kind);
	`

	_, err := r.db.Exec(schema)
	return err
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// RecordRun stores an analysis run. Re-recording an id replaces it.
func (r *Repository) RecordRun(ctx context.Context, run *domain.AnalysisRun) error {
	if run.ID == "" {
		return fmt.Errorf("analysis run id is required")
	}

	assets, err := marshalToNull(run.Assets)
	if err != nil {
		return fmt.Errorf("failed to marshal assets: %w", err)
	}
	states, err := marshalToNull(run.NodeStates)
	if err != nil {
		return fmt.Errorf("failed to marshal node states: %w", err)
	}
	var result sql.NullString
	if run.Result != nil {
		if result, err = marshalToNull(run.Result); err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		string(run.Kind),
		stringToNull(run.Trigger),
		assets,
		states,
		result,
		stringToNull(run.Hedges),
		stringToNull(run.Error),
		timeToMillis(run.StartedAt),
		run.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis run: %w", err)
	}
	return nil
}

// GetRun retrieves a run by id. Returns nil, nil when absent.
func (r *Repository) GetRun(ctx context.Context, id string) (*domain.AnalysisRun, error) {
	var row runRow
	err := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM analysis_runs WHERE id = ?`, id).Scan(row.scanArgs()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis run: %w", err)
	}
	return row.toDomain()
}

// ListRuns returns up to limit runs, newest first. limit <= 0 returns all.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]domain.AnalysisRun, error) {
	query := `SELECT ` + runColumns + ` FROM analysis_runs ORDER BY started_at DESC, rowid DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis runs: %w", err)
	}
	defer rows.Close()

	runs := []domain.AnalysisRun{}
	for rows.Next() {
		var row runRow
		if err := rows.Scan(row.scanArgs()...); err != nil {
			return nil, fmt.Errorf("failed to scan analysis run: %w", err)
		}
		run, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating analysis runs: %w", err)
	}
	return runs, nil
}

// SavePortfolio stores the current portfolio
func (r *Repository) SavePortfolio(ctx context.Context, assets []domain.Asset) error {
	if assets == nil {
		assets = []domain.Asset{}
	}
	data, err := json.Marshal(assets)
	if err != nil {
		return fmt.Errorf("failed to marshal portfolio: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, portfolioKey, string(data), timeToMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to save portfolio: %w", err)
	}
	return nil
}

// LoadPortfolio returns the stored portfolio, or nil when none was saved
func (r *Repository) LoadPortfolio(ctx context.Context) ([]domain.Asset, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, portfolioKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio: %w", err)
	}

	var assets []domain.Asset
	if err := json.Unmarshal([]byte(value), &assets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal portfolio: %w", err)
	}
	return assets, nil
}

// toDomain converts a scanned row to a domain.AnalysisRun
func (row *runRow) toDomain() (*domain.AnalysisRun, error) {
	run := &domain.AnalysisRun{
		ID:         row.ID,
		Kind:       domain.AnalysisKind(row.Kind),
		Trigger:    nullToString(row.Trigger),
		Hedges:     nullToString(row.Hedges),
		Error:      nullToString(row.Error),
		StartedAt:  millisToTime(row.StartedAt),
		DurationMS: row.DurationMS,
	}

	if err := unmarshalJSONField(row.AssetsJSON, &run.Assets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal assets for run %s: %w", row.ID, err)
	}
	if err := unmarshalJSONField(row.NodeStatesJSON, &run.NodeStates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node states for run %s: %w", row.ID, err)
	}
	if row.ResultJSON.Valid {
		run.Result = &domain.AnalysisResult{}
		if err := unmarshalJSONField(row.ResultJSON, run.Result); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result for run %s: %w", row.ID, err)
		}
	}
	return run, nil
}
