package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"
)

// ============================================================================
// Null Type Conversion Helpers
// ============================================================================

// nullToString safely converts sql.NullString to string
func nullToString(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// stringToNull safely converts string to sql.NullString
func stringToNull(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// ============================================================================
// JSON Marshaling Helpers
// ============================================================================

// unmarshalJSONField safely unmarshals JSON from nullable string into target
func unmarshalJSONField(ns sql.NullString, target interface{}) error {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(ns.String), target)
}

// marshalToNull marshals a value to a nullable JSON string.
// Nil pointers store NULL.
func marshalToNull(v interface{}) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}

	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	if string(data) == "null" {
		return sql.NullString{}, nil
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// ============================================================================
// Time Helpers
// ============================================================================

// Times are stored as unix milliseconds so ordering is a plain integer compare

func timeToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ============================================================================
// Analysis Run Row Scanner
// ============================================================================

// runColumns lists the analysis_runs columns in scan order
const runColumns = `id, kind, trigger_name, assets, node_states, result, hedges, error, started_at, duration_ms`

// runRow holds all columns from an analysis run query
type runRow struct {
	ID             string
	Kind           string
	Trigger        sql.NullString
	AssetsJSON     sql.NullString
	NodeStatesJSON sql.NullString
	ResultJSON     sql.NullString
	Hedges         sql.NullString
	Error          sql.NullString
	StartedAt      int64
	DurationMS     int64
}

// scanArgs returns pointers to all fields for sql.Scan().
// MUST match runColumns order exactly.
func (r *runRow) scanArgs() []interface{} {
	return []interface{}{
		&r.ID,
		&r.Kind,
		&r.Trigger,
		&r.AssetsJSON,
		&r.NodeStatesJSON,
		&r.ResultJSON,
		&r.Hedges,
		&r.Error,
		&r.StartedAt,
		&r.DurationMS,
	}
}
