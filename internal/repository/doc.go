// Package repository defines the data access interfaces for riskgraph.
//
// The dashboard state itself lives in memory; the repository only keeps
// what should survive a restart: the last loaded portfolio and the history
// of analysis runs. The implementation is in the sqlite subpackage.
//
// # SQLite Implementation
//
// The sqlite implementation uses the pure-Go modernc driver with WAL mode.
// It handles:
//
// - JSON serialization of assets, node states and results
// - Newest-first listing of analysis runs
// - Key/value metadata for the current portfolio
//
// # Schema Migration
//
// The sqlite repository creates its schema on startup with
// CREATE TABLE IF NOT EXISTS, preserving existing data.
//
// # Testing
//
// The sqlite repository is tested against in-memory databases.
package repository
