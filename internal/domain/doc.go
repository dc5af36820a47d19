// Package domain defines the core types of the riskgraph portfolio risk dashboard.
//
// This package contains the entities and value objects that describe a risk
// dependency network: macroeconomic and geopolitical risk factors feeding into
// portfolio holdings.
//
// # Core Types
//
// Node is a vertex of the network. Risk nodes carry a small enumerated set of
// qualitative states (interest rate: Cut/Hold/Hike). Asset nodes represent
// holdings and carry an impact probability once an analysis has run.
//
// Edge is a directed dependency between two nodes.
//
// Asset is a portfolio holding with ticker, weight and sector.
//
// Scenario is a named preset that force-sets several risk node states at once
// to model a stress event.
//
// AnalysisResult holds per-asset drop probabilities, the expected drawdown and
// a narrative summary produced by the analysis service.
//
// # Graph Construction
//
// BuildGraph turns a portfolio into the fixed risk nodes followed by one asset
// node per holding. Asset dependencies are inferred from the sector and asset
// nodes are stacked in the rightmost column.
//
// # Reducers
//
// ApplyScenario, SetNodeState and MergeImpacts are pure functions: they never
// mutate their input and always return fresh copies.
//
// # Design Principles
//
// - Immutable value objects where possible
// - No database or external dependencies
// - Pure domain logic without infrastructure concerns
package domain
