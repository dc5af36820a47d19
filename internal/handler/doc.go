// Package handler implements HTTP request handlers for the riskgraph API.
//
// # Handlers
//
// DashboardHandler exposes the dashboard state, portfolio upload and
// export, risk factor changes, scenarios, and the analysis actions (risk
// analysis, drop diagnosis, hedge suggestions, asset details, history).
//
// Middleware provides panic recovery, request logging, metrics, and CORS
// support.
//
// # Response Format
//
// Mutations respond with the full dashboard state so clients can render
// without a second request. Error responses return JSON with {error,
// details} structure:
//
//   - 400 for unparseable or invalid portfolios and request bodies
//   - 404 for unknown scenarios, nodes and assets
//   - 409 while an analysis is in flight, without a portfolio, or when
//     hedging is requested before any analysis
//   - 502 when the analysis service fails, 504 when it times out
//
// # Server-Sent Events
//
// The /events endpoint (served by the hub package) streams dashboard events
// so clients can follow changes made by other sessions.
package handler
