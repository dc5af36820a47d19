// Package service implements the business logic of the riskgraph dashboard.
//
// Dashboard sits between the HTTP handlers and the analysis service. It owns
// a single State value (portfolio, risk graph, latest analysis result,
// loading flag, selection) and replaces it only through small pure
// reducers, handing out deep copies to readers.
//
// # Concurrency
//
// Every mutation takes a one-slot semaphore without waiting. An analysis
// call keeps the slot until the analysis service answers, so a second
// trigger, a portfolio upload or a risk factor change arriving meanwhile is
// rejected with ErrAnalysisInFlight instead of racing the result merge.
//
// # Event System
//
// State changes are published on the EventBus. The server forwards them to
// connected browsers via Server-Sent Events (SSE).
//
// # History
//
// Each call to the analysis service is recorded as a domain.AnalysisRun in
// the optional repository, including failures and their duration.
package service
