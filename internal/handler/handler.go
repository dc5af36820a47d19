package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"riskgraph/internal/codec"
	"riskgraph/internal/domain"
	"riskgraph/internal/service"
)

// maxBodyBytes bounds uploaded portfolio documents
const maxBodyBytes = 1 << 20

const defaultHistoryLimit = 50

// DashboardHandler handles dashboard API requests
type DashboardHandler struct {
	dash   *service.Dashboard
	logger *zap.Logger
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(dash *service.Dashboard, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardHandler{dash: dash, logger: logger.Named("http")}
}

// Error response structure
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// NodeStateRequest is the body of PUT /api/nodes/{id}/state
type NodeStateRequest struct {
	State string `json:"state"`
}

// Register adds the API routes to mux
func (h *DashboardHandler) Register(mux *http.ServeMux) {
	// State
	mux.HandleFunc("GET /api/state", h.GetState)
	mux.HandleFunc("GET /api/graph", h.GetGraph)
	mux.HandleFunc("GET /api/assets", h.GetAssets)

	// Portfolio
	mux.HandleFunc("POST /api/portfolio", h.LoadPortfolio)
	mux.HandleFunc("GET /api/portfolio/export", h.ExportPortfolio)

	// Risk factors
	mux.HandleFunc("PUT /api/nodes/{id}/state", h.SetNodeState)
	mux.HandleFunc("POST /api/nodes/{id}/select", h.SelectNode)

	// Scenarios
	mux.HandleFunc("GET /api/scenarios", h.ListScenarios)
	mux.HandleFunc("POST /api/scenarios/{name}/apply", h.ApplyScenario)

	// Analysis
	mux.HandleFunc("POST /api/analyze", h.Analyze)
	mux.HandleFunc("POST /api/diagnose", h.Diagnose)
	mux.HandleFunc("POST /api/hedge", h.SuggestHedges)
	mux.HandleFunc("GET /api/analysis", h.GetAnalysis)
	mux.HandleFunc("GET /api/assets/{ticker}/details", h.AssetDetails)
	mux.HandleFunc("GET /api/history", h.History)

	mux.HandleFunc("GET /healthz", h.Health)
}

// GetState returns the full dashboard state
func (h *DashboardHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dash.Snapshot(), http.StatusOK)
}

// GetGraph returns nodes and edges
func (h *DashboardHandler) GetGraph(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dash.Snapshot().Graph(), http.StatusOK)
}

// GetAssets returns the current portfolio
func (h *DashboardHandler) GetAssets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dash.Snapshot().Assets, http.StatusOK)
}

// LoadPortfolio replaces the portfolio from a JSON or YAML body.
// ?analyze=true runs the risk analysis before responding.
func (h *DashboardHandler) LoadPortfolio(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = codec.FormatFromContentType(r.Header.Get("Content-Type"))
	}
	c, err := codec.ForFormat(format)
	if err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	analyze := false
	if v := r.URL.Query().Get("analyze"); v != "" {
		if analyze, err = strconv.ParseBool(v); err != nil {
			h.writeError(w, "Invalid analyze flag", err.Error(), http.StatusBadRequest)
			return
		}
	}

	assets, err := c.Parse(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, "Failed to parse portfolio", err.Error(), http.StatusBadRequest)
		return
	}
	assets, err = codec.Normalize(assets)
	if err != nil {
		h.writeError(w, "Invalid portfolio", err.Error(), http.StatusBadRequest)
		return
	}

	st, err := h.dash.LoadPortfolio(r.Context(), assets, analyze)
	if err != nil {
		h.writeServiceError(w, "Failed to load portfolio", err)
		return
	}
	h.writeJSON(w, st, http.StatusOK)
}

// ExportPortfolio downloads the current portfolio
func (h *DashboardHandler) ExportPortfolio(w http.ResponseWriter, r *http.Request) {
	c, err := codec.ForFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, "Unsupported format", err.Error(), http.StatusBadRequest)
		return
	}

	contentType := "application/json"
	if c.Format() == "yaml" {
		contentType = "application/x-yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=portfolio.%s", c.Format()))

	if err := c.Export(h.dash.Snapshot().Assets, w); err != nil {
		h.logger.Error("failed to export portfolio", zap.Error(err))
		// Can't write error response as we already set headers
		return
	}
}

// SetNodeState changes a risk factor's state
func (h *DashboardHandler) SetNodeState(w http.ResponseWriter, r *http.Request) {
	var req NodeStateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, "Invalid request body", err.Error(), http.StatusBadRequest)
		return
	}
	if req.State == "" {
		h.writeError(w, "Invalid request body", "state is required", http.StatusBadRequest)
		return
	}

	st, err := h.dash.SetNodeState(r.Context(), r.PathValue("id"), req.State)
	if err != nil {
		h.writeServiceError(w, "Failed to set node state", err)
		return
	}
	h.writeJSON(w, st, http.StatusOK)
}

// SelectNode selects an asset for the details panel
func (h *DashboardHandler) SelectNode(w http.ResponseWriter, r *http.Request) {
	st, err := h.dash.SelectNode(r.PathValue("id"))
	if err != nil {
		h.writeServiceError(w, "Failed to select node", err)
		return
	}
	h.writeJSON(w, st, http.StatusOK)
}

// ListScenarios returns the scenario catalog
func (h *DashboardHandler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, h.dash.Scenarios(), http.StatusOK)
}

// ApplyScenario applies a named scenario and re-runs the analysis
func (h *DashboardHandler) ApplyScenario(w http.ResponseWriter, r *http.Request) {
	st, err := h.dash.ApplyScenario(r.Context(), r.PathValue("name"))
	if err != nil {
		h.writeServiceError(w, "Failed to apply scenario", err)
		return
	}
	h.writeJSON(w, st, http.StatusOK)
}

// Analyze runs a risk analysis
func (h *DashboardHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	st, err := h.dash.Analyze(r.Context())
	if err != nil {
		h.writeServiceError(w, "Analysis failed", err)
		return
	}
	h.writeJSON(w, st, http.StatusOK)
}

// Diagnose explains an observed portfolio drop
func (h *DashboardHandler) Diagnose(w http.ResponseWriter, r *http.Request) {
	st, err := h.dash.Diagnose(r.Context())
	if err != nil {
		h.writeServiceError(w, "Diagnosis failed", err)
		return
	}
	h.writeJSON(w, st, http.StatusOK)
}

// SuggestHedges adds hedging suggestions to the current result. Without a
// result there is nothing to hedge and the unchanged state is returned.
func (h *DashboardHandler) SuggestHedges(w http.ResponseWriter, r *http.Request) {
	st, err := h.dash.SuggestHedges(r.Context())
	if errors.Is(err, service.ErrNoAnalysis) {
		h.writeJSON(w, st, http.StatusOK)
		return
	}
	if err != nil {
		h.writeServiceError(w, "Hedge suggestions failed", err)
		return
	}
	h.writeJSON(w, st, http.StatusOK)
}

// GetAnalysis returns the latest analysis result
func (h *DashboardHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	result := h.dash.Snapshot().Result
	if result == nil {
		h.writeError(w, "Not found", "no analysis result", http.StatusNotFound)
		return
	}
	h.writeJSON(w, result, http.StatusOK)
}

// AssetDetails returns volatility, correlations and insight for a holding
func (h *DashboardHandler) AssetDetails(w http.ResponseWriter, r *http.Request) {
	ticker := domain.NormalizeTicker(r.PathValue("ticker"))
	details, err := h.dash.AssetDetails(r.Context(), ticker)
	if err != nil {
		h.writeServiceError(w, "Failed to get asset details", err)
		return
	}
	h.writeJSON(w, details, http.StatusOK)
}

// History lists recorded analysis runs, newest first
func (h *DashboardHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			h.writeError(w, "Invalid limit", "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.dash.History(r.Context(), limit)
	if err != nil {
		h.writeServiceError(w, "Failed to list history", err)
		return
	}
	h.writeJSON(w, runs, http.StatusOK)
}

// Health reports liveness and whether an analysis is running
func (h *DashboardHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, map[string]interface{}{
		"status": "ok",
		"busy":   h.dash.Busy(),
	}, http.StatusOK)
}

// Helper methods

// statusFor maps service and analysis errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrAnalysisInFlight),
		errors.Is(err, service.ErrNoPortfolio):
		return http.StatusConflict
	case errors.Is(err, service.ErrUnknownScenario),
		errors.Is(err, service.ErrUnknownNode),
		errors.Is(err, service.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, codec.ErrInvalidPortfolio):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func (h *DashboardHandler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error(msg, zap.Error(err))
	}
	h.writeError(w, msg, err.Error(), code)
}

func (h *DashboardHandler) writeJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("failed to encode JSON", zap.Error(err))
	}
}

func (h *DashboardHandler) writeError(w http.ResponseWriter, error, details string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Details: details,
	}); err != nil {
		h.logger.Warn("failed to encode error response", zap.Error(err))
	}
}
