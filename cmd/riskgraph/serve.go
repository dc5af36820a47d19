package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"riskgraph/internal/codec"
	"riskgraph/internal/domain"
	"riskgraph/internal/handler"
	"riskgraph/internal/hub"
	"riskgraph/internal/loader"
	"riskgraph/internal/metrics"
	"riskgraph/internal/repository"
	"riskgraph/internal/repository/sqlite"
	"riskgraph/internal/service"
	"riskgraph/internal/watcher"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP API and event stream",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "HTTP listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	logger.Info("starting riskgraph")
	for _, line := range strings.Split(cfg.Summary(), "\n") {
		logger.Info(line)
	}

	m := metrics.New()

	var repo repository.Repository
	if cfg.Database.Path != "" {
		db, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		repo = db
		logger.Info("database opened", zap.String("path", cfg.Database.Path))
	}

	analyzer, err := newAnalyzer(ctx, m)
	if err != nil {
		return err
	}

	scenarios, err := loader.ResolveScenarios(cfg.Scenarios.File)
	if err != nil {
		return err
	}
	for _, w := range loader.Lint(scenarios) {
		logger.Warn("scenario catalog", zap.String("warning", w))
	}

	bus := service.NewEventBus()
	dash := service.NewDashboard(service.Options{
		Analyzer:   analyzer,
		Repository: repo,
		EventBus:   bus,
		Metrics:    m,
		Logger:     logger,
		Timeout:    cfg.Analysis.RequestTimeout.Duration(),
		Scenarios:  scenarios,
	})

	sseHub := hub.New(logger, m)
	events := make(chan service.Event, 100)
	bus.Subscribe(events)
	defer bus.Unsubscribe(events)

	mux := http.NewServeMux()
	handler.NewDashboardHandler(dash, logger).Register(mux)
	mux.Handle("GET /events", sseHub)
	mux.Handle("GET /metrics", m.Handler())

	server := &http.Server{
		Addr: cfg.Server.Addr,
		Handler: handler.Chain(mux,
			handler.Recover(logger),
			handler.Logger(logger),
			handler.Metrics(m),
			handler.CORS(cfg.Server.CORSOrigin),
		),
		ReadTimeout: cfg.Server.ReadTimeout.Duration(),
		// zero leaves SSE streams open indefinitely
		WriteTimeout: cfg.Server.WriteTimeout.Duration(),
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sseHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case ev := <-events:
				sseHub.Broadcast(ev)
			}
		}
	})

	if cfg.Scenarios.File != "" && cfg.Scenarios.Watch {
		path := cfg.Scenarios.File
		w := watcher.New(path, func() {
			reloaded, err := loader.ResolveScenarios(path)
			if err != nil {
				logger.Error("scenario reload failed, keeping previous catalog", zap.Error(err))
				return
			}
			for _, warning := range loader.Lint(reloaded) {
				logger.Warn("scenario catalog", zap.String("warning", warning))
			}
			dash.ReplaceScenarios(reloaded)
		}, logger)
		g.Go(func() error {
			if err := w.Watch(gctx); err != nil && !errors.Is(err, context.Canceled) {
				// The catalog stays usable without live reload
				logger.Warn("scenario watcher stopped", zap.Error(err))
			}
			return nil
		})
	}

	g.Go(func() error {
		loadInitialPortfolio(gctx, dash)
		return nil
	})

	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

// loadInitialPortfolio seeds the dashboard from the configured file, then
// the last saved portfolio, then the default holdings.
func loadInitialPortfolio(ctx context.Context, dash *service.Dashboard) {
	var (
		assets []domain.Asset
		source string
	)

	if path := cfg.Portfolio.File; path != "" {
		parsed, err := codec.ParseFile(path)
		if err != nil {
			logger.Warn("failed to read portfolio file", zap.String("path", path), zap.Error(err))
		} else {
			assets, source = parsed, path
		}
	}
	if assets == nil {
		restored, err := dash.RestorePortfolio(ctx)
		if err != nil {
			logger.Warn("failed to restore saved portfolio", zap.Error(err))
		} else if len(restored) > 0 {
			assets, source = restored, "database"
		}
	}
	if assets == nil {
		assets, source = domain.DefaultAssets(), "defaults"
	}

	logger.Info("loading initial portfolio", zap.String("source", source), zap.Int("assets", len(assets)))
	if _, err := dash.LoadPortfolio(ctx, assets, cfg.Portfolio.AnalyzeOnStart); err != nil {
		logger.Warn("initial analysis failed", zap.Error(err))
	}
}
