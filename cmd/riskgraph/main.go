package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"riskgraph/internal/analysis"
	"riskgraph/internal/codec"
	"riskgraph/internal/config"
	"riskgraph/internal/domain"
	"riskgraph/internal/logging"
	"riskgraph/internal/metrics"
)

var (
	// Global flags
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "riskgraph",
	Short: "Portfolio risk dashboard driven by a macro risk factor network",
	Long: `riskgraph models a portfolio as a graph of holdings that depend on
macroeconomic, geopolitical and sector risk factors. Factor states can be
set by hand or through stress scenarios, and a generative model estimates
how likely each holding is to drop under those conditions.

Run "riskgraph serve" to start the dashboard API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var (
			path string
			err  error
		)
		if configPath != "" {
			cfg, path, err = config.LoadFromPath(configPath)
		} else {
			cfg, path, err = config.Load()
		}
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		if path != "" {
			logger.Debug("loaded config", zap.String("path", path))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: discovered riskgraph.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	rootCmd.AddCommand(serveCmd, analyzeCmd, graphCmd, scenariosCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newAnalyzer builds the Gemini-backed analyzer wrapped in the result cache
func newAnalyzer(ctx context.Context, m *metrics.Metrics) (analysis.Analyzer, error) {
	gen, err := analysis.NewGeminiGenerator(ctx, analysis.GeminiConfig{
		APIKey:      cfg.Analysis.APIKey,
		Model:       cfg.Analysis.Model,
		Temperature: cfg.Analysis.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set %s or analysis.api_key)", err, config.EnvAPIKey)
	}
	logger.Info("analysis model ready", zap.String("model", gen.Model()))

	svc := analysis.NewService(gen, logger)
	if ttl := cfg.Analysis.CacheTTL.Duration(); ttl > 0 {
		return analysis.NewCache(svc, ttl, m), nil
	}
	return svc, nil
}

// portfolioFrom reads a portfolio file, or returns the default holdings
// when path is empty.
func portfolioFrom(path string) ([]domain.Asset, error) {
	if path == "" {
		return domain.DefaultAssets(), nil
	}
	assets, err := codec.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("portfolio %s: %w", path, err)
	}
	return assets, nil
}
