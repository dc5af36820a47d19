package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"riskgraph/internal/codec"
	"riskgraph/internal/domain"
	"riskgraph/internal/loader"
	"riskgraph/internal/repository"
	"riskgraph/internal/repository/sqlite"
	"riskgraph/internal/service"
)

var (
	portfolioPath string
	scenarioName  string
	outputFormat  string
	diagnose      bool
	hedge         bool
	exportCatalog bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one risk analysis and print the result",
	Long: `Loads a portfolio, optionally applies a stress scenario, and asks the
model for per-holding drop probabilities. With --diagnose the model instead
explains a drop that already happened. --hedge adds hedging suggestions.

Example:
  riskgraph analyze --portfolio book.yaml --scenario "Stagflation Shock" --hedge`,
	RunE: runAnalyze,
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print the risk network built for a portfolio",
	RunE:  runGraph,
}

var scenariosCmd = &cobra.Command{
	Use:   "scenarios",
	Short: "List the stress scenario catalog",
	RunE:  runScenarios,
}

func init() {
	for _, cmd := range []*cobra.Command{analyzeCmd, graphCmd} {
		cmd.Flags().StringVarP(&portfolioPath, "portfolio", "p", "", "portfolio file, JSON or YAML (default: built-in holdings)")
		cmd.Flags().StringVarP(&scenarioName, "scenario", "s", "", "apply a stress scenario first")
		cmd.Flags().StringVarP(&outputFormat, "format", "f", "json", "output format: json or yaml")
	}
	analyzeCmd.Flags().BoolVar(&diagnose, "diagnose", false, "diagnose a portfolio drop instead of forecasting impact")
	analyzeCmd.Flags().BoolVar(&hedge, "hedge", false, "request hedging suggestions after the analysis")
	analyzeCmd.MarkFlagsMutuallyExclusive("diagnose", "hedge")

	scenariosCmd.Flags().BoolVar(&exportCatalog, "export", false, "print the merged catalog as YAML")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	assets, err := portfolioFrom(portfolioPath)
	if err != nil {
		return err
	}
	analyzer, err := newAnalyzer(ctx, nil)
	if err != nil {
		return err
	}
	scenarios, err := loader.ResolveScenarios(cfg.Scenarios.File)
	if err != nil {
		return err
	}

	var repo repository.Repository
	if cfg.Database.Path != "" {
		db, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		repo = db
	}

	dash := service.NewDashboard(service.Options{
		Analyzer:   analyzer,
		Repository: repo,
		Logger:     logger,
		Timeout:    cfg.Analysis.RequestTimeout.Duration(),
		Scenarios:  scenarios,
	})

	if _, err := dash.LoadPortfolio(ctx, assets, false); err != nil {
		return err
	}

	if diagnose && scenarioName != "" {
		logger.Warn("--scenario is ignored with --diagnose")
	}

	var st service.State
	switch {
	case diagnose:
		st, err = dash.Diagnose(ctx)
	case scenarioName != "":
		st, err = dash.ApplyScenario(ctx, scenarioName)
	default:
		st, err = dash.Analyze(ctx)
	}
	if err != nil {
		return err
	}
	if hedge {
		if st, err = dash.SuggestHedges(ctx); err != nil {
			return err
		}
	}

	logger.Debug("analysis finished", zap.Int("impacts", len(st.Result.AssetImpacts)))
	return writeResult(cmd.OutOrStdout(), st.Result)
}

func writeResult(w io.Writer, result *domain.AnalysisResult) error {
	if outputFormat == "yaml" || outputFormat == "yml" {
		// results carry only json tags; round-trip through a generic map
		// so YAML keys match the API
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		var generic map[string]any
		if err := json.Unmarshal(data, &generic); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(generic)
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

func runGraph(cmd *cobra.Command, args []string) error {
	assets, err := portfolioFrom(portfolioPath)
	if err != nil {
		return err
	}
	exp, err := codec.ForFormat(outputFormat)
	if err != nil {
		return err
	}

	graph := domain.BuildGraph(assets)
	if scenarioName != "" {
		scenarios, err := loader.ResolveScenarios(cfg.Scenarios.File)
		if err != nil {
			return err
		}
		sc, ok := domain.FindScenario(scenarios, scenarioName)
		if !ok {
			return fmt.Errorf("%w: %s", service.ErrUnknownScenario, scenarioName)
		}
		graph.Nodes = domain.ApplyScenario(graph.Nodes, sc)
	}
	return exp.ExportGraph(graph, cmd.OutOrStdout())
}

func runScenarios(cmd *cobra.Command, args []string) error {
	scenarios, err := loader.ResolveScenarios(cfg.Scenarios.File)
	if err != nil {
		return err
	}
	for _, w := range loader.Lint(scenarios) {
		logger.Warn("scenario catalog", zap.String("warning", w))
	}

	out := cmd.OutOrStdout()
	if exportCatalog {
		data, err := loader.ExportScenarios(scenarios)
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	for _, sc := range scenarios {
		fmt.Fprintf(out, "%s\n  %s\n", sc.Name, sc.Description)
		ids := make([]string, 0, len(sc.Settings))
		for id := range sc.Settings {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(out, "    %-18s %s\n", id, sc.Settings[id])
		}
	}
	return nil
}
