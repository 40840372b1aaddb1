// optionscope scan - run one screening pass from the command line and
// print the ranked shortlist as a table. The run is persisted to the
// scans database exactly like scheduled and API-triggered scans.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aristath/optionscope/internal/clients/polygon"
	"github.com/aristath/optionscope/internal/config"
	"github.com/aristath/optionscope/internal/database"
	"github.com/aristath/optionscope/internal/modules/scans"
	"github.com/aristath/optionscope/internal/providers"
	"github.com/aristath/optionscope/internal/screener"
	"github.com/aristath/optionscope/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run an options screen and print the ranked shortlist",
	RunE: func(cmd *cobra.Command, args []string) error {
		screen, _ := cmd.Flags().GetString("screen")
		symbols, _ := cmd.Flags().GetStringSlice("symbols")
		limit, _ := cmd.Flags().GetInt("limit")
		dteMin, _ := cmd.Flags().GetInt("dte-min")
		dteMax, _ := cmd.Flags().GetInt("dte-max")
		deltaMin, _ := cmd.Flags().GetFloat64("delta-min")
		deltaMax, _ := cmd.Flags().GetFloat64("delta-max")
		noRegime, _ := cmd.Flags().GetBool("no-regime")

		screenType := screener.ScreenType(screen)
		if !screenType.Valid() {
			return fmt.Errorf("screen must be %q or %q", screener.OTMCalls, screener.OTMPuts)
		}

		criteria := screener.DefaultCriteria(screenType)
		criteria.Limit = limit
		criteria.DTEMin = dteMin
		criteria.DTEMax = dteMax
		criteria.DeltaMin = deltaMin
		criteria.DeltaMax = deltaMax
		criteria.RegimeAware = !noRegime

		return runScan(symbols, criteria)
	},
}

func runScan(symbols []string, criteria screener.Criteria) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.PolygonAPIKey == "" {
		return fmt.Errorf("POLYGON_API_KEY is required for live scans")
	}

	// CLI runs keep logs quiet unless something goes wrong
	log := logger.New(logger.Config{Level: "warn", Pretty: true})

	scansDB, err := database.New(database.Config{
		Path:    filepath.Join(cfg.DataDir, "scans.db"),
		Profile: database.ProfileStandard,
		Name:    "scans",
	})
	if err != nil {
		return fmt.Errorf("failed to open scans database: %w", err)
	}
	defer scansDB.Close()

	repo, err := scans.NewRepository(scansDB.Conn(), log)
	if err != nil {
		return err
	}

	polygonClient := polygon.New(cfg.PolygonAPIKey, log)
	service := scans.NewService(
		polygonClient,
		providers.StaticRateProvider{Rate: cfg.RiskFreeRate},
		providers.StaticDividendProvider{Default: cfg.DefaultDividendYield},
		polygonClient,
		screener.New(screener.DefaultWeights(), cfg.ScanWorkers, log),
		repo,
		scans.ServiceConfig{
			VolIndex:       cfg.VolIndex,
			RegimeWindow:   cfg.RegimeWindow,
			DefaultSymbols: cfg.ScanSymbols,
		},
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	outcome, err := service.RunScan(ctx, symbols, criteria)
	if err != nil {
		return err
	}

	if outcome.Regime != nil {
		fmt.Printf("Regime: %s (index %.2f, percentile %.0f)\n",
			outcome.Regime.Regime, outcome.Regime.Level, outcome.Regime.Percentile)
	} else {
		fmt.Println("Regime: unavailable, screening without adjustment")
	}
	fmt.Printf("Run %s: %d results\n\n", outcome.Run.ID, len(outcome.Opportunities))

	printTable(outcome)
	return nil
}

func printTable(outcome *scans.Outcome) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{
		"#", "Symbol", "Type", "Strike", "Exp", "DTE",
		"Mid", "Delta", "IV", "POP%", "Score",
	})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)

	for i, opp := range outcome.Opportunities {
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			opp.Contract.Symbol,
			string(opp.Contract.Type),
			fmt.Sprintf("%.2f", opp.Contract.Strike),
			opp.Contract.Expiration.Format("2006-01-02"),
			fmt.Sprintf("%d", opp.DTE),
			fmt.Sprintf("%.2f", opp.Contract.Quote.Mid()),
			fmt.Sprintf("%.3f", opp.Analysis.Greeks.Delta),
			fmt.Sprintf("%.1f%%", opp.Contract.Quote.ImpliedVol*100),
			fmt.Sprintf("%.1f", opp.Analysis.ProbabilityOfProfit),
			fmt.Sprintf("%.1f", opp.Score),
		})
	}

	table.Render()
}

func main() {
	defaults := screener.DefaultCriteria(screener.OTMCalls)

	rootCmd.Flags().String("screen", string(screener.OTMCalls), "Screen type: otm_calls or otm_puts")
	rootCmd.Flags().StringSlice("symbols", nil, "Underlyings to scan (default: configured universe)")
	rootCmd.Flags().Int("limit", screener.DefaultLimit, "Maximum results")
	rootCmd.Flags().Int("dte-min", defaults.DTEMin, "Minimum days to expiration")
	rootCmd.Flags().Int("dte-max", defaults.DTEMax, "Maximum days to expiration")
	rootCmd.Flags().Float64("delta-min", defaults.DeltaMin, "Minimum absolute delta")
	rootCmd.Flags().Float64("delta-max", defaults.DeltaMax, "Maximum absolute delta")
	rootCmd.Flags().Bool("no-regime", false, "Skip regime-based criteria adjustment")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
