package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/yourusername/pairs-arb-backtest/pkg/archive"
	"github.com/yourusername/pairs-arb-backtest/pkg/backtest"
	"github.com/yourusername/pairs-arb-backtest/pkg/coint"
	"github.com/yourusername/pairs-arb-backtest/pkg/market"
	"github.com/yourusername/pairs-arb-backtest/pkg/provider"
	"github.com/yourusername/pairs-arb-backtest/pkg/publish"
	"github.com/yourusername/pairs-arb-backtest/pkg/store"
	"github.com/yourusername/pairs-arb-backtest/pkg/strategy/spread"
)

var strategyFlags = []cli.Flag{
	&cli.StringFlag{Name: "start-date", Usage: "start date YYYY-MM-DD (overrides config)"},
	&cli.StringFlag{Name: "end-date", Usage: "end date YYYY-MM-DD (overrides config)"},
	&cli.StringFlag{Name: "spread", Usage: "return_differential or price_differential"},
	&cli.IntFlag{Name: "window", Usage: "rolling window in trading days"},
	&cli.Float64Flag{Name: "z-entry", Usage: "entry threshold"},
	&cli.Float64Flag{Name: "z-exit", Usage: "exit threshold"},
	&cli.StringFlag{Name: "policy", Usage: "stateful or vectorized"},
	&cli.StringFlag{Name: "output", Usage: "output directory (overrides config)"},
}

// applyOverrides copies command line flags over the loaded config
func applyOverrides(c *cli.Context, config *backtest.Config, log *logrus.Entry) error {
	if v := c.String("start-date"); v != "" {
		config.Data.StartDate = v
		log.Infof("Start date overridden: %s", v)
	}
	if v := c.String("end-date"); v != "" {
		config.Data.EndDate = v
		log.Infof("End date overridden: %s", v)
	}
	if v := c.String("spread"); v != "" {
		config.Strategy.Spread = v
	}
	if c.IsSet("window") {
		config.Strategy.Window = c.Int("window")
	}
	if c.IsSet("z-entry") {
		config.Strategy.ZEntry = c.Float64("z-entry")
	}
	if c.IsSet("z-exit") {
		config.Strategy.ZExit = c.Float64("z-exit")
	}
	if v := c.String("policy"); v != "" {
		config.Strategy.Policy = v
	}
	if v := c.String("output"); v != "" {
		config.Output.ResultDir = v
		log.Infof("Output directory overridden: %s", v)
	}
	return config.Validate()
}

// loadAligned fetches and aligns the configured pair
func loadAligned(ctx context.Context, config *backtest.Config, log *logrus.Logger) (*market.AlignedSeries, error) {
	start, end, err := config.DateRange(timeNow())
	if err != nil {
		return nil, err
	}

	var p provider.PriceProvider
	switch config.Data.Source {
	case "clickhouse":
		ch, err := provider.NewClickHouseProvider(ctx, config.Data.ClickHouseDSN, config.Data.ClickHouseTable, log)
		if err != nil {
			return nil, err
		}
		defer ch.Close()
		p = ch
	default:
		p = provider.NewCSVProvider(config.Data.DataPath, log)
	}

	entry := log.WithField("component", "Provider")
	aligned, err := provider.LoadPair(ctx, p, config.Data.SymbolA, config.Data.SymbolB, start, end, config.Strategy.Window, entry)
	if err != nil {
		return nil, err
	}
	entry.Infof("Aligned %d trading days %s..%s", aligned.Len(),
		aligned.Points[0].Date.Format(backtest.DateLayout),
		aligned.Points[aligned.Len()-1].Date.Format(backtest.DateLayout))
	return aligned, nil
}

// resolveRiskFree fills analysis.risk_free_rate from RISK_FREE_RATE when unset
func resolveRiskFree(config *backtest.Config, log *logrus.Entry) error {
	rate, err := provider.RiskFreeRate(config.Analysis.RiskFreeRate)
	if err != nil {
		return err
	}
	config.Analysis.RiskFreeRate = rate
	switch {
	case rate != nil:
		log.Infof("Risk-free rate: %.4f", *rate)
	case config.Analysis.AllowZeroRiskFree:
		log.Warn("No risk-free rate available, using 0 as configured")
	}
	return nil
}

func cointCommand() *cli.Command {
	return &cli.Command{
		Name:  "coint",
		Usage: "test whether the pair is cointegrated",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "method", Usage: "adf or engle_granger (overrides config)"},
		}, strategyFlags...),
		Action: func(c *cli.Context) error {
			config, log, err := setup(c)
			if err != nil {
				return err
			}
			entry := log.WithField("component", "Coint")
			if v := c.String("method"); v != "" {
				config.Analysis.CointMethod = v
			}
			if err := applyOverrides(c, config, entry); err != nil {
				return err
			}

			aligned, err := loadAligned(c.Context, config, log)
			if err != nil {
				return err
			}
			params, err := config.RunParams()
			if err != nil {
				return err
			}
			s, err := spread.Compute(aligned, params.Spread)
			if err != nil {
				return err
			}
			report, err := coint.Validate(aligned, s.Spread, config.CointMethod())
			if err != nil {
				return err
			}

			fmt.Printf("Cointegration test (%s) %s / %s\n", report.Method, aligned.SymbolA, aligned.SymbolB)
			fmt.Printf("  Statistic:       %.4f\n", report.Statistic)
			fmt.Printf("  p-value:         %.4f\n", report.PValue)
			fmt.Printf("  Critical values: 1%% %.4f  5%% %.4f  10%% %.4f\n",
				report.CriticalValues.OnePct, report.CriticalValues.FivePct, report.CriticalValues.TenPct)
			fmt.Printf("  Half-life:       %.2f periods\n", report.HalfLife)
			fmt.Printf("  Verdict:         %s\n", report.Verdict)
			if report.Note != "" {
				fmt.Printf("  Note:            %s\n", report.Note)
			}
			return nil
		},
	}
}

func backtestCommand() *cli.Command {
	return &cli.Command{
		Name:  "backtest",
		Usage: "run the full pipeline and write reports",
		Flags: append([]cli.Flag{
			&cli.BoolFlag{Name: "publish", Usage: "publish the result to NATS"},
			&cli.BoolFlag{Name: "archive", Usage: "archive the result to MySQL"},
			&cli.BoolFlag{Name: "series", Usage: "include every derived series in the published payload"},
		}, strategyFlags...),
		Action: func(c *cli.Context) error {
			printBanner()
			config, log, err := setup(c)
			if err != nil {
				return err
			}
			entry := log.WithField("component", "Main")
			if err := applyOverrides(c, config, entry); err != nil {
				return err
			}
			if err := resolveRiskFree(config, entry); err != nil {
				return err
			}

			aligned, err := loadAligned(c.Context, config, log)
			if err != nil {
				return err
			}
			result, err := backtest.NewRunner(config, log).Run(c.Context, aligned)
			if err != nil {
				return err
			}
			backtest.WriteSummary(os.Stdout, result)

			if config.Output.GenerateReport {
				paths, err := backtest.NewReportGenerator(config, result).Generate()
				if err != nil {
					return err
				}
				for _, p := range paths {
					entry.Infof("Report saved to: %s", p)
				}
			}
			if config.Output.SaveFrame {
				path := filepath.Join(config.Output.ResultDir, fmt.Sprintf("frame_%s.csv", result.RunID))
				if err := store.SaveFrame(path, result.Frame); err != nil {
					return err
				}
				entry.Infof("Frame saved to: %s", path)
			}

			if c.Bool("publish") {
				if config.Publish.NATSURL == "" {
					return fmt.Errorf("--publish needs publish.nats_url or PAIRS_NATS_URL")
				}
				pub, err := publish.Connect(config.Publish.NATSURL, config.Publish.Subject, log)
				if err != nil {
					return err
				}
				defer pub.Close()
				if err := pub.WithSeries(c.Bool("series")).Publish(result); err != nil {
					return err
				}
			}

			if c.Bool("archive") {
				if config.Archive.MySQLDSN == "" {
					return fmt.Errorf("--archive needs archive.mysql_dsn or PAIRS_MYSQL_DSN")
				}
				db, err := archive.Open(config.Archive.MySQLDSN, log)
				if err != nil {
					return err
				}
				defer db.Close()
				if _, err := db.SaveRun(c.Context, result); err != nil {
					return err
				}
			}

			entry.Info("Backtest completed successfully")
			return nil
		},
	}
}

func optimizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "optimize",
		Usage: "grid search over window, z_entry and z_exit",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "goal", Usage: "sharpe, return or calmar (overrides config)"},
			&cli.IntFlag{Name: "workers", Usage: "parallel workers (overrides config)"},
			&cli.IntFlag{Name: "top", Usage: "number of top results to print (overrides config)"},
		}, strategyFlags...),
		Action: func(c *cli.Context) error {
			config, log, err := setup(c)
			if err != nil {
				return err
			}
			entry := log.WithField("component", "Main")
			if v := c.String("goal"); v != "" {
				config.Optimization.Goal = v
			}
			if c.IsSet("workers") {
				config.Optimization.Workers = c.Int("workers")
			}
			if c.IsSet("top") {
				config.Optimization.TopN = c.Int("top")
			}
			if err := applyOverrides(c, config, entry); err != nil {
				return err
			}
			if err := resolveRiskFree(config, entry); err != nil {
				return err
			}

			aligned, err := loadAligned(c.Context, config, log)
			if err != nil {
				return err
			}

			goal, err := backtest.ParseGoal(config.Optimization.Goal)
			if err != nil {
				return err
			}
			optimizer := backtest.NewOptimizer(config, log)
			optimizer.SetOptimizationGoal(goal)
			results, err := optimizer.GridSearch(c.Context, aligned)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				return fmt.Errorf("every parameter combination failed")
			}

			exporter := backtest.NewParamExporter(filepath.Join(config.Output.ResultDir, "optimal_params"))
			resultsFile, err := exporter.ExportOptimizationResults(config, results, goal)
			if err != nil {
				return err
			}
			entry.Infof("Exported all results to: %s", resultsFile)

			period := fmt.Sprintf("%s to %s",
				aligned.Points[0].Date.Format(backtest.DateLayout),
				aligned.Points[aligned.Len()-1].Date.Format(backtest.DateLayout))
			best := backtest.GetBestResult(results)
			paramFile, err := exporter.ExportOptimalParams(config, best, goal, period)
			if err != nil {
				return err
			}
			entry.Infof("Exported optimal parameters to: %s", paramFile)

			fmt.Println("Top parameter combinations")
			for _, r := range backtest.GetTopNResults(results, config.Optimization.TopN) {
				fmt.Printf("  #%-2d %s  score=%.4f  sharpe=%.4f  cum=%.2f%%  mdd=%.2f%%\n",
					r.Rank, r.Parameters, r.Score, r.Metrics.SharpeRatio,
					r.Metrics.CumulativeReturn*100, r.Metrics.MaxDrawdown*100)
			}
			return nil
		},
	}
}

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "compare, archive or apply an optimal parameter file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "current", Required: true, Usage: "optimal parameter file"},
			&cli.StringFlag{Name: "baseline", Usage: "baseline parameter file to compare against"},
			&cli.StringFlag{Name: "archive-dir", Usage: "copy the current file into this directory"},
			&cli.BoolFlag{Name: "mysql", Usage: "store the parameters in the MySQL archive"},
			&cli.StringFlag{Name: "write-config", Usage: "write the config with the parameters applied to this path"},
		},
		Action: func(c *cli.Context) error {
			config, log, err := setup(c)
			if err != nil {
				return err
			}
			entry := log.WithField("component", "Main")

			current, err := backtest.LoadOptimalParams(c.String("current"))
			if err != nil {
				return err
			}
			entry.Infof("Loaded optimal params from: %s (%s)", c.String("current"), current.Parameters)

			if path := c.String("baseline"); path != "" {
				baseline, err := backtest.LoadOptimalParams(path)
				if err != nil {
					return err
				}
				fmt.Print(backtest.CompareParams(baseline, current))
			}

			if dir := c.String("archive-dir"); dir != "" {
				exporter := backtest.NewParamExporter(dir)
				archived, err := exporter.ArchiveOptimalParams(c.String("current"), dir)
				if err != nil {
					return err
				}
				entry.Infof("Archived to: %s", archived)
			}

			if c.Bool("mysql") {
				if config.Archive.MySQLDSN == "" {
					return fmt.Errorf("--mysql needs archive.mysql_dsn or PAIRS_MYSQL_DSN")
				}
				db, err := archive.Open(config.Archive.MySQLDSN, log)
				if err != nil {
					return err
				}
				defer db.Close()
				if _, err := db.SaveOptimalParams(c.Context, current); err != nil {
					return err
				}
			}

			if path := c.String("write-config"); path != "" {
				if err := current.Apply(config); err != nil {
					return err
				}
				if err := backtest.SaveConfig(path, config); err != nil {
					return err
				}
				entry.Infof("Config with optimal parameters written to: %s", path)
			}
			return nil
		},
	}
}

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "recompute positions and performance from a saved frame",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "frame", Required: true, Usage: "frame CSV written by backtest"},
		},
		Action: func(c *cli.Context) error {
			config, log, err := setup(c)
			if err != nil {
				return err
			}
			entry := log.WithField("component", "Store")
			if err := resolveRiskFree(config, entry); err != nil {
				return err
			}

			frame, err := store.LoadFrame(c.String("frame"))
			if err != nil {
				return err
			}
			params, err := config.RunParams()
			if err != nil {
				return err
			}
			path, perf, err := backtest.Replay(frame, params.Signal, config.AnalysisParams())
			if err != nil {
				return err
			}
			entry.Infof("Replayed %d periods from %s", path.Len(), c.String("frame"))

			fmt.Printf("Cumulative Return: %.2f%%\n", perf.CumulativeReturn*100)
			fmt.Printf("Annualized Return: %.2f%%\n", perf.AnnualizedReturn*100)
			fmt.Printf("Sharpe Ratio:      %.4f\n", perf.SharpeRatio)
			fmt.Printf("Max Drawdown:      %.2f%%\n", perf.MaxDrawdown*100)
			fmt.Printf("Position Changes:  %d\n", perf.Trades)
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "list archived runs of the configured pair",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Value: 10, Usage: "number of runs"},
		},
		Action: func(c *cli.Context) error {
			config, log, err := setup(c)
			if err != nil {
				return err
			}
			if config.Archive.MySQLDSN == "" {
				return fmt.Errorf("history needs archive.mysql_dsn or PAIRS_MYSQL_DSN")
			}
			db, err := archive.Open(config.Archive.MySQLDSN, log)
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.RecentRuns(c.Context, config.Data.SymbolA, config.Data.SymbolB, c.Int("limit"))
			if err != nil {
				return err
			}
			fmt.Printf("%-36s  %-19s  %-6s  %-5s  %-5s  %10s  %8s\n",
				"RUN ID", "CREATED", "WINDOW", "ENTRY", "EXIT", "CUM RET", "SHARPE")
			for _, r := range runs {
				fmt.Printf("%-36s  %-19s  %-6d  %-5.2f  %-5.2f  %10s  %8s\n",
					r.RunID, r.CreatedAt.Format("2006-01-02 15:04:05"),
					r.Window, r.ZEntry, r.ZExit,
					optional(r.Metrics.CumulativeReturn, 100, "%.2f%%"),
					optional(r.Metrics.SharpeRatio, 1, "%.4f"))
			}
			return nil
		},
	}
}

// optional formats a nullable metric, scaled, or "n/a"
func optional(v *float64, scale float64, format string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf(format, *v*scale)
}
