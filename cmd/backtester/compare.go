package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/backtest"
	"github.com/ChiShengChen/katana-amm-backtest/internal/config"
	"github.com/ChiShengChen/katana-amm-backtest/internal/events"
	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage/postgres"
	"github.com/ChiShengChen/katana-amm-backtest/internal/strategy"
)

func runCompare(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCompare(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("input path is required")
	}
	btCfg, err := cfg.Backtest()
	if err != nil {
		return err
	}
	kinds, err := cfg.Kinds()
	if err != nil {
		return err
	}

	evts, _, err := events.Load(cfg.Input, logger)
	if err != nil {
		return err
	}

	bt := backtest.NewBacktester(btCfg, logger)
	if err := bt.LoadEvents(evts); err != nil {
		return err
	}

	strategies := make([]strategy.Strategy, 0, len(kinds))
	for _, kind := range kinds {
		s, err := strategy.New(kind, btCfg.Strategy, logger)
		if err != nil {
			return err
		}
		strategies = append(strategies, s)
	}

	logger.Info("compare start",
		zap.String("in", cfg.Input),
		zap.Int("strategies", len(strategies)),
		zap.Bool("baselines", cfg.Baselines),
		zap.String("out", cfg.Out),
	)

	var results []model.StrategyResult
	if cfg.Baselines {
		results, err = bt.CompareWithBaselines(strategies)
	} else {
		results, err = bt.Compare(strategies)
	}
	if err != nil {
		return err
	}

	if cfg.Out != "" {
		if err := storage.WriteJSON(filepath.Join(cfg.Out, storage.ResultsFile), results); err != nil {
			return err
		}
		for _, r := range results {
			path := filepath.Join(cfg.Out, "values_"+seriesName(r.Name)+".jsonl")
			if err := storage.WriteJSONL(path, r.ValueHistory); err != nil {
				return err
			}
		}
	}

	if cfg.PGDSN != "" {
		record := model.RunRecord{
			Mode:   model.RunModeCompare,
			Input:  cfg.Input,
			Params: cfg,
		}
		if len(results) > 0 && len(results[0].ValueHistory) > 0 {
			history := results[0].ValueHistory
			record.StartTime = history[0].Timestamp
			record.EndTime = history[len(history)-1].Timestamp
		}
		if err := persistRun(logger, cfg.PGDSN, record, func(ctx context.Context, store *postgres.Store, id uuid.UUID) error {
			for _, r := range results {
				if err := store.InsertValuePoints(ctx, id, seriesName(r.Name), r.ValueHistory); err != nil {
					return fmt.Errorf("store values of %s: %w", r.Name, err)
				}
			}
			return store.UpsertResults(ctx, id, results)
		}); err != nil {
			return err
		}
	}

	return printResults(cmd.OutOrStdout(), results)
}

func printResults(w io.Writer, results []model.StrategyResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "strategy\tkind\treturn %\tmax dd %\tsharpe\tfees\tnet fees\trebalances\tIL %\tin range %")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t%.1f\n",
			r.Name, r.Kind, r.TotalReturnPct, r.MaxDrawdownPct, r.SharpeRatio,
			r.TotalFeesEarned, r.NetFeesEarned, r.RebalanceCount, r.ImpermanentLossPct, r.TimeInRangePct)
	}
	return tw.Flush()
}

// seriesName turns a strategy name into a file and series key.
func seriesName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
				b.WriteByte('_')
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
