package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/backtest"
	"github.com/ChiShengChen/katana-amm-backtest/internal/config"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage"
)

func runIL(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadIL(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Input == "" {
		return fmt.Errorf("run directory is required")
	}

	amount0, amount1 := cfg.Amount0, cfg.Amount1
	if amount0 == 0 && amount1 == 0 {
		summary, err := storage.ReadSummary(cfg.Input)
		if err != nil {
			return fmt.Errorf("initial amounts: %w", err)
		}
		amount0, amount1 = summary.InitialAmount0, summary.InitialAmount1
	}

	values, err := storage.ReadValues(cfg.Input)
	if err != nil {
		return err
	}
	prices, err := storage.ReadPrices(cfg.Input)
	if err != nil {
		return err
	}

	series := backtest.ILSeries(values, prices, amount0, amount1)
	out := cfg.Out
	if out == "" {
		out = filepath.Join(cfg.Input, storage.ILFile)
	}
	if err := storage.WriteJSONL(out, series); err != nil {
		return err
	}

	summary := backtest.SummarizeIL(series)
	logger.Info("il complete",
		zap.String("out", out),
		zap.Int("points", summary.Points),
		zap.Int("dropped", len(values)-summary.Points),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "IL points: %d  mean: %.4f%%  min: %.4f%%  max: %.4f%%  final: %.4f%%\n",
		summary.Points, summary.Mean, summary.Min, summary.Max, summary.Final)
	return nil
}
