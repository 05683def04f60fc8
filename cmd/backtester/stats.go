package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/aggregate"
	"github.com/ChiShengChen/katana-amm-backtest/internal/config"
	"github.com/ChiShengChen/katana-amm-backtest/internal/events"
	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage/postgres"
)

type statsReport struct {
	Input   string                `json:"input"`
	Failed  int                   `json:"failed_lines"`
	Summary events.Statistics     `json:"summary"`
	Windows []model.WindowMetrics `json:"windows"`
}

func runStats(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadStats(cfgFile, cmd.Flags())
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
	if cfg.PGDSN != "" && cfg.PoolAddress == "" {
		return fmt.Errorf("pool address is required with pg-dsn")
	}
	windowSeconds, err := cfg.WindowSeconds()
	if err != nil {
		return err
	}
	filter, err := cfg.Window.Filter()
	if err != nil {
		return err
	}

	loaded, loadStats, err := events.Load(cfg.Input, logger)
	if err != nil {
		return err
	}
	evts := events.Prepare(loaded, filter)

	report := statsReport{
		Input:   cfg.Input,
		Failed:  loadStats.Failed,
		Summary: events.Summarize(evts),
	}
	for _, secs := range windowSeconds {
		windows, err := aggregate.Windows(evts, aggregate.Config{
			WindowSeconds: secs,
			FeeTier:       cfg.Pool.FeeTier,
			Decimals0:     cfg.Pool.Decimals0,
			Decimals1:     cfg.Pool.Decimals1,
		}, logger)
		if err != nil {
			return err
		}
		report.Windows = append(report.Windows, windows...)
	}

	logger.Info("stats complete",
		zap.Int("events", report.Summary.Total),
		zap.Int("windows", len(report.Windows)),
	)

	if cfg.PGDSN != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()

		if err := store.Migrate(ctx); err != nil {
			return err
		}
		if err := store.UpsertWindowMetrics(ctx, cfg.PoolAddress, report.Windows); err != nil {
			return fmt.Errorf("store window metrics: %w", err)
		}
		logger.Info("window metrics persisted", zap.String("pool", cfg.PoolAddress), zap.String("pg_dsn", redactDSN(cfg.PGDSN)))
	}

	if cfg.Out != "" {
		return storage.WriteJSON(cfg.Out, report)
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
