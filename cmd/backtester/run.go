package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/backtest"
	"github.com/ChiShengChen/katana-amm-backtest/internal/config"
	"github.com/ChiShengChen/katana-amm-backtest/internal/events"
	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage/postgres"
)

const engineSeriesName = "lp"

func runEngine(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
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
	engineCfg, err := cfg.Engine()
	if err != nil {
		return err
	}

	evts, loadStats, err := events.Load(cfg.Input, logger)
	if err != nil {
		return err
	}

	logger.Info("run start",
		zap.String("in", cfg.Input),
		zap.Int("events", len(evts)),
		zap.Int("failed_lines", loadStats.Failed),
		zap.Bool("use_atr", cfg.UseATR),
		zap.Float64("capital", cfg.Capital),
		zap.String("out", cfg.Out),
	)

	result, err := backtest.NewEngine(engineCfg, logger).Run(evts)
	if err != nil {
		return err
	}

	summary := model.RunSummary{
		RunID:          uuid.NewString(),
		Metrics:        result.Metrics,
		InitialAmount0: result.InitialAmount0,
		InitialAmount1: result.InitialAmount1,
		InitialPrice:   result.InitialPrice,
	}

	if err := storage.WriteSeries(cfg.Out, storage.Series{
		Values:     result.Values,
		Prices:     result.Prices,
		Ranges:     result.Ranges,
		Rebalances: result.Rebalances,
		Metrics:    summary,
	}); err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		record := model.RunRecord{
			ID:        summary.RunID,
			Mode:      model.RunModeEngine,
			Input:     cfg.Input,
			Params:    engineCfg,
			StartTime: result.Metrics.StartTime,
			EndTime:   result.Metrics.EndTime,
		}
		if err := persistRun(logger, cfg.PGDSN, record, func(ctx context.Context, store *postgres.Store, id uuid.UUID) error {
			if err := store.InsertValuePoints(ctx, id, engineSeriesName, result.Values); err != nil {
				return fmt.Errorf("store values: %w", err)
			}
			return store.UpsertEngineMetrics(ctx, id, engineSeriesName, result.Metrics)
		}); err != nil {
			return err
		}
	}

	fmt.Fprint(cmd.OutOrStdout(), backtest.FormatReport(result.Metrics))
	logger.Info("run complete",
		zap.String("run_id", summary.RunID),
		zap.Float64("final_value", result.Metrics.FinalValue),
		zap.Int("rebalances", result.Metrics.NumRebalances),
	)
	return nil
}

// persistRun creates the run row then lets write add its series and metrics.
func persistRun(logger *zap.Logger, dsn string, record model.RunRecord, write func(context.Context, *postgres.Store, uuid.UUID) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	store, err := postgres.NewStore(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(ctx); err != nil {
		return err
	}
	id, err := store.CreateRun(ctx, record)
	if err != nil {
		return err
	}
	if err := write(ctx, store, id); err != nil {
		return err
	}

	logger.Info("run persisted", zap.String("run_id", id.String()), zap.String("pg_dsn", redactDSN(dsn)))
	return nil
}
