package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/chain"
	"github.com/ChiShengChen/katana-amm-backtest/internal/config"
	"github.com/ChiShengChen/katana-amm-backtest/internal/dex"
	"github.com/ChiShengChen/katana-amm-backtest/internal/indexer"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage/postgres"
)

func runFetch(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFetch(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	pool, err := indexer.ParseAddress(cfg.Pool)
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	decoder, err := dex.NewV3PoolDecoder(dex.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	var checkpoint indexer.Checkpointer
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		checkpoint = indexer.NewStateCheckpoint(store, "fetch:"+pool.Hex())
	} else if cfg.Checkpoint != "" {
		checkpoint = indexer.NewCheckpointStore(cfg.Checkpoint, pool.Hex())
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		FromBlock: cfg.FromBlock,
		ToBlock:   cfg.ToBlock,
		Pool:      pool,
		Topic0:    decoder.Topics(),
		BatchSize: cfg.BatchSize,
		Retry: indexer.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBackoff,
			MaxDelay:   cfg.MaxBackoff,
		},
	}, chainClient, decoder, storage.NewJsonlStorage(cfg.Out), checkpoint, logger)

	logger.Info("fetch start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("pool", pool.Hex()),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	if cfg.MetaOut != "" {
		var block *big.Int
		if stats.ToBlock > 0 {
			block = new(big.Int).SetUint64(stats.ToBlock)
		}
		meta, err := dex.FetchPoolMeta(ctx, chainClient, pool, block, logger)
		if err != nil {
			return fmt.Errorf("pool metadata: %w", err)
		}
		if meta.ChainID, err = chainClient.ChainID(ctx); err != nil {
			return fmt.Errorf("get chain id: %w", err)
		}
		if err := storage.WriteJSON(cfg.MetaOut, meta); err != nil {
			return err
		}
		logger.Info("pool metadata written",
			zap.String("path", cfg.MetaOut),
			zap.Uint32("fee", meta.Fee),
			zap.Int32("tick_spacing", meta.TickSpacing),
			zap.Uint8("decimals0", meta.Token0.Decimals),
			zap.Uint8("decimals1", meta.Token1.Decimals),
		)
	}

	logger.Info("fetch complete",
		zap.Int("batches", stats.Batches),
		zap.Int("events", stats.Events),
		zap.Int("skipped", stats.Skipped),
	)
	return nil
}
