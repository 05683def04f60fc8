package indexer

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/dex"
	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/storage"
)

// LogSource is the chain access the runner needs.
type LogSource interface {
	LatestBlockNumber(ctx context.Context) (uint64, error)
	BlockTimestamp(ctx context.Context, number uint64) (uint64, error)
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, addresses []common.Address, topic0 []common.Hash) ([]types.Log, error)
}

// RunConfig holds runtime settings for a pool event fetch.
type RunConfig struct {
	FromBlock uint64
	ToBlock   uint64 // 0 means the latest block at start
	Pool      common.Address
	Topic0    []common.Hash
	BatchSize uint64
	Retry     RetryPolicy
}

// RunStats summarizes a fetch.
type RunStats struct {
	FromBlock uint64 `json:"from_block"`
	ToBlock   uint64 `json:"to_block"`
	Batches   int    `json:"batches"`
	Events    int    `json:"events"`
	Skipped   int    `json:"skipped"`
}

// Runner pulls pool logs batch by batch, decodes them into backtest events and
// appends them to the sink, checkpointing after every batch.
type Runner struct {
	cfg        RunConfig
	source     LogSource
	decoder    dex.Decoder
	sink       storage.EventSink
	checkpoint Checkpointer
	logger     *zap.Logger
	seen       map[string]struct{}
}

// NewRunner builds a Runner with its dependencies. checkpoint may be nil.
func NewRunner(cfg RunConfig, source LogSource, decoder dex.Decoder, sink storage.EventSink, checkpoint Checkpointer, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:        cfg,
		source:     source,
		decoder:    decoder,
		sink:       sink,
		checkpoint: checkpoint,
		logger:     logger,
		seen:       make(map[string]struct{}),
	}
}

// Run executes the fetch loop.
func (r *Runner) Run(ctx context.Context) (RunStats, error) {
	var stats RunStats
	if r.source == nil {
		return stats, fmt.Errorf("log source is nil")
	}
	if r.decoder == nil {
		return stats, fmt.Errorf("decoder is nil")
	}
	if r.sink == nil {
		return stats, fmt.Errorf("event sink is nil")
	}
	if r.cfg.BatchSize == 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.Pool == (common.Address{}) {
		return stats, fmt.Errorf("pool address is required")
	}

	from := r.cfg.FromBlock
	to := r.cfg.ToBlock
	if to == 0 {
		latest, err := r.source.LatestBlockNumber(ctx)
		if err != nil {
			return stats, fmt.Errorf("get latest block: %w", err)
		}
		to = latest
	}

	if r.checkpoint != nil {
		last, ok, err := r.checkpoint.Load(ctx)
		if err != nil {
			return stats, err
		}
		if ok && last >= from {
			from = last + 1
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed", last), zap.Uint64("from", from))
		}
	}
	stats.FromBlock, stats.ToBlock = from, to

	if from > to {
		r.logger.Info("nothing to fetch", zap.Uint64("from", from), zap.Uint64("to", to))
		return stats, nil
	}

	ranges, err := SplitRange(from, to, r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		r.logger.Info("fetch logs", zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))

		logs, err := r.filterLogsWithRetry(ctx, blockRange.From, blockRange.To)
		if err != nil {
			return stats, fmt.Errorf("filter logs: %w", err)
		}

		events := make([]model.PoolEvent, 0, len(logs))
		for _, log := range logs {
			if log.Removed || len(log.Topics) == 0 || !r.decoder.CanDecode(log.Topics[0]) || r.isDuplicate(log) {
				continue
			}

			ts, err := r.blockTimestampWithRetry(ctx, log.BlockNumber)
			if err != nil {
				return stats, fmt.Errorf("block timestamp %d: %w", log.BlockNumber, err)
			}
			event, err := r.decoder.Decode(log, ts)
			if err != nil {
				stats.Skipped++
				r.logger.Warn("skip undecodable log",
					zap.Uint64("block_number", log.BlockNumber),
					zap.Uint("log_index", log.Index),
					zap.Error(err),
				)
				continue
			}
			events = append(events, event)
		}
		sort.SliceStable(events, func(i, j int) bool { return events[i].Less(events[j]) })

		if err := r.sink.PutEvents(events); err != nil {
			return stats, fmt.Errorf("store events: %w", err)
		}

		if r.checkpoint != nil {
			if err := r.checkpoint.Save(ctx, blockRange.To); err != nil {
				return stats, err
			}
		}

		stats.Batches++
		stats.Events += len(events)
		r.logger.Info("batch complete", zap.Int("events", len(events)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return stats, nil
}

func (r *Runner) filterLogsWithRetry(ctx context.Context, fromBlock, toBlock uint64) ([]types.Log, error) {
	var logs []types.Log
	err := r.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		logs, err = r.source.FilterLogs(ctx, fromBlock, toBlock, []common.Address{r.cfg.Pool}, r.cfg.Topic0)
		if err != nil {
			r.logger.Warn("filter logs failed", zap.Error(err), zap.Uint64("from", fromBlock), zap.Uint64("to", toBlock))
		}
		return err
	})
	return logs, err
}

func (r *Runner) blockTimestampWithRetry(ctx context.Context, blockNumber uint64) (uint64, error) {
	var ts uint64
	err := r.cfg.Retry.Do(ctx, func(ctx context.Context) error {
		var err error
		ts, err = r.source.BlockTimestamp(ctx, blockNumber)
		if err != nil {
			r.logger.Warn("block timestamp fetch failed", zap.Error(err), zap.Uint64("block_number", blockNumber))
		}
		return err
	})
	return ts, err
}

func (r *Runner) isDuplicate(log types.Log) bool {
	id := fmt.Sprintf("%d:%s:%d", log.BlockNumber, log.TxHash.Hex(), log.Index)
	if _, ok := r.seen[id]; ok {
		return true
	}
	r.seen[id] = struct{}{}
	return false
}
