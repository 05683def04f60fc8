package aggregate

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

const feeMethodApprox = "approx_from_feeTier"

// Config controls window aggregation.
type Config struct {
	WindowSeconds uint64
	FeeTier       uint32
	Decimals0     uint8
	Decimals1     uint8
}

// Windows folds time-ordered events into fixed windows of swap volume and
// approximate fees. Windows without events are not emitted.
func Windows(events []model.PoolEvent, cfg Config, logger *zap.Logger) ([]model.WindowMetrics, error) {
	if cfg.WindowSeconds == 0 {
		return nil, fmt.Errorf("window seconds must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	out := make([]model.WindowMetrics, 0, 64)
	var acc *Accumulator
	for _, event := range events {
		start := windowStart(event.BlockTimestamp, cfg.WindowSeconds)
		if acc != nil && acc.WindowStart != start {
			out = append(out, flush(acc, cfg))
			acc = nil
		}
		if acc == nil {
			acc = NewAccumulator(event, start, start+cfg.WindowSeconds)
		}
		acc.AddEvent(event, cfg.FeeTier)
	}
	if acc != nil {
		out = append(out, flush(acc, cfg))
	}

	logger.Debug("aggregate complete",
		zap.Int("events", len(events)),
		zap.Int("windows", len(out)),
		zap.Uint64("window_seconds", cfg.WindowSeconds),
	)
	return out, nil
}

func flush(acc *Accumulator, cfg Config) model.WindowMetrics {
	return model.WindowMetrics{
		WindowSizeSecs: int64(cfg.WindowSeconds),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		MintCount:      acc.MintCount,
		BurnCount:      acc.BurnCount,
		Volume0:        formatTokenAmount(acc.Volume0, cfg.Decimals0),
		Volume1:        formatTokenAmount(acc.Volume1, cfg.Decimals1),
		Fee0:           formatTokenAmount(acc.Fee0, cfg.Decimals0),
		Fee1:           formatTokenAmount(acc.Fee1, cfg.Decimals1),
		FirstBlock:     acc.FirstBlock,
		LastBlock:      acc.LastBlock,
		FeeMethod:      feeMethodApprox,
	}
}
