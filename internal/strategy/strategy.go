package strategy

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

var (
	ErrInvalidTickRange = errors.New("invalid tick range")
	ErrUnknownKind      = errors.New("unknown strategy kind")
)

// Strategy is a liquidity management policy replayed by the backtester.
// Amounts passed in and out are raw token units.
type Strategy interface {
	Name() string
	Kind() Kind

	// Initialize opens the first positions from the given inventory.
	Initialize(tick int32, amount0, amount1 decimal.Decimal, ts uint64) ([]Position, error)
	// CheckRebalance reports whether positions should be rebuilt and why.
	CheckRebalance(tick int32, ts uint64) (bool, string)
	// ExecuteRebalance replaces all positions using the supplied inventory.
	ExecuteRebalance(tick int32, ts uint64, amount0, amount1 decimal.Decimal) (RebalanceResult, error)

	CalculateFeesEarned(global v3math.FeeGrowth, tick int32) (decimal.Decimal, decimal.Decimal)
	CalculateNetFees(gross decimal.Decimal) decimal.Decimal
	UpdatePriceHistory(ts uint64, tick int32)
	TrackTime(tick int32, elapsed uint64)

	Positions() []Position
	Idle() (decimal.Decimal, decimal.Decimal)
	Metrics() Metrics
	History() []RebalanceResult
}
