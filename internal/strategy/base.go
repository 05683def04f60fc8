package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

// Config carries the pool and cost settings shared by every strategy.
type Config struct {
	PoolFee      uint32
	TickSpacing  int32
	Decimals0    uint8
	Decimals1    uint8
	GasPriceGwei float64
	GasLimit     uint64
	EthPriceUSD  float64
}

func DefaultConfig() Config {
	return Config{
		PoolFee:      3000,
		TickSpacing:  60,
		Decimals0:    8,
		Decimals1:    6,
		GasPriceGwei: 30,
		GasLimit:     500000,
		EthPriceUSD:  2000,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.PoolFee == 0 {
		c.PoolFee = def.PoolFee
	}
	if c.TickSpacing <= 0 {
		c.TickSpacing = v3math.TickSpacingForFee(c.PoolFee)
	}
	if c.GasLimit == 0 {
		c.GasLimit = def.GasLimit
	}
	return c
}

// TickSample is one observed (timestamp, tick) pair.
type TickSample struct {
	Timestamp uint64
	Tick      int32
}

// Base holds the state and behavior common to all strategies.
type Base struct {
	cfg          Config
	name         string
	kind         Kind
	protocolFee  decimal.Decimal
	positions    []Position
	history      []RebalanceResult
	metrics      Metrics
	priceHistory []TickSample
	lastGrowth   v3math.FeeGrowth
	idle0        decimal.Decimal
	idle1        decimal.Decimal
	logger       *zap.Logger
}

func newBase(cfg Config, name string, kind Kind, protocolFee float64, logger *zap.Logger) *Base {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Base{
		cfg:         cfg.withDefaults(),
		name:        name,
		kind:        kind,
		protocolFee: decimal.NewFromFloat(protocolFee),
		lastGrowth:  v3math.ZeroFeeGrowth(),
		logger:      logger.With(zap.String("strategy", name)),
	}
}

func (b *Base) Name() string { return b.name }

func (b *Base) Kind() Kind { return b.kind }

func (b *Base) Config() Config { return b.cfg }

func (b *Base) ProtocolFeeRate() decimal.Decimal { return b.protocolFee }

func (b *Base) Positions() []Position { return clonePositions(b.positions) }

func (b *Base) Idle() (decimal.Decimal, decimal.Decimal) { return b.idle0, b.idle1 }

func (b *Base) Metrics() Metrics { return b.metrics }

func (b *Base) History() []RebalanceResult {
	out := make([]RebalanceResult, len(b.history))
	copy(out, b.history)
	return out
}

// GasCostUSD is gwei * limit / 1e9 * eth price.
func (b *Base) GasCostUSD() decimal.Decimal {
	return decimal.NewFromFloat(b.cfg.GasPriceGwei).
		Mul(decimal.NewFromInt(int64(b.cfg.GasLimit))).
		Div(decimal.New(1, 9)).
		Mul(decimal.NewFromFloat(b.cfg.EthPriceUSD))
}

// CalculateNetFees deducts the protocol fee share.
func (b *Base) CalculateNetFees(gross decimal.Decimal) decimal.Decimal {
	return gross.Mul(decimal.NewFromInt(1).Sub(b.protocolFee))
}

func (b *Base) UpdatePriceHistory(ts uint64, tick int32) {
	b.priceHistory = append(b.priceHistory, TickSample{Timestamp: ts, Tick: tick})
}

// RecentTicks returns up to n of the latest observed ticks, oldest first.
func (b *Base) RecentTicks(n int) []int32 {
	start := len(b.priceHistory) - n
	if start < 0 || n <= 0 {
		start = 0
	}
	out := make([]int32, 0, len(b.priceHistory)-start)
	for _, s := range b.priceHistory[start:] {
		out = append(out, s.Tick)
	}
	return out
}

func (b *Base) TrackTime(tick int32, elapsed uint64) {
	if elapsed == 0 {
		return
	}
	b.metrics.TotalTime += elapsed
	for _, p := range b.positions {
		if p.InRange(tick) {
			b.metrics.TimeInRange += elapsed
			return
		}
	}
}

// CalculateFeesEarned credits every in-range position with the growth since
// its last snapshot, then advances all snapshots. Net fees join the idle
// balance; the gross amounts are returned.
func (b *Base) CalculateFeesEarned(global v3math.FeeGrowth, tick int32) (decimal.Decimal, decimal.Decimal) {
	global = global.Clone()
	fees0, fees1 := decimal.Zero, decimal.Zero
	for i := range b.positions {
		pos := &b.positions[i]
		if pos.InRange(tick) {
			owed0 := v3math.TokensOwed(pos.Liquidity, global.Token0, pos.FeeGrowthInside0Last)
			owed1 := v3math.TokensOwed(pos.Liquidity, global.Token1, pos.FeeGrowthInside1Last)
			fees0 = fees0.Add(decimal.NewFromBigInt(owed0, 0))
			fees1 = fees1.Add(decimal.NewFromBigInt(owed1, 0))
		}
		pos.FeeGrowthInside0Last = copyBig(global.Token0)
		pos.FeeGrowthInside1Last = copyBig(global.Token1)
	}
	b.lastGrowth = global

	if fees0.IsZero() && fees1.IsZero() {
		return fees0, fees1
	}
	b.metrics.FeesEarned0 = b.metrics.FeesEarned0.Add(fees0)
	b.metrics.FeesEarned1 = b.metrics.FeesEarned1.Add(fees1)
	b.metrics.TotalFeesEarned = b.metrics.TotalFeesEarned.Add(b.QuoteValue(fees0, fees1, tick))
	b.idle0 = b.idle0.Add(b.CalculateNetFees(fees0).Truncate(0))
	b.idle1 = b.idle1.Add(b.CalculateNetFees(fees1).Truncate(0))
	return fees0, fees1
}

// QuoteValue prices raw amounts in human token1 units at tick.
func (b *Base) QuoteValue(amount0, amount1 decimal.Decimal, tick int32) decimal.Decimal {
	price := decimal.NewFromFloat(v3math.TickToDisplayPrice(tick, b.cfg.Decimals0, b.cfg.Decimals1))
	return v3math.ToHuman(amount0, b.cfg.Decimals0).Mul(price).Add(v3math.ToHuman(amount1, b.cfg.Decimals1))
}

// swapRate is the pool fee as a fraction.
func (b *Base) swapRate() decimal.Decimal {
	return decimal.New(int64(b.cfg.PoolFee), -6)
}

// swapToRatio trades inventory so token0 holds target of the value at tick,
// paying the pool fee on the output. It returns the new amounts, the swapped
// input and the fee value in quote units.
func (b *Base) swapToRatio(tick int32, amount0, amount1, target decimal.Decimal) (decimal.Decimal, decimal.Decimal, decimal.Decimal, decimal.Decimal) {
	price := v3math.TickToPriceDecimal(tick)
	swap, zeroForOne := v3math.CalculateSwapAmountForRatio(amount0, amount1, price, target)
	if !swap.IsPositive() {
		return amount0, amount1, decimal.Zero, decimal.Zero
	}
	rate := b.swapRate()
	keep := decimal.NewFromInt(1).Sub(rate)
	fee := swap.Mul(rate)
	if zeroForOne {
		amount0 = amount0.Sub(swap)
		amount1 = amount1.Add(swap.Mul(price).Mul(keep).Truncate(0))
		return amount0, amount1, swap, b.QuoteValue(fee, decimal.Zero, tick)
	}
	amount1 = amount1.Sub(swap)
	amount0 = amount0.Add(swap.Div(price).Mul(keep).Truncate(0))
	return amount0, amount1, swap, b.QuoteValue(decimal.Zero, fee, tick)
}

// mint builds a position over [lower, upper) funded with at most the given
// amounts at the current tick. ok is false when no liquidity results.
func (b *Base) mint(lower, upper, tick int32, amount0, amount1 decimal.Decimal, ts uint64) (Position, bool, error) {
	lower, upper = clampTick(lower), clampTick(upper)
	if lower >= upper {
		return Position{}, false, fmt.Errorf("%w: [%d, %d)", ErrInvalidTickRange, lower, upper)
	}
	sqrtP, sqrtA, sqrtB := sqrtAt(tick), sqrtAt(lower), sqrtAt(upper)
	liquidity := v3math.FundedLiquidity(sqrtP, sqrtA, sqrtB, toBig(amount0), toBig(amount1))
	if liquidity.Sign() <= 0 {
		return Position{}, false, nil
	}
	used0, used1 := v3math.GetAmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	return Position{
		Lower:                lower,
		Upper:                upper,
		Liquidity:            liquidity,
		Amount0:              decimal.NewFromBigInt(used0, 0),
		Amount1:              decimal.NewFromBigInt(used1, 0),
		EntryTick:            tick,
		EntryTime:            ts,
		FeeGrowthInside0Last: copyBig(b.lastGrowth.Token0),
		FeeGrowthInside1Last: copyBig(b.lastGrowth.Token1),
	}, true, nil
}

// PositionValue is the quote value of pos if withdrawn at tick.
func (b *Base) PositionValue(pos Position, tick int32) decimal.Decimal {
	amount0, amount1 := pos.CurrentAmounts(tick)
	return b.QuoteValue(amount0, amount1, tick)
}

// settle installs positions and keeps whatever they did not absorb as idle.
func (b *Base) settle(positions []Position, amount0, amount1 decimal.Decimal) {
	for _, p := range positions {
		amount0 = amount0.Sub(p.Amount0)
		amount1 = amount1.Sub(p.Amount1)
	}
	b.positions = positions
	b.idle0 = decimal.Max(amount0, decimal.Zero)
	b.idle1 = decimal.Max(amount1, decimal.Zero)
}

func (b *Base) recordRebalance(old []Position, ts uint64, swapAmount, swapFee decimal.Decimal, trigger TriggerType, reason string) RebalanceResult {
	result := RebalanceResult{
		Timestamp:    ts,
		OldPositions: old,
		NewPositions: clonePositions(b.positions),
		SwapAmount:   swapAmount,
		SwapFeePaid:  swapFee,
		GasCost:      b.GasCostUSD(),
		Trigger:      trigger,
		Reason:       reason,
	}
	b.metrics.RebalanceCount++
	b.metrics.TotalGasCost = b.metrics.TotalGasCost.Add(result.GasCost)
	b.metrics.TotalSwapCost = b.metrics.TotalSwapCost.Add(swapFee)
	b.history = append(b.history, result)

	b.logger.Debug("rebalance",
		zap.Uint64("ts", ts),
		zap.String("reason", reason),
		zap.Int("positions", len(b.positions)),
		zap.String("swap_fee", swapFee.StringFixed(6)),
	)
	return result
}
