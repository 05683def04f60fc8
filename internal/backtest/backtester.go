package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/amm"
	"github.com/ChiShengChen/katana-amm-backtest/internal/events"
	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/strategy"
	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

const baselineKind = "baseline"

// BacktestConfig configures a strategy comparison. Initial amounts are human
// token units; when both are zero InitialCapital is split evenly by value at
// the first price.
type BacktestConfig struct {
	InitialAmount0 decimal.Decimal
	InitialAmount1 decimal.Decimal
	InitialCapital float64
	Strategy       strategy.Config
	SampleEvery    int
	Filter         events.Filter
}

func DefaultBacktestConfig() BacktestConfig {
	return BacktestConfig{
		InitialCapital: 10000,
		Strategy:       strategy.DefaultConfig(),
		SampleEvery:    100,
	}
}

// Backtester replays one swap history against any number of strategies.
type Backtester struct {
	cfg    BacktestConfig
	logger *zap.Logger

	swaps   []amm.SwapUpdate
	amount0 decimal.Decimal
	amount1 decimal.Decimal
	startTs uint64
	endTs   uint64
	skipped int
}

func NewBacktester(cfg BacktestConfig, logger *zap.Logger) *Backtester {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SampleEvery <= 0 {
		cfg.SampleEvery = 100
	}
	if cfg.InitialCapital <= 0 {
		cfg.InitialCapital = 10000
	}
	if cfg.Strategy == (strategy.Config{}) {
		cfg.Strategy = strategy.DefaultConfig()
	}
	return &Backtester{cfg: cfg, logger: logger}
}

// LoadEvents keeps the usable swaps of events, in replay order, and fixes the
// initial inventory.
func (b *Backtester) LoadEvents(input []model.PoolEvent) error {
	b.swaps = b.swaps[:0]
	b.skipped = 0
	for _, event := range events.Prepare(input, b.cfg.Filter) {
		if event.EventType != model.EventSwap {
			continue
		}
		update, ok := swapUpdate(event)
		if !ok {
			b.skipped++
			continue
		}
		b.swaps = append(b.swaps, update)
	}
	if len(b.swaps) == 0 {
		return ErrNoSwapEvents
	}
	b.startTs = b.swaps[0].Timestamp
	b.endTs = b.swaps[len(b.swaps)-1].Timestamp

	b.amount0, b.amount1 = b.cfg.InitialAmount0, b.cfg.InitialAmount1
	if b.amount0.IsZero() && b.amount1.IsZero() {
		price := b.displayPrice(b.swaps[0].Tick)
		half := decimal.NewFromFloat(b.cfg.InitialCapital / 2)
		b.amount1 = half
		if price.IsPositive() {
			b.amount0 = half.Div(price)
		}
	}

	b.logger.Info("tick data loaded",
		zap.Int("swaps", len(b.swaps)),
		zap.Int("skipped", b.skipped),
		zap.Uint64("start", b.startTs),
		zap.Uint64("end", b.endTs),
	)
	return nil
}

// InitialAmounts returns the human inventory every strategy starts from.
func (b *Backtester) InitialAmounts() (decimal.Decimal, decimal.Decimal) {
	return b.amount0, b.amount1
}

func (b *Backtester) displayPrice(tick int32) decimal.Decimal {
	sc := b.cfg.Strategy
	return decimal.NewFromFloat(v3math.TickToDisplayPrice(tick, sc.Decimals0, sc.Decimals1))
}

// holdValue values human amounts at tick.
func (b *Backtester) holdValue(amount0, amount1 decimal.Decimal, tick int32) float64 {
	return amount0.Mul(b.displayPrice(tick)).Add(amount1).InexactFloat64()
}

// strategyValue is the withdrawable value of s at tick plus its idle balance.
func (b *Backtester) strategyValue(s strategy.Strategy, tick int32) float64 {
	sc := b.cfg.Strategy
	amount0, amount1 := withdrawable(s, tick)
	human0 := v3math.ToHuman(amount0, sc.Decimals0)
	human1 := v3math.ToHuman(amount1, sc.Decimals1)
	return b.holdValue(human0, human1, tick)
}

// withdrawable sums the raw amounts of every position at tick and the idle balance.
func withdrawable(s strategy.Strategy, tick int32) (decimal.Decimal, decimal.Decimal) {
	amount0, amount1 := s.Idle()
	for _, pos := range s.Positions() {
		a0, a1 := pos.CurrentAmounts(tick)
		amount0 = amount0.Add(a0)
		amount1 = amount1.Add(a1)
	}
	return amount0, amount1
}

// Run replays the loaded swaps against s.
func (b *Backtester) Run(s strategy.Strategy) (model.StrategyResult, error) {
	if len(b.swaps) == 0 {
		return model.StrategyResult{}, ErrNoSwapEvents
	}
	sc := b.cfg.Strategy
	first := b.swaps[0]

	oracle := amm.NewPool(amm.Config{
		FeeTier:     sc.PoolFee,
		TickSpacing: sc.TickSpacing,
		Decimals0:   sc.Decimals0,
		Decimals1:   sc.Decimals1,
	}, b.logger)
	oracle.Initialize(first.SqrtPriceX96, first.Tick, first.Liquidity, first.Timestamp)

	raw0 := v3math.ToRaw(b.amount0, sc.Decimals0).Truncate(0)
	raw1 := v3math.ToRaw(b.amount1, sc.Decimals1).Truncate(0)
	initialValue := b.holdValue(b.amount0, b.amount1, first.Tick)

	s.UpdatePriceHistory(first.Timestamp, first.Tick)
	if _, err := s.Initialize(first.Tick, raw0, raw1, first.Timestamp); err != nil {
		return model.StrategyResult{}, fmt.Errorf("initialize %s: %w", s.Name(), err)
	}

	values := []model.ValuePoint{{Timestamp: first.Timestamp, Value: initialValue}}
	lastTs, lastTick := first.Timestamp, first.Tick
	for i := 1; i < len(b.swaps); i++ {
		swap := b.swaps[i]
		tick := swap.Tick

		if swap.Timestamp > lastTs {
			s.TrackTime(tick, swap.Timestamp-lastTs)
		}
		s.UpdatePriceHistory(swap.Timestamp, tick)

		if err := oracle.ProcessSwap(swap); err != nil {
			return model.StrategyResult{}, fmt.Errorf("process swap: %w", err)
		}
		// The swap traded through the liquidity that was active before it moved the price.
		s.CalculateFeesEarned(oracle.FeeGrowthGlobal(), lastTick)

		if ok, reason := s.CheckRebalance(tick, swap.Timestamp); ok {
			amount0, amount1 := withdrawable(s, tick)
			if _, err := s.ExecuteRebalance(tick, swap.Timestamp, amount0, amount1); err != nil {
				b.logger.Warn("rebalance failed",
					zap.String("strategy", s.Name()),
					zap.String("reason", reason),
					zap.Error(err),
				)
			}
		}

		if i%b.cfg.SampleEvery == 0 {
			if v := b.strategyValue(s, tick); v > 0 {
				values = append(values, model.ValuePoint{Timestamp: swap.Timestamp, Value: v})
			}
		}
		lastTs, lastTick = swap.Timestamp, tick
	}

	finalTick := b.swaps[len(b.swaps)-1].Tick
	finalValue := b.strategyValue(s, finalTick)
	if last := values[len(values)-1]; last.Timestamp != b.endTs {
		values = append(values, model.ValuePoint{Timestamp: b.endTs, Value: finalValue})
	}

	var il float64
	if hodl := b.holdValue(b.amount0, b.amount1, finalTick); hodl > 0 {
		il = (finalValue - hodl) / hodl * 100
	}

	metrics := s.Metrics()
	perf := Analyze(AnalyzeInput{
		Values:       values,
		InitialValue: initialValue,
		FinalValue:   finalValue,
		FeesEarned:   metrics.TotalFeesEarned.InexactFloat64(),
		ILPct:        il,
		Start:        b.startTs,
		End:          b.endTs,
		Counts:       Counts{Swaps: len(b.swaps), Rebalances: metrics.RebalanceCount},
	})

	result := model.StrategyResult{
		Name:                s.Name(),
		Kind:                string(s.Kind()),
		InitialValue:        initialValue,
		FinalValue:          finalValue,
		TotalReturnPct:      perf.TotalReturnPct,
		AnnualizedReturnPct: perf.AnnualizedReturnPct,
		MaxDrawdownPct:      perf.MaxDrawdownPct,
		SharpeRatio:         perf.SharpeRatio,
		VolatilityPct:       perf.VolatilityPct,
		TotalFeesEarned:     metrics.TotalFeesEarned.InexactFloat64(),
		NetFeesEarned:       s.CalculateNetFees(metrics.TotalFeesEarned).InexactFloat64(),
		RebalanceCount:      metrics.RebalanceCount,
		TotalGasCost:        metrics.TotalGasCost.InexactFloat64(),
		TotalSwapCost:       metrics.TotalSwapCost.InexactFloat64(),
		ImpermanentLossPct:  il,
		TimeInRangePct:      metrics.TimeInRangePct(),
		ValueHistory:        values,
	}
	b.logger.Info("strategy complete",
		zap.String("strategy", result.Name),
		zap.Float64("return_pct", result.TotalReturnPct),
		zap.Int("rebalances", result.RebalanceCount),
		zap.Float64("fees", result.TotalFeesEarned),
		zap.Float64("time_in_range_pct", result.TimeInRangePct),
	)
	return result, nil
}

// Compare runs every strategy in order. A failing strategy aborts the comparison.
func (b *Backtester) Compare(strategies []strategy.Strategy) ([]model.StrategyResult, error) {
	results := make([]model.StrategyResult, 0, len(strategies))
	for _, s := range strategies {
		res, err := b.Run(s)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// CompareWithBaselines appends the hold baselines to Compare.
func (b *Backtester) CompareWithBaselines(strategies []strategy.Strategy) ([]model.StrategyResult, error) {
	results, err := b.Compare(strategies)
	if err != nil {
		return nil, err
	}
	baselines, err := b.Baselines()
	if err != nil {
		return nil, err
	}
	return append(results, baselines...), nil
}

// Baselines are passive holds of the initial inventory: the 50/50 split as
// loaded, and the same value held entirely in token0.
func (b *Backtester) Baselines() ([]model.StrategyResult, error) {
	if len(b.swaps) == 0 {
		return nil, ErrNoSwapEvents
	}
	firstTick := b.swaps[0].Tick
	initialValue := b.holdValue(b.amount0, b.amount1, firstTick)

	allToken0 := decimal.Zero
	if price := b.displayPrice(firstTick); price.IsPositive() {
		allToken0 = decimal.NewFromFloat(initialValue).Div(price)
	}
	return []model.StrategyResult{
		b.hold("HODL 50/50", b.amount0, b.amount1),
		b.hold("100% token0", allToken0, decimal.Zero),
	}, nil
}

func (b *Backtester) hold(name string, amount0, amount1 decimal.Decimal) model.StrategyResult {
	first := b.swaps[0]
	values := []model.ValuePoint{{Timestamp: first.Timestamp, Value: b.holdValue(amount0, amount1, first.Tick)}}
	for i := b.cfg.SampleEvery; i < len(b.swaps); i += b.cfg.SampleEvery {
		swap := b.swaps[i]
		values = append(values, model.ValuePoint{Timestamp: swap.Timestamp, Value: b.holdValue(amount0, amount1, swap.Tick)})
	}
	last := b.swaps[len(b.swaps)-1]
	finalValue := b.holdValue(amount0, amount1, last.Tick)
	if values[len(values)-1].Timestamp != last.Timestamp {
		values = append(values, model.ValuePoint{Timestamp: last.Timestamp, Value: finalValue})
	}

	initialValue := values[0].Value
	var il float64
	if hodl := b.holdValue(b.amount0, b.amount1, last.Tick); hodl > 0 {
		il = (finalValue - hodl) / hodl * 100
	}
	perf := Analyze(AnalyzeInput{
		Values:       values,
		InitialValue: initialValue,
		FinalValue:   finalValue,
		Start:        b.startTs,
		End:          b.endTs,
	})
	return model.StrategyResult{
		Name:                name,
		Kind:                baselineKind,
		InitialValue:        initialValue,
		FinalValue:          finalValue,
		TotalReturnPct:      perf.TotalReturnPct,
		AnnualizedReturnPct: perf.AnnualizedReturnPct,
		MaxDrawdownPct:      perf.MaxDrawdownPct,
		SharpeRatio:         perf.SharpeRatio,
		VolatilityPct:       perf.VolatilityPct,
		ImpermanentLossPct:  il,
		ValueHistory:        values,
	}
}
