package backtest

import (
	"fmt"
	"math/big"

	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/amm"
	"github.com/ChiShengChen/katana-amm-backtest/internal/events"
	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
	"github.com/ChiShengChen/katana-amm-backtest/internal/volatility"
)

const engineOwner = "backtest_lp"

// EngineConfig configures a direct replay.
type EngineConfig struct {
	InitialCapital float64
	FeeTier        uint32
	TickSpacing    int32
	Decimals0      uint8
	Decimals1      uint8

	PriceRangePct float64
	TickLower     *int32
	TickUpper     *int32

	UseATR            bool
	ATRPeriod         int
	ATRMultiplier     float64
	RebalanceInterval uint64
	// Deadband is the ATR rebalance deadband as a fraction of range width; negative disables it.
	Deadband float64

	GasHaircut          float64
	MinRebalanceCapital float64
	SampleEvery         int
	FeeCeilingDivisor   int64

	Filter events.Filter
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		InitialCapital:      10000,
		FeeTier:             3000,
		TickSpacing:         60,
		Decimals0:           8,
		Decimals1:           6,
		PriceRangePct:       0.10,
		ATRPeriod:           14,
		ATRMultiplier:       2.0,
		RebalanceInterval:   180,
		Deadband:            0.2,
		GasHaircut:          0.0001,
		MinRebalanceCapital: 10,
		SampleEvery:         100,
	}
}

func (c EngineConfig) withDefaults() EngineConfig {
	def := DefaultEngineConfig()
	if c.InitialCapital <= 0 {
		c.InitialCapital = def.InitialCapital
	}
	if c.FeeTier == 0 {
		c.FeeTier = def.FeeTier
	}
	if c.TickSpacing <= 0 {
		c.TickSpacing = v3math.TickSpacingForFee(c.FeeTier)
	}
	if c.PriceRangePct <= 0 {
		c.PriceRangePct = def.PriceRangePct
	}
	if c.SampleEvery <= 0 {
		c.SampleEvery = def.SampleEvery
	}
	return c
}

// Result is the outcome of one engine replay.
type Result struct {
	Metrics        model.Metrics
	Values         []model.ValuePoint
	Prices         []model.PricePoint
	Ranges         []model.RangePoint
	Rebalances     []model.RebalancePoint
	InitialAmount0 float64
	InitialAmount1 float64
	InitialPrice   float64
}

// Engine replays pool events against a single simulated LP position, either
// on a fixed range or on an ATR-driven range that is periodically rebuilt.
type Engine struct {
	cfg    EngineConfig
	logger *zap.Logger

	pool       *amm.Pool
	atr        *volatility.ATR
	idle0      *big.Int
	idle1      *big.Int
	positioned bool

	values        []model.ValuePoint
	ranges        []model.RangePoint
	rebalances    []model.RebalancePoint
	collectedFees float64
	initial0      float64
	initial1      float64
	initialPrice  float64
}

func NewEngine(cfg EngineConfig, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg.withDefaults(), logger: logger}
}

func (e *Engine) reset() {
	e.pool = amm.NewPool(amm.Config{
		FeeTier:           e.cfg.FeeTier,
		TickSpacing:       e.cfg.TickSpacing,
		Decimals0:         e.cfg.Decimals0,
		Decimals1:         e.cfg.Decimals1,
		FeeCeilingDivisor: e.cfg.FeeCeilingDivisor,
	}, e.logger)
	e.atr = nil
	if e.cfg.UseATR {
		e.atr = volatility.New(volatility.Config{
			Period:            e.cfg.ATRPeriod,
			Multiplier:        e.cfg.ATRMultiplier,
			RebalanceInterval: e.cfg.RebalanceInterval,
			Deadband:          e.cfg.Deadband,
			PriceScale:        v3math.DecimalScale(e.cfg.Decimals0, e.cfg.Decimals1),
		})
	}
	e.idle0, e.idle1 = new(big.Int), new(big.Int)
	e.positioned = false
	e.values = nil
	e.ranges = nil
	e.rebalances = nil
	e.collectedFees = 0
	e.initial0, e.initial1, e.initialPrice = 0, 0, 0
}

// Run replays events. The first usable Swap initializes the pool and the
// initial position is opened at that price.
func (e *Engine) Run(input []model.PoolEvent) (Result, error) {
	e.reset()
	evts := events.Prepare(input, e.cfg.Filter)

	var first amm.SwapUpdate
	found := false
	for _, event := range evts {
		if update, ok := swapUpdate(event); ok {
			first, found = update, true
			break
		}
	}
	if !found {
		return Result{}, ErrNoSwapEvents
	}

	startTs := evts[0].BlockTimestamp
	endTs := evts[len(evts)-1].BlockTimestamp
	e.pool.Initialize(first.SqrtPriceX96, first.Tick, first.Liquidity, first.Timestamp)
	if err := e.openInitial(startTs); err != nil {
		return Result{}, err
	}

	e.logger.Info("engine start",
		zap.Int("events", len(evts)),
		zap.Bool("atr", e.cfg.UseATR),
		zap.Float64("capital", e.cfg.InitialCapital),
	)

	var counts Counts
	for i, event := range evts {
		switch event.EventType {
		case model.EventSwap:
			counts.Swaps++
			e.processSwap(i, event)
		case model.EventMint:
			counts.Mints++
			e.applyMint(event)
		case model.EventBurn:
			counts.Burns++
			e.applyBurn(event)
		}

		if i%e.cfg.SampleEvery == 0 && e.pool.DisplayPrice() > 0 {
			e.values = append(e.values, model.ValuePoint{Timestamp: event.BlockTimestamp, Value: e.portfolioValue()})
		}
	}
	counts.Rebalances = len(e.rebalances)

	finalPrice := e.pool.DisplayPrice()
	finalValue := e.portfolioValue()
	e.values = append(e.values, model.ValuePoint{Timestamp: endTs, Value: finalValue})

	fees := e.collectedFees + e.uncollectedFees(finalPrice)
	var il float64
	if e.initialPrice > 0 && finalPrice > 0 {
		hodl := e.initial0*finalPrice + e.initial1
		if hodl > 0 {
			il = ((finalValue - fees) - hodl) / hodl * 100
		}
	}

	metrics := Analyze(AnalyzeInput{
		Values:       e.values,
		InitialValue: e.cfg.InitialCapital,
		FinalValue:   finalValue,
		FeesEarned:   fees,
		ILPct:        il,
		Start:        startTs,
		End:          endTs,
		Counts:       counts,
	})

	e.logger.Info("engine complete",
		zap.Int("swaps", counts.Swaps),
		zap.Int("mints", counts.Mints),
		zap.Int("burns", counts.Burns),
		zap.Int("rebalances", counts.Rebalances),
		zap.Float64("final_price", finalPrice),
		zap.Float64("final_value", finalValue),
		zap.Float64("return_pct", metrics.TotalReturnPct),
	)

	return Result{
		Metrics:        metrics,
		Values:         e.values,
		Prices:         e.pool.PriceHistory(),
		Ranges:         e.ranges,
		Rebalances:     e.rebalances,
		InitialAmount0: e.initial0,
		InitialAmount1: e.initial1,
		InitialPrice:   e.initialPrice,
	}, nil
}

// alignedSpan is max(pct range, floor spacings) rounded down to the spacing.
func (e *Engine) alignedSpan(pct float64, floorSpacings int32) int32 {
	spacing := e.cfg.TickSpacing
	span := max(v3math.TickRangeForPct(pct), floorSpacings*spacing)
	return span / spacing * spacing
}

func (e *Engine) openInitial(startTs uint64) error {
	price := e.pool.DisplayPrice()
	tick := e.pool.Tick()
	if price <= 0 {
		return nil
	}

	var lower, upper int32
	switch {
	case e.atr != nil:
		e.atr.UpdatePrice(price)
		span := e.alignedSpan(0.05, 15)
		lower, upper = tick-span, tick+span
	default:
		span := e.alignedSpan(e.cfg.PriceRangePct, 10)
		lower, upper = tick-span, tick+span
		if e.cfg.TickLower != nil {
			lower = *e.cfg.TickLower
		}
		if e.cfg.TickUpper != nil {
			upper = *e.cfg.TickUpper
		}
	}
	lower = v3math.AlignTick(lower, e.cfg.TickSpacing)
	upper = v3math.AlignTick(upper, e.cfg.TickSpacing)
	if lower >= upper {
		return fmt.Errorf("initial position: %w: [%d, %d)", amm.ErrInvalidTickRange, lower, upper)
	}

	amount0, amount1, err := e.openPosition(lower, upper, e.cfg.InitialCapital, price, true)
	if err != nil {
		return fmt.Errorf("initial position: %w", err)
	}
	if e.atr != nil {
		e.trackRange(price, lower, upper)
		e.ranges = append(e.ranges, e.rangePoint(startTs, price, lower, upper))
		e.atr.RecordRebalance(startTs)
	}
	if len(e.pool.Positions(engineOwner)) == 0 {
		e.logger.Warn("initial position has zero liquidity",
			zap.Int32("lower", lower),
			zap.Int32("upper", upper),
		)
		return nil
	}

	e.positioned = true
	e.initial0, e.initial1, e.initialPrice = amount0, amount1, price
	e.logger.Info("initial position",
		zap.Float64("amount0", amount0),
		zap.Float64("amount1", amount1),
		zap.Float64("price", price),
		zap.Int32("tick", tick),
		zap.Int32("lower", lower),
		zap.Int32("upper", upper),
	)
	return nil
}

// openPosition allocates capital across the range and mints what it can
// fund. Unused token amounts stay idle. It returns the human allocation.
func (e *Engine) openPosition(lower, upper int32, capital, price float64, clamp bool) (float64, float64, error) {
	d0, d1 := e.cfg.Decimals0, e.cfg.Decimals1
	amount0, amount1 := allocate(capital, price,
		v3math.TickToDisplayPrice(lower, d0, d1),
		v3math.TickToDisplayPrice(upper, d0, d1),
		clamp,
	)
	raw0, raw1 := humanToRaw(amount0, d0), humanToRaw(amount1, d1)

	sqrtA, err := v3math.TickToSqrtPriceX96(lower)
	if err != nil {
		return 0, 0, err
	}
	sqrtB, err := v3math.TickToSqrtPriceX96(upper)
	if err != nil {
		return 0, 0, err
	}
	sqrtP := e.pool.SqrtPriceX96()
	liquidity := v3math.FundedLiquidity(sqrtP, sqrtA, sqrtB, raw0, raw1)
	if liquidity.Sign() <= 0 {
		e.idle0.Add(e.idle0, raw0)
		e.idle1.Add(e.idle1, raw1)
		return amount0, amount1, nil
	}
	used0, used1 := v3math.GetAmountsForLiquidity(sqrtP, sqrtA, sqrtB, liquidity)
	if err := e.pool.AddLiquidity(engineOwner, lower, upper, used0, used1, liquidity); err != nil {
		return 0, 0, err
	}
	e.idle0.Add(e.idle0, new(big.Int).Sub(raw0, used0))
	e.idle1.Add(e.idle1, new(big.Int).Sub(raw1, used1))
	return amount0, amount1, nil
}

// trackRange points the ATR deadband at the range actually opened.
func (e *Engine) trackRange(price float64, lower, upper int32) {
	e.atr.SetRange(volatility.Range{
		TickLower:  lower,
		TickUpper:  upper,
		PriceLower: v3math.TickToDisplayPrice(lower, e.cfg.Decimals0, e.cfg.Decimals1),
		PriceUpper: v3math.TickToDisplayPrice(upper, e.cfg.Decimals0, e.cfg.Decimals1),
	}, price)
}

func (e *Engine) rangePoint(ts uint64, price float64, lower, upper int32) model.RangePoint {
	var atrValue float64
	if e.atr != nil {
		atrValue = e.atr.Value()
	}
	return model.RangePoint{
		Timestamp:  ts,
		Price:      price,
		ATR:        atrValue,
		PriceLower: v3math.TickToDisplayPrice(lower, e.cfg.Decimals0, e.cfg.Decimals1),
		PriceUpper: v3math.TickToDisplayPrice(upper, e.cfg.Decimals0, e.cfg.Decimals1),
		TickLower:  lower,
		TickUpper:  upper,
	}
}

func (e *Engine) processSwap(i int, event model.PoolEvent) {
	update, ok := swapUpdate(event)
	if !ok {
		e.logger.Warn("skip swap without price", zap.Uint64("block", event.BlockNumber), zap.Uint64("log_index", event.LogIndex))
		return
	}
	if err := e.pool.ProcessSwap(update); err != nil {
		e.logger.Warn("process swap", zap.Error(err))
		return
	}
	if e.atr == nil || !e.positioned {
		return
	}

	price := e.pool.DisplayPrice()
	if price <= 0 {
		return
	}
	e.atr.UpdatePrice(price)

	if i%e.cfg.SampleEvery == 0 {
		r := e.atr.Preview(price, e.cfg.TickSpacing)
		e.ranges = append(e.ranges, model.RangePoint{
			Timestamp:  event.BlockTimestamp,
			Price:      price,
			ATR:        e.atr.Value(),
			PriceLower: r.PriceLower,
			PriceUpper: r.PriceUpper,
			TickLower:  r.TickLower,
			TickUpper:  r.TickUpper,
		})
	}

	if e.atr.ShouldRebalance(price, event.BlockTimestamp) {
		if err := e.rebalance(event.BlockTimestamp); err != nil {
			e.logger.Warn("rebalance", zap.Error(err))
		}
	}
}

func (e *Engine) rebalance(ts uint64) error {
	positions := e.pool.Positions(engineOwner)
	if len(positions) == 0 && e.idle0.Sign() == 0 && e.idle1.Sign() == 0 {
		return nil
	}
	price := e.pool.DisplayPrice()
	if price <= 0 {
		return nil
	}

	spacing := e.cfg.TickSpacing
	tick := e.pool.Tick()
	var lower, upper int32
	if e.atr.Value() <= 0 {
		span := e.alignedSpan(0.03, 5)
		lower = v3math.AlignTick(tick-span, spacing)
		upper = v3math.AlignTick(tick+span, spacing)
	} else {
		r := e.atr.CalculateRange(price, spacing)
		lower, upper = r.TickLower, r.TickUpper
	}
	if minSpan := 5 * spacing; upper-lower < minSpan {
		mid := floorHalf(lower, upper)
		lower = v3math.AlignTick(mid-minSpan/2, spacing)
		upper = v3math.AlignTick(mid+minSpan/2, spacing)
	}

	amount0 := new(big.Int).Set(e.idle0)
	amount1 := new(big.Int).Set(e.idle1)
	fees0, fees1 := new(big.Int), new(big.Int)
	for _, pos := range positions {
		w, err := e.pool.RemoveLiquidity(engineOwner, pos.Lower, pos.Upper, pos.Liquidity)
		if err != nil {
			return fmt.Errorf("remove liquidity: %w", err)
		}
		amount0.Add(amount0, w.Amount0)
		amount1.Add(amount1, w.Amount1)
		fees0.Add(fees0, w.Fees0)
		fees1.Add(fees1, w.Fees1)
	}
	e.idle0, e.idle1 = new(big.Int), new(big.Int)

	tokenValue := e.pool.QuoteValue(amount0, amount1, price)
	feesValue := e.pool.QuoteValue(fees0, fees1, price)
	total := tokenValue + feesValue
	e.collectedFees += feesValue
	available := total - total*e.cfg.GasHaircut

	if available > e.cfg.MinRebalanceCapital {
		if _, _, err := e.openPosition(lower, upper, available, price, false); err != nil {
			return err
		}
	} else {
		e.idle0.Add(amount0, fees0)
		e.idle1.Add(amount1, fees1)
		e.logger.Warn("rebalance capital below minimum", zap.Float64("available", available))
	}

	e.trackRange(price, lower, upper)
	e.atr.RecordRebalance(ts)
	e.rebalances = append(e.rebalances, model.RebalancePoint{
		Timestamp: ts,
		Price:     price,
		TickLower: lower,
		TickUpper: upper,
		Withdrawn: total,
		Value:     available,
		Fees:      feesValue,
	})
	e.logger.Info("rebalance",
		zap.Int("n", len(e.rebalances)),
		zap.Uint64("ts", ts),
		zap.Float64("price", price),
		zap.Float64("atr", e.atr.Value()),
		zap.Int32("lower", lower),
		zap.Int32("upper", upper),
		zap.Float64("fees", feesValue),
		zap.Float64("available", available),
	)
	return nil
}

func (e *Engine) applyMint(event model.PoolEvent) {
	if event.Owner == "" || !event.HasRange() {
		return
	}
	err := e.pool.AddLiquidity(event.Owner, *event.TickLower, *event.TickUpper,
		event.Amount0.Big(), event.Amount1.Big(), event.PositionLiquidity())
	if err != nil {
		e.logger.Warn("apply mint", zap.String("owner", event.Owner), zap.Error(err))
	}
}

func (e *Engine) applyBurn(event model.PoolEvent) {
	if event.Owner == "" || !event.HasRange() {
		return
	}
	if _, err := e.pool.RemoveLiquidity(event.Owner, *event.TickLower, *event.TickUpper, event.PositionLiquidity()); err != nil {
		e.logger.Warn("apply burn", zap.String("owner", event.Owner), zap.Error(err))
	}
}

// portfolioValue is the engine position's value including uncollected fees
// and idle tokens.
func (e *Engine) portfolioValue() float64 {
	if !e.pool.Initialized() {
		return e.cfg.InitialCapital
	}
	return e.pool.PositionValue(engineOwner) + e.pool.QuoteValue(e.idle0, e.idle1, e.pool.DisplayPrice())
}

func (e *Engine) uncollectedFees(price float64) float64 {
	var total float64
	for _, pos := range e.pool.Positions(engineOwner) {
		total += e.pool.QuoteValue(pos.TokensOwed0, pos.TokensOwed1, price)
	}
	return total
}

func floorHalf(a, b int32) int32 {
	sum := int64(a) + int64(b)
	half := sum / 2
	if sum < 0 && sum%2 != 0 {
		half--
	}
	return int32(half)
}
