package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

// RatioState is the inventory state of the Ratio strategy.
type RatioState string

const (
	StateDefault   RatioState = "default"
	StateLimitSell RatioState = "limit_sell"
	StateLimitBuy  RatioState = "limit_buy"
)

type RatioParams struct {
	IdealRatio      float64
	Tolerance       float64
	TailWeight      float64
	DefaultWidth    int32
	LimitWidth      int32
	ProtocolFeeRate float64
}

func DefaultRatioParams() RatioParams {
	return RatioParams{
		IdealRatio:      0.5,
		Tolerance:       0.1,
		TailWeight:      0.3,
		DefaultWidth:    600,
		LimitWidth:      300,
		ProtocolFeeRate: 0.15,
	}
}

// Ratio never swaps. When inventory drifts from the ideal value split it
// shrinks the main range and parks the surplus in a one-sided limit order.
type Ratio struct {
	*Base
	params RatioParams
	state  RatioState

	// bounds of the main range from the last build
	mainLower, mainUpper int32
}

func NewRatio(cfg Config, params RatioParams, logger *zap.Logger) *Ratio {
	name := fmt.Sprintf("Ratio (ideal %.2f ±%.2f)", params.IdealRatio, params.Tolerance)
	return &Ratio{
		Base:   newBase(cfg, name, KindRatio, params.ProtocolFeeRate, logger),
		params: params,
		state:  StateDefault,
	}
}

func (s *Ratio) State() RatioState { return s.state }

// StateFor classifies an inventory at tick.
func (s *Ratio) StateFor(tick int32, amount0, amount1 decimal.Decimal) RatioState {
	ratio, _ := v3math.ValueRatio0(amount0, amount1, v3math.TickToPriceDecimal(tick)).Float64()
	switch {
	case ratio > s.params.IdealRatio+s.params.Tolerance:
		return StateLimitSell
	case ratio < s.params.IdealRatio-s.params.Tolerance:
		return StateLimitBuy
	default:
		return StateDefault
	}
}

func (s *Ratio) Initialize(tick int32, amount0, amount1 decimal.Decimal, ts uint64) ([]Position, error) {
	if err := s.build(tick, amount0, amount1, ts); err != nil {
		return nil, err
	}
	return s.Positions(), nil
}

func (s *Ratio) build(tick int32, amount0, amount1 decimal.Decimal, ts uint64) error {
	state := s.StateFor(tick, amount0, amount1)
	spacing := s.cfg.TickSpacing
	half := s.params.DefaultWidth / 2

	main0, main1 := amount0, amount1
	if state != StateDefault {
		weight := decimal.NewFromFloat(1 - s.params.TailWeight)
		main0, main1 = amount0.Mul(weight).Truncate(0), amount1.Mul(weight).Truncate(0)
	}
	lower := v3math.AlignTick(tick-half, spacing)
	upper := v3math.AlignTick(tick+half, spacing)
	s.mainLower, s.mainUpper = clampTick(lower), clampTick(upper)
	main, ok, err := s.mint(lower, upper, tick, main0, main1, ts)
	if err != nil {
		return err
	}
	positions := make([]Position, 0, 2)
	if ok {
		positions = append(positions, main)
	}
	surplus0, surplus1 := amount0.Sub(main.Amount0), amount1.Sub(main.Amount1)

	floor := v3math.AlignTick(tick, spacing)
	var limit Position
	switch {
	case state == StateLimitSell && surplus0.IsPositive():
		limit, ok, err = s.mint(floor+spacing, floor+spacing+s.params.LimitWidth, tick, surplus0, decimal.Zero, ts)
	case state == StateLimitBuy && surplus1.IsPositive():
		limit, ok, err = s.mint(floor-s.params.LimitWidth, floor, tick, decimal.Zero, surplus1, ts)
	default:
		ok = false
	}
	if err != nil {
		return err
	}
	if ok {
		positions = append(positions, limit)
	}

	s.settle(positions, amount0, amount1)
	s.state = state
	return nil
}

func (s *Ratio) CheckRebalance(tick int32, _ uint64) (bool, string) {
	if len(s.positions) == 0 {
		return true, "No positions"
	}
	if main, ok := s.mainPosition(s.positions); ok && !main.InRange(tick) {
		return true, "Main position out of range"
	}
	amount0, amount1 := s.Idle()
	for _, p := range s.positions {
		a0, a1 := p.CurrentAmounts(tick)
		amount0, amount1 = amount0.Add(a0), amount1.Add(a1)
	}
	if next := s.StateFor(tick, amount0, amount1); next != s.state {
		return true, fmt.Sprintf("State change: %s -> %s", s.state, next)
	}
	return false, ""
}

func (s *Ratio) ExecuteRebalance(tick int32, ts uint64, amount0, amount1 decimal.Decimal) (RebalanceResult, error) {
	old := clonePositions(s.positions)
	oldMain, hadMain := s.mainPosition(old)
	if err := s.build(tick, amount0, amount1, ts); err != nil {
		return RebalanceResult{}, err
	}
	trigger := TriggerOneWayExit
	if hadMain && !oldMain.InRange(tick) {
		trigger = TriggerRangeInactive
	}
	return s.recordRebalance(old, ts, decimal.Zero, decimal.Zero, trigger, fmt.Sprintf("Ratio state: %s", s.state)), nil
}

// mainPosition finds the main range among positions. A build whose main mint
// was unfunded holds only the limit order.
func (s *Ratio) mainPosition(positions []Position) (Position, bool) {
	for _, p := range positions {
		if p.Lower == s.mainLower && p.Upper == s.mainUpper {
			return p, true
		}
	}
	return Position{}, false
}
