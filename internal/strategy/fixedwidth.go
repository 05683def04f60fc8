package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

type FixedWidthParams struct {
	PositionWidth      int32
	RebalanceThreshold int32
	ProtocolFeeRate    float64
}

func DefaultFixedWidthParams() FixedWidthParams {
	return FixedWidthParams{
		PositionWidth:      600,
		RebalanceThreshold: 500,
		ProtocolFeeRate:    0.15,
	}
}

// FixedWidth holds one range of constant width centered on the price at the
// last rebalance, swapping to a 50/50 split before every mint.
type FixedWidth struct {
	*Base
	params FixedWidthParams
	center int32
}

func NewFixedWidth(cfg Config, params FixedWidthParams, logger *zap.Logger) *FixedWidth {
	name := fmt.Sprintf("Fixed width (±%d ticks)", params.PositionWidth/2)
	return &FixedWidth{
		Base:   newBase(cfg, name, KindFixedWidth, params.ProtocolFeeRate, logger),
		params: params,
	}
}

func (s *FixedWidth) Center() int32 { return s.center }

func (s *FixedWidth) bounds(tick int32) (int32, int32) {
	half := s.params.PositionWidth / 2
	return v3math.AlignTick(tick-half, s.cfg.TickSpacing), v3math.AlignTick(tick+half, s.cfg.TickSpacing)
}

func (s *FixedWidth) Initialize(tick int32, amount0, amount1 decimal.Decimal, ts uint64) ([]Position, error) {
	lower, upper := s.bounds(tick)
	pos, ok, err := s.mint(lower, upper, tick, amount0, amount1, ts)
	if err != nil {
		return nil, err
	}
	var positions []Position
	if ok {
		positions = append(positions, pos)
	}
	s.settle(positions, amount0, amount1)
	s.center = tick
	return s.Positions(), nil
}

func (s *FixedWidth) CheckRebalance(tick int32, _ uint64) (bool, string) {
	if len(s.positions) == 0 {
		return true, "No positions"
	}
	if gap := abs32(tick - s.center); gap > s.params.RebalanceThreshold {
		return true, fmt.Sprintf("Price gap: %d ticks > %d", gap, s.params.RebalanceThreshold)
	}
	if !s.positions[0].InRange(tick) {
		return true, "Price out of range"
	}
	return false, ""
}

func (s *FixedWidth) ExecuteRebalance(tick int32, ts uint64, amount0, amount1 decimal.Decimal) (RebalanceResult, error) {
	old := clonePositions(s.positions)
	amount0, amount1, swapped, swapFee := s.swapToRatio(tick, amount0, amount1, decimal.NewFromFloat(0.5))

	lower, upper := s.bounds(tick)
	pos, ok, err := s.mint(lower, upper, tick, amount0, amount1, ts)
	if err != nil {
		return RebalanceResult{}, err
	}
	var positions []Position
	if ok {
		positions = append(positions, pos)
	}
	s.settle(positions, amount0, amount1)
	s.center = tick

	trigger := TriggerPriceGap
	if len(old) > 0 && !old[0].InRange(tick) {
		trigger = TriggerRangeInactive
	}
	return s.recordRebalance(old, ts, swapped, swapFee, trigger, "Fixed width recenter"), nil
}
