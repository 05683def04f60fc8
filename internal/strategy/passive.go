package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

type PassiveParams struct {
	BaseThreshold     int32
	LimitThreshold    int32
	FullRangeWeight   float64
	RebalanceInterval uint64
	MaxTwapDeviation  int32
	TwapSamples       int
	ProtocolFeeRate   float64
}

func DefaultPassiveParams() PassiveParams {
	return PassiveParams{
		BaseThreshold:     600,
		LimitThreshold:    1200,
		RebalanceInterval: 172800,
		MaxTwapDeviation:  500,
		TwapSamples:       12,
		ProtocolFeeRate:   0.02,
	}
}

// Passive keeps a symmetric base order around the price, puts the surplus
// token in a one-sided limit order and only rebalances on a timer.
type Passive struct {
	*Base
	params        PassiveParams
	lastRebalance uint64
	baseIndex     int
}

func NewPassive(cfg Config, params PassiveParams, logger *zap.Logger) *Passive {
	if params.TwapSamples <= 0 {
		params.TwapSamples = 12
	}
	name := fmt.Sprintf("Passive (base ±%d, limit %d)", params.BaseThreshold, params.LimitThreshold)
	return &Passive{
		Base:      newBase(cfg, name, KindPassive, params.ProtocolFeeRate, logger),
		params:    params,
		baseIndex: -1,
	}
}

// Twap is the floored mean of the most recent observed ticks.
func (s *Passive) Twap(fallback int32) int32 {
	ticks := s.RecentTicks(s.params.TwapSamples)
	if len(ticks) == 0 {
		return fallback
	}
	var sum int64
	for _, t := range ticks {
		sum += int64(t)
	}
	return int32(floorDiv(sum, int64(len(ticks))))
}

func (s *Passive) Initialize(tick int32, amount0, amount1 decimal.Decimal, ts uint64) ([]Position, error) {
	s.lastRebalance = ts
	if err := s.build(tick, amount0, amount1, ts); err != nil {
		return nil, err
	}
	return s.Positions(), nil
}

func (s *Passive) build(tick int32, amount0, amount1 decimal.Decimal, ts uint64) error {
	spacing := s.cfg.TickSpacing
	positions := make([]Position, 0, 3)
	remaining0, remaining1 := amount0, amount1

	if w := s.params.FullRangeWeight; w > 0 {
		weight := decimal.NewFromFloat(w)
		lower := v3math.AlignTick(v3math.MinTick+1000, spacing)
		upper := v3math.AlignTick(v3math.MaxTick-1000, spacing)
		pos, ok, err := s.mint(lower, upper, tick, remaining0.Mul(weight), remaining1.Mul(weight), ts)
		if err != nil {
			return err
		}
		if ok {
			positions = append(positions, pos)
			remaining0 = remaining0.Sub(pos.Amount0)
			remaining1 = remaining1.Sub(pos.Amount1)
		}
	}

	lower := v3math.AlignTick(tick-s.params.BaseThreshold, spacing)
	upper := v3math.AlignTick(tick+s.params.BaseThreshold, spacing)
	base, ok, err := s.mint(lower, upper, tick, remaining0, remaining1, ts)
	if err != nil {
		return err
	}
	s.baseIndex = -1
	if ok {
		s.baseIndex = len(positions)
		positions = append(positions, base)
		remaining0 = remaining0.Sub(base.Amount0)
		remaining1 = remaining1.Sub(base.Amount1)
	}

	floor := v3math.AlignTick(tick, spacing)
	price := v3math.TickToPriceDecimal(tick)
	var limit Position
	switch {
	case remaining0.IsPositive() && remaining0.Mul(price).GreaterThan(remaining1):
		limit, ok, err = s.mint(floor+spacing, floor+spacing+s.params.LimitThreshold, tick, remaining0, decimal.Zero, ts)
	case remaining1.IsPositive():
		limit, ok, err = s.mint(floor-s.params.LimitThreshold, floor, tick, decimal.Zero, remaining1, ts)
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
	return nil
}

func (s *Passive) CheckRebalance(tick int32, ts uint64) (bool, string) {
	if ts < s.lastRebalance+s.params.RebalanceInterval {
		return false, ""
	}
	twap := s.Twap(tick)
	if abs32(tick-twap) > s.params.MaxTwapDeviation {
		return false, "TWAP deviation too high"
	}
	if s.baseIndex >= 0 && s.baseIndex < len(s.positions) {
		base := s.positions[s.baseIndex]
		if base.InRange(tick) && abs32(tick-base.CenterTick()) < s.params.BaseThreshold/2 {
			return false, "Positions still optimal"
		}
	}
	return true, "Time-based rebalance"
}

func (s *Passive) ExecuteRebalance(tick int32, ts uint64, amount0, amount1 decimal.Decimal) (RebalanceResult, error) {
	old := clonePositions(s.positions)
	if err := s.build(tick, amount0, amount1, ts); err != nil {
		return RebalanceResult{}, err
	}
	s.lastRebalance = ts
	return s.recordRebalance(old, ts, decimal.Zero, decimal.Zero, TriggerTimeBased, "Time-based passive rebalance"), nil
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
