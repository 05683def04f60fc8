package strategy

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

type BandsParams struct {
	SMAPeriod          int
	StdDevMultiplier   float64
	MinWidth           int32
	Lookback           int
	RebalanceThreshold int32
	MinInterval        uint64
	ProtocolFeeRate    float64
}

func DefaultBandsParams() BandsParams {
	return BandsParams{
		SMAPeriod:          20,
		StdDevMultiplier:   2.0,
		MinWidth:           120,
		Lookback:           100,
		RebalanceThreshold: 300,
		MinInterval:        3600,
		ProtocolFeeRate:    0.15,
	}
}

// Bands sizes its range from a moving mean and deviation band of recent ticks.
type Bands struct {
	*Base
	params        BandsParams
	lastRebalance uint64
}

func NewBands(cfg Config, params BandsParams, logger *zap.Logger) *Bands {
	if params.SMAPeriod <= 0 {
		params.SMAPeriod = 20
	}
	if params.Lookback < params.SMAPeriod {
		params.Lookback = params.SMAPeriod
	}
	name := fmt.Sprintf("Bands (SMA %d, k %.1f)", params.SMAPeriod, params.StdDevMultiplier)
	return &Bands{
		Base:   newBase(cfg, name, KindBands, params.ProtocolFeeRate, logger),
		params: params,
	}
}

// Band returns the aligned [lower, upper) the strategy would target now.
func (s *Bands) Band(tick int32) (int32, int32) {
	ticks := s.RecentTicks(s.params.Lookback)
	var lower, upper int32
	if len(ticks) < s.params.SMAPeriod {
		last := tick
		if len(ticks) > 0 {
			last = ticks[len(ticks)-1]
		}
		lower, upper = last-s.params.MinWidth/2, last+s.params.MinWidth/2
	} else {
		window := ticks[len(ticks)-s.params.SMAPeriod:]
		var sum float64
		for _, t := range window {
			sum += float64(t)
		}
		mean := sum / float64(len(window))
		var sq float64
		for _, t := range window {
			d := float64(t) - mean
			sq += d * d
		}
		std := math.Sqrt(sq / float64(len(window)))
		upper = int32(mean + s.params.StdDevMultiplier*std)
		lower = int32(mean - s.params.StdDevMultiplier*std)
		if upper-lower < s.params.MinWidth {
			mid := int32(floorDiv(int64(upper)+int64(lower), 2))
			lower, upper = mid-s.params.MinWidth/2, mid+s.params.MinWidth/2
		}
	}
	spacing := s.cfg.TickSpacing
	lower, upper = v3math.AlignTick(lower, spacing), v3math.AlignTick(upper, spacing)
	if upper <= lower {
		upper = lower + spacing
	}
	return lower, upper
}

func (s *Bands) Initialize(tick int32, amount0, amount1 decimal.Decimal, ts uint64) ([]Position, error) {
	if err := s.open(tick, amount0, amount1, ts); err != nil {
		return nil, err
	}
	s.lastRebalance = ts
	return s.Positions(), nil
}

func (s *Bands) open(tick int32, amount0, amount1 decimal.Decimal, ts uint64) error {
	lower, upper := s.Band(tick)
	pos, ok, err := s.mint(lower, upper, tick, amount0, amount1, ts)
	if err != nil {
		return err
	}
	var positions []Position
	if ok {
		positions = append(positions, pos)
	}
	s.settle(positions, amount0, amount1)
	return nil
}

func (s *Bands) CheckRebalance(tick int32, ts uint64) (bool, string) {
	if len(s.positions) == 0 {
		return true, "No positions"
	}
	if ts < s.lastRebalance+s.params.MinInterval {
		return false, ""
	}
	current := s.positions[0]
	if !current.InRange(tick) {
		return true, "Price out of range"
	}
	lower, upper := s.Band(tick)
	shift := abs32(lower - current.Lower)
	if d := abs32(upper - current.Upper); d > shift {
		shift = d
	}
	limit := s.params.RebalanceThreshold
	if w := int32(0.3 * float64(current.TickRange())); w > limit {
		limit = w
	}
	if shift > limit {
		return true, fmt.Sprintf("Bands shifted %d ticks", shift)
	}
	return false, ""
}

func (s *Bands) ExecuteRebalance(tick int32, ts uint64, amount0, amount1 decimal.Decimal) (RebalanceResult, error) {
	old := clonePositions(s.positions)
	amount0, amount1, swapped, swapFee := s.swapToRatio(tick, amount0, amount1, decimal.NewFromFloat(0.5))
	if err := s.open(tick, amount0, amount1, ts); err != nil {
		return RebalanceResult{}, err
	}
	s.lastRebalance = ts

	trigger := TriggerPriceDrift
	if len(old) > 0 && !old[0].InRange(tick) {
		trigger = TriggerRangeInactive
	}
	return s.recordRebalance(old, ts, swapped, swapFee, trigger, "Band adjustment"), nil
}
