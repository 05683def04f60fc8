package strategy

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

const testTick int32 = 69060

var (
	half0 = decimal.NewFromInt(50_000_000)     // 0.5 token0 at 8 decimals
	half1 = decimal.NewFromInt(50_000_000_000) // 50k token1 at 6 decimals
)

func sumWithIdle(s Strategy) (decimal.Decimal, decimal.Decimal) {
	amount0, amount1 := s.Idle()
	for _, p := range s.Positions() {
		amount0 = amount0.Add(p.Amount0)
		amount1 = amount1.Add(p.Amount1)
	}
	return amount0, amount1
}

func withdrawable(s Strategy, tick int32) (decimal.Decimal, decimal.Decimal) {
	amount0, amount1 := s.Idle()
	for _, p := range s.Positions() {
		a0, a1 := p.CurrentAmounts(tick)
		amount0 = amount0.Add(a0)
		amount1 = amount1.Add(a1)
	}
	return amount0, amount1
}

func TestPositionHelpers(t *testing.T) {
	p := Position{Lower: -7, Upper: 0}
	require.Equal(t, int32(-4), p.CenterTick())
	require.Equal(t, int32(7), p.TickRange())
	require.True(t, p.InRange(-7))
	require.False(t, p.InRange(0))

	p = Position{Lower: 60, Upper: 180}
	require.Equal(t, int32(120), p.CenterTick())
}

func TestBaseCosts(t *testing.T) {
	s := NewFixedWidth(DefaultConfig(), DefaultFixedWidthParams(), nil)
	require.True(t, s.GasCostUSD().Equal(decimal.NewFromInt(30)))
	require.True(t, s.CalculateNetFees(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(85)))

	p := NewPassive(DefaultConfig(), DefaultPassiveParams(), nil)
	require.True(t, p.CalculateNetFees(decimal.NewFromInt(100)).Equal(decimal.NewFromInt(98)))
}

func TestRecentTicks(t *testing.T) {
	s := NewFixedWidth(DefaultConfig(), DefaultFixedWidthParams(), nil)
	require.Empty(t, s.RecentTicks(3))
	for i := int32(0); i < 5; i++ {
		s.UpdatePriceHistory(uint64(i), i)
	}
	require.Equal(t, []int32{2, 3, 4}, s.RecentTicks(3))
	require.Equal(t, []int32{0, 1, 2, 3, 4}, s.RecentTicks(10))
}

func TestMintNeverOverspends(t *testing.T) {
	s := NewRatio(DefaultConfig(), DefaultRatioParams(), nil)
	pos, ok, err := s.mint(testTick-300, testTick+300, testTick, decimal.NewFromInt(100_000_000), decimal.Zero, 0)
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, pos.Liquidity)

	pos, ok, err = s.mint(testTick-300, testTick+300, testTick, half0, half1, 0)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, pos.Amount0.LessThanOrEqual(half0))
	require.True(t, pos.Amount1.LessThanOrEqual(half1))

	_, _, err = s.mint(120, 120, testTick, half0, half1, 0)
	require.ErrorIs(t, err, ErrInvalidTickRange)
}

func TestPassiveLimitOrderIsOneSided(t *testing.T) {
	s := NewPassive(DefaultConfig(), DefaultPassiveParams(), nil)
	s.UpdatePriceHistory(0, testTick)
	positions, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)
	require.NotEmpty(t, positions)

	base := positions[0]
	require.Equal(t, int32(68460), base.Lower)
	require.Equal(t, int32(69660), base.Upper)
	for _, p := range positions[1:] {
		require.False(t, p.InRange(testTick))
		if p.Lower > testTick {
			require.True(t, p.Amount1.IsZero())
		} else {
			require.True(t, p.Amount0.IsZero())
		}
	}

	amount0, amount1 := sumWithIdle(s)
	require.True(t, amount0.Equal(half0))
	require.True(t, amount1.Equal(half1))
}

func TestPassiveCheckRebalance(t *testing.T) {
	s := NewPassive(DefaultConfig(), DefaultPassiveParams(), nil)
	s.UpdatePriceHistory(0, testTick)
	_, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)

	ok, reason := s.CheckRebalance(testTick, 100)
	require.False(t, ok)
	require.Empty(t, reason)

	ok, reason = s.CheckRebalance(testTick, 172800)
	require.False(t, ok)
	require.Equal(t, "Positions still optimal", reason)

	ok, reason = s.CheckRebalance(69700, 172800)
	require.False(t, ok)
	require.Equal(t, "TWAP deviation too high", reason)

	for i := 0; i < 12; i++ {
		s.UpdatePriceHistory(uint64(1000+i), 69400)
	}
	require.Equal(t, int32(69400), s.Twap(0))
	ok, reason = s.CheckRebalance(69400, 172800)
	require.True(t, ok)
	require.Equal(t, "Time-based rebalance", reason)
}

func TestPassiveNeverSwaps(t *testing.T) {
	s := NewPassive(DefaultConfig(), DefaultPassiveParams(), nil)
	_, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)

	for i, tick := range []int32{69400, 68500, 70100} {
		amount0, amount1 := withdrawable(s, tick)
		result, err := s.ExecuteRebalance(tick, uint64(i+1)*172800, amount0, amount1)
		require.NoError(t, err)
		require.True(t, result.SwapAmount.IsZero())
		require.True(t, result.SwapFeePaid.IsZero())
		require.Equal(t, TriggerTimeBased, result.Trigger)
	}
	require.Len(t, s.History(), 3)
	m := s.Metrics()
	require.Equal(t, 3, m.RebalanceCount)
	require.True(t, m.TotalGasCost.Equal(decimal.NewFromInt(90)))
	require.True(t, m.TotalSwapCost.IsZero())
}

func TestPassiveFullRangeWeight(t *testing.T) {
	params := DefaultPassiveParams()
	params.FullRangeWeight = 0.2
	s := NewPassive(DefaultConfig(), params, nil)
	positions, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(positions), 2)
	require.Equal(t, v3math.AlignTick(v3math.MinTick+1000, 60), positions[0].Lower)
	require.Equal(t, int32(68460), positions[1].Lower)
}

func TestFixedWidthSwapsToEvenSplit(t *testing.T) {
	s := NewFixedWidth(DefaultConfig(), DefaultFixedWidthParams(), nil)
	positions, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, int32(68760), positions[0].Lower)
	require.Equal(t, int32(69360), positions[0].Upper)

	result, err := s.ExecuteRebalance(testTick, 10, decimal.NewFromInt(100_000_000), decimal.Zero)
	require.NoError(t, err)
	require.True(t, result.SwapAmount.Equal(decimal.NewFromInt(50_000_000)))
	require.True(t, result.SwapFeePaid.IsPositive())
	require.True(t, result.TotalCost().Equal(result.SwapFeePaid.Add(result.GasCost)))

	amount0, amount1 := sumWithIdle(s)
	ratio, _ := v3math.ValueRatio0(amount0, amount1, v3math.TickToPriceDecimal(testTick)).Float64()
	require.InDelta(t, 0.5, ratio, 0.003)
}

func TestFixedWidthCheckRebalance(t *testing.T) {
	s := NewFixedWidth(DefaultConfig(), DefaultFixedWidthParams(), nil)
	ok, reason := s.CheckRebalance(testTick, 0)
	require.True(t, ok)
	require.Equal(t, "No positions", reason)

	_, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)
	require.Equal(t, testTick, s.Center())

	ok, _ = s.CheckRebalance(69200, 10)
	require.False(t, ok)

	ok, reason = s.CheckRebalance(69400, 10)
	require.True(t, ok)
	require.Equal(t, "Price out of range", reason)

	ok, reason = s.CheckRebalance(69600, 10)
	require.True(t, ok)
	require.Equal(t, "Price gap: 540 ticks > 500", reason)
}

func TestFixedWidthRejectsDegenerateRange(t *testing.T) {
	params := DefaultFixedWidthParams()
	params.PositionWidth = 0
	s := NewFixedWidth(DefaultConfig(), params, nil)
	_, err := s.Initialize(testTick, half0, half1, 0)
	require.ErrorIs(t, err, ErrInvalidTickRange)
}

func TestBandsBand(t *testing.T) {
	s := NewBands(DefaultConfig(), DefaultBandsParams(), nil)
	lower, upper := s.Band(testTick)
	require.Equal(t, int32(69000), lower)
	require.Equal(t, int32(69120), upper)

	for i := 0; i < 20; i++ {
		s.UpdatePriceHistory(uint64(i), testTick)
	}
	lower, upper = s.Band(testTick)
	require.Equal(t, int32(69000), lower)
	require.Equal(t, int32(69120), upper)

	for i := 0; i < 20; i++ {
		tick := int32(68000)
		if i%2 == 1 {
			tick = 70000
		}
		s.UpdatePriceHistory(uint64(100+i), tick)
	}
	lower, upper = s.Band(69000)
	require.Equal(t, int32(66960), lower)
	require.Equal(t, int32(70980), upper)
}

func TestBandsRebalance(t *testing.T) {
	s := NewBands(DefaultConfig(), DefaultBandsParams(), nil)
	s.UpdatePriceHistory(0, testTick)
	_, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)

	ok, _ := s.CheckRebalance(70000, 100)
	require.False(t, ok)

	ok, reason := s.CheckRebalance(70000, 3600)
	require.True(t, ok)
	require.Equal(t, "Price out of range", reason)

	result, err := s.ExecuteRebalance(testTick, 3600, decimal.Zero, decimal.NewFromInt(100_000_000_000))
	require.NoError(t, err)
	require.True(t, result.SwapAmount.IsPositive())
	amount0, amount1 := sumWithIdle(s)
	ratio, _ := v3math.ValueRatio0(amount0, amount1, v3math.TickToPriceDecimal(testTick)).Float64()
	require.InDelta(t, 0.5, ratio, 0.003)
}

func TestRatioStates(t *testing.T) {
	s := NewRatio(DefaultConfig(), DefaultRatioParams(), nil)
	require.Equal(t, StateLimitSell, s.StateFor(testTick, half0, decimal.Zero))
	require.Equal(t, StateLimitBuy, s.StateFor(testTick, decimal.Zero, half1))
	require.Equal(t, StateDefault, s.StateFor(testTick, half0, half1))
	require.Equal(t, StateDefault, s.StateFor(testTick, decimal.Zero, decimal.Zero))
}

func TestRatioImbalancedBuild(t *testing.T) {
	s := NewRatio(DefaultConfig(), DefaultRatioParams(), nil)
	amount0 := decimal.NewFromInt(80_000_000)
	amount1 := decimal.NewFromInt(20_000_000_000)
	positions, err := s.Initialize(testTick, amount0, amount1, 0)
	require.NoError(t, err)
	require.Equal(t, StateLimitSell, s.State())
	require.Len(t, positions, 2)
	require.True(t, positions[0].InRange(testTick))
	require.Greater(t, positions[1].Lower, testTick)
	require.True(t, positions[1].Amount1.IsZero())

	used0, used1 := sumWithIdle(s)
	require.True(t, used0.Equal(amount0))
	require.True(t, used1.Equal(amount1))

	for _, p := range s.History() {
		require.True(t, p.SwapAmount.IsZero())
	}
}

func TestRatioCheckRebalance(t *testing.T) {
	s := NewRatio(DefaultConfig(), DefaultRatioParams(), nil)
	_, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)
	require.Equal(t, StateDefault, s.State())

	ok, _ := s.CheckRebalance(testTick, 1)
	require.False(t, ok)

	ok, reason := s.CheckRebalance(71000, 1)
	require.True(t, ok)
	require.Equal(t, "Main position out of range", reason)
}

func TestRatioWithoutMainPosition(t *testing.T) {
	s := NewRatio(DefaultConfig(), DefaultRatioParams(), nil)
	// token0 alone cannot fund a range around the price, only the limit order.
	positions, err := s.Initialize(testTick, half0, decimal.Zero, 0)
	require.NoError(t, err)
	require.Equal(t, StateLimitSell, s.State())
	require.Len(t, positions, 1)
	require.Greater(t, positions[0].Lower, testTick)

	ok, reason := s.CheckRebalance(testTick, 1)
	require.False(t, ok, reason)

	result, err := s.ExecuteRebalance(testTick, 2, half0, decimal.Zero)
	require.NoError(t, err)
	require.Equal(t, TriggerOneWayExit, result.Trigger)
}

func TestRebalanceCapitalBounded(t *testing.T) {
	rawValue := func(amount0, amount1 decimal.Decimal, tick int32) decimal.Decimal {
		return amount0.Mul(v3math.TickToPriceDecimal(tick)).Add(amount1)
	}
	for _, kind := range Kinds() {
		t.Run(string(kind), func(t *testing.T) {
			s, err := New(kind, DefaultConfig(), nil)
			require.NoError(t, err)
			_, err = s.Initialize(testTick, half0, half1, 0)
			require.NoError(t, err)

			for i, tick := range []int32{testTick + 1200, testTick - 900} {
				w0, w1 := withdrawable(s, tick)
				withdrawn := rawValue(w0, w1, tick)

				_, err := s.ExecuteRebalance(tick, uint64(i+1)*7200, w0, w1)
				require.NoError(t, err)

				idle0, idle1 := s.Idle()
				require.False(t, idle0.IsNegative())
				require.False(t, idle1.IsNegative())
				for _, p := range s.Positions() {
					require.False(t, p.Amount0.IsNegative())
					require.False(t, p.Amount1.IsNegative())
				}
				a0, a1 := sumWithIdle(s)
				handed := rawValue(a0, a1, tick)
				require.False(t, handed.IsNegative())
				require.True(t, handed.LessThanOrEqual(withdrawn), "%s: %s > %s", kind, handed, withdrawn)
			}
		})
	}
}

func TestCalculateFeesEarned(t *testing.T) {
	s := NewFixedWidth(DefaultConfig(), DefaultFixedWidthParams(), nil)
	positions, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)
	liquidity := decimal.NewFromBigInt(positions[0].Liquidity, 0)
	idle0, _ := s.Idle()

	growth := v3math.FeeGrowth{
		Token0: new(big.Int).Mul(v3math.Q128, big.NewInt(3)),
		Token1: new(big.Int).Mul(v3math.Q128, big.NewInt(2)),
	}
	fees0, fees1 := s.CalculateFeesEarned(growth, testTick)
	require.True(t, fees0.Equal(liquidity.Mul(decimal.NewFromInt(3))))
	require.True(t, fees1.Equal(liquidity.Mul(decimal.NewFromInt(2))))

	after0, _ := s.Idle()
	require.True(t, after0.Sub(idle0).Equal(s.CalculateNetFees(fees0).Truncate(0)))
	require.True(t, s.Metrics().FeesEarned0.Equal(fees0))
	require.True(t, s.Metrics().TotalFeesEarned.IsPositive())

	fees0, fees1 = s.CalculateFeesEarned(growth, testTick)
	require.True(t, fees0.IsZero())
	require.True(t, fees1.IsZero())

	later := v3math.FeeGrowth{
		Token0: new(big.Int).Mul(v3math.Q128, big.NewInt(5)),
		Token1: new(big.Int).Mul(v3math.Q128, big.NewInt(5)),
	}
	fees0, _ = s.CalculateFeesEarned(later, 80000)
	require.True(t, fees0.IsZero())
	fees0, _ = s.CalculateFeesEarned(later, testTick)
	require.True(t, fees0.IsZero())
}

func TestTrackTime(t *testing.T) {
	s := NewFixedWidth(DefaultConfig(), DefaultFixedWidthParams(), nil)
	_, err := s.Initialize(testTick, half0, half1, 0)
	require.NoError(t, err)
	s.TrackTime(testTick, 30)
	s.TrackTime(80000, 10)
	s.TrackTime(testTick, 0)
	m := s.Metrics()
	require.Equal(t, uint64(40), m.TotalTime)
	require.Equal(t, uint64(30), m.TimeInRange)
	require.InDelta(t, 75.0, m.TimeInRangePct(), 1e-9)
}

func TestRegistry(t *testing.T) {
	for _, kind := range Kinds() {
		s, err := New(kind, DefaultConfig(), nil)
		require.NoError(t, err)
		require.Equal(t, kind, s.Kind())
		require.NotEmpty(t, s.Name())
	}

	kind, err := ParseKind(" Elastic ")
	require.NoError(t, err)
	require.Equal(t, KindBands, kind)

	_, err = ParseKind("martingale")
	require.ErrorIs(t, err, ErrUnknownKind)
	_, err = New(Kind("martingale"), DefaultConfig(), nil)
	require.ErrorIs(t, err, ErrUnknownKind)
}
