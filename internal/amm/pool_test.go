package amm

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	pool := NewPool(Config{FeeTier: 3000, Decimals0: 8, Decimals1: 6}, nil)
	pool.Initialize(new(big.Int).Set(v3math.Q96), 0, big.NewInt(0), 1)
	return pool
}

func mustInt(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		t.Fatalf("bad int %s", s)
	}
	return v
}

func TestSwapFeeGrowthScenario(t *testing.T) {
	pool := newTestPool(t)
	if err := pool.AddLiquidity("lp", -600, 600, big.NewInt(100000000), big.NewInt(10000000000), nil); err != nil {
		t.Fatalf("add liquidity: %v", err)
	}

	err := pool.ProcessSwap(SwapUpdate{
		Amount0:      big.NewInt(1000),
		Amount1:      big.NewInt(-100000),
		SqrtPriceX96: new(big.Int).Set(v3math.Q96),
		Tick:         0,
		Liquidity:    big.NewInt(1_000_000_000_000),
		Timestamp:    2,
	})
	if err != nil {
		t.Fatalf("process swap: %v", err)
	}

	want := new(big.Int).Mul(big.NewInt(300), v3math.Q128)
	want.Quo(want, big.NewInt(1_000_000_000_000))

	state := pool.State()
	if state.FeeGrowthGlobal1X128.Cmp(want) != 0 {
		t.Fatalf("fee growth1 mismatch: got %s want %s", state.FeeGrowthGlobal1X128, want)
	}
	if state.FeeGrowthGlobal0X128.Sign() != 0 {
		t.Fatalf("fee growth0 should stay zero: %s", state.FeeGrowthGlobal0X128)
	}
	if len(pool.PriceHistory()) != 2 {
		t.Fatalf("expected 2 price points, got %d", len(pool.PriceHistory()))
	}
}

func TestUninitializedPoolFails(t *testing.T) {
	pool := NewPool(Config{}, nil)

	if err := pool.AddLiquidity("lp", -60, 60, big.NewInt(1), big.NewInt(1), big.NewInt(10)); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("expected ErrPoolNotInitialized, got %v", err)
	}
	if _, err := pool.RemoveLiquidity("lp", -60, 60, big.NewInt(10)); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("expected ErrPoolNotInitialized, got %v", err)
	}
	if err := pool.ProcessSwap(SwapUpdate{Tick: 1}); !errors.Is(err, ErrPoolNotInitialized) {
		t.Fatalf("expected ErrPoolNotInitialized, got %v", err)
	}
}

func TestAddLiquidityInvalidRange(t *testing.T) {
	pool := newTestPool(t)
	if err := pool.AddLiquidity("lp", 60, 60, big.NewInt(1), big.NewInt(1), big.NewInt(10)); !errors.Is(err, ErrInvalidTickRange) {
		t.Fatalf("expected ErrInvalidTickRange, got %v", err)
	}
	if err := pool.AddLiquidity("lp", v3math.MinTick-60, 0, big.NewInt(1), big.NewInt(1), big.NewInt(10)); !errors.Is(err, ErrInvalidTickRange) {
		t.Fatalf("expected ErrInvalidTickRange, got %v", err)
	}
	if err := pool.AddLiquidity("lp", -90, 60, big.NewInt(1), big.NewInt(1), big.NewInt(10)); !errors.Is(err, ErrTickMisaligned) {
		t.Fatalf("expected ErrTickMisaligned, got %v", err)
	}
	if err := pool.AddLiquidity("lp", -60, 61, big.NewInt(1), big.NewInt(1), big.NewInt(10)); !errors.Is(err, ErrTickMisaligned) {
		t.Fatalf("expected ErrTickMisaligned, got %v", err)
	}
	if len(pool.Positions("lp")) != 0 {
		t.Fatalf("rejected ranges must not register positions")
	}
}

func TestActiveLiquidityTracksPositions(t *testing.T) {
	pool := newTestPool(t)
	add := func(owner string, lower, upper int32, l int64) {
		if err := pool.AddLiquidity(owner, lower, upper, big.NewInt(0), big.NewInt(0), big.NewInt(l)); err != nil {
			t.Fatalf("add liquidity: %v", err)
		}
	}
	add("a", -600, 600, 1000)
	add("b", 600, 1200, 500)
	add("b", -60, 60, 200)

	if got := pool.State().Liquidity.Int64(); got != 1200 {
		t.Fatalf("active liquidity at tick 0: got %d want 1200", got)
	}

	err := pool.ProcessSwap(SwapUpdate{
		Amount0:      big.NewInt(-10),
		Amount1:      big.NewInt(10),
		SqrtPriceX96: v3math.MustTickToSqrtPriceX96(700),
		Tick:         700,
		Liquidity:    big.NewInt(1_000_000),
		Timestamp:    2,
	})
	if err != nil {
		t.Fatalf("process swap: %v", err)
	}

	state := pool.State()
	if state.Liquidity.Int64() != 500 {
		t.Fatalf("active liquidity at tick 700: got %s want 500", state.Liquidity)
	}
	if state.Liquidity.Cmp(pool.ActiveLiquidityOf()) != 0 {
		t.Fatalf("liquidity invariant broken")
	}
}

func TestSameRangeMintSettlesAndAccumulates(t *testing.T) {
	pool := newTestPool(t)
	posL := new(big.Int).Lsh(big.NewInt(1), 70)
	if err := pool.AddLiquidity("lp", -600, 600, big.NewInt(100000000), big.NewInt(10000000000), posL); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := pool.ProcessSwap(SwapUpdate{
		Amount0:      big.NewInt(1_000_000),
		Amount1:      big.NewInt(-1_000_000),
		SqrtPriceX96: new(big.Int).Set(v3math.Q96),
		Liquidity:    new(big.Int).Lsh(big.NewInt(1), 71),
		Timestamp:    2,
	}); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if err := pool.AddLiquidity("lp", -600, 600, big.NewInt(100000000), big.NewInt(10000000000), posL); err != nil {
		t.Fatalf("add again: %v", err)
	}

	positions := pool.Positions("lp")
	if len(positions) != 1 {
		t.Fatalf("expected one merged position, got %d", len(positions))
	}
	pos := positions[0]
	doubled := new(big.Int).Lsh(big.NewInt(1), 71)
	if pos.Liquidity.Cmp(doubled) != 0 {
		t.Fatalf("liquidity mismatch: %s", pos.Liquidity)
	}
	if pos.Amount1.Int64() != 20000000000 {
		t.Fatalf("amount1 mismatch: %s", pos.Amount1)
	}
	// fee1 = 3000 spread over 2^71, the position holds half of it
	if pos.TokensOwed1.Int64() != 1500 {
		t.Fatalf("owed1 mismatch: %s", pos.TokensOwed1)
	}
	if pool.State().Liquidity.Cmp(doubled) != 0 {
		t.Fatalf("pool liquidity mismatch: %s", pool.State().Liquidity)
	}
}

func TestFeeCeilingBoundsSettlement(t *testing.T) {
	pool := newTestPool(t)
	if err := pool.AddLiquidity("lp", -600, 600, big.NewInt(100000000), big.NewInt(10000000000), mustInt(t, "1000000000000000000")); err != nil {
		t.Fatalf("add: %v", err)
	}

	for i := 0; i < 3; i++ {
		before := pool.Positions("lp")[0].TokensOwed1
		if err := pool.ProcessSwap(SwapUpdate{
			Amount0:      big.NewInt(1_000_000_000),
			Amount1:      big.NewInt(-1_000_000_000_000),
			SqrtPriceX96: new(big.Int).Set(v3math.Q96),
			Liquidity:    big.NewInt(1_000_000_000_000),
			Timestamp:    uint64(2 + i),
		}); err != nil {
			t.Fatalf("swap: %v", err)
		}
		after := pool.Positions("lp")[0].TokensOwed1
		credited := new(big.Int).Sub(after, before)
		// ceiling is 0.001% of the 1e10 deposit
		if credited.Int64() != 100000 {
			t.Fatalf("settlement %d credited %s, want ceiling 100000", i, credited)
		}
	}
}

func TestFeeCeilingSmallDeposit(t *testing.T) {
	pool := newTestPool(t)
	for _, tc := range []struct {
		deposit int64
		want    int64
	}{
		{0, 1},
		{50_000, 1},
		{99_999, 1},
		{300_000, 3},
	} {
		if got := pool.FeeCeiling(big.NewInt(tc.deposit)).Int64(); got != tc.want {
			t.Fatalf("ceiling for %d: got %d want %d", tc.deposit, got, tc.want)
		}
	}

	// Below divisor units the floor of one unit still applies per settlement.
	if err := pool.AddLiquidity("lp", -600, 600, big.NewInt(0), big.NewInt(50_000), mustInt(t, "1000000000000000000")); err != nil {
		t.Fatalf("add: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := pool.ProcessSwap(SwapUpdate{
			Amount0:      big.NewInt(1_000_000_000),
			Amount1:      big.NewInt(-1_000_000_000_000),
			SqrtPriceX96: new(big.Int).Set(v3math.Q96),
			Liquidity:    big.NewInt(1_000_000_000_000),
			Timestamp:    uint64(2 + i),
		}); err != nil {
			t.Fatalf("swap: %v", err)
		}
	}
	if got := pool.Positions("lp")[0].TokensOwed1.Int64(); got != 2 {
		t.Fatalf("owed1 mismatch: got %d want 2", got)
	}
}

func TestFeeCeilingDisabled(t *testing.T) {
	pool := NewPool(Config{FeeTier: 3000, FeeCeilingDivisor: -1}, nil)
	pool.Initialize(new(big.Int).Set(v3math.Q96), 0, big.NewInt(0), 0)
	posL := new(big.Int).Lsh(big.NewInt(1), 20)
	if err := pool.AddLiquidity("lp", -600, 600, big.NewInt(0), big.NewInt(0), posL); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := pool.ProcessSwap(SwapUpdate{
		Amount0:      big.NewInt(-1_000_000),
		Amount1:      big.NewInt(1_000_000),
		SqrtPriceX96: new(big.Int).Set(v3math.Q96),
		Liquidity:    posL,
	}); err != nil {
		t.Fatalf("swap: %v", err)
	}
	if got := pool.Positions("lp")[0].TokensOwed0.Int64(); got != 3000 {
		t.Fatalf("owed0 mismatch: %d", got)
	}
}

func TestRemoveLiquidityProratesFees(t *testing.T) {
	pool := newTestPool(t)
	full := mustInt(t, "1000000000000000000")
	if err := pool.AddLiquidity("lp", -600, 600, big.NewInt(100000000), big.NewInt(10000000000), full); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := pool.ProcessSwap(SwapUpdate{
		Amount0:      big.NewInt(1_000_000_000),
		Amount1:      big.NewInt(-1_000_000_000_000),
		SqrtPriceX96: new(big.Int).Set(v3math.Q96),
		Liquidity:    big.NewInt(1_000_000_000_000),
		Timestamp:    2,
	}); err != nil {
		t.Fatalf("swap: %v", err)
	}

	half := new(big.Int).Quo(full, big.NewInt(2))
	w, err := pool.RemoveLiquidity("lp", -600, 600, half)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if w.Fees1.Int64() != 50000 {
		t.Fatalf("prorated fee mismatch: %s", w.Fees1)
	}
	if w.Amount0.Sign() <= 0 || w.Amount1.Sign() <= 0 {
		t.Fatalf("in-range withdrawal should return both tokens: %s %s", w.Amount0, w.Amount1)
	}
	if pool.State().Liquidity.Cmp(half) != 0 {
		t.Fatalf("pool liquidity mismatch: %s", pool.State().Liquidity)
	}

	// more than available is clamped and the position disappears
	w, err = pool.RemoveLiquidity("lp", -600, 600, full)
	if err != nil {
		t.Fatalf("remove rest: %v", err)
	}
	if w.Fees1.Int64() != 50000 {
		t.Fatalf("remaining fee mismatch: %s", w.Fees1)
	}
	if len(pool.Positions("lp")) != 0 {
		t.Fatalf("position should be removed")
	}
	if pool.State().Liquidity.Sign() != 0 {
		t.Fatalf("pool liquidity should be zero: %s", pool.State().Liquidity)
	}

	w, err = pool.RemoveLiquidity("lp", -600, 600, full)
	if err != nil || w.Amount0.Sign() != 0 || w.Fees0.Sign() != 0 {
		t.Fatalf("missing position should yield empty withdrawal: %+v %v", w, err)
	}
}

func TestOutOfRangePositionEarnsNothing(t *testing.T) {
	pool := newTestPool(t)
	if err := pool.AddLiquidity("lp", 600, 1200, big.NewInt(100000000), big.NewInt(0), mustInt(t, "1000000000000000000")); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := pool.ProcessSwap(SwapUpdate{
		Amount0:      big.NewInt(1_000_000_000),
		Amount1:      big.NewInt(-1_000_000_000),
		SqrtPriceX96: new(big.Int).Set(v3math.Q96),
		Liquidity:    big.NewInt(1_000_000_000_000),
		Timestamp:    2,
	}); err != nil {
		t.Fatalf("swap: %v", err)
	}
	// price moves into range: growth accrued while out of range must not be credited
	if err := pool.ProcessSwap(SwapUpdate{
		Amount0:      big.NewInt(-1),
		Amount1:      big.NewInt(1),
		SqrtPriceX96: v3math.MustTickToSqrtPriceX96(700),
		Tick:         700,
		Liquidity:    big.NewInt(1_000_000_000_000),
		Timestamp:    3,
	}); err != nil {
		t.Fatalf("swap: %v", err)
	}
	fees0, fees1, err := pool.CollectFees("lp", 600, 1200)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if fees0.Sign() != 0 || fees1.Sign() != 0 {
		t.Fatalf("out of range position earned fees: %s %s", fees0, fees1)
	}
}

func TestFeeGrowthNonDecreasing(t *testing.T) {
	pool := newTestPool(t)
	prev := pool.FeeGrowthGlobal()
	amounts := [][2]int64{{100, -90}, {-50, 60}, {0, 0}, {7, -7}, {-1000000, 1000001}}
	for i, a := range amounts {
		if err := pool.ProcessSwap(SwapUpdate{
			Amount0:      big.NewInt(a[0]),
			Amount1:      big.NewInt(a[1]),
			SqrtPriceX96: new(big.Int).Set(v3math.Q96),
			Liquidity:    big.NewInt(1000),
			Timestamp:    uint64(10 + i),
		}); err != nil {
			t.Fatalf("swap: %v", err)
		}
		cur := pool.FeeGrowthGlobal()
		if cur.Token0.Cmp(prev.Token0) < 0 || cur.Token1.Cmp(prev.Token1) < 0 {
			t.Fatalf("fee growth decreased at swap %d", i)
		}
		prev = cur
	}
}

func TestPositionValue(t *testing.T) {
	pool := newTestPool(t)
	// 1 token0 (8 decimals) and 100 token1 (6 decimals) at display price 100
	if err := pool.AddLiquidity("lp", -600, 600, big.NewInt(100000000), big.NewInt(100000000), nil); err != nil {
		t.Fatalf("add: %v", err)
	}
	value := pool.PositionValue("lp")
	if value <= 0 || value > 200.0001 {
		t.Fatalf("position value out of bounds: %f", value)
	}
	if pool.PositionValue("nobody") != 0 {
		t.Fatalf("unknown owner should be worth zero")
	}
}
