package v3math

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTickToSqrtPriceX96Bounds(t *testing.T) {
	got, err := TickToSqrtPriceX96(0)
	require.NoError(t, err)
	require.Equal(t, 0, got.Cmp(Q96), "tick 0 should be 2^96, got %s", got)

	got, err = TickToSqrtPriceX96(MinTick)
	require.NoError(t, err)
	require.Equal(t, 0, got.Cmp(MinSqrtRatio), "min tick ratio mismatch: %s", got)

	got, err = TickToSqrtPriceX96(MaxTick)
	require.NoError(t, err)
	require.Equal(t, 0, got.Cmp(MaxSqrtRatio), "max tick ratio mismatch: %s", got)
}

func TestTickToSqrtPriceX96OutOfRange(t *testing.T) {
	for _, tick := range []int32{MinTick - 1, MaxTick + 1} {
		_, err := TickToSqrtPriceX96(tick)
		if !errors.Is(err, ErrTickOutOfRange) {
			t.Fatalf("tick %d: expected ErrTickOutOfRange, got %v", tick, err)
		}
	}
}

func TestTickToSqrtPriceX96Monotonic(t *testing.T) {
	prev := MustTickToSqrtPriceX96(-1000)
	for tick := int32(-999); tick <= 1000; tick++ {
		cur := MustTickToSqrtPriceX96(tick)
		if cur.Cmp(prev) <= 0 {
			t.Fatalf("ratio not increasing at tick %d", tick)
		}
		prev = cur
	}
}

func TestSqrtPriceRoundTrip(t *testing.T) {
	ticks := []int32{MinTick, MinTick + 1, -200000, -60, -1, 0, 1, 60, 69082, 200000, MaxTick - 1, MaxTick}
	for tick := MinTick; tick <= MaxTick; tick += 7919 {
		ticks = append(ticks, tick)
	}

	for _, tick := range ticks {
		sqrt := MustTickToSqrtPriceX96(tick)
		got := SqrtPriceX96ToTick(sqrt)
		if got != tick {
			t.Fatalf("round trip mismatch: tick=%d got=%d", tick, got)
		}
	}
}

func TestSqrtPriceX96ToTickBetweenTicks(t *testing.T) {
	lower := MustTickToSqrtPriceX96(100)
	between := new(big.Int).Add(lower, big.NewInt(1))
	require.Equal(t, int32(100), SqrtPriceX96ToTick(between))
}

func TestSqrtPriceX96ToTickClamps(t *testing.T) {
	require.Equal(t, MinTick, SqrtPriceX96ToTick(big.NewInt(1)))
	require.Equal(t, MinTick, SqrtPriceX96ToTick(nil))
	huge := new(big.Int).Lsh(big.NewInt(1), 200)
	require.Equal(t, MaxTick, SqrtPriceX96ToTick(huge))
}

func TestAlignTick(t *testing.T) {
	cases := []struct {
		tick, spacing, want int32
	}{
		{0, 60, 0},
		{59, 60, 0},
		{60, 60, 60},
		{-1, 60, -60},
		{-61, 60, -120},
		{-120, 60, -120},
		{17, 0, 17},
	}
	for _, tc := range cases {
		if got := AlignTick(tc.tick, tc.spacing); got != tc.want {
			t.Fatalf("AlignTick(%d, %d) = %d, want %d", tc.tick, tc.spacing, got, tc.want)
		}
	}
}

func TestTickSpacingForFee(t *testing.T) {
	require.Equal(t, int32(1), TickSpacingForFee(100))
	require.Equal(t, int32(10), TickSpacingForFee(500))
	require.Equal(t, int32(60), TickSpacingForFee(3000))
	require.Equal(t, int32(200), TickSpacingForFee(10000))
	require.Equal(t, int32(60), TickSpacingForFee(2500))
}
