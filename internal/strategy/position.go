package strategy

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

// Position is a strategy-owned liquidity position. Amounts are raw token units.
type Position struct {
	Lower                int32
	Upper                int32
	Liquidity            *big.Int
	Amount0              decimal.Decimal
	Amount1              decimal.Decimal
	EntryTick            int32
	EntryTime            uint64
	FeeGrowthInside0Last *big.Int
	FeeGrowthInside1Last *big.Int
}

// TickRange is upper - lower.
func (p Position) TickRange() int32 {
	return p.Upper - p.Lower
}

// CenterTick is the floored midpoint of the range.
func (p Position) CenterTick() int32 {
	sum := int64(p.Lower) + int64(p.Upper)
	mid := sum / 2
	if sum < 0 && sum%2 != 0 {
		mid--
	}
	return int32(mid)
}

// InRange reports lower <= tick < upper.
func (p Position) InRange(tick int32) bool {
	return p.Lower <= tick && tick < p.Upper
}

// CurrentAmounts is what the position would withdraw at tick.
func (p Position) CurrentAmounts(tick int32) (decimal.Decimal, decimal.Decimal) {
	if p.Liquidity == nil || p.Liquidity.Sign() <= 0 {
		return decimal.Zero, decimal.Zero
	}
	amount0, amount1 := v3math.GetAmountsForLiquidity(sqrtAt(tick), sqrtAt(p.Lower), sqrtAt(p.Upper), p.Liquidity)
	return decimal.NewFromBigInt(amount0, 0), decimal.NewFromBigInt(amount1, 0)
}

// Clone deep copies the big integer fields.
func (p Position) Clone() Position {
	out := p
	out.Liquidity = copyBig(p.Liquidity)
	out.FeeGrowthInside0Last = copyBig(p.FeeGrowthInside0Last)
	out.FeeGrowthInside1Last = copyBig(p.FeeGrowthInside1Last)
	return out
}

func clonePositions(in []Position) []Position {
	out := make([]Position, 0, len(in))
	for _, p := range in {
		out = append(out, p.Clone())
	}
	return out
}

func copyBig(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

func clampTick(tick int32) int32 {
	if tick < v3math.MinTick {
		return v3math.MinTick
	}
	if tick > v3math.MaxTick {
		return v3math.MaxTick
	}
	return tick
}

func sqrtAt(tick int32) *big.Int {
	return v3math.MustTickToSqrtPriceX96(clampTick(tick))
}

func toBig(d decimal.Decimal) *big.Int {
	if !d.IsPositive() {
		return new(big.Int)
	}
	return d.Truncate(0).BigInt()
}
