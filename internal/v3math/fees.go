package v3math

import "math/big"

// FeeGrowth is a pair of Q128.128 per-liquidity fee accumulators.
type FeeGrowth struct {
	Token0 *big.Int
	Token1 *big.Int
}

// ZeroFeeGrowth returns a fresh zero pair.
func ZeroFeeGrowth() FeeGrowth {
	return FeeGrowth{Token0: new(big.Int), Token1: new(big.Int)}
}

// Clone copies both accumulators.
func (g FeeGrowth) Clone() FeeGrowth {
	return FeeGrowth{Token0: cloneOrZero(g.Token0), Token1: cloneOrZero(g.Token1)}
}

func cloneOrZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// FeeGrowthInside computes the growth accrued inside [lower, upper) from the
// global accumulators and the per-boundary growth outside. All subtraction is
// modulo 2^256, the on-chain accumulator width, so wrapped values stay valid.
func FeeGrowthInside(tick, lower, upper int32, lowerOutside, upperOutside, global FeeGrowth) FeeGrowth {
	return FeeGrowth{
		Token0: feeGrowthInside(tick, lower, upper, lowerOutside.Token0, upperOutside.Token0, global.Token0),
		Token1: feeGrowthInside(tick, lower, upper, lowerOutside.Token1, upperOutside.Token1, global.Token1),
	}
}

func feeGrowthInside(tick, lower, upper int32, lowerOutside, upperOutside, global *big.Int) *big.Int {
	lowerOutside = cloneOrZero(lowerOutside)
	upperOutside = cloneOrZero(upperOutside)
	global = cloneOrZero(global)

	below := lowerOutside
	if tick < lower {
		below = SubMod256(global, lowerOutside)
	}
	above := upperOutside
	if tick >= upper {
		above = SubMod256(global, upperOutside)
	}
	return SubMod256(SubMod256(global, below), above)
}

// TokensOwed is liquidity * ((inside - last) mod 2^256) / 2^128.
func TokensOwed(liquidity, inside, last *big.Int) *big.Int {
	if liquidity == nil || liquidity.Sign() <= 0 {
		return new(big.Int)
	}
	delta := SubMod256(cloneOrZero(inside), cloneOrZero(last))
	owed := new(big.Int).Mul(liquidity, delta)
	return owed.Quo(owed, Q128)
}

// FeeGrowthDelta is the per-liquidity growth a fee adds: fee * 2^128 / liquidity.
// Zero liquidity yields zero.
func FeeGrowthDelta(fee, liquidity *big.Int) *big.Int {
	if fee == nil || fee.Sign() <= 0 || liquidity == nil || liquidity.Sign() <= 0 {
		return new(big.Int)
	}
	delta := new(big.Int).Mul(fee, Q128)
	return delta.Quo(delta, liquidity)
}

// SwapFee is |amountIn| * feeTier / 1e6, truncated.
func SwapFee(amountIn *big.Int, feeTier uint32) *big.Int {
	if amountIn == nil {
		return new(big.Int)
	}
	fee := new(big.Int).Abs(amountIn)
	fee.Mul(fee, new(big.Int).SetUint64(uint64(feeTier)))
	return fee.Quo(fee, big.NewInt(FeeDenominator))
}

// SwapFees splits a reported swap's fee by token. A positive amount0 with a
// negative amount1 charges token1, the mirror case charges token0, and any
// other sign combination charges nothing.
func SwapFees(amount0, amount1 *big.Int, feeTier uint32) (*big.Int, *big.Int) {
	fee0, fee1 := new(big.Int), new(big.Int)
	if amount0 == nil || amount1 == nil {
		return fee0, fee1
	}
	switch {
	case amount0.Sign() > 0 && amount1.Sign() < 0:
		fee1 = SwapFee(amount1, feeTier)
	case amount1.Sign() > 0 && amount0.Sign() < 0:
		fee0 = SwapFee(amount0, feeTier)
	}
	return fee0, fee1
}
