package v3math

import (
	"math/big"

	"github.com/holiman/uint256"
)

func sortRatios(a, b *uint256.Int) (*uint256.Int, *uint256.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

func amount0ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) *uint256.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if sqrtA.IsZero() || liquidity.IsZero() {
		return new(uint256.Int)
	}
	numerator := new(uint256.Int).Lsh(liquidity, 96)
	diff := new(uint256.Int).Sub(sqrtB, sqrtA)
	return new(uint256.Int).Div(MulDiv(numerator, diff, sqrtB), sqrtA)
}

func amount1ForLiquidity(sqrtA, sqrtB, liquidity *uint256.Int) *uint256.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	if liquidity.IsZero() {
		return new(uint256.Int)
	}
	return MulDiv(liquidity, new(uint256.Int).Sub(sqrtB, sqrtA), q96U256)
}

func liquidityForAmount0(sqrtA, sqrtB, amount0 *uint256.Int) *uint256.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	intermediate := MulDiv(sqrtA, sqrtB, q96U256)
	return MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtB, sqrtA))
}

func liquidityForAmount1(sqrtA, sqrtB, amount1 *uint256.Int) *uint256.Int {
	sqrtA, sqrtB = sortRatios(sqrtA, sqrtB)
	return MulDiv(amount1, q96U256, new(uint256.Int).Sub(sqrtB, sqrtA))
}

// GetAmount0ForLiquidity returns the token0 held by liquidity across [sqrtA, sqrtB].
func GetAmount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	return amount0ForLiquidity(toU256(sqrtA), toU256(sqrtB), toU256(liquidity)).ToBig()
}

// GetAmount1ForLiquidity returns the token1 held by liquidity across [sqrtA, sqrtB].
func GetAmount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	return amount1ForLiquidity(toU256(sqrtA), toU256(sqrtB), toU256(liquidity)).ToBig()
}

// GetAmountsForLiquidity splits liquidity into token amounts at the current price.
// Below the range the position is all token0, at or above it all token1.
func GetAmountsForLiquidity(sqrtPriceX96, sqrtA, sqrtB, liquidity *big.Int) (*big.Int, *big.Int) {
	price := toU256(sqrtPriceX96)
	lower, upper := sortRatios(toU256(sqrtA), toU256(sqrtB))
	l := toU256(liquidity)

	amount0 := new(uint256.Int)
	amount1 := new(uint256.Int)
	switch {
	case price.Cmp(lower) <= 0:
		amount0 = amount0ForLiquidity(lower, upper, l)
	case price.Cmp(upper) < 0:
		amount0 = amount0ForLiquidity(price, upper, l)
		amount1 = amount1ForLiquidity(lower, price, l)
	default:
		amount1 = amount1ForLiquidity(lower, upper, l)
	}
	return amount0.ToBig(), amount1.ToBig()
}

// GetLiquidityForAmount0 is the liquidity that amount0 buys across [sqrtA, sqrtB].
func GetLiquidityForAmount0(sqrtA, sqrtB, amount0 *big.Int) *big.Int {
	return liquidityForAmount0(toU256(sqrtA), toU256(sqrtB), toU256(amount0)).ToBig()
}

// GetLiquidityForAmount1 is the liquidity that amount1 buys across [sqrtA, sqrtB].
func GetLiquidityForAmount1(sqrtA, sqrtB, amount1 *big.Int) *big.Int {
	return liquidityForAmount1(toU256(sqrtA), toU256(sqrtB), toU256(amount1)).ToBig()
}

// GetLiquidityForAmounts returns the largest liquidity the two amounts can fund.
// Inside the range it takes the smaller candidate when both tokens are present,
// otherwise the single nonzero one. A degenerate range yields zero.
func GetLiquidityForAmounts(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	price := toU256(sqrtPriceX96)
	lower := toU256(sqrtA)
	upper := toU256(sqrtB)
	if lower.Cmp(upper) >= 0 {
		return new(big.Int)
	}
	a0 := toU256(amount0)
	a1 := toU256(amount1)

	switch {
	case price.Cmp(lower) <= 0:
		return liquidityForAmount0(lower, upper, a0).ToBig()
	case price.Cmp(upper) >= 0:
		return liquidityForAmount1(lower, upper, a1).ToBig()
	}

	l0 := liquidityForAmount0(price, upper, a0)
	l1 := liquidityForAmount1(lower, price, a1)
	if !l0.IsZero() && !l1.IsZero() {
		if l0.Cmp(l1) < 0 {
			return l0.ToBig()
		}
		return l1.ToBig()
	}
	if l0.Cmp(l1) > 0 {
		return l0.ToBig()
	}
	return l1.ToBig()
}

// FundedLiquidity is the liquidity both amounts can fully pay for at the
// current price. Unlike GetLiquidityForAmounts it yields zero for a range
// straddling the price when either token is missing, so the amounts from
// GetAmountsForLiquidity never exceed the inputs.
func FundedLiquidity(sqrtPriceX96, sqrtA, sqrtB, amount0, amount1 *big.Int) *big.Int {
	price := toU256(sqrtPriceX96)
	lower, upper := sortRatios(toU256(sqrtA), toU256(sqrtB))
	if lower.Cmp(upper) >= 0 {
		return new(big.Int)
	}
	a0 := toU256(amount0)
	a1 := toU256(amount1)

	switch {
	case price.Cmp(lower) <= 0:
		return liquidityForAmount0(lower, upper, a0).ToBig()
	case price.Cmp(upper) >= 0:
		return liquidityForAmount1(lower, upper, a1).ToBig()
	}
	l0 := liquidityForAmount0(price, upper, a0)
	l1 := liquidityForAmount1(lower, price, a1)
	if l0.Cmp(l1) < 0 {
		return l0.ToBig()
	}
	return l1.ToBig()
}
