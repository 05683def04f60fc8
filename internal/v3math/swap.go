package v3math

import "github.com/shopspring/decimal"

// CalculateSwapAmountForRatio returns how much to swap so that token0 makes
// up target of the combined value at price (token1 per token0).
// When zeroForOne is true the amount is in token0, otherwise in token1.
// An empty portfolio or non-positive price needs no swap.
func CalculateSwapAmountForRatio(amount0, amount1, price, target decimal.Decimal) (decimal.Decimal, bool) {
	if !price.IsPositive() {
		return decimal.Zero, true
	}
	value0 := amount0.Mul(price)
	total := value0.Add(amount1)
	if !total.IsPositive() {
		return decimal.Zero, true
	}

	targetValue0 := total.Mul(target)
	if value0.GreaterThan(targetValue0) {
		return value0.Sub(targetValue0).Div(price).Truncate(0), true
	}
	return targetValue0.Sub(value0).Truncate(0), false
}

// ValueRatio0 is token0's share of the combined value, 0.5 for an empty portfolio.
func ValueRatio0(amount0, amount1, price decimal.Decimal) decimal.Decimal {
	value0 := amount0.Mul(price)
	total := value0.Add(amount1)
	if !total.IsPositive() {
		return decimal.NewFromFloat(0.5)
	}
	return value0.Div(total)
}
