package v3math

import (
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var logBase = math.Log(1.0001)

// TickToPrice returns the raw token1/token0 price 1.0001^tick.
func TickToPrice(tick int32) float64 {
	return math.Pow(1.0001, float64(tick))
}

// PriceToTick returns floor(log_1.0001(price)), clamped to the tick domain.
func PriceToTick(price float64) int32 {
	if price <= 0 || math.IsNaN(price) {
		return MinTick
	}
	tick := math.Floor(math.Log(price) / logBase)
	if tick < float64(MinTick) {
		return MinTick
	}
	if tick > float64(MaxTick) {
		return MaxTick
	}
	return int32(tick)
}

// TickRangeForPct is the tick distance covering a relative move of pct.
func TickRangeForPct(pct float64) int32 {
	if pct <= -1 {
		return 0
	}
	return int32(math.Log(1+pct) / logBase)
}

// SqrtPriceX96ToPrice returns (sqrtPriceX96 / 2^96)^2.
func SqrtPriceX96ToPrice(sqrtPriceX96 *big.Int) float64 {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return 0
	}
	ratio := new(big.Float).SetInt(sqrtPriceX96)
	ratio.Quo(ratio, new(big.Float).SetInt(Q96))
	ratio.Mul(ratio, ratio)
	price, _ := ratio.Float64()
	return price
}

// DecimalScale converts a raw price into a human quote-per-base price.
func DecimalScale(decimals0, decimals1 uint8) float64 {
	return math.Pow10(int(decimals0) - int(decimals1))
}

// DisplayPrice is the human price of a Q64.96 square-root price.
func DisplayPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) float64 {
	return SqrtPriceX96ToPrice(sqrtPriceX96) * DecimalScale(decimals0, decimals1)
}

// TickToDisplayPrice is the human price at tick.
func TickToDisplayPrice(tick int32, decimals0, decimals1 uint8) float64 {
	return TickToPrice(tick) * DecimalScale(decimals0, decimals1)
}

// TickToPriceDecimal is TickToPrice as a decimal, for token amount arithmetic.
func TickToPriceDecimal(tick int32) decimal.Decimal {
	return decimal.NewFromFloat(TickToPrice(tick))
}

// ToHuman scales a raw token amount down by its decimals.
func ToHuman(raw decimal.Decimal, decimals uint8) decimal.Decimal {
	return raw.Shift(-int32(decimals))
}

// ToRaw scales a human token amount up by its decimals.
func ToRaw(human decimal.Decimal, decimals uint8) decimal.Decimal {
	return human.Shift(int32(decimals))
}
