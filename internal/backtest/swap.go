package backtest

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/ChiShengChen/katana-amm-backtest/internal/amm"
	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

var ErrNoSwapEvents = errors.New("no swap events")

// swapUpdate converts a Swap event into a pool update. Events without a
// price are unusable; a missing tick is derived from the price.
func swapUpdate(event model.PoolEvent) (amm.SwapUpdate, bool) {
	if event.EventType != model.EventSwap || event.SqrtPriceX96 == nil {
		return amm.SwapUpdate{}, false
	}
	sqrtPrice := event.SqrtPriceX96.Big()
	if sqrtPrice.Sign() <= 0 {
		return amm.SwapUpdate{}, false
	}
	tick, ok := event.TickValue()
	if !ok {
		tick = v3math.SqrtPriceX96ToTick(sqrtPrice)
	}
	return amm.SwapUpdate{
		Amount0:      event.Amount0.Big(),
		Amount1:      event.Amount1.Big(),
		SqrtPriceX96: sqrtPrice,
		Tick:         tick,
		Liquidity:    event.Liquidity.Big(),
		Timestamp:    event.BlockTimestamp,
	}, true
}

// humanToRaw truncates a human token amount to raw units.
func humanToRaw(amount float64, decimals uint8) *big.Int {
	if amount <= 0 {
		return new(big.Int)
	}
	return v3math.ToRaw(decimal.NewFromFloat(amount), decimals).Truncate(0).BigInt()
}

// allocate splits capital (quote units) for a range [priceLower, priceUpper]:
// all token0 below it, all token1 above it, otherwise token1 takes the share
// (p-pl)/(pu-pl), optionally clamped to [0.1, 0.9]. Amounts are human units.
func allocate(capital, price, priceLower, priceUpper float64, clamp bool) (float64, float64) {
	switch {
	case price <= 0:
		return 0, 0
	case price < priceLower:
		return capital / price, 0
	case price > priceUpper:
		return 0, capital
	}
	share := 0.5
	if priceUpper > priceLower {
		share = (price - priceLower) / (priceUpper - priceLower)
	}
	if clamp {
		share = min(max(share, 0.1), 0.9)
	}
	return capital * (1 - share) / price, capital * share
}
