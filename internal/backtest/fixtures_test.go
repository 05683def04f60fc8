package backtest

import (
	"math/big"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

const (
	startTick int32  = 69060
	startTs   uint64 = 1_700_000_000
)

// marketLiquidity stands for the rest of the pool; fees are shared against it.
var marketLiquidity = new(big.Int).Exp(big.NewInt(10), big.NewInt(15), nil)

func swapEvent(i int, tick int32) model.PoolEvent {
	amount0, amount1 := int64(1_000_000), int64(-990_000_000)
	if i%2 == 1 {
		amount0, amount1 = -1_000_000, 1_010_000_000
	}
	return model.PoolEvent{
		EventType:      model.EventSwap,
		Amount0:        model.BigIntFromInt64(amount0),
		Amount1:        model.BigIntFromInt64(amount1),
		SqrtPriceX96:   model.NewBigInt(v3math.MustTickToSqrtPriceX96(tick)),
		Tick:           model.Int32Ptr(tick),
		Liquidity:      model.NewBigInt(marketLiquidity),
		BlockTimestamp: startTs + uint64(i)*60,
		BlockNumber:    uint64(1000 + i),
	}
}

// oscillating swings ±120 ticks around startTick and ends where it began.
func oscillating(n int) []model.PoolEvent {
	offsets := []int32{0, 60, 120, 60, 0, -60, -120, -60}
	out := make([]model.PoolEvent, 0, n+1)
	for i := 0; i < n; i++ {
		out = append(out, swapEvent(i, startTick+offsets[i%len(offsets)]))
	}
	out = append(out, swapEvent(n, startTick))
	return out
}

// trending climbs one spacing per swap.
func trending(n int) []model.PoolEvent {
	out := make([]model.PoolEvent, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, swapEvent(i, startTick+int32(i)*60))
	}
	return out
}
