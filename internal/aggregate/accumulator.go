package aggregate

import (
	"math/big"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

// Accumulator holds aggregate values for one window.
type Accumulator struct {
	WindowStart uint64
	WindowEnd   uint64
	SwapCount   uint64
	MintCount   uint64
	BurnCount   uint64
	Volume0     *big.Int
	Volume1     *big.Int
	Fee0        *big.Int
	Fee1        *big.Int
	FirstBlock  uint64
	LastBlock   uint64
	LastTS      uint64
}

func NewAccumulator(event model.PoolEvent, windowStart, windowEnd uint64) *Accumulator {
	return &Accumulator{
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		Volume0:     big.NewInt(0),
		Volume1:     big.NewInt(0),
		Fee0:        big.NewInt(0),
		Fee1:        big.NewInt(0),
		FirstBlock:  event.BlockNumber,
		LastBlock:   event.BlockNumber,
		LastTS:      event.BlockTimestamp,
	}
}

func (a *Accumulator) AddEvent(event model.PoolEvent, feeRate uint32) {
	if event.BlockTimestamp >= a.LastTS {
		a.LastTS = event.BlockTimestamp
		a.LastBlock = event.BlockNumber
	}
	if a.FirstBlock == 0 || event.BlockNumber < a.FirstBlock {
		a.FirstBlock = event.BlockNumber
	}

	switch event.EventType {
	case model.EventSwap:
		a.applySwap(event.Amount0.Big(), event.Amount1.Big(), feeRate)
	case model.EventMint:
		a.MintCount++
	case model.EventBurn:
		a.BurnCount++
	}
}

func (a *Accumulator) applySwap(amount0, amount1 *big.Int, feeRate uint32) {
	absAdd(a.Volume0, amount0)
	absAdd(a.Volume1, amount1)
	a.SwapCount++
	if feeRate == 0 {
		return
	}

	fee0, fee1 := v3math.SwapFees(amount0, amount1, feeRate)
	a.Fee0.Add(a.Fee0, fee0)
	a.Fee1.Add(a.Fee1, fee1)
}

func absAdd(target *big.Int, value *big.Int) {
	if value == nil || target == nil {
		return
	}
	abs := new(big.Int).Abs(value)
	target.Add(target, abs)
}
