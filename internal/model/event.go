package model

import "math/big"

// EventType names a pool event.
type EventType string

const (
	EventSwap EventType = "Swap"
	EventMint EventType = "Mint"
	EventBurn EventType = "Burn"
)

// PoolEvent is one line of the event stream.
// Mint and Burn carry Owner, TickLower, TickUpper and Amount (liquidity) when known.
type PoolEvent struct {
	EventType      EventType `json:"eventType"`
	Amount0        *BigInt   `json:"amount0,omitempty"`
	Amount1        *BigInt   `json:"amount1,omitempty"`
	SqrtPriceX96   *BigInt   `json:"sqrtPriceX96,omitempty"`
	Tick           *int32    `json:"tick,omitempty"`
	Liquidity      *BigInt   `json:"liquidity,omitempty"`
	Amount         *BigInt   `json:"amount,omitempty"`
	Owner          string    `json:"owner,omitempty"`
	TickLower      *int32    `json:"tickLower,omitempty"`
	TickUpper      *int32    `json:"tickUpper,omitempty"`
	BlockTimestamp uint64    `json:"blockTimestamp"`
	BlockNumber    uint64    `json:"blockNumber"`
	LogIndex       uint64    `json:"logIndex"`
	TxHash         string    `json:"txHash,omitempty"`
}

// Int32Ptr is a helper for optional tick fields.
func Int32Ptr(v int32) *int32 {
	return &v
}

// TickValue returns the reported tick, or ok=false when absent.
func (e PoolEvent) TickValue() (int32, bool) {
	if e.Tick == nil {
		return 0, false
	}
	return *e.Tick, true
}

// HasRange reports whether the event names a position range.
func (e PoolEvent) HasRange() bool {
	return e.TickLower != nil && e.TickUpper != nil && *e.TickLower < *e.TickUpper
}

// PositionLiquidity is the minted or burned liquidity, falling back to the liquidity field.
func (e PoolEvent) PositionLiquidity() *big.Int {
	if e.Amount != nil {
		return e.Amount.Big()
	}
	return e.Liquidity.Big()
}

// Less orders events by (timestamp, block, log index).
func (e PoolEvent) Less(other PoolEvent) bool {
	if e.BlockTimestamp != other.BlockTimestamp {
		return e.BlockTimestamp < other.BlockTimestamp
	}
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	return e.LogIndex < other.LogIndex
}
