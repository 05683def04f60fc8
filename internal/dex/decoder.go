package dex

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

// Decoder turns a raw pool log into a backtest event.
type Decoder interface {
	CanDecode(topic0 common.Hash) bool
	Decode(log types.Log, timestamp uint64) (model.PoolEvent, error)
}

// ContractCaller performs read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}
