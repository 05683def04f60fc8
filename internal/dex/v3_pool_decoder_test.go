package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

func TestV3PoolDecoderSwap(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		big.NewInt(-1000),
		big.NewInt(2000),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	log := buildLog(pool, poolABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(recipient),
	})
	if !decoder.CanDecode(log.Topics[0]) {
		t.Fatalf("swap topic not accepted")
	}

	event, err := decoder.Decode(log, 1700000000)
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}

	if event.EventType != model.EventSwap {
		t.Fatalf("event type mismatch: %s", event.EventType)
	}
	if event.Amount0.Big().Int64() != -1000 || event.Amount1.Big().Int64() != 2000 {
		t.Fatalf("amounts mismatch: %+v", event)
	}
	if event.SqrtPriceX96.Big().Int64() != 123456789 || event.Liquidity.Big().Int64() != 987654321 {
		t.Fatalf("price or liquidity mismatch: %+v", event)
	}
	if tick, ok := event.TickValue(); !ok || tick != -15 {
		t.Fatalf("tick mismatch: %v", event.Tick)
	}
	if event.BlockTimestamp != 1700000000 || event.BlockNumber != 12345 || event.LogIndex != 7 {
		t.Fatalf("position mismatch: ts=%d block=%d log=%d", event.BlockTimestamp, event.BlockNumber, event.LogIndex)
	}
}

func TestV3PoolDecoderMintBurn(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	mintData, err := poolABI.Events["Mint"].Inputs.NonIndexed().Pack(
		sender,
		big.NewInt(5000),
		big.NewInt(100),
		big.NewInt(200),
	)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}

	mintLog := buildLog(pool, poolABI.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-120),
		topicFromInt24(120),
	})

	mint, err := decoder.Decode(mintLog, 1700000000)
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	if mint.EventType != model.EventMint || !mint.HasRange() {
		t.Fatalf("mint mismatch: %+v", mint)
	}
	if *mint.TickLower != -120 || *mint.TickUpper != 120 {
		t.Fatalf("mint tick mismatch: %d %d", *mint.TickLower, *mint.TickUpper)
	}
	if mint.Owner != owner.Hex() {
		t.Fatalf("mint owner mismatch: %s", mint.Owner)
	}
	if mint.PositionLiquidity().Int64() != 5000 || mint.Amount0.Big().Int64() != 100 || mint.Amount1.Big().Int64() != 200 {
		t.Fatalf("mint amounts mismatch: %+v", mint)
	}

	burnData, err := poolABI.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(7000),
		big.NewInt(300),
		big.NewInt(400),
	)
	if err != nil {
		t.Fatalf("pack burn: %v", err)
	}

	burnLog := buildLog(pool, poolABI.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-60),
		topicFromInt24(60),
	})

	burn, err := decoder.Decode(burnLog, 1700000000)
	if err != nil {
		t.Fatalf("decode burn: %v", err)
	}
	if burn.EventType != model.EventBurn {
		t.Fatalf("burn type mismatch: %s", burn.EventType)
	}
	if burn.PositionLiquidity().Int64() != 7000 {
		t.Fatalf("burn amount mismatch: %+v", burn)
	}
	if *burn.TickLower != -60 || *burn.TickUpper != 60 {
		t.Fatalf("burn tick mismatch: %d %d", *burn.TickLower, *burn.TickUpper)
	}
}

func TestV3PoolDecoderRejects(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	decoder, err := NewV3PoolDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")

	unknown := buildLog(pool, common.HexToHash("0x01"), nil, nil)
	if decoder.CanDecode(unknown.Topics[0]) {
		t.Fatalf("unknown topic accepted")
	}
	if _, err := decoder.Decode(unknown, 0); err == nil {
		t.Fatalf("expected error for unknown topic")
	}

	// Swap with a missing indexed topic.
	short := buildLog(pool, poolABI.Events["Swap"].ID, nil, []common.Hash{topicFromAddress(pool)})
	if _, err := decoder.Decode(short, 0); err == nil {
		t.Fatalf("expected error for missing topics")
	}

	if _, err := NewV3PoolDecoder(DecoderConfig{Topic0Map: map[string]string{"0x01": "collect"}}); err == nil {
		t.Fatalf("expected error for unsupported event alias")
	}
}

func TestV3PoolDecoderTopicAlias(t *testing.T) {
	alias := common.HexToHash("0xabcdef")
	decoder, err := NewV3PoolDecoder(DecoderConfig{Topic0Map: map[string]string{alias.Hex(): "swap"}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	if !decoder.CanDecode(alias) {
		t.Fatalf("alias topic not accepted")
	}
	if len(decoder.Topics()) != 4 {
		t.Fatalf("topics mismatch: %d", len(decoder.Topics()))
	}
}

func buildLog(pool common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) types.Log {
	topics := make([]common.Hash, 0, len(indexed)+1)
	topics = append(topics, topic0)
	topics = append(topics, indexed...)

	return types.Log{
		Address:     pool,
		Topics:      topics,
		Data:        data,
		BlockNumber: 12345,
		TxHash:      common.HexToHash("0xdef"),
		Index:       7,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}
