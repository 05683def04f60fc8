package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map aliases extra topic0 hashes to Swap, Mint or Burn, for forks
	// that emit the same payload under a different signature.
	Topic0Map map[string]string
}

// V3PoolDecoder decodes Uniswap V3 style pool events into backtest events.
type V3PoolDecoder struct {
	poolABI     abi.ABI
	topicToType map[common.Hash]model.EventType
}

// NewV3PoolDecoder builds a V3 pool decoder.
func NewV3PoolDecoder(cfg DecoderConfig) (*V3PoolDecoder, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToType := map[common.Hash]model.EventType{
		poolABI.Events["Swap"].ID: model.EventSwap,
		poolABI.Events["Mint"].ID: model.EventMint,
		poolABI.Events["Burn"].ID: model.EventBurn,
	}

	for topic0, name := range cfg.Topic0Map {
		eventType := normalizeEventName(name)
		if eventType == "" {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		data, err := hexutil.Decode(topic0)
		if err != nil || len(data) != 32 {
			return nil, fmt.Errorf("invalid topic0 in topic0 map: %s", topic0)
		}
		topicToType[common.BytesToHash(data)] = eventType
	}

	return &V3PoolDecoder{
		poolABI:     poolABI,
		topicToType: topicToType,
	}, nil
}

// Topics lists every topic0 the decoder accepts, for log filtering.
func (d *V3PoolDecoder) Topics() []common.Hash {
	out := make([]common.Hash, 0, len(d.topicToType))
	for topic := range d.topicToType {
		out = append(out, topic)
	}
	return out
}

// CanDecode checks if the topic0 is supported.
func (d *V3PoolDecoder) CanDecode(topic0 common.Hash) bool {
	_, ok := d.topicToType[topic0]
	return ok
}

// Decode converts a pool log into a PoolEvent stamped with the block timestamp.
func (d *V3PoolDecoder) Decode(log types.Log, timestamp uint64) (model.PoolEvent, error) {
	if len(log.Topics) == 0 {
		return model.PoolEvent{}, fmt.Errorf("missing topics")
	}
	eventType, ok := d.topicToType[log.Topics[0]]
	if !ok {
		return model.PoolEvent{}, fmt.Errorf("unsupported topic0: %s", log.Topics[0].Hex())
	}

	var (
		event model.PoolEvent
		err   error
	)
	switch eventType {
	case model.EventSwap:
		event, err = d.decodeSwap(log)
	case model.EventMint:
		event, err = d.decodeMint(log)
	case model.EventBurn:
		event, err = d.decodeBurn(log)
	default:
		return model.PoolEvent{}, fmt.Errorf("unsupported event type: %s", eventType)
	}
	if err != nil {
		return model.PoolEvent{}, err
	}

	event.BlockTimestamp = timestamp
	event.BlockNumber = log.BlockNumber
	event.LogIndex = uint64(log.Index)
	event.TxHash = log.TxHash.Hex()
	return event, nil
}

func normalizeEventName(name string) model.EventType {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "swap":
		return model.EventSwap
	case "mint":
		return model.EventMint
	case "burn":
		return model.EventBurn
	default:
		return ""
	}
}

func (d *V3PoolDecoder) decodeSwap(log types.Log) (model.PoolEvent, error) {
	event := d.poolABI.Events["Swap"]
	if _, err := indexedTopics(event, log.Topics); err != nil {
		return model.PoolEvent{}, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.PoolEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 5 {
		return model.PoolEvent{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	ints, err := asBigInts(values)
	if err != nil {
		return model.PoolEvent{}, err
	}
	tick, err := int24FromBig(ints[4])
	if err != nil {
		return model.PoolEvent{}, err
	}

	return model.PoolEvent{
		EventType:    model.EventSwap,
		Amount0:      model.NewBigInt(ints[0]),
		Amount1:      model.NewBigInt(ints[1]),
		SqrtPriceX96: model.NewBigInt(ints[2]),
		Liquidity:    model.NewBigInt(ints[3]),
		Tick:         model.Int32Ptr(tick),
	}, nil
}

func (d *V3PoolDecoder) decodeMint(log types.Log) (model.PoolEvent, error) {
	event := d.poolABI.Events["Mint"]
	owner, tickLower, tickUpper, err := d.positionTopics(event, log.Topics)
	if err != nil {
		return model.PoolEvent{}, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.PoolEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 4 {
		return model.PoolEvent{}, fmt.Errorf("unexpected mint values: %d", len(values))
	}
	if _, err := asAddress(values[0]); err != nil {
		return model.PoolEvent{}, fmt.Errorf("mint sender: %w", err)
	}

	ints, err := asBigInts(values[1:])
	if err != nil {
		return model.PoolEvent{}, err
	}

	return model.PoolEvent{
		EventType: model.EventMint,
		Owner:     owner.Hex(),
		TickLower: model.Int32Ptr(tickLower),
		TickUpper: model.Int32Ptr(tickUpper),
		Amount:    model.NewBigInt(ints[0]),
		Amount0:   model.NewBigInt(ints[1]),
		Amount1:   model.NewBigInt(ints[2]),
	}, nil
}

func (d *V3PoolDecoder) decodeBurn(log types.Log) (model.PoolEvent, error) {
	event := d.poolABI.Events["Burn"]
	owner, tickLower, tickUpper, err := d.positionTopics(event, log.Topics)
	if err != nil {
		return model.PoolEvent{}, err
	}

	values, err := event.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return model.PoolEvent{}, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	if len(values) != 3 {
		return model.PoolEvent{}, fmt.Errorf("unexpected burn values: %d", len(values))
	}

	ints, err := asBigInts(values)
	if err != nil {
		return model.PoolEvent{}, err
	}

	return model.PoolEvent{
		EventType: model.EventBurn,
		Owner:     owner.Hex(),
		TickLower: model.Int32Ptr(tickLower),
		TickUpper: model.Int32Ptr(tickUpper),
		Amount:    model.NewBigInt(ints[0]),
		Amount0:   model.NewBigInt(ints[1]),
		Amount1:   model.NewBigInt(ints[2]),
	}, nil
}

// positionTopics parses the indexed (owner, tickLower, tickUpper) of Mint and Burn.
func (d *V3PoolDecoder) positionTopics(event abi.Event, topics []common.Hash) (common.Address, int32, int32, error) {
	hashes, err := indexedTopics(event, topics)
	if err != nil {
		return common.Address{}, 0, 0, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), hashes); err != nil {
		return common.Address{}, 0, 0, fmt.Errorf("parse topics: %w", err)
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return common.Address{}, 0, 0, err
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return common.Address{}, 0, 0, err
	}
	return indexed.Owner, tickLower, tickUpper, nil
}

func indexedTopics(event abi.Event, topics []common.Hash) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return topics[1:], nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func asBigInts(values []interface{}) ([]*big.Int, error) {
	out := make([]*big.Int, 0, len(values))
	for _, value := range values {
		v, err := asBigInt(value)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
