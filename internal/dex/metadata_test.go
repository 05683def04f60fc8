package dex

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type fakeCaller struct {
	responses map[string][]byte
	blocks    []*big.Int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte)}
}

func (f *fakeCaller) set(t *testing.T, to common.Address, parsed abi.ABI, method string, outputs ...interface{}) {
	t.Helper()
	data, err := parsed.Methods[method].Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	f.responses[callKey(to, parsed.Methods[method].ID)] = data
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.blocks = append(f.blocks, blockNumber)
	if msg.To == nil || len(msg.Data) < 4 {
		return nil, fmt.Errorf("bad call")
	}
	resp, ok := f.responses[callKey(*msg.To, msg.Data[:4])]
	if !ok {
		return nil, fmt.Errorf("execution reverted")
	}
	return resp, nil
}

func callKey(to common.Address, selector []byte) string {
	return to.Hex() + hexutil.Encode(selector)
}

func TestFetchPoolMeta(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	stringABI, err := erc20ABIStringInstance()
	if err != nil {
		t.Fatalf("erc20 abi: %v", err)
	}
	bytes32ABI, err := erc20ABIBytes32Instance()
	if err != nil {
		t.Fatalf("erc20 bytes32 abi: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	token0 := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1 := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	caller := newFakeCaller()
	caller.set(t, pool, poolABI, "token0", token0)
	caller.set(t, pool, poolABI, "token1", token1)
	caller.set(t, pool, poolABI, "fee", big.NewInt(3000))
	caller.set(t, pool, poolABI, "tickSpacing", big.NewInt(60))
	caller.set(t, pool, poolABI, "liquidity", big.NewInt(123456))
	caller.set(t, pool, poolABI, "slot0",
		new(big.Int).Lsh(big.NewInt(1), 96),
		big.NewInt(-42),
		uint16(1), uint16(2), uint16(3), uint8(0), true,
	)

	caller.set(t, token0, stringABI, "decimals", uint8(8))
	caller.set(t, token0, stringABI, "symbol", "WBTC")
	caller.set(t, token0, stringABI, "name", "Wrapped BTC")

	var symbol [32]byte
	copy(symbol[:], "MKR")
	caller.set(t, token1, stringABI, "decimals", uint8(18))
	caller.set(t, token1, bytes32ABI, "symbol", symbol)

	block := big.NewInt(1000)
	meta, err := FetchPoolMeta(context.Background(), caller, pool, block, nil)
	if err != nil {
		t.Fatalf("fetch pool meta: %v", err)
	}

	if meta.Address != pool.Hex() || meta.Fee != 3000 || meta.TickSpacing != 60 {
		t.Fatalf("pool config mismatch: %+v", meta)
	}
	if meta.Token0.Address != token0.Hex() || meta.Token0.Decimals != 8 || meta.Token0.Symbol != "WBTC" || meta.Token0.Name != "Wrapped BTC" {
		t.Fatalf("token0 mismatch: %+v", meta.Token0)
	}
	if meta.Token1.Decimals != 18 || meta.Token1.Symbol != "MKR" || meta.Token1.Name != "" {
		t.Fatalf("token1 mismatch: %+v", meta.Token1)
	}
	if meta.Block != 1000 || meta.Liquidity != "123456" {
		t.Fatalf("state mismatch: %+v", meta)
	}
	if meta.Tick == nil || *meta.Tick != -42 || meta.SqrtPriceX96 != new(big.Int).Lsh(big.NewInt(1), 96).String() {
		t.Fatalf("slot0 mismatch: %+v", meta)
	}

	sawBlock := false
	for _, b := range caller.blocks {
		if b != nil && b.Cmp(block) == 0 {
			sawBlock = true
		}
	}
	if !sawBlock {
		t.Fatalf("state calls did not use the requested block")
	}
}

func TestFetchPoolMetaRequiresDecimals(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	caller := newFakeCaller()
	caller.set(t, pool, poolABI, "token0", common.HexToAddress("0xaa"))
	caller.set(t, pool, poolABI, "token1", common.HexToAddress("0xbb"))
	caller.set(t, pool, poolABI, "fee", big.NewInt(500))
	caller.set(t, pool, poolABI, "tickSpacing", big.NewInt(10))

	if _, err := FetchPoolMeta(context.Background(), caller, pool, nil, nil); err == nil {
		t.Fatalf("expected error when token decimals are unavailable")
	}
	if _, err := FetchPoolMeta(context.Background(), nil, pool, nil, nil); err == nil {
		t.Fatalf("expected error for nil caller")
	}
}

func TestInt24FromBig(t *testing.T) {
	if v, err := int24FromBig(big.NewInt(-887272)); err != nil || v != -887272 {
		t.Fatalf("int24 mismatch: %d %v", v, err)
	}
	if _, err := int24FromBig(big.NewInt(1 << 23)); err == nil {
		t.Fatalf("expected overflow error")
	}
}
