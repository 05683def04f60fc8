package aggregate

import (
	"math/big"
	"testing"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

func swapEvent(ts, block uint64, amount0, amount1 int64) model.PoolEvent {
	return model.PoolEvent{
		EventType:      model.EventSwap,
		Amount0:        model.NewBigInt(big.NewInt(amount0)),
		Amount1:        model.NewBigInt(big.NewInt(amount1)),
		BlockTimestamp: ts,
		BlockNumber:    block,
	}
}

func TestWindows(t *testing.T) {
	events := []model.PoolEvent{
		swapEvent(100, 1, 1_000_000, -2_000_000),
		swapEvent(200, 2, -500_000, 3_000_000),
		{EventType: model.EventMint, BlockTimestamp: 250, BlockNumber: 3},
		swapEvent(3700, 9, 2_000_000, -1_000_000),
	}

	windows, err := Windows(events, Config{WindowSeconds: 3600, FeeTier: 3000, Decimals0: 6, Decimals1: 6}, nil)
	if err != nil {
		t.Fatalf("windows: %v", err)
	}
	if len(windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(windows))
	}

	first := windows[0]
	if first.SwapCount != 2 || first.MintCount != 1 {
		t.Fatalf("counts mismatch: %+v", first)
	}
	if first.Volume0 != "1.500000" || first.Volume1 != "5.000000" {
		t.Fatalf("volume mismatch: %s %s", first.Volume0, first.Volume1)
	}
	// token1 is charged when amount0 > 0, token0 when amount1 > 0
	if first.Fee0 != "0.001500" || first.Fee1 != "0.006000" {
		t.Fatalf("fee mismatch: %s %s", first.Fee0, first.Fee1)
	}
	if first.FirstBlock != 1 || first.LastBlock != 3 {
		t.Fatalf("block range mismatch: %d-%d", first.FirstBlock, first.LastBlock)
	}
	if first.WindowStart.Unix() != 0 || first.WindowEnd.Unix() != 3600 {
		t.Fatalf("window bounds mismatch: %v %v", first.WindowStart, first.WindowEnd)
	}

	if windows[1].WindowStart.Unix() != 3600 || windows[1].SwapCount != 1 {
		t.Fatalf("second window mismatch: %+v", windows[1])
	}
}

func TestWindowsFeeSideMatchesPool(t *testing.T) {
	events := []model.PoolEvent{swapEvent(10, 1, 1000, -100000)}
	windows, err := Windows(events, Config{WindowSeconds: 60, FeeTier: 3000}, nil)
	if err != nil {
		t.Fatalf("windows: %v", err)
	}
	if len(windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(windows))
	}
	if windows[0].Fee0 != "0" || windows[0].Fee1 != "300" {
		t.Fatalf("fee mismatch: %s %s", windows[0].Fee0, windows[0].Fee1)
	}
}

func TestWindowsRejectsZeroWindow(t *testing.T) {
	if _, err := Windows(nil, Config{}, nil); err == nil {
		t.Fatalf("expected error for zero window")
	}
}

func TestFormatTokenAmount(t *testing.T) {
	if got := formatTokenAmount(big.NewInt(-1234567), 6); got != "-1.234567" {
		t.Fatalf("format mismatch: %s", got)
	}
	if got := formatTokenAmount(big.NewInt(42), 0); got != "42" {
		t.Fatalf("format mismatch: %s", got)
	}
}
