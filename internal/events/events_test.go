package events

import (
	"strings"
	"testing"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

const sample = `{"eventType":"Swap","amount0":"-1000","amount1":2000,"sqrtPriceX96":"79228162514264337593543950336","tick":0,"liquidity":"1000000","blockTimestamp":20,"blockNumber":2,"logIndex":1}
not json
{"eventType":"Mint","owner":"0xabc","tickLower":-60,"tickUpper":60,"amount":"500","blockTimestamp":10,"blockNumber":1,"logIndex":0}

{"eventType":"Collect","blockTimestamp":11,"blockNumber":1,"logIndex":3}
{"eventType":"Swap","amount0":1,"amount1":-1,"sqrtPriceX96":"79228162514264337593543950336","tick":0,"blockTimestamp":20,"blockNumber":2,"logIndex":0}
{"eventType":"Burn","owner":"0xabc","tickLower":-60,"tickUpper":60,"amount":"200","blockTimestamp":30,"blockNumber":3,"logIndex":0}
`

func uint64Ptr(v uint64) *uint64 {
	return &v
}

func TestReadSkipsMalformedLines(t *testing.T) {
	events, stats, err := Read(strings.NewReader(sample), nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if stats.Total != 6 || stats.Decoded != 4 || stats.Failed != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[1].EventType != model.EventMint || events[1].Owner != "0xabc" || !events[1].HasRange() {
		t.Fatalf("mint not decoded: %+v", events[1])
	}
	if got := events[1].PositionLiquidity().Int64(); got != 500 {
		t.Fatalf("mint liquidity mismatch: %d", got)
	}
}

func TestPrepareSortsAndFilters(t *testing.T) {
	events, _, err := Read(strings.NewReader(sample), nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	sorted := Prepare(events, Filter{})
	wantOrder := []struct {
		ts    uint64
		index uint64
	}{{10, 0}, {20, 0}, {20, 1}, {30, 0}}
	for i, want := range wantOrder {
		if sorted[i].BlockTimestamp != want.ts || sorted[i].LogIndex != want.index {
			t.Fatalf("event %d out of order: %+v", i, sorted[i])
		}
	}
	if events[0].LogIndex != 1 {
		t.Fatalf("prepare must not reorder its input")
	}

	window := Prepare(events, Filter{StartBlock: uint64Ptr(2), EndTime: uint64Ptr(20)})
	if len(window) != 2 {
		t.Fatalf("expected 2 events in window, got %d", len(window))
	}
	for _, event := range window {
		if event.EventType != model.EventSwap {
			t.Fatalf("unexpected event in window: %+v", event)
		}
	}
}

func TestSummarize(t *testing.T) {
	events, _, err := Read(strings.NewReader(sample), nil)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	stats := Summarize(events)
	if stats.Total != 4 {
		t.Fatalf("total mismatch: %d", stats.Total)
	}
	if stats.ByType[model.EventSwap] != 2 || stats.ByType[model.EventMint] != 1 || stats.ByType[model.EventBurn] != 1 {
		t.Fatalf("by type mismatch: %+v", stats.ByType)
	}
	if stats.FirstBlock != 1 || stats.LastBlock != 3 {
		t.Fatalf("block range mismatch: %d-%d", stats.FirstBlock, stats.LastBlock)
	}
	if stats.FirstTime != 10 || stats.LastTime != 30 {
		t.Fatalf("timestamp range mismatch: %d-%d", stats.FirstTime, stats.LastTime)
	}

	empty := Summarize(nil)
	if empty.Total != 0 || empty.FirstBlock != 0 {
		t.Fatalf("empty stats mismatch: %+v", empty)
	}
}
