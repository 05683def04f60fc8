package events

import (
	"sort"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

// Filter bounds events by block and timestamp. Nil bounds are open; set
// bounds are inclusive.
type Filter struct {
	StartBlock *uint64
	EndBlock   *uint64
	StartTime  *uint64
	EndTime    *uint64
}

func (f Filter) Match(event model.PoolEvent) bool {
	if f.StartBlock != nil && event.BlockNumber < *f.StartBlock {
		return false
	}
	if f.EndBlock != nil && event.BlockNumber > *f.EndBlock {
		return false
	}
	if f.StartTime != nil && event.BlockTimestamp < *f.StartTime {
		return false
	}
	if f.EndTime != nil && event.BlockTimestamp > *f.EndTime {
		return false
	}
	return true
}

// Apply returns the matching events in their original order.
func (f Filter) Apply(events []model.PoolEvent) []model.PoolEvent {
	out := make([]model.PoolEvent, 0, len(events))
	for _, event := range events {
		if f.Match(event) {
			out = append(out, event)
		}
	}
	return out
}

// Sort orders events by (timestamp, block, log index), keeping ties stable.
func Sort(events []model.PoolEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Less(events[j])
	})
}

// Prepare filters then sorts a copy of events.
func Prepare(events []model.PoolEvent, f Filter) []model.PoolEvent {
	out := f.Apply(events)
	Sort(out)
	return out
}
