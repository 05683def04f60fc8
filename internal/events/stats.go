package events

import "github.com/ChiShengChen/katana-amm-backtest/internal/model"

// Statistics summarises an event stream.
type Statistics struct {
	Total      int                     `json:"total_events"`
	ByType     map[model.EventType]int `json:"by_type"`
	FirstBlock uint64                  `json:"first_block"`
	LastBlock  uint64                  `json:"last_block"`
	FirstTime  uint64                  `json:"first_timestamp"`
	LastTime   uint64                  `json:"last_timestamp"`
}

func Summarize(events []model.PoolEvent) Statistics {
	stats := Statistics{ByType: make(map[model.EventType]int)}
	for i, event := range events {
		stats.Total++
		stats.ByType[event.EventType]++
		if i == 0 || event.BlockNumber < stats.FirstBlock {
			stats.FirstBlock = event.BlockNumber
		}
		if event.BlockNumber > stats.LastBlock {
			stats.LastBlock = event.BlockNumber
		}
		if i == 0 || event.BlockTimestamp < stats.FirstTime {
			stats.FirstTime = event.BlockTimestamp
		}
		if event.BlockTimestamp > stats.LastTime {
			stats.LastTime = event.BlockTimestamp
		}
	}
	return stats
}
