package storage

import "github.com/ChiShengChen/katana-amm-backtest/internal/model"

// EventSink receives decoded pool events in batches.
type EventSink interface {
	PutEvents(events []model.PoolEvent) error
}
