package model

import "time"

// RunMode names how a backtest run was produced.
type RunMode string

const (
	RunModeEngine  RunMode = "engine"
	RunModeCompare RunMode = "compare"
)

// RunRecord identifies one persisted backtest run.
type RunRecord struct {
	ID        string    `json:"id"`
	Mode      RunMode   `json:"mode"`
	Input     string    `json:"input"`
	Params    any       `json:"params,omitempty"`
	StartTime uint64    `json:"start_time"`
	EndTime   uint64    `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}

// RunSummary is the metrics file of a direct replay. The initial amounts are
// in human token units and let the IL series be rebuilt from the written series.
type RunSummary struct {
	RunID          string  `json:"run_id,omitempty"`
	Metrics        Metrics `json:"metrics"`
	InitialAmount0 float64 `json:"initial_amount0"`
	InitialAmount1 float64 `json:"initial_amount1"`
	InitialPrice   float64 `json:"initial_price"`
}
