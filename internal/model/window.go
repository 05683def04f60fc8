package model

import "time"

// WindowMetrics stores aggregated swap activity for one time window.
type WindowMetrics struct {
	WindowSizeSecs int64     `json:"window_size_secs"`
	WindowStart    time.Time `json:"window_start"`
	WindowEnd      time.Time `json:"window_end"`
	SwapCount      uint64    `json:"swap_count"`
	MintCount      uint64    `json:"mint_count"`
	BurnCount      uint64    `json:"burn_count"`
	Volume0        string    `json:"volume0"`
	Volume1        string    `json:"volume1"`
	Fee0           string    `json:"fee0"`
	Fee1           string    `json:"fee1"`
	FirstBlock     uint64    `json:"first_block"`
	LastBlock      uint64    `json:"last_block"`
	FeeMethod      string    `json:"fee_method"`
}
