package model

// ValuePoint is a sampled portfolio value in quote units.
type ValuePoint struct {
	Timestamp uint64  `json:"timestamp"`
	Value     float64 `json:"value"`
}

// PricePoint is a sampled display price.
type PricePoint struct {
	Timestamp uint64  `json:"timestamp"`
	Price     float64 `json:"price"`
}

// RangePoint records the dynamic range in force at a timestamp.
type RangePoint struct {
	Timestamp  uint64  `json:"timestamp"`
	Price      float64 `json:"price"`
	ATR        float64 `json:"atr"`
	PriceLower float64 `json:"price_lower"`
	PriceUpper float64 `json:"price_upper"`
	TickLower  int32   `json:"tick_lower"`
	TickUpper  int32   `json:"tick_upper"`
}

// RebalancePoint records one engine rebalance. Withdrawn is the value taken
// out of the old positions, fees included; Value is what remained after the
// gas haircut.
type RebalancePoint struct {
	Timestamp uint64  `json:"timestamp"`
	Price     float64 `json:"price"`
	TickLower int32   `json:"tick_lower"`
	TickUpper int32   `json:"tick_upper"`
	Withdrawn float64 `json:"withdrawn"`
	Value     float64 `json:"value"`
	Fees      float64 `json:"fees"`
}

// ILPoint compares LP value against holding the initial tokens.
type ILPoint struct {
	Timestamp uint64  `json:"timestamp"`
	Price     float64 `json:"price"`
	LPValue   float64 `json:"lp_value"`
	HodlValue float64 `json:"hodl_value"`
	ILPct     float64 `json:"il_pct"`
}
