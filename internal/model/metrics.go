package model

// Metrics is the aggregate performance record of a replay.
type Metrics struct {
	InitialValue           float64      `json:"initial_value"`
	FinalValue             float64      `json:"final_value"`
	TotalReturnPct         float64      `json:"total_return_pct"`
	AnnualizedReturnPct    float64      `json:"annualized_return_pct"`
	MaxDrawdownPct         float64      `json:"max_drawdown_pct"`
	SharpeRatio            float64      `json:"sharpe_ratio"`
	VolatilityPct          float64      `json:"volatility_pct"`
	TotalFeesEarned        float64      `json:"total_fees_earned"`
	LiquidityEfficiencyPct float64      `json:"liquidity_efficiency_pct"`
	ImpermanentLossPct     float64      `json:"impermanent_loss_pct"`
	NumSwaps               int          `json:"num_swaps"`
	NumMints               int          `json:"num_mints"`
	NumBurns               int          `json:"num_burns"`
	NumRebalances          int          `json:"num_rebalances"`
	StartTime              uint64       `json:"start_time"`
	EndTime                uint64       `json:"end_time"`
	Days                   float64      `json:"days"`
	ValueHistory           []ValuePoint `json:"-"`
	ReturnHistory          []float64    `json:"-"`
}

// StrategyResult summarizes one strategy run of the unified backtester.
type StrategyResult struct {
	Name                string       `json:"name"`
	Kind                string       `json:"kind"`
	InitialValue        float64      `json:"initial_value"`
	FinalValue          float64      `json:"final_value"`
	TotalReturnPct      float64      `json:"total_return_pct"`
	AnnualizedReturnPct float64      `json:"annualized_return_pct"`
	MaxDrawdownPct      float64      `json:"max_drawdown_pct"`
	SharpeRatio         float64      `json:"sharpe_ratio"`
	VolatilityPct       float64      `json:"volatility_pct"`
	TotalFeesEarned     float64      `json:"total_fees_earned"`
	NetFeesEarned       float64      `json:"net_fees_earned"`
	RebalanceCount      int          `json:"rebalance_count"`
	TotalGasCost        float64      `json:"total_gas_cost"`
	TotalSwapCost       float64      `json:"total_swap_cost"`
	ImpermanentLossPct  float64      `json:"impermanent_loss_pct"`
	TimeInRangePct      float64      `json:"time_in_range_pct"`
	ValueHistory        []ValuePoint `json:"-"`
}
