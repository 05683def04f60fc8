package strategy

import "github.com/shopspring/decimal"

// TriggerType classifies why a rebalance fired.
type TriggerType string

const (
	TriggerPriceGap      TriggerType = "price_gap"
	TriggerRangeInactive TriggerType = "range_inactive"
	TriggerPriceDrift    TriggerType = "price_percentage_drift"
	TriggerOneWayExit    TriggerType = "one_way_exit"
	TriggerTimeBased     TriggerType = "time_based"
	TriggerManual        TriggerType = "manual"
)

// RebalanceResult records one rebalance. Costs are in quote units.
type RebalanceResult struct {
	Timestamp    uint64
	OldPositions []Position
	NewPositions []Position
	SwapAmount   decimal.Decimal
	SwapFeePaid  decimal.Decimal
	GasCost      decimal.Decimal
	Trigger      TriggerType
	Reason       string
}

// TotalCost is swap fee plus gas.
func (r RebalanceResult) TotalCost() decimal.Decimal {
	return r.SwapFeePaid.Add(r.GasCost)
}

// Metrics are the running totals of one strategy instance.
// Fees are raw gross token amounts; TotalFeesEarned is their quote value
// at accrual time.
type Metrics struct {
	FeesEarned0     decimal.Decimal
	FeesEarned1     decimal.Decimal
	TotalFeesEarned decimal.Decimal
	RebalanceCount  int
	TotalGasCost    decimal.Decimal
	TotalSwapCost   decimal.Decimal
	TimeInRange     uint64
	TotalTime       uint64
}

// TimeInRangePct is the share of tracked time spent in range, 0-100.
func (m Metrics) TimeInRangePct() float64 {
	if m.TotalTime == 0 {
		return 0
	}
	return float64(m.TimeInRange) / float64(m.TotalTime) * 100
}
