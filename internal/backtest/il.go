package backtest

import (
	"math"
	"sort"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

// maxILPct bounds plausible IL readings; points outside are dropped.
const maxILPct = 100

// ILSummary aggregates an IL series.
type ILSummary struct {
	Points int     `json:"points"`
	Mean   float64 `json:"mean_il_pct"`
	Min    float64 `json:"min_il_pct"`
	Max    float64 `json:"max_il_pct"`
	Final  float64 `json:"final_il_pct"`
}

// ILSeries compares each value point with holding amount0/amount1 (human
// units) at the nearest sampled price. Prices must be time ordered.
func ILSeries(values []model.ValuePoint, prices []model.PricePoint, amount0, amount1 float64) []model.ILPoint {
	if len(prices) == 0 {
		return nil
	}
	out := make([]model.ILPoint, 0, len(values))
	for _, v := range values {
		price := nearestPrice(prices, v.Timestamp)
		if price <= 0 {
			continue
		}
		hodl := amount0*price + amount1
		var il float64
		if hodl > 0 {
			il = (v.Value - hodl) / hodl * 100
		}
		if math.Abs(il) > maxILPct {
			continue
		}
		out = append(out, model.ILPoint{
			Timestamp: v.Timestamp,
			Price:     price,
			LPValue:   v.Value,
			HodlValue: hodl,
			ILPct:     il,
		})
	}
	return out
}

// nearestPrice picks the price closest in time, the earlier one on a tie.
func nearestPrice(prices []model.PricePoint, ts uint64) float64 {
	idx := sort.Search(len(prices), func(i int) bool { return prices[i].Timestamp >= ts })
	if idx == len(prices) {
		return prices[len(prices)-1].Price
	}
	if idx == 0 || prices[idx].Timestamp == ts {
		return prices[idx].Price
	}
	before := prices[idx-1]
	if ts-before.Timestamp <= prices[idx].Timestamp-ts {
		return before.Price
	}
	return prices[idx].Price
}

func SummarizeIL(series []model.ILPoint) ILSummary {
	if len(series) == 0 {
		return ILSummary{}
	}
	s := ILSummary{
		Points: len(series),
		Min:    series[0].ILPct,
		Max:    series[0].ILPct,
		Final:  series[len(series)-1].ILPct,
	}
	var sum float64
	for _, p := range series {
		sum += p.ILPct
		s.Min = math.Min(s.Min, p.ILPct)
		s.Max = math.Max(s.Max, p.ILPct)
	}
	s.Mean = sum / float64(len(series))
	return s
}
