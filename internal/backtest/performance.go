package backtest

import (
	"fmt"
	"math"
	"strings"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

const secondsPerDay = 86400

// Counts are the event and action tallies reported with a run.
type Counts struct {
	Swaps      int
	Mints      int
	Burns      int
	Rebalances int
}

// AnalyzeInput is everything Analyze needs about a finished run.
type AnalyzeInput struct {
	Values       []model.ValuePoint
	InitialValue float64
	FinalValue   float64
	FeesEarned   float64
	ILPct        float64
	Start        uint64
	End          uint64
	Counts       Counts
}

// Analyze computes returns, drawdown and risk ratios over a sampled value series.
func Analyze(in AnalyzeInput) model.Metrics {
	days := Days(in.Start, in.End)
	total, annual := Returns(in.InitialValue, in.FinalValue, days)

	m := model.Metrics{
		InitialValue:        in.InitialValue,
		FinalValue:          in.FinalValue,
		TotalReturnPct:      total,
		AnnualizedReturnPct: annual,
		TotalFeesEarned:     in.FeesEarned,
		ImpermanentLossPct:  in.ILPct,
		NumSwaps:            in.Counts.Swaps,
		NumMints:            in.Counts.Mints,
		NumBurns:            in.Counts.Burns,
		NumRebalances:       in.Counts.Rebalances,
		StartTime:           in.Start,
		EndTime:             in.End,
		Days:                days,
		ValueHistory:        in.Values,
	}

	if len(in.Values) > 1 {
		values := make([]float64, 0, len(in.Values))
		for _, v := range in.Values {
			values = append(values, v.Value)
		}
		m.ReturnHistory = PeriodReturns(values)
		m.MaxDrawdownPct = MaxDrawdown(values)
		m.SharpeRatio = SharpeRatio(m.ReturnHistory)
		m.VolatilityPct = Volatility(m.ReturnHistory)
	}

	if gain := in.FinalValue - in.InitialValue; gain > 0 {
		m.LiquidityEfficiencyPct = in.FeesEarned / gain * 100
	}
	return m
}

// Days is the span in days, or 1 for an empty or inverted span.
func Days(start, end uint64) float64 {
	if end <= start {
		return 1
	}
	return float64(end-start) / secondsPerDay
}

// Returns gives the total and annualized return in percent.
func Returns(initial, final, days float64) (float64, float64) {
	if initial <= 0 {
		return 0, 0
	}
	total := (final - initial) / initial * 100
	if days <= 0 || final < 0 {
		return total, 0
	}
	return total, finite((math.Pow(final/initial, 365/days) - 1) * 100)
}

// PeriodReturns are percent changes between consecutive values, skipping
// non-positive bases.
func PeriodReturns(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] > 0 {
			out = append(out, (values[i]-values[i-1])/values[i-1]*100)
		}
	}
	return out
}

// MaxDrawdown is the largest peak-to-trough fall in percent.
func MaxDrawdown(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	peak := values[0]
	var maxDD float64
	for _, v := range values {
		if v > peak {
			peak = v
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - v) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}

// SharpeRatio is mean/stdev scaled by sqrt(365), with a zero risk-free rate.
func SharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := sampleStdDev(returns)
	if sd == 0 {
		return 0
	}
	return finite(mean(returns) / sd * math.Sqrt(365))
}

// Volatility is the sample stdev scaled by sqrt(365).
func Volatility(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	return finite(sampleStdDev(returns) * math.Sqrt(365))
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func sampleStdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := mean(values)
	var sq float64
	for _, v := range values {
		d := v - m
		sq += d * d
	}
	return math.Sqrt(sq / float64(len(values)-1))
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// FormatReport renders metrics as a plain text report.
func FormatReport(m model.Metrics) string {
	var b strings.Builder
	line := strings.Repeat("=", 60)
	b.WriteString(line + "\n")
	b.WriteString("AMM backtest report\n")
	b.WriteString(line + "\n\n")

	b.WriteString("Returns\n")
	fmt.Fprintf(&b, "  initial value:      %.2f\n", m.InitialValue)
	fmt.Fprintf(&b, "  final value:        %.2f\n", m.FinalValue)
	fmt.Fprintf(&b, "  total return:       %.2f%%\n", m.TotalReturnPct)
	fmt.Fprintf(&b, "  annualized return:  %.2f%%\n", m.AnnualizedReturnPct)
	fmt.Fprintf(&b, "  max drawdown:       %.2f%%\n", m.MaxDrawdownPct)
	fmt.Fprintf(&b, "  sharpe ratio:       %.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "  volatility:         %.2f%%\n\n", m.VolatilityPct)

	b.WriteString("Liquidity\n")
	fmt.Fprintf(&b, "  fees earned:        %.2f\n", m.TotalFeesEarned)
	fmt.Fprintf(&b, "  impermanent loss:   %.2f%%\n", m.ImpermanentLossPct)
	fmt.Fprintf(&b, "  fee share of gain:  %.2f%%\n", m.LiquidityEfficiencyPct)
	fmt.Fprintf(&b, "  rebalances:         %d\n\n", m.NumRebalances)

	b.WriteString("Events\n")
	fmt.Fprintf(&b, "  swaps:              %d\n", m.NumSwaps)
	fmt.Fprintf(&b, "  mints:              %d\n", m.NumMints)
	fmt.Fprintf(&b, "  burns:              %d\n", m.NumBurns)
	fmt.Fprintf(&b, "  days:               %.2f\n", m.Days)
	return b.String()
}
