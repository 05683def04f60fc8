package backtest

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

func TestDays(t *testing.T) {
	require.Equal(t, 1.0, Days(100, 100))
	require.Equal(t, 1.0, Days(100, 50))
	require.Equal(t, 2.0, Days(0, 2*86400))
}

func TestReturns(t *testing.T) {
	total, annual := Returns(100, 110, 365)
	require.InDelta(t, 10.0, total, 1e-9)
	require.InDelta(t, 10.0, annual, 1e-9)

	total, annual = Returns(0, 110, 365)
	require.Zero(t, total)
	require.Zero(t, annual)

	// Overflowing compounding collapses to zero instead of Inf.
	_, annual = Returns(1, 1e6, 0.001)
	require.Zero(t, annual)
}

func TestPeriodReturnsSkipZeroBase(t *testing.T) {
	require.Equal(t, []float64{-100}, PeriodReturns([]float64{100, 0, 50}))
	require.Empty(t, PeriodReturns([]float64{100}))
}

func TestMaxDrawdown(t *testing.T) {
	require.InDelta(t, 50.0, MaxDrawdown([]float64{100, 120, 90, 130, 65}), 1e-9)
	require.Zero(t, MaxDrawdown([]float64{1, 2, 3}))
	require.Zero(t, MaxDrawdown([]float64{5}))
}

func TestSharpeAndVolatility(t *testing.T) {
	require.Zero(t, SharpeRatio([]float64{1, 1, 1}))
	require.Zero(t, SharpeRatio([]float64{1}))

	returns := []float64{1, 3}
	sd := math.Sqrt(2)
	require.InDelta(t, 2/sd*math.Sqrt(365), SharpeRatio(returns), 1e-9)
	require.InDelta(t, sd*math.Sqrt(365), Volatility(returns), 1e-9)
}

func TestAnalyze(t *testing.T) {
	values := []model.ValuePoint{
		{Timestamp: 0, Value: 100},
		{Timestamp: 86400, Value: 90},
		{Timestamp: 2 * 86400, Value: 110},
	}
	m := Analyze(AnalyzeInput{
		Values:       values,
		InitialValue: 100,
		FinalValue:   110,
		FeesEarned:   5,
		ILPct:        -1.5,
		Start:        0,
		End:          2 * 86400,
		Counts:       Counts{Swaps: 3, Mints: 1, Rebalances: 2},
	})
	require.InDelta(t, 10.0, m.TotalReturnPct, 1e-9)
	require.InDelta(t, 10.0, m.MaxDrawdownPct, 1e-9)
	require.InDelta(t, 50.0, m.LiquidityEfficiencyPct, 1e-9)
	require.Equal(t, 2.0, m.Days)
	require.Len(t, m.ReturnHistory, 2)
	require.Equal(t, 3, m.NumSwaps)
	require.Equal(t, 2, m.NumRebalances)
	require.Equal(t, -1.5, m.ImpermanentLossPct)

	m = Analyze(AnalyzeInput{InitialValue: 100, FinalValue: 90, FeesEarned: 5})
	require.Zero(t, m.LiquidityEfficiencyPct)
	require.Zero(t, m.SharpeRatio)
}

func TestFormatReport(t *testing.T) {
	out := FormatReport(model.Metrics{InitialValue: 100, FinalValue: 105, TotalReturnPct: 5, NumSwaps: 7})
	require.Contains(t, out, "total return:       5.00%")
	require.Contains(t, out, "swaps:              7")
	require.True(t, strings.HasPrefix(out, strings.Repeat("=", 60)))
}
