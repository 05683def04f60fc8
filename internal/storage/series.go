package storage

import (
	"fmt"
	"path/filepath"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

// File names inside a run output directory.
const (
	ValuesFile     = "values.jsonl"
	PricesFile     = "prices.jsonl"
	RangesFile     = "ranges.jsonl"
	RebalancesFile = "rebalances.jsonl"
	ILFile         = "il.jsonl"
	MetricsFile    = "metrics.json"
	ResultsFile    = "results.json"
)

// Series is everything a run writes to its output directory. Empty series are skipped.
type Series struct {
	Values     []model.ValuePoint
	Prices     []model.PricePoint
	Ranges     []model.RangePoint
	Rebalances []model.RebalancePoint
	Metrics    any
}

// WriteSeries writes s under dir, replacing earlier files.
func WriteSeries(dir string, s Series) error {
	if dir == "" {
		return fmt.Errorf("output dir is required")
	}
	if len(s.Values) > 0 {
		if err := WriteJSONL(filepath.Join(dir, ValuesFile), s.Values); err != nil {
			return fmt.Errorf("values: %w", err)
		}
	}
	if len(s.Prices) > 0 {
		if err := WriteJSONL(filepath.Join(dir, PricesFile), s.Prices); err != nil {
			return fmt.Errorf("prices: %w", err)
		}
	}
	if len(s.Ranges) > 0 {
		if err := WriteJSONL(filepath.Join(dir, RangesFile), s.Ranges); err != nil {
			return fmt.Errorf("ranges: %w", err)
		}
	}
	if len(s.Rebalances) > 0 {
		if err := WriteJSONL(filepath.Join(dir, RebalancesFile), s.Rebalances); err != nil {
			return fmt.Errorf("rebalances: %w", err)
		}
	}
	if s.Metrics != nil {
		if err := WriteJSON(filepath.Join(dir, MetricsFile), s.Metrics); err != nil {
			return fmt.Errorf("metrics: %w", err)
		}
	}
	return nil
}

// ReadValues loads the value series written by WriteSeries.
func ReadValues(dir string) ([]model.ValuePoint, error) {
	return ReadJSONL[model.ValuePoint](filepath.Join(dir, ValuesFile))
}

// ReadPrices loads the price series written by WriteSeries.
func ReadPrices(dir string) ([]model.PricePoint, error) {
	return ReadJSONL[model.PricePoint](filepath.Join(dir, PricesFile))
}

// ReadSummary loads the metrics file of a direct replay.
func ReadSummary(dir string) (model.RunSummary, error) {
	return ReadJSON[model.RunSummary](filepath.Join(dir, MetricsFile))
}
