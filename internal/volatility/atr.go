package volatility

import (
	"math"

	"github.com/ChiShengChen/katana-amm-backtest/internal/v3math"
)

const (
	defaultRangePct = 0.05
	minRangePct     = 0.02
	lowerFloorPct   = 0.1
)

// Config tunes the ATR range model.
type Config struct {
	Period            int
	Multiplier        float64
	RebalanceInterval uint64
	// Deadband is the fraction of range width price must come within of a
	// bound before a rebalance is allowed. Negative disables the check.
	Deadband float64
	// PriceScale converts display prices back to raw 1.0001^tick prices.
	PriceScale float64
}

// DefaultConfig returns period 14, multiplier 2, a 180s interval and a 20% deadband.
func DefaultConfig() Config {
	return Config{
		Period:            14,
		Multiplier:        2.0,
		RebalanceInterval: 180,
		Deadband:          0.2,
		PriceScale:        100,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Period <= 0 {
		c.Period = def.Period
	}
	if c.Multiplier <= 0 {
		c.Multiplier = def.Multiplier
	}
	if c.Deadband == 0 {
		c.Deadband = def.Deadband
	}
	if c.PriceScale <= 0 {
		c.PriceScale = def.PriceScale
	}
	return c
}

// Range is a price band and its aligned ticks.
type Range struct {
	TickLower  int32
	TickUpper  int32
	PriceLower float64
	PriceUpper float64
}

// ATR tracks a simple-average true range over a rolling window and sizes
// liquidity ranges from it.
type ATR struct {
	cfg Config

	closes window
	highs  window
	lows   window
	ranges window
	atr    float64

	lastRebalance *uint64
	current       *Range
	center        float64
}

// New builds an ATR tracker.
func New(cfg Config) *ATR {
	cfg = cfg.withDefaults()
	return &ATR{
		cfg:    cfg,
		closes: newWindow(cfg.Period + 1),
		highs:  newWindow(cfg.Period + 1),
		lows:   newWindow(cfg.Period + 1),
		ranges: newWindow(cfg.Period),
	}
}

// Config returns the effective configuration.
func (a *ATR) Config() Config {
	return a.cfg
}

// Update adds a sample. Zero high or low default to price.
func (a *ATR) Update(price, high, low float64) float64 {
	if high == 0 {
		high = price
	}
	if low == 0 {
		low = price
	}
	a.closes.push(price)
	a.highs.push(high)
	a.lows.push(low)

	if a.closes.len() >= 2 {
		prevClose := a.closes.at(a.closes.len() - 2)
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		a.ranges.push(tr)
	}
	if a.ranges.len() >= a.cfg.Period {
		a.atr = a.ranges.mean()
	}
	return a.atr
}

// UpdatePrice is Update with high and low equal to price.
func (a *ATR) UpdatePrice(price float64) float64 {
	return a.Update(price, price, price)
}

// Value is the current ATR, zero until the window has filled.
func (a *ATR) Value() float64 {
	return a.atr
}

// Ready reports whether the true range window is full.
func (a *ATR) Ready() bool {
	return a.atr > 0
}

// CalculateRange derives a band around price: ±5% before the ATR is ready,
// otherwise ±max(ATR*multiplier, 2% of price) with the lower bound floored at
// 10% of price. The band becomes the current range.
func (a *ATR) CalculateRange(price float64, tickSpacing int32) Range {
	r := a.Preview(price, tickSpacing)
	a.current = &r
	a.center = price
	return r
}

// Preview computes the range CalculateRange would return without making it current.
func (a *ATR) Preview(price float64, tickSpacing int32) Range {
	var lower, upper float64
	if a.atr <= 0 {
		lower = price * (1 - defaultRangePct)
		upper = price * (1 + defaultRangePct)
	} else {
		size := math.Max(a.atr*a.cfg.Multiplier, price*minRangePct)
		lower = math.Max(price-size, price*lowerFloorPct)
		upper = price + size
	}
	return Range{
		TickLower:  a.priceToTick(lower, tickSpacing),
		TickUpper:  a.priceToTick(upper, tickSpacing),
		PriceLower: lower,
		PriceUpper: upper,
	}
}

func (a *ATR) priceToTick(price float64, spacing int32) int32 {
	if price <= 0 {
		return 0
	}
	raw := math.Log(price/a.cfg.PriceScale) / math.Log(1.0001)
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return 0
	}
	return v3math.AlignTick(int32(raw), spacing)
}

// SetRange makes r the current range, for bands not produced by CalculateRange.
func (a *ATR) SetRange(r Range, center float64) {
	a.current = &r
	a.center = center
}

// CurrentRange returns the last computed band and its center price.
func (a *ATR) CurrentRange() (Range, float64, bool) {
	if a.current == nil {
		return Range{}, 0, false
	}
	return *a.current, a.center, true
}

// ShouldRebalance allows the first rebalance unconditionally. Later ones need
// a ready ATR, an elapsed interval, and price within the deadband of a bound.
func (a *ATR) ShouldRebalance(price float64, timestamp uint64) bool {
	if a.lastRebalance == nil {
		return true
	}
	if a.atr <= 0 {
		return false
	}
	if timestamp < *a.lastRebalance+a.cfg.RebalanceInterval {
		return false
	}
	if a.current != nil && a.cfg.Deadband >= 0 {
		width := a.current.PriceUpper - a.current.PriceLower
		if width > 0 {
			dist := math.Min(price-a.current.PriceLower, a.current.PriceUpper-price)
			if dist > width*a.cfg.Deadband {
				return false
			}
		}
	}
	return true
}

// RecordRebalance stamps the time of the latest rebalance.
func (a *ATR) RecordRebalance(timestamp uint64) {
	ts := timestamp
	a.lastRebalance = &ts
}

// window is a fixed capacity FIFO of float samples.
type window struct {
	size   int
	values []float64
}

func newWindow(size int) window {
	return window{size: size, values: make([]float64, 0, size)}
}

func (w *window) push(v float64) {
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, v)
}

func (w *window) len() int {
	return len(w.values)
}

func (w *window) at(i int) float64 {
	return w.values[i]
}

func (w *window) mean() float64 {
	if len(w.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range w.values {
		sum += v
	}
	return sum / float64(len(w.values))
}
