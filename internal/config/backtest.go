package config

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ChiShengChen/katana-amm-backtest/internal/backtest"
	"github.com/ChiShengChen/katana-amm-backtest/internal/strategy"
)

// RunConfig holds configuration for the direct engine replay.
type RunConfig struct {
	Common
	Pool   PoolParams
	Window Window
	Out    string
	PGDSN  string

	Capital             float64
	RangePct            float64
	TickLower           *int32
	TickUpper           *int32
	UseATR              bool
	ATRPeriod           int
	ATRMultiplier       float64
	RebalanceInterval   uint64
	Deadband            float64
	GasHaircut          float64
	MinRebalanceCapital float64
	SampleEvery         int
	FeeCeilingDivisor   int64
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	def := backtest.DefaultEngineConfig()
	v, err := load(cfgFile, flags, poolDefaults(map[string]any{
		"out":                   "./data/run",
		"capital":               def.InitialCapital,
		"range-pct":             def.PriceRangePct,
		"atr-period":            def.ATRPeriod,
		"atr-multiplier":        def.ATRMultiplier,
		"rebalance-interval":    def.RebalanceInterval,
		"deadband":              def.Deadband,
		"gas-haircut":           def.GasHaircut,
		"min-rebalance-capital": def.MinRebalanceCapital,
		"sample-every":          def.SampleEvery,
	}))
	if err != nil {
		return RunConfig{}, err
	}

	cfg := RunConfig{
		Common:              readCommon(v),
		Pool:                readPool(v),
		Window:              readWindow(v),
		Out:                 v.GetString("out"),
		PGDSN:               v.GetString("pg-dsn"),
		Capital:             v.GetFloat64("capital"),
		RangePct:            v.GetFloat64("range-pct"),
		TickLower:           optionalInt32(v, "tick-lower"),
		TickUpper:           optionalInt32(v, "tick-upper"),
		UseATR:              v.GetBool("use-atr"),
		ATRPeriod:           v.GetInt("atr-period"),
		ATRMultiplier:       v.GetFloat64("atr-multiplier"),
		RebalanceInterval:   v.GetUint64("rebalance-interval"),
		Deadband:            v.GetFloat64("deadband"),
		GasHaircut:          v.GetFloat64("gas-haircut"),
		MinRebalanceCapital: v.GetFloat64("min-rebalance-capital"),
		SampleEvery:         v.GetInt("sample-every"),
		FeeCeilingDivisor:   v.GetInt64("fee-ceiling-divisor"),
	}
	if (cfg.TickLower == nil) != (cfg.TickUpper == nil) {
		return RunConfig{}, fmt.Errorf("tick-lower and tick-upper must be set together")
	}
	return cfg, nil
}

// Engine converts the loaded settings into an engine configuration.
func (c RunConfig) Engine() (backtest.EngineConfig, error) {
	filter, err := c.Window.Filter()
	if err != nil {
		return backtest.EngineConfig{}, err
	}
	return backtest.EngineConfig{
		InitialCapital:      c.Capital,
		FeeTier:             c.Pool.FeeTier,
		TickSpacing:         c.Pool.TickSpacing,
		Decimals0:           c.Pool.Decimals0,
		Decimals1:           c.Pool.Decimals1,
		PriceRangePct:       c.RangePct,
		TickLower:           c.TickLower,
		TickUpper:           c.TickUpper,
		UseATR:              c.UseATR,
		ATRPeriod:           c.ATRPeriod,
		ATRMultiplier:       c.ATRMultiplier,
		RebalanceInterval:   c.RebalanceInterval,
		Deadband:            c.Deadband,
		GasHaircut:          c.GasHaircut,
		MinRebalanceCapital: c.MinRebalanceCapital,
		SampleEvery:         c.SampleEvery,
		FeeCeilingDivisor:   c.FeeCeilingDivisor,
		Filter:              filter,
	}, nil
}

// CompareConfig holds configuration for the strategy comparison.
type CompareConfig struct {
	Common
	Pool   PoolParams
	Window Window
	Out    string
	PGDSN  string

	Capital      float64
	Amount0      string
	Amount1      string
	Strategies   []string
	Baselines    bool
	GasPriceGwei float64
	GasLimit     uint64
	EthPriceUSD  float64
	SampleEvery  int
}

// LoadCompare merges config file, environment variables, and flags into CompareConfig.
func LoadCompare(cfgFile string, flags *pflag.FlagSet) (CompareConfig, error) {
	def := backtest.DefaultBacktestConfig()
	v, err := load(cfgFile, flags, poolDefaults(map[string]any{
		"out":            "./data/compare",
		"capital":        def.InitialCapital,
		"baselines":      true,
		"gas-price-gwei": def.Strategy.GasPriceGwei,
		"gas-limit":      def.Strategy.GasLimit,
		"eth-price-usd":  def.Strategy.EthPriceUSD,
		"sample-every":   def.SampleEvery,
	}))
	if err != nil {
		return CompareConfig{}, err
	}

	return CompareConfig{
		Common:       readCommon(v),
		Pool:         readPool(v),
		Window:       readWindow(v),
		Out:          v.GetString("out"),
		PGDSN:        v.GetString("pg-dsn"),
		Capital:      v.GetFloat64("capital"),
		Amount0:      v.GetString("amount0"),
		Amount1:      v.GetString("amount1"),
		Strategies:   getStringSlice(v, "strategies"),
		Baselines:    v.GetBool("baselines"),
		GasPriceGwei: v.GetFloat64("gas-price-gwei"),
		GasLimit:     v.GetUint64("gas-limit"),
		EthPriceUSD:  v.GetFloat64("eth-price-usd"),
		SampleEvery:  v.GetInt("sample-every"),
	}, nil
}

// Backtest converts the loaded settings into a backtester configuration.
func (c CompareConfig) Backtest() (backtest.BacktestConfig, error) {
	filter, err := c.Window.Filter()
	if err != nil {
		return backtest.BacktestConfig{}, err
	}
	amount0, err := parseAmount("amount0", c.Amount0)
	if err != nil {
		return backtest.BacktestConfig{}, err
	}
	amount1, err := parseAmount("amount1", c.Amount1)
	if err != nil {
		return backtest.BacktestConfig{}, err
	}
	return backtest.BacktestConfig{
		InitialAmount0: amount0,
		InitialAmount1: amount1,
		InitialCapital: c.Capital,
		Strategy: strategy.Config{
			PoolFee:      c.Pool.FeeTier,
			TickSpacing:  c.Pool.TickSpacing,
			Decimals0:    c.Pool.Decimals0,
			Decimals1:    c.Pool.Decimals1,
			GasPriceGwei: c.GasPriceGwei,
			GasLimit:     c.GasLimit,
			EthPriceUSD:  c.EthPriceUSD,
		},
		SampleEvery: c.SampleEvery,
		Filter:      filter,
	}, nil
}

// Kinds resolves the strategy list; an empty list selects every built-in strategy.
func (c CompareConfig) Kinds() ([]strategy.Kind, error) {
	if len(c.Strategies) == 0 {
		return strategy.Kinds(), nil
	}
	out := make([]strategy.Kind, 0, len(c.Strategies))
	seen := make(map[strategy.Kind]struct{}, len(c.Strategies))
	for _, name := range c.Strategies {
		kind, err := strategy.ParseKind(name)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[kind]; ok {
			continue
		}
		seen[kind] = struct{}{}
		out = append(out, kind)
	}
	return out, nil
}

// ILConfig holds configuration for rebuilding an IL series from a run directory.
type ILConfig struct {
	Common
	Out     string
	Amount0 float64
	Amount1 float64
}

// LoadIL merges config file, environment variables, and flags into ILConfig.
// Input is the output directory of a direct replay. Zero amounts mean the
// amounts recorded in that run's metrics file.
func LoadIL(cfgFile string, flags *pflag.FlagSet) (ILConfig, error) {
	v, err := load(cfgFile, flags, nil)
	if err != nil {
		return ILConfig{}, err
	}
	return ILConfig{
		Common:  readCommon(v),
		Out:     v.GetString("out"),
		Amount0: v.GetFloat64("amount0"),
		Amount1: v.GetFloat64("amount1"),
	}, nil
}

func optionalInt32(v *viper.Viper, key string) *int32 {
	if !v.IsSet(key) {
		return nil
	}
	value := v.GetInt32(key)
	return &value
}

func parseAmount(key, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse %s: %w", key, err)
	}
	if amount.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s must not be negative", key)
	}
	return amount, nil
}
