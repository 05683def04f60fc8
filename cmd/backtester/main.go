package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "backtester",
		Short:        "Concentrated-liquidity AMM backtester",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Replay pool events against one LP position",
		RunE:  runEngine,
	}
	addInputFlags(runCmd.Flags())
	addPoolFlags(runCmd.Flags())
	runCmd.Flags().String("out", "./data/run", "output directory for series and metrics")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN to persist the run")
	runCmd.Flags().Float64("capital", 10000, "initial capital in token1 units")
	runCmd.Flags().Float64("range-pct", 0.10, "fixed range half-width as a fraction of price")
	runCmd.Flags().Int32("tick-lower", 0, "explicit lower tick (requires tick-upper)")
	runCmd.Flags().Int32("tick-upper", 0, "explicit upper tick (requires tick-lower)")
	runCmd.Flags().Bool("use-atr", false, "use the ATR dynamic range with periodic rebalancing")
	runCmd.Flags().Int("atr-period", 14, "ATR period in swaps")
	runCmd.Flags().Float64("atr-multiplier", 2.0, "range half-width in ATRs")
	runCmd.Flags().Uint64("rebalance-interval", 180, "minimum seconds between rebalances")
	runCmd.Flags().Float64("deadband", 0.2, "rebalance only within this fraction of range width from a bound; negative disables")
	runCmd.Flags().Float64("gas-haircut", 0.0001, "fraction of withdrawn value lost per rebalance")
	runCmd.Flags().Float64("min-rebalance-capital", 10, "keep funds idle below this value")
	runCmd.Flags().Int("sample-every", 100, "sample portfolio value every N events")
	runCmd.Flags().Int64("fee-ceiling-divisor", 0, "cap one fee settlement at deposit/divisor; 0 uses the default, negative disables")
	root.AddCommand(runCmd)

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "Compare LP strategies and hold baselines on one swap history",
		RunE:  runCompare,
	}
	addInputFlags(compareCmd.Flags())
	addPoolFlags(compareCmd.Flags())
	compareCmd.Flags().String("out", "./data/compare", "output directory for results and value series")
	compareCmd.Flags().String("pg-dsn", "", "optional Postgres DSN to persist the comparison")
	compareCmd.Flags().Float64("capital", 10000, "initial capital in token1 units, split 50/50 when no amounts are given")
	compareCmd.Flags().String("amount0", "", "initial token0 amount (human units)")
	compareCmd.Flags().String("amount1", "", "initial token1 amount (human units)")
	compareCmd.Flags().StringSlice("strategies", nil, "strategies to run (passive, fixed_width, bands, ratio); empty runs all")
	compareCmd.Flags().Bool("baselines", true, "include HODL 50/50 and 100% token0 baselines")
	compareCmd.Flags().Float64("gas-price-gwei", 30, "gas price for rebalance cost")
	compareCmd.Flags().Uint64("gas-limit", 500000, "gas units per rebalance")
	compareCmd.Flags().Float64("eth-price-usd", 2000, "native token price for gas cost")
	compareCmd.Flags().Int("sample-every", 100, "sample portfolio value every N swaps")
	root.AddCommand(compareCmd)

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize an event file and aggregate swap volume per window",
		RunE:  runStats,
	}
	addInputFlags(statsCmd.Flags())
	addPoolFlags(statsCmd.Flags())
	statsCmd.Flags().StringSlice("windows", []string{"1h"}, "aggregation windows (e.g. 5m,1h)")
	statsCmd.Flags().String("pool", "", "pool address used as the Postgres key")
	statsCmd.Flags().String("out", "", "optional JSON output path")
	statsCmd.Flags().String("pg-dsn", "", "optional Postgres DSN to persist window metrics")
	root.AddCommand(statsCmd)

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch Swap/Mint/Burn events of a V3 pool from an RPC node",
		RunE:  runFetch,
	}
	fetchCmd.Flags().String("rpc", "", "RPC URL")
	fetchCmd.Flags().String("pool", "", "pool address")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	fetchCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL path (appended)")
	fetchCmd.Flags().String("meta-out", "./data/pool.json", "pool metadata JSON path")
	fetchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	fetchCmd.Flags().String("pg-dsn", "", "optional Postgres DSN; keeps the checkpoint in Postgres")
	fetchCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().Duration("max-backoff", 30*time.Second, "maximum retry backoff")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(fetchCmd)

	ilCmd := &cobra.Command{
		Use:   "il",
		Short: "Rebuild the impermanent-loss series of a run directory",
		RunE:  runIL,
	}
	ilCmd.Flags().String("in", "", "run output directory")
	ilCmd.Flags().String("out", "", "IL series JSONL path (default <in>/il.jsonl)")
	ilCmd.Flags().Float64("amount0", 0, "initial token0 amount; 0 uses the run's metrics file")
	ilCmd.Flags().Float64("amount1", 0, "initial token1 amount; 0 uses the run's metrics file")
	ilCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(ilCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addInputFlags(flags *pflag.FlagSet) {
	flags.String("in", "", "input events JSONL")
	flags.Uint64("start-block", 0, "first block to replay (inclusive)")
	flags.Uint64("end-block", 0, "last block to replay (inclusive)")
	flags.String("start-time", "", "first timestamp to replay (unix seconds or RFC3339)")
	flags.String("end-time", "", "last timestamp to replay (unix seconds or RFC3339)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func addPoolFlags(flags *pflag.FlagSet) {
	flags.Uint32("fee-tier", 3000, "pool fee in hundredths of a bip")
	flags.Int32("tick-spacing", 0, "tick spacing, 0 derives it from the fee tier")
	flags.Uint8("decimals0", 8, "token0 decimals")
	flags.Uint8("decimals1", 6, "token1 decimals")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
