package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ChiShengChen/katana-amm-backtest/internal/events"
)

// EnvPrefix prefixes every environment override, e.g. BACKTEST_PG_DSN.
const EnvPrefix = "BACKTEST"

// Common holds settings shared by every command.
type Common struct {
	Input    string
	LogLevel string
}

// PoolParams describes the replayed pool.
type PoolParams struct {
	FeeTier     uint32
	TickSpacing int32
	Decimals0   uint8
	Decimals1   uint8
}

// Window bounds the replayed events; zero blocks and empty times are open.
type Window struct {
	StartBlock uint64
	EndBlock   uint64
	StartTime  string
	EndTime    string
}

// Filter converts the window into an event filter.
func (w Window) Filter() (events.Filter, error) {
	var f events.Filter
	if w.StartBlock > 0 {
		v := w.StartBlock
		f.StartBlock = &v
	}
	if w.EndBlock > 0 {
		v := w.EndBlock
		f.EndBlock = &v
	}
	if w.StartTime != "" {
		ts, err := ParseTimestamp(w.StartTime)
		if err != nil {
			return events.Filter{}, fmt.Errorf("parse start-time: %w", err)
		}
		f.StartTime = &ts
	}
	if w.EndTime != "" {
		ts, err := ParseTimestamp(w.EndTime)
		if err != nil {
			return events.Filter{}, fmt.Errorf("parse end-time: %w", err)
		}
		f.EndTime = &ts
	}
	if f.StartBlock != nil && f.EndBlock != nil && *f.StartBlock > *f.EndBlock {
		return events.Filter{}, fmt.Errorf("start-block %d is after end-block %d", *f.StartBlock, *f.EndBlock)
	}
	if f.StartTime != nil && f.EndTime != nil && *f.StartTime > *f.EndTime {
		return events.Filter{}, fmt.Errorf("start-time is after end-time")
	}
	return f, nil
}

// load merges config file, environment variables, and flags over defaults.
// Flags win over environment, which wins over the file.
func load(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func poolDefaults(defaults map[string]any) map[string]any {
	defaults["fee-tier"] = uint32(3000)
	defaults["tick-spacing"] = int32(0)
	defaults["decimals0"] = uint8(8)
	defaults["decimals1"] = uint8(6)
	return defaults
}

func readCommon(v *viper.Viper) Common {
	return Common{
		Input:    v.GetString("in"),
		LogLevel: v.GetString("log-level"),
	}
}

func readPool(v *viper.Viper) PoolParams {
	return PoolParams{
		FeeTier:     v.GetUint32("fee-tier"),
		TickSpacing: v.GetInt32("tick-spacing"),
		Decimals0:   uint8(v.GetUint("decimals0")),
		Decimals1:   uint8(v.GetUint("decimals1")),
	}
}

func readWindow(v *viper.Viper) Window {
	return Window{
		StartBlock: v.GetUint64("start-block"),
		EndBlock:   v.GetUint64("end-block"),
		StartTime:  v.GetString("start-time"),
		EndTime:    v.GetString("end-time"),
	}
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func getStringMap(v *viper.Viper, key string) map[string]string {
	if !v.IsSet(key) {
		return map[string]string{}
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case map[string]string:
		return typed
	case map[string]interface{}:
		out := make(map[string]string, len(typed))
		for k, item := range typed {
			out[k] = fmt.Sprintf("%v", item)
		}
		return out
	case string:
		return parseStringMap(typed)
	default:
		return map[string]string{}
	}
}

func parseStringMap(input string) map[string]string {
	out := make(map[string]string)
	for _, pair := range splitAndClean(input) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	return out
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	return cleanStrings(strings.Split(input, ","))
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}

// ParseTimestamp parses a timestamp value (unix seconds or RFC3339).
func ParseTimestamp(input string) (uint64, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return 0, nil
	}

	if isNumeric(input) {
		return strconv.ParseUint(input, 10, 64)
	}

	tm, err := time.Parse(time.RFC3339, input)
	if err != nil {
		return 0, err
	}
	if tm.Unix() < 0 {
		return 0, fmt.Errorf("timestamp before unix epoch: %s", input)
	}
	return uint64(tm.Unix()), nil
}

func isNumeric(input string) bool {
	for _, r := range input {
		if r < '0' || r > '9' {
			return false
		}
	}
	return input != ""
}
