package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// StatsConfig holds configuration for event statistics.
type StatsConfig struct {
	Common
	Pool        PoolParams
	Window      Window
	PoolAddress string
	Out         string
	PGDSN       string
	// Windows lists the aggregation window sizes, e.g. 5m,1h.
	Windows []string
}

// LoadStats merges config file, environment variables, and flags into StatsConfig.
func LoadStats(cfgFile string, flags *pflag.FlagSet) (StatsConfig, error) {
	v, err := load(cfgFile, flags, poolDefaults(map[string]any{
		"windows": "1h",
	}))
	if err != nil {
		return StatsConfig{}, err
	}

	return StatsConfig{
		Common:      readCommon(v),
		Pool:        readPool(v),
		Window:      readWindow(v),
		PoolAddress: v.GetString("pool"),
		Out:         v.GetString("out"),
		PGDSN:       v.GetString("pg-dsn"),
		Windows:     getStringSlice(v, "windows"),
	}, nil
}

// WindowSeconds parses the aggregation window sizes.
func (c StatsConfig) WindowSeconds() ([]uint64, error) {
	out := make([]uint64, 0, len(c.Windows))
	for _, w := range c.Windows {
		d, err := time.ParseDuration(w)
		if err != nil {
			return nil, fmt.Errorf("invalid window %q: %w", w, err)
		}
		secs := uint64(d / time.Second)
		if d <= 0 || secs == 0 {
			return nil, fmt.Errorf("window %q must be at least 1s", w)
		}
		out = append(out, secs)
	}
	return out, nil
}
