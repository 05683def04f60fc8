package config

import (
	"time"

	"github.com/spf13/pflag"
)

// FetchConfig holds configuration for pulling pool events from an RPC node.
type FetchConfig struct {
	LogLevel     string
	RPCURL       string
	Pool         string
	FromBlock    uint64
	ToBlock      uint64
	BatchSize    uint64
	Out          string
	MetaOut      string
	Checkpoint   string
	PGDSN        string
	Topic0Map    map[string]string
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

// LoadFetch merges config file, environment variables, and flags into FetchConfig.
// With a pg-dsn the checkpoint is kept in Postgres instead of the checkpoint file.
func LoadFetch(cfgFile string, flags *pflag.FlagSet) (FetchConfig, error) {
	v, err := load(cfgFile, flags, map[string]any{
		"batch-size":    uint64(2000),
		"out":           "./data/events.jsonl",
		"meta-out":      "./data/pool.json",
		"checkpoint":    "./data/checkpoint.json",
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"max-backoff":   30 * time.Second,
	})
	if err != nil {
		return FetchConfig{}, err
	}

	return FetchConfig{
		LogLevel:     v.GetString("log-level"),
		RPCURL:       v.GetString("rpc"),
		Pool:         v.GetString("pool"),
		FromBlock:    v.GetUint64("from"),
		ToBlock:      v.GetUint64("to"),
		BatchSize:    v.GetUint64("batch-size"),
		Out:          v.GetString("out"),
		MetaOut:      v.GetString("meta-out"),
		Checkpoint:   v.GetString("checkpoint"),
		PGDSN:        v.GetString("pg-dsn"),
		Topic0Map:    getStringMap(v, "topic0-map"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		MaxBackoff:   v.GetDuration("max-backoff"),
	}, nil
}
