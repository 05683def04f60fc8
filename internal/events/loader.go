package events

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

// LoadStats counts what happened to each input line.
type LoadStats struct {
	Total   int
	Decoded int
	Failed  int
}

// Load reads a JSONL event file. Malformed lines are skipped and counted.
func Load(path string, logger *zap.Logger) ([]model.PoolEvent, LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, LoadStats{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return Read(file, logger)
}

func Read(r io.Reader, logger *zap.Logger) ([]model.PoolEvent, LoadStats, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var stats LoadStats
	events := make([]model.PoolEvent, 0, 1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var event model.PoolEvent
		if err := json.Unmarshal(line, &event); err != nil {
			stats.Failed++
			logger.Warn("decode event", zap.Int("line", stats.Total), zap.Error(err))
			continue
		}
		switch event.EventType {
		case model.EventSwap, model.EventMint, model.EventBurn:
		default:
			stats.Failed++
			logger.Warn("unknown event type", zap.Int("line", stats.Total), zap.String("event", string(event.EventType)))
			continue
		}
		events = append(events, event)
		stats.Decoded++
	}
	if err := scanner.Err(); err != nil {
		return events, stats, fmt.Errorf("scan input: %w", err)
	}
	return events, stats, nil
}
