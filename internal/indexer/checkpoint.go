package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Checkpointer persists the last fully processed block of a fetch.
type Checkpointer interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, lastProcessed uint64) error
}

// Checkpoint is the on-disk checkpoint record.
type Checkpoint struct {
	Pool               string `json:"pool"`
	LastProcessedBlock uint64 `json:"last_processed_block"`
	UpdatedAt          string `json:"updated_at"`
}

// CheckpointStore persists checkpoints to a JSON file. A checkpoint written
// for another pool is rejected on load.
type CheckpointStore struct {
	path string
	pool string
}

func NewCheckpointStore(path, pool string) *CheckpointStore {
	return &CheckpointStore{path: path, pool: pool}
}

func (c *CheckpointStore) Load(_ context.Context) (uint64, bool, error) {
	stat, err := os.Stat(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("stat checkpoint: %w", err)
	}
	if stat.IsDir() {
		return 0, false, fmt.Errorf("checkpoint path is a directory")
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		return 0, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return 0, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if cp.Pool != "" && c.pool != "" && !strings.EqualFold(cp.Pool, c.pool) {
		return 0, false, fmt.Errorf("checkpoint %s belongs to pool %s", c.path, cp.Pool)
	}

	return cp.LastProcessedBlock, true, nil
}

func (c *CheckpointStore) Save(_ context.Context, lastProcessed uint64) error {
	dir := filepath.Dir(c.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	cp := Checkpoint{
		Pool:               c.pool,
		LastProcessedBlock: lastProcessed,
		UpdatedAt:          time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}

	return nil
}

// BlockStore is a named last-block store, such as the Postgres fetch_state table.
type BlockStore interface {
	LoadBlock(ctx context.Context, name string) (uint64, bool, error)
	SaveBlock(ctx context.Context, name string, block uint64) error
}

// StateCheckpoint adapts a BlockStore to Checkpointer under a fixed name.
type StateCheckpoint struct {
	store BlockStore
	name  string
}

func NewStateCheckpoint(store BlockStore, name string) *StateCheckpoint {
	return &StateCheckpoint{store: store, name: name}
}

func (s *StateCheckpoint) Load(ctx context.Context) (uint64, bool, error) {
	return s.store.LoadBlock(ctx, s.name)
}

func (s *StateCheckpoint) Save(ctx context.Context, lastProcessed uint64) error {
	return s.store.SaveBlock(ctx, s.name, lastProcessed)
}
