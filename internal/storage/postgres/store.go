package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ChiShengChen/katana-amm-backtest/internal/model"
)

// Schema creates the tables used by Store.
const Schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id      UUID PRIMARY KEY,
	mode        TEXT NOT NULL,
	input       TEXT NOT NULL,
	params      JSONB,
	start_ts    BIGINT NOT NULL,
	end_ts      BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS backtest_values (
	run_id    UUID NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
	series    TEXT NOT NULL,
	ts        BIGINT NOT NULL,
	value     DOUBLE PRECISION NOT NULL,
	PRIMARY KEY (run_id, series, ts)
);
CREATE TABLE IF NOT EXISTS backtest_metrics (
	run_id                 UUID NOT NULL REFERENCES backtest_runs(run_id) ON DELETE CASCADE,
	name                   TEXT NOT NULL,
	kind                   TEXT NOT NULL,
	initial_value          DOUBLE PRECISION NOT NULL,
	final_value            DOUBLE PRECISION NOT NULL,
	total_return_pct       DOUBLE PRECISION NOT NULL,
	annualized_return_pct  DOUBLE PRECISION NOT NULL,
	max_drawdown_pct       DOUBLE PRECISION NOT NULL,
	sharpe_ratio           DOUBLE PRECISION NOT NULL,
	volatility_pct         DOUBLE PRECISION NOT NULL,
	fees_earned            DOUBLE PRECISION NOT NULL,
	net_fees_earned        DOUBLE PRECISION NOT NULL,
	impermanent_loss_pct   DOUBLE PRECISION NOT NULL,
	rebalance_count        INTEGER NOT NULL,
	gas_cost               DOUBLE PRECISION NOT NULL,
	swap_cost              DOUBLE PRECISION NOT NULL,
	time_in_range_pct      DOUBLE PRECISION NOT NULL,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, name)
);
CREATE TABLE IF NOT EXISTS pool_window_metrics (
	pool_address         TEXT NOT NULL,
	window_size_seconds  BIGINT NOT NULL,
	window_start_ts      TIMESTAMPTZ NOT NULL,
	window_end_ts        TIMESTAMPTZ NOT NULL,
	swap_count           BIGINT NOT NULL,
	mint_count           BIGINT NOT NULL,
	burn_count           BIGINT NOT NULL,
	volume0              NUMERIC NOT NULL,
	volume1              NUMERIC NOT NULL,
	fee0                 NUMERIC NOT NULL,
	fee1                 NUMERIC NOT NULL,
	fee_method           TEXT NOT NULL,
	updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pool_address, window_size_seconds, window_start_ts)
);
CREATE TABLE IF NOT EXISTS fetch_state (
	name                  TEXT PRIMARY KEY,
	last_processed_block  BIGINT NOT NULL,
	updated_at            TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for backtest runs and pool statistics.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate creates missing tables.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// CreateRun inserts a run and returns its ID. A run without an ID gets a new UUID.
func (s *Store) CreateRun(ctx context.Context, run model.RunRecord) (uuid.UUID, error) {
	id := uuid.New()
	if run.ID != "" {
		parsed, err := uuid.Parse(run.ID)
		if err != nil {
			return uuid.Nil, fmt.Errorf("run id: %w", err)
		}
		id = parsed
	}
	params, err := json.Marshal(run.Params)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal params: %w", err)
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (run_id, mode, input, params, start_ts, end_ts, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, string(run.Mode), run.Input, params, int64(run.StartTime), int64(run.EndTime), createdAt)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// InsertValuePoints stores one named value series of a run.
func (s *Store) InsertValuePoints(ctx context.Context, runID uuid.UUID, series string, points []model.ValuePoint) error {
	if len(points) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO backtest_values (run_id, series, ts, value)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (run_id, series, ts) DO UPDATE SET value = EXCLUDED.value
		`, runID, series, int64(p.Timestamp), p.Value)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range points {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertResults inserts or updates per-strategy metrics of a run.
func (s *Store) UpsertResults(ctx context.Context, runID uuid.UUID, results []model.StrategyResult) error {
	if len(results) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range results {
		batch.Queue(`
			INSERT INTO backtest_metrics (
				run_id, name, kind, initial_value, final_value, total_return_pct, annualized_return_pct,
				max_drawdown_pct, sharpe_ratio, volatility_pct, fees_earned, net_fees_earned,
				impermanent_loss_pct, rebalance_count, gas_cost, swap_cost, time_in_range_pct, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,now())
			ON CONFLICT (run_id, name)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				initial_value = EXCLUDED.initial_value,
				final_value = EXCLUDED.final_value,
				total_return_pct = EXCLUDED.total_return_pct,
				annualized_return_pct = EXCLUDED.annualized_return_pct,
				max_drawdown_pct = EXCLUDED.max_drawdown_pct,
				sharpe_ratio = EXCLUDED.sharpe_ratio,
				volatility_pct = EXCLUDED.volatility_pct,
				fees_earned = EXCLUDED.fees_earned,
				net_fees_earned = EXCLUDED.net_fees_earned,
				impermanent_loss_pct = EXCLUDED.impermanent_loss_pct,
				rebalance_count = EXCLUDED.rebalance_count,
				gas_cost = EXCLUDED.gas_cost,
				swap_cost = EXCLUDED.swap_cost,
				time_in_range_pct = EXCLUDED.time_in_range_pct,
				updated_at = now()
		`,
			runID,
			r.Name,
			r.Kind,
			r.InitialValue,
			r.FinalValue,
			r.TotalReturnPct,
			r.AnnualizedReturnPct,
			r.MaxDrawdownPct,
			r.SharpeRatio,
			r.VolatilityPct,
			r.TotalFeesEarned,
			r.NetFeesEarned,
			r.ImpermanentLossPct,
			r.RebalanceCount,
			r.TotalGasCost,
			r.TotalSwapCost,
			r.TimeInRangePct,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range results {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// UpsertEngineMetrics stores the metrics of a direct replay under name.
func (s *Store) UpsertEngineMetrics(ctx context.Context, runID uuid.UUID, name string, m model.Metrics) error {
	return s.UpsertResults(ctx, runID, []model.StrategyResult{{
		Name:                name,
		Kind:                string(model.RunModeEngine),
		InitialValue:        m.InitialValue,
		FinalValue:          m.FinalValue,
		TotalReturnPct:      m.TotalReturnPct,
		AnnualizedReturnPct: m.AnnualizedReturnPct,
		MaxDrawdownPct:      m.MaxDrawdownPct,
		SharpeRatio:         m.SharpeRatio,
		VolatilityPct:       m.VolatilityPct,
		TotalFeesEarned:     m.TotalFeesEarned,
		NetFeesEarned:       m.TotalFeesEarned,
		ImpermanentLossPct:  m.ImpermanentLossPct,
		RebalanceCount:      m.NumRebalances,
	}})
}

// UpsertWindowMetrics inserts or updates window metrics of a pool.
func (s *Store) UpsertWindowMetrics(ctx context.Context, poolAddress string, metrics []model.WindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				pool_address, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, mint_count, burn_count, volume0, volume1, fee0, fee1, fee_method, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
			ON CONFLICT (pool_address, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				mint_count = EXCLUDED.mint_count,
				burn_count = EXCLUDED.burn_count,
				volume0 = EXCLUDED.volume0,
				volume1 = EXCLUDED.volume1,
				fee0 = EXCLUDED.fee0,
				fee1 = EXCLUDED.fee1,
				fee_method = EXCLUDED.fee_method,
				updated_at = now()
		`,
			poolAddress,
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			int64(m.MintCount),
			int64(m.BurnCount),
			m.Volume0,
			m.Volume1,
			m.Fee0,
			m.Fee1,
			m.FeeMethod,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range metrics {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadBlock returns the last processed block stored under name.
func (s *Store) LoadBlock(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM fetch_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveBlock upserts the last processed block for name.
func (s *Store) SaveBlock(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO fetch_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
