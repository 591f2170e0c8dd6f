package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dexlens/internal/aggregate"
	"dexlens/internal/model"
)

// Store provides Postgres persistence for derived analytics.
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

// UpsertPools inserts or updates pool metadata.
func (s *Store) UpsertPools(ctx context.Context, pools []model.Pool) error {
	if len(pools) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, pool := range pools {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_address, token0, token1, fee, tick_spacing, first_seen_block, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
			ON CONFLICT (chain_id, pool_address)
			DO UPDATE SET
				token0 = EXCLUDED.token0,
				token1 = EXCLUDED.token1,
				fee = EXCLUDED.fee,
				tick_spacing = EXCLUDED.tick_spacing,
				first_seen_block = LEAST(pools.first_seen_block, EXCLUDED.first_seen_block),
				updated_at = now()
		`,
			int64(pool.ChainID),
			pool.Address,
			pool.Token0,
			pool.Token1,
			pool.Fee,
			pool.TickSpacing,
			int64(pool.FirstSeenBlock),
		)
	}
	return s.flushBatch(ctx, batch, len(pools))
}

// UpsertPriceBars inserts or updates VWAP bars for one pool series.
func (s *Store) UpsertPriceBars(ctx context.Context, series *model.PriceSeries) error {
	if series == nil || len(series.Bars) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, bar := range series.Bars {
		batch.Queue(`
			INSERT INTO price_bars (
				chain_id, pool_address, bucket_start, vwap, volume, trades,
				min_price, max_price, synthetic, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
			ON CONFLICT (chain_id, pool_address, bucket_start)
			DO UPDATE SET
				vwap = EXCLUDED.vwap,
				volume = EXCLUDED.volume,
				trades = EXCLUDED.trades,
				min_price = EXCLUDED.min_price,
				max_price = EXCLUDED.max_price,
				synthetic = EXCLUDED.synthetic,
				updated_at = now()
		`,
			int64(bar.ChainID),
			bar.Pool,
			bar.BucketStart,
			bar.VWAP.String(),
			bar.Volume.String(),
			bar.Trades,
			bar.MinPrice.String(),
			bar.MaxPrice.String(),
			bar.Synthetic,
		)
	}
	return s.flushBatch(ctx, batch, len(series.Bars))
}

// UpsertMEVCandidates inserts detected candidates, keyed by the front
// transaction so a rescan refreshes rather than duplicates.
func (s *Store) UpsertMEVCandidates(ctx context.Context, candidates []model.MEVCandidate) error {
	if len(candidates) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, cand := range candidates {
		batch.Queue(`
			INSERT INTO mev_candidates (
				chain_id, block_number, pattern_kind, pool_address, actor,
				tx_hashes, est_profit_quote, confidence, price_move_bps, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,now(),now())
			ON CONFLICT (chain_id, pattern_kind, tx_hashes)
			DO UPDATE SET
				block_number = EXCLUDED.block_number,
				pool_address = EXCLUDED.pool_address,
				actor = EXCLUDED.actor,
				tx_hashes = EXCLUDED.tx_hashes,
				est_profit_quote = EXCLUDED.est_profit_quote,
				confidence = EXCLUDED.confidence,
				price_move_bps = EXCLUDED.price_move_bps,
				updated_at = now()
		`,
			int64(cand.ChainID),
			int64(cand.BlockNumber),
			cand.Kind.String(),
			cand.Pool,
			cand.Actor,
			cand.TxHashes,
			cand.EstProfitQuote.String(),
			cand.Confidence,
			cand.PriceMoveBps.String(),
		)
	}
	return s.flushBatch(ctx, batch, len(candidates))
}

// UpsertSpreads inserts or updates spread observations.
func (s *Store) UpsertSpreads(ctx context.Context, observations []model.SpreadObservation) error {
	if len(observations) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, obs := range observations {
		batch.Queue(`
			INSERT INTO spread_observations (
				pair, chain_a, pool_a, chain_b, pool_b, observed_at,
				price_a, price_b, gross_bps, net_bps, profitable, direction, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now(),now())
			ON CONFLICT (pair, chain_a, chain_b, observed_at)
			DO UPDATE SET
				price_a = EXCLUDED.price_a,
				price_b = EXCLUDED.price_b,
				gross_bps = EXCLUDED.gross_bps,
				net_bps = EXCLUDED.net_bps,
				profitable = EXCLUDED.profitable,
				direction = EXCLUDED.direction,
				updated_at = now()
		`,
			obs.Pair,
			int64(obs.ChainA),
			obs.PoolA,
			int64(obs.ChainB),
			obs.PoolB,
			obs.Timestamp,
			obs.PriceA.String(),
			obs.PriceB.String(),
			obs.GrossBps.String(),
			obs.NetBps.String(),
			obs.Profitable,
			obs.Direction,
		)
	}
	return s.flushBatch(ctx, batch, len(observations))
}

// UpsertChainSummaries stores aggregated per-chain metrics for a window.
func (s *Store) UpsertChainSummaries(ctx context.Context, windowLabel string, rows []aggregate.ChainSummary) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(`
			INSERT INTO chain_summaries (
				window_label, chain_id, swap_count, mint_count, burn_count, liquidation_count,
				volume_quote, gas_spent_wei, sandwich_count, arbitrage_count, mev_profit_quote,
				mev_share_bps, spread_windows, profitable_spreads, created_at, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,now(),now())
			ON CONFLICT (window_label, chain_id)
			DO UPDATE SET
				swap_count = EXCLUDED.swap_count,
				mint_count = EXCLUDED.mint_count,
				burn_count = EXCLUDED.burn_count,
				liquidation_count = EXCLUDED.liquidation_count,
				volume_quote = EXCLUDED.volume_quote,
				gas_spent_wei = EXCLUDED.gas_spent_wei,
				sandwich_count = EXCLUDED.sandwich_count,
				arbitrage_count = EXCLUDED.arbitrage_count,
				mev_profit_quote = EXCLUDED.mev_profit_quote,
				mev_share_bps = EXCLUDED.mev_share_bps,
				spread_windows = EXCLUDED.spread_windows,
				profitable_spreads = EXCLUDED.profitable_spreads,
				updated_at = now()
		`,
			windowLabel,
			int64(row.ChainID),
			int64(row.SwapCount),
			int64(row.MintCount),
			int64(row.BurnCount),
			int64(row.LiquidationCount),
			row.VolumeQuote.String(),
			row.GasSpentWei.String(),
			int64(row.SandwichCount),
			int64(row.ArbitrageCount),
			row.MEVProfitQuote.String(),
			row.MEVShareBps().String(),
			int64(row.SpreadWindows),
			int64(row.ProfitableSpread),
		)
	}
	return s.flushBatch(ctx, batch, len(rows))
}

// LoadState returns last_processed_block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block uint64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM pipeline_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return block, true, nil
}

// SaveState upserts last_processed_block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, block)
	return err
}

func (s *Store) flushBatch(ctx context.Context, batch *pgx.Batch, queued int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < queued; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}
