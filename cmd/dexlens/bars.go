package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexlens/internal/chain"
	"dexlens/internal/config"
	"dexlens/internal/model"
	"dexlens/internal/series"
	"dexlens/internal/storage"
	"dexlens/internal/storage/postgres"
)

func runBars(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadBars(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Pool == "" {
		return fmt.Errorf("pool address is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var chainClient *chain.Client
	if cfg.RPCURL != "" {
		chainClient, err = chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
	}

	pool := strings.ToLower(cfg.Pool)
	events, chainID, err := loadPoolEvents(cfg.In, pool, logger)
	if err != nil {
		return err
	}

	builderCfg := series.Config{Bucket: cfg.Bucket}
	if chainClient != nil {
		builderCfg.BlockTime = func(block uint64) (uint64, bool) {
			ts, err := chainClient.BlockTimestamp(ctx, block)
			if err != nil {
				return 0, false
			}
			return ts, true
		}
	}

	builder := series.NewBuilder(builderCfg, logger)
	priceSeries, err := builder.Build(chainID, pool, events)
	if err != nil {
		return err
	}

	writer, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	if err := writer.Write(priceSeries); err != nil {
		writer.Close()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.UpsertPools(ctx, poolRows(chainID, pool, events)); err != nil {
			return err
		}
		if err := store.UpsertPriceBars(ctx, priceSeries); err != nil {
			return err
		}
	}

	logger.Info("bars complete",
		zap.Uint64("chain_id", chainID),
		zap.String("pool", pool),
		zap.Int("events", len(events)),
		zap.Int("bars", len(priceSeries.Bars)),
		zap.Bool("partial", priceSeries.Partial),
		zap.String("out", cfg.Out),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	return nil
}

// poolRows derives the pool metadata row from the event stream. Events carry
// the same pool meta, so the first one wins; the earliest block seen becomes
// first_seen_block.
func poolRows(chainID uint64, pool string, events []*model.ChainEvent) []model.Pool {
	if len(events) == 0 {
		return nil
	}

	firstSeen := events[0].BlockNumber
	for _, ev := range events[1:] {
		if ev.BlockNumber < firstSeen {
			firstSeen = ev.BlockNumber
		}
	}

	meta := events[0].PoolMeta
	return []model.Pool{{
		ChainID:        chainID,
		Address:        pool,
		Token0:         meta.Token0,
		Token1:         meta.Token1,
		Fee:            meta.Fee,
		TickSpacing:    meta.TickSpacing,
		FirstSeenBlock: firstSeen,
	}}
}

// loadPoolEvents reads normalized events matching one pool. The chain id is
// taken from the first matching event.
func loadPoolEvents(path, pool string, logger *zap.Logger) ([]*model.ChainEvent, uint64, error) {
	var (
		events  []*model.ChainEvent
		chainID uint64
	)

	err := storage.ReadJSONL(path, func(ev model.ChainEvent) error {
		if !strings.EqualFold(ev.Pool, pool) {
			return nil
		}
		if chainID == 0 {
			chainID = ev.ChainID
		}
		copied := ev
		copied.Pool = pool
		events = append(events, &copied)
		return nil
	}, func(line int, err error) {
		logger.Warn("skipping malformed event line", zap.Int("line", line), zap.Error(err))
	})
	if err != nil {
		return nil, 0, err
	}

	return events, chainID, nil
}
