package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexlens/internal/aggregate"
	"dexlens/internal/config"
	"dexlens/internal/model"
	"dexlens/internal/storage"
	"dexlens/internal/storage/postgres"
)

func runReport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadReport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Events == "" && cfg.MEV == "" && cfg.Spreads == "" {
		return fmt.Errorf("at least one input is required")
	}

	summary := aggregate.NewSummary()

	if cfg.Events != "" {
		err := storage.ReadJSONL(cfg.Events, func(ev model.ChainEvent) error {
			summary.AddEvent(&ev)
			return nil
		}, func(line int, err error) {
			logger.Warn("skipping malformed event line", zap.Int("line", line), zap.Error(err))
		})
		if err != nil {
			return err
		}
	}

	if cfg.MEV != "" {
		err := storage.ReadJSONL(cfg.MEV, func(cand model.MEVCandidate) error {
			summary.AddCandidate(cand)
			return nil
		}, func(line int, err error) {
			logger.Warn("skipping malformed candidate line", zap.Int("line", line), zap.Error(err))
		})
		if err != nil {
			return err
		}
	}

	if cfg.Spreads != "" {
		err := storage.ReadJSONL(cfg.Spreads, func(obs model.SpreadObservation) error {
			summary.AddSpread(obs)
			return nil
		}, func(line int, err error) {
			logger.Warn("skipping malformed spread line", zap.Int("line", line), zap.Error(err))
		})
		if err != nil {
			return err
		}
	}

	rows := summary.Rows()

	for _, row := range rows {
		topActor, topProfit := row.TopActor()
		logger.Info("chain summary",
			zap.Uint64("chain_id", row.ChainID),
			zap.Uint64("swaps", row.SwapCount),
			zap.Uint64("mints", row.MintCount),
			zap.Uint64("burns", row.BurnCount),
			zap.Uint64("liquidations", row.LiquidationCount),
			zap.String("volume_quote", row.VolumeQuote.String()),
			zap.String("gas_spent_wei", row.GasSpentWei.String()),
			zap.Uint64("sandwiches", row.SandwichCount),
			zap.Uint64("arbitrages", row.ArbitrageCount),
			zap.String("mev_profit_quote", row.MEVProfitQuote.String()),
			zap.String("mev_share_bps", row.MEVShareBps().String()),
			zap.String("top_actor", topActor),
			zap.String("top_actor_profit", topProfit.String()),
			zap.Uint64("spread_windows", row.SpreadWindows),
			zap.String("profitable_spread_pct", row.ProfitableSpreadPct().String()),
		)
	}

	if cfg.PGDSN != "" {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.UpsertChainSummaries(ctx, cfg.WindowLabel, rows); err != nil {
			return err
		}
	}

	logger.Info("report complete",
		zap.String("window_label", cfg.WindowLabel),
		zap.Int("chains", len(rows)),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	return nil
}
