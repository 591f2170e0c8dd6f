package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexlens/internal/config"
	"dexlens/internal/mev"
	"dexlens/internal/model"
	"dexlens/internal/storage"
	"dexlens/internal/storage/postgres"
)

func runMEV(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadMEV(cfgFile, cmd.Flags())
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

	minMove, err := parseBps("mev-min-bp", cfg.MinMoveBps)
	if err != nil {
		return err
	}
	reversionTol, err := parseBps("reversion-tol-bps", cfg.ReversionTolBps)
	if err != nil {
		return err
	}
	penalty, err := parseBps("penalty-bps", cfg.PenaltyBps)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var events []*model.ChainEvent
	readErr := storage.ReadJSONL(cfg.In, func(ev model.ChainEvent) error {
		copied := ev
		events = append(events, &copied)
		return nil
	}, func(line int, err error) {
		logger.Warn("skipping malformed event line", zap.Int("line", line), zap.Error(err))
	})
	if readErr != nil {
		return readErr
	}

	detector := mev.NewDetector(mev.Config{
		MinMoveBps:      minMove,
		ReversionTolBps: reversionTol,
		ArbWindowBlocks: cfg.ArbWindowBlocks,
		ArbWindow:       cfg.ArbWindow,
		LiqSpanBlocks:   cfg.LiqSpan,
		PenaltyBps:      penalty,
	}, logger)

	candidates := detector.Detect(events)

	writer, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	for _, cand := range candidates {
		if err := writer.Write(cand); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	if cfg.CSV != "" {
		if err := storage.WriteMEVCSV(cfg.CSV, candidates); err != nil {
			return err
		}
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.UpsertMEVCandidates(ctx, candidates); err != nil {
			return err
		}
	}

	logger.Info("mev complete",
		zap.Int("events", len(events)),
		zap.Int("candidates", len(candidates)),
		zap.String("out", cfg.Out),
		zap.String("csv", cfg.CSV),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	return nil
}

func parseBps(name, value string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Sign() < 0 {
		return decimal.Zero, fmt.Errorf("%s must not be negative", name)
	}
	return parsed, nil
}
