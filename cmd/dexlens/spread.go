package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexlens/internal/config"
	"dexlens/internal/model"
	"dexlens/internal/spread"
	"dexlens/internal/storage"
	"dexlens/internal/storage/postgres"
)

func runSpread(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadSpread(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.InA == "" || cfg.InB == "" {
		return fmt.Errorf("both series inputs are required")
	}
	if cfg.Pair == "" {
		return fmt.Errorf("pair label is required")
	}

	feeBps, err := parseBps("fee-bps-each", cfg.FeeBpsEach)
	if err != nil {
		return err
	}
	bridgeBps, err := parseBps("bridge-bps", cfg.BridgeBps)
	if err != nil {
		return err
	}
	thresholdBps, err := parseBps("thr-bps", cfg.ThresholdBps)
	if err != nil {
		return err
	}

	seriesA, err := loadSeries(cfg.InA, logger)
	if err != nil {
		return err
	}
	seriesB, err := loadSeries(cfg.InB, logger)
	if err != nil {
		return err
	}

	scorer := spread.NewScorer(spread.Config{
		FeeBpsEach:     feeBps,
		BridgeBps:      bridgeBps,
		ThresholdBps:   thresholdBps,
		AlignTolerance: cfg.AlignTolerance,
	}, logger)

	observations, err := scorer.Score(cfg.Pair, seriesA, seriesB)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	for _, obs := range observations {
		if err := writer.Write(obs); err != nil {
			writer.Close()
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	if cfg.CSV != "" {
		if err := storage.WriteSpreadCSV(cfg.CSV, observations); err != nil {
			return err
		}
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.UpsertSpreads(ctx, observations); err != nil {
			return err
		}
	}

	profitable := 0
	for _, obs := range observations {
		if obs.Profitable {
			profitable++
		}
	}

	logger.Info("spread complete",
		zap.String("pair", cfg.Pair),
		zap.Int("bars_a", len(seriesA.Bars)),
		zap.Int("bars_b", len(seriesB.Bars)),
		zap.Int("observations", len(observations)),
		zap.Int("profitable", profitable),
		zap.String("out", cfg.Out),
		zap.String("csv", cfg.CSV),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
	)

	return nil
}

// loadSeries reads a single PriceSeries from a JSONL file. Multiple lines
// for the same pool are merged in order.
func loadSeries(path string, logger *zap.Logger) (*model.PriceSeries, error) {
	var out *model.PriceSeries
	err := storage.ReadJSONL(path, func(s model.PriceSeries) error {
		if out == nil {
			copied := s
			out = &copied
			return nil
		}
		if s.ChainID != out.ChainID || s.Pool != out.Pool {
			return fmt.Errorf("series file %s mixes pools", path)
		}
		out.Bars = append(out.Bars, s.Bars...)
		out.Partial = out.Partial || s.Partial
		return nil
	}, func(line int, err error) {
		logger.Warn("skipping malformed series line", zap.Int("line", line), zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("series file %s is empty", path)
	}
	return out, nil
}
