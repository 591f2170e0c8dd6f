package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexlens/internal/chain"
	"dexlens/internal/config"
	"dexlens/internal/dex"
	"dexlens/internal/model"
	"dexlens/internal/storage"
)

func runNormalize(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadNormalize(cfgFile, cmd.Flags())
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
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
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
	if cfg.IncludeLiveMeta && chainClient == nil {
		return fmt.Errorf("include-live-meta requires an rpc url")
	}
	if cfg.LookupGas && chainClient == nil {
		return fmt.Errorf("lookup-gas requires an rpc url")
	}
	if chainClient == nil {
		logger.Warn("no rpc url configured, pool token metadata cannot be resolved and swap, mint, and burn logs will land in the errors file")
	}

	poolNormalizer, err := dex.NewV3PoolNormalizer(dex.NormalizerConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}
	lendingNormalizer, err := dex.NewLendingNormalizer(cfg.LendingVersion)
	if err != nil {
		return err
	}
	normalizers := []dex.Normalizer{poolNormalizer, lendingNormalizer}

	normCtx := dex.NormalizeContext{
		Context:         ctx,
		Chain:           chainClient,
		PoolMetaCache:   dex.NewPoolMetaCache(),
		TokenMetaCache:  dex.NewTokenMetaCache(),
		Logger:          logger,
		IncludeLiveMeta: cfg.IncludeLiveMeta,
	}
	if cfg.LookupGas {
		normCtx.GasLookup = chainClient.TransactionGas
	}

	outWriter, err := storage.NewJSONLWriter(cfg.Out, false)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := storage.NewJSONLWriter(cfg.Errors, false)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("normalize start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
		zap.Bool("include_live_meta", cfg.IncludeLiveMeta),
		zap.Bool("lookup_gas", cfg.LookupGas),
		zap.String("lending_version", cfg.LendingVersion),
	)

	var total, normalized, skipped, failed int
	readErr := storage.ReadJSONL(cfg.In, func(record model.LogRecord) error {
		total++

		if len(record.Topics) == 0 {
			failed++
			writeNormalizeError(errWriter, normalizeErrorFromRecord(record, fmt.Errorf("missing topic0")))
			return nil
		}

		var normalizer dex.Normalizer
		for _, n := range normalizers {
			if n.CanNormalize(record.Topics[0]) {
				normalizer = n
				break
			}
		}
		if normalizer == nil {
			skipped++
			return nil
		}

		event, err := normalizer.Normalize(record, normCtx)
		if err != nil {
			failed++
			writeNormalizeError(errWriter, normalizeErrorFromRecord(record, err))
			return nil
		}

		if err := outWriter.Write(event); err != nil {
			return err
		}
		normalized++
		return nil
	}, func(line int, err error) {
		total++
		failed++
		writeNormalizeError(errWriter, model.NormalizeError{Error: err.Error()})
	})
	if readErr != nil {
		return readErr
	}

	logger.Info("normalize complete",
		zap.Int("total", total),
		zap.Int("normalized", normalized),
		zap.Int("skipped", skipped),
		zap.Int("failed", failed),
	)

	return nil
}

func normalizeErrorFromRecord(record model.LogRecord, err error) model.NormalizeError {
	topic0 := ""
	if len(record.Topics) > 0 {
		topic0 = record.Topics[0]
	}

	return model.NormalizeError{
		ChainID:     record.ChainID,
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      topic0,
		Error:       err.Error(),
	}
}

func writeNormalizeError(writer *storage.JSONLWriter, errRecord model.NormalizeError) {
	if writer == nil {
		return
	}
	_ = writer.Write(errRecord)
}
