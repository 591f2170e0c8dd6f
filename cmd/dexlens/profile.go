package main

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dexlens/internal/chain"
	"dexlens/internal/config"
	"dexlens/internal/dex"
	"dexlens/internal/liquidity"
	"dexlens/internal/storage"
)

func runProfile(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadProfile(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.RPCURL == "" {
		return fmt.Errorf("rpc url is required")
	}
	if !common.IsHexAddress(cfg.Pool) {
		return fmt.Errorf("invalid pool address: %s", cfg.Pool)
	}
	if cfg.WordsEachSide <= 0 {
		return fmt.Errorf("words-each-side must be positive")
	}
	pool := common.HexToAddress(cfg.Pool)

	tolerance := big.NewInt(0)
	if cfg.NetTolerance != "" {
		parsed, ok := new(big.Int).SetString(cfg.NetTolerance, 10)
		if !ok {
			return fmt.Errorf("invalid net-tolerance: %s", cfg.NetTolerance)
		}
		tolerance = parsed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	chainID, err := chainClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("chain id: %w", err)
	}

	blockNumber := cfg.Block
	if blockNumber == 0 {
		blockNumber, err = chainClient.LatestBlockNumber(ctx)
		if err != nil {
			return fmt.Errorf("latest block: %w", err)
		}
	}

	state, err := dex.FetchPoolState(ctx, chainClient, pool, blockNumber)
	if err != nil {
		return fmt.Errorf("pool state: %w", err)
	}

	meta, err := dex.FetchPoolMeta(ctx, chainClient, pool, dex.NewTokenMetaCache(), logger)
	if err != nil {
		return fmt.Errorf("pool meta: %w", err)
	}

	words, err := dex.FetchTickWords(ctx, chainClient, pool, state, cfg.WordsEachSide, blockNumber)
	if err != nil {
		return fmt.Errorf("tick words: %w", err)
	}

	logger.Info("profile start",
		zap.Uint64("chain_id", chainID.Uint64()),
		zap.String("pool", pool.Hex()),
		zap.Uint64("block", blockNumber),
		zap.Int32("tick_spacing", state.TickSpacing),
		zap.Int32("current_tick", state.CurrentTick),
		zap.Int("words", len(words)),
	)

	reconstructor := liquidity.NewReconstructor(logger)
	profile, err := reconstructor.Reconstruct(liquidity.Window{
		ChainID:          chainID.Uint64(),
		Pool:             pool.Hex(),
		BlockNumber:      blockNumber,
		TickSpacing:      state.TickSpacing,
		Words:            words,
		CurrentTick:      state.CurrentTick,
		CurrentLiquidity: state.Liquidity,
		DecimalDiff:      meta.DecimalDiff(),
		Lookup:           dex.NewTickLookup(ctx, chainClient, pool, blockNumber),
		NetSumTolerance:  tolerance,
	})
	if err != nil {
		return err
	}

	if err := storage.WriteProfileCSV(cfg.Out, profile); err != nil {
		return err
	}

	logger.Info("profile complete",
		zap.Int("rows", len(profile.Rows)),
		zap.Bool("partial", profile.Partial),
		zap.Bool("warning", profile.Warning != nil),
		zap.String("out", cfg.Out),
	)

	return nil
}
