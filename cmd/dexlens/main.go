package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "dexlens",
		Short:        "DEX liquidity, MEV and spread analytics",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	fetchCmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch raw logs from the chain",
		RunE:  runFetch,
	}

	fetchCmd.Flags().String("rpc", "", "chain RPC URL")
	fetchCmd.Flags().Uint64("from", 0, "start block (inclusive)")
	fetchCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	fetchCmd.Flags().StringSlice("address", nil, "contract addresses (comma-separated)")
	fetchCmd.Flags().StringSlice("topic0", nil, "topic0 signatures (comma-separated, defaults to known events)")
	fetchCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	fetchCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	fetchCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	fetchCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	fetchCmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	fetchCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	fetchCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(fetchCmd)

	normalizeCmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize raw logs into typed events",
		RunE:  runNormalize,
	}

	normalizeCmd.Flags().String("rpc", "", "chain RPC URL (required to resolve pool token metadata for swap, mint, and burn logs; liquidation logs normalize without it)")
	normalizeCmd.Flags().String("in", "", "input raw logs JSONL")
	normalizeCmd.Flags().String("out", "./data/events.jsonl", "output events JSONL")
	normalizeCmd.Flags().String("errors", "./data/normalize_errors.jsonl", "normalize errors JSONL")
	normalizeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	normalizeCmd.Flags().Bool("include-live-meta", false, "include optional slot0/liquidity (requires archive RPC for historical accuracy)")
	normalizeCmd.Flags().Bool("lookup-gas", false, "resolve per-swap gas via transaction receipts")
	normalizeCmd.Flags().String("lending-version", "v3", "lending protocol version tag (v2, v3)")
	normalizeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(normalizeCmd)

	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Reconstruct a pool's liquidity profile at a block",
		RunE:  runProfile,
	}

	profileCmd.Flags().String("rpc", "", "chain RPC URL")
	profileCmd.Flags().String("pool", "", "pool address")
	profileCmd.Flags().Uint64("block", 0, "block number, 0 means latest")
	profileCmd.Flags().Int("words-each-side", 10, "bitmap words scanned on each side of the current tick")
	profileCmd.Flags().String("net-tolerance", "0", "residual tolerance for the net-liquidity sum check")
	profileCmd.Flags().String("out", "./data/profile.csv", "output CSV path")
	profileCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(profileCmd)

	barsCmd := &cobra.Command{
		Use:   "bars",
		Short: "Build VWAP price bars from normalized events",
		RunE:  runBars,
	}

	barsCmd.Flags().String("rpc", "", "chain RPC URL (optional, backfills missing timestamps)")
	barsCmd.Flags().String("in", "", "input events JSONL")
	barsCmd.Flags().String("pool", "", "pool address")
	barsCmd.Flags().Duration("bucket", time.Minute, "bar bucket width")
	barsCmd.Flags().String("out", "./data/bars.jsonl", "output series JSONL")
	barsCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for bar upserts")
	barsCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(barsCmd)

	mevCmd := &cobra.Command{
		Use:   "mev",
		Short: "Detect MEV patterns in normalized events",
		RunE:  runMEV,
	}

	mevCmd.Flags().String("in", "", "input events JSONL")
	mevCmd.Flags().String("mev-min-bp", "10", "minimum victim price move in basis points")
	mevCmd.Flags().String("reversion-tol-bps", "10", "sandwich price reversion tolerance in basis points")
	mevCmd.Flags().Uint64("arb-window-blocks", 1, "block window for same-chain arbitrage leg pairing")
	mevCmd.Flags().Duration("arb-window", time.Minute, "wall-clock window for cross-chain arbitrage leg pairing")
	mevCmd.Flags().Uint64("liq-span", 0, "trailing block span scanned for liquidations, 0 means all")
	mevCmd.Flags().String("penalty-bps", "0", "lending liquidation penalty in basis points")
	mevCmd.Flags().String("out", "./data/mev.jsonl", "output candidates JSONL")
	mevCmd.Flags().String("csv", "", "optional candidates CSV path")
	mevCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for candidate upserts")
	mevCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(mevCmd)

	spreadCmd := &cobra.Command{
		Use:   "spread",
		Short: "Score cost-netted spreads between two price series",
		RunE:  runSpread,
	}

	spreadCmd.Flags().String("in-a", "", "leg A series JSONL")
	spreadCmd.Flags().String("in-b", "", "leg B series JSONL")
	spreadCmd.Flags().String("pair", "", "pair label (e.g. WETH/USDC)")
	spreadCmd.Flags().String("fee-bps-each", "5", "swap fee per leg in basis points")
	spreadCmd.Flags().String("bridge-bps", "10", "bridge cost in basis points")
	spreadCmd.Flags().String("thr-bps", "30", "profitability threshold in basis points")
	spreadCmd.Flags().Duration("align-tolerance", 30*time.Second, "bucket alignment tolerance")
	spreadCmd.Flags().String("out", "./data/spreads.jsonl", "output observations JSONL")
	spreadCmd.Flags().String("csv", "", "optional observations CSV path")
	spreadCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for spread upserts")
	spreadCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(spreadCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Aggregate per-chain metrics from pipeline outputs",
		RunE:  runReport,
	}

	reportCmd.Flags().String("events", "", "events JSONL path")
	reportCmd.Flags().String("mev", "", "MEV candidates JSONL path")
	reportCmd.Flags().String("spreads", "", "spread observations JSONL path")
	reportCmd.Flags().String("window-label", "all", "summary window label")
	reportCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for summary upserts")
	reportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(reportCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
