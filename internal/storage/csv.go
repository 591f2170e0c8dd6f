package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dexlens/internal/model"
)

// WriteProfileCSV writes a reconstructed liquidity profile as CSV rows.
func WriteProfileCSV(path string, profile *model.LiquidityProfile) error {
	return writeCSV(path, []string{
		"tick", "price_t1_per_t0", "liquidity_net", "liquidity_gross", "active_liquidity", "word_index",
	}, len(profile.Rows), func(i int) []string {
		row := profile.Rows[i]
		return []string{
			strconv.FormatInt(int64(row.Tick), 10),
			strconv.FormatFloat(row.PriceT1PerT0, 'g', -1, 64),
			row.LiquidityNet.String(),
			row.LiquidityGross.String(),
			row.ActiveLiquidity.String(),
			strconv.FormatInt(int64(row.WordIndex), 10),
		}
	})
}

// WriteMEVCSV writes detected MEV candidates as CSV rows. Transaction
// hashes are joined with "|" inside one cell. Profit is quote-token
// denominated; the column keeps the reporting name.
func WriteMEVCSV(path string, candidates []model.MEVCandidate) error {
	return writeCSV(path, []string{
		"chain", "block", "pattern_kind", "tx_hashes", "estimated_profit_usd", "confidence",
	}, len(candidates), func(i int) []string {
		cand := candidates[i]
		return []string{
			strconv.FormatUint(cand.ChainID, 10),
			strconv.FormatUint(cand.BlockNumber, 10),
			cand.Kind.String(),
			strings.Join(cand.TxHashes, "|"),
			cand.EstProfitQuote.String(),
			strconv.FormatFloat(cand.Confidence, 'f', 4, 64),
		}
	})
}

// WriteSpreadCSV writes spread observations as CSV rows.
func WriteSpreadCSV(path string, observations []model.SpreadObservation) error {
	return writeCSV(path, []string{
		"pair", "chain_a", "chain_b", "timestamp", "price_a", "price_b", "gross_bps", "net_bps", "profitable",
	}, len(observations), func(i int) []string {
		obs := observations[i]
		return []string{
			obs.Pair,
			strconv.FormatUint(obs.ChainA, 10),
			strconv.FormatUint(obs.ChainB, 10),
			obs.Timestamp.UTC().Format(time.RFC3339),
			obs.PriceA.String(),
			obs.PriceB.String(),
			obs.GrossBps.String(),
			obs.NetBps.String(),
			strconv.FormatBool(obs.Profitable),
		}
	})
}

func writeCSV(path string, header []string, rows int, row func(int) []string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := 0; i < rows; i++ {
		if err := writer.Write(row(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
