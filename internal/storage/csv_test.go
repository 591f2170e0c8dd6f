package storage

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"dexlens/internal/model"
)

func TestWriteMEVCSVColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mev.csv")
	candidates := []model.MEVCandidate{{
		ChainID:        1,
		BlockNumber:    20000000,
		Kind:           model.PatternSandwich,
		TxHashes:       []string{"0xa", "0xb", "0xc"},
		EstProfitQuote: decimal.RequireFromString("12.5"),
		Confidence:     0.8,
	}}
	if err := WriteMEVCSV(path, candidates); err != nil {
		t.Fatalf("write: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count: %d", len(records))
	}
	if got := records[0][4]; got != "estimated_profit_usd" {
		t.Fatalf("profit column: %q", got)
	}
	if got := records[1]; got[2] != "sandwich" || got[3] != "0xa|0xb|0xc" || got[4] != "12.5" {
		t.Fatalf("row: %v", got)
	}
}
