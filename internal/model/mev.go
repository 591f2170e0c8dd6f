package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PatternKind enumerates detectable MEV patterns.
type PatternKind uint8

const (
	PatternSandwich PatternKind = iota
	PatternArbitrage
	PatternLiquidation
)

func (k PatternKind) String() string {
	switch k {
	case PatternSandwich:
		return "sandwich"
	case PatternArbitrage:
		return "arbitrage"
	case PatternLiquidation:
		return "liquidation"
	default:
		return fmt.Sprintf("PatternKind(%d)", uint8(k))
	}
}

// MarshalText encodes the pattern kind as its name.
func (k PatternKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a pattern kind from its name.
func (k *PatternKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "sandwich":
		*k = PatternSandwich
	case "arbitrage":
		*k = PatternArbitrage
	case "liquidation":
		*k = PatternLiquidation
	default:
		return fmt.Errorf("unknown pattern kind: %s", text)
	}
	return nil
}

// MEVCandidate is one detected MEV pattern instance. TxHashes are ordered by
// role: sandwich (front, victim, back), arbitrage (first leg, second leg),
// liquidation (the seizure tx). Never mutated after creation.
type MEVCandidate struct {
	ChainID        uint64          `json:"chain_id"`
	BlockNumber    uint64          `json:"block_number"`
	Kind           PatternKind     `json:"pattern_kind"`
	Pool           string          `json:"pool"`
	Actor          string          `json:"actor"`
	TxHashes       []string        `json:"tx_hashes"`
	EstProfitQuote decimal.Decimal `json:"estimated_profit_quote"`
	Confidence     float64         `json:"confidence"`
	PriceMoveBps   decimal.Decimal `json:"price_move_bps"`
}
