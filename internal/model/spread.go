package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpreadObservation is one cost-netted cross-chain/cross-pool price
// comparison window. A positive NetBps means leg A is rich: buy on B, sell
// on A; negative is the reverse.
type SpreadObservation struct {
	Pair       string          `json:"pair"`
	ChainA     uint64          `json:"chain_a"`
	PoolA      string          `json:"pool_a"`
	ChainB     uint64          `json:"chain_b"`
	PoolB      string          `json:"pool_b"`
	Timestamp  time.Time       `json:"timestamp"`
	PriceA     decimal.Decimal `json:"price_a"`
	PriceB     decimal.Decimal `json:"price_b"`
	GrossBps   decimal.Decimal `json:"gross_bps"`
	NetBps     decimal.Decimal `json:"net_bps"`
	Profitable bool            `json:"profitable"`
	Direction  string          `json:"direction"`
}
