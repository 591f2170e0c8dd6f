package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceBar is a fixed-duration VWAP bucket for one pool. Bars are immutable
// once the bucket closes. Synthetic bars carry the previous bucket's close
// through trade-free gaps; they never appear before the first trade.
type PriceBar struct {
	ChainID     uint64          `json:"chain_id"`
	Pool        string          `json:"pool"`
	BucketStart time.Time       `json:"bucket_start"`
	VWAP        decimal.Decimal `json:"vwap"`
	Volume      decimal.Decimal `json:"volume"`
	Trades      int             `json:"trades"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	Synthetic   bool            `json:"synthetic"`
}
