package model

import (
	"math/big"

	"github.com/holiman/uint256"
)

// TickWord is one 256-bit slice of a pool's tick bitmap. Bit p flags an
// initialized tick at tickSpacing * (WordIndex*256 + p).
type TickWord struct {
	Pool      string
	WordIndex int32
	Bitmap    *uint256.Int
}

// InitializedTick is a tick boundary with its liquidity deltas.
type InitializedTick struct {
	Tick           int32    `json:"tick"`
	LiquidityNet   *big.Int `json:"liquidity_net"`
	LiquidityGross *big.Int `json:"liquidity_gross"`
	WordIndex      int32    `json:"word_index"`
}

// ProfileRow is one emitted row of a liquidity profile. ActiveLiquidity is
// the liquidity in range immediately above Tick.
type ProfileRow struct {
	Tick            int32    `json:"tick"`
	PriceT1PerT0    float64  `json:"price_t1_per_t0"`
	LiquidityNet    *big.Int `json:"liquidity_net"`
	LiquidityGross  *big.Int `json:"liquidity_gross"`
	ActiveLiquidity *big.Int `json:"active_liquidity"`
	WordIndex       int32    `json:"word_index"`
}

// LiquidityProfile is the reconstructed concentrated-liquidity curve for a
// pool at a given block. Rows are ordered by ascending tick; active liquidity
// is piecewise constant between consecutive rows. Partial marks profiles with
// skipped tick lookups; Warning carries a failed net-sum invariant check.
// Active liquidity outside the scanned word window is not reconstructed.
type LiquidityProfile struct {
	ChainID     uint64            `json:"chain_id"`
	Pool        string            `json:"pool"`
	BlockNumber uint64            `json:"block_number"`
	TickSpacing int32             `json:"tick_spacing"`
	CurrentTick int32             `json:"current_tick"`
	Rows        []ProfileRow      `json:"rows"`
	Partial     bool              `json:"partial"`
	Warning     *InvariantWarning `json:"warning,omitempty"`
}
