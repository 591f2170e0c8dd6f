// Package mev classifies MEV patterns over ordered swap streams. Detection
// is deterministic: identical inputs always produce identical candidates.
package mev

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexlens/internal/model"
)

// Config holds detector thresholds. Reversion tolerance and the arbitrage
// window have no universally correct values; they are operator-set.
type Config struct {
	// MinMoveBps is the minimum price movement, in basis points, for a
	// sandwich victim or an arbitrage pair to be flagged.
	MinMoveBps decimal.Decimal
	// ReversionTolBps bounds how far the post-back-run price may sit from
	// the pre-front-run price for a sandwich match.
	ReversionTolBps decimal.Decimal
	// ArbWindowBlocks is the cross-block span searched for arbitrage legs
	// on the same chain.
	ArbWindowBlocks uint64
	// ArbWindow bounds the wall-clock gap between arbitrage legs on
	// different chains, where block heights are not comparable. Legs
	// without timestamps never pair across chains.
	ArbWindow time.Duration
	// LiqSpanBlocks bounds the liquidation scan to the trailing span of the
	// stream's blocks. Zero scans everything.
	LiqSpanBlocks uint64
	// CollateralPrice and DebtPrice value liquidation amounts in the quote
	// currency; PenaltyBps is the protocol's liquidation penalty.
	CollateralPrice decimal.Decimal
	DebtPrice       decimal.Decimal
	PenaltyBps      decimal.Decimal
}

// Detector scans normalized event streams for MEV signatures.
type Detector struct {
	cfg    Config
	logger *zap.Logger
}

func NewDetector(cfg Config, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinMoveBps.Sign() <= 0 {
		cfg.MinMoveBps = decimal.NewFromInt(10)
	}
	if cfg.ReversionTolBps.Sign() <= 0 {
		cfg.ReversionTolBps = decimal.NewFromInt(10)
	}
	if cfg.ArbWindowBlocks == 0 {
		cfg.ArbWindowBlocks = 1
	}
	if cfg.ArbWindow <= 0 {
		cfg.ArbWindow = time.Minute
	}
	return &Detector{cfg: cfg, logger: logger}
}

// Detect runs every pattern scan over the event batch and returns candidates
// ordered by (block, pattern, front transaction). Fewer events than a
// pattern needs is not an error, just no matches.
func (d *Detector) Detect(events []*model.ChainEvent) []model.MEVCandidate {
	swaps := make([]*model.ChainEvent, 0, len(events))
	liquidations := make([]*model.ChainEvent, 0)
	for _, ev := range events {
		switch ev.Kind {
		case model.KindSwap:
			if ev.Swap != nil {
				swaps = append(swaps, ev)
			}
		case model.KindLiquidation:
			if ev.Liquidation != nil {
				liquidations = append(liquidations, ev)
			}
		}
	}

	sortStream(swaps)

	candidates := d.detectSandwiches(swaps)
	candidates = append(candidates, d.detectArbitrage(swaps)...)
	candidates = append(candidates, d.detectLiquidations(liquidations)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].BlockNumber != candidates[j].BlockNumber {
			return candidates[i].BlockNumber < candidates[j].BlockNumber
		}
		if candidates[i].Kind != candidates[j].Kind {
			return candidates[i].Kind < candidates[j].Kind
		}
		return candidates[i].TxHashes[0] < candidates[j].TxHashes[0]
	})
	return candidates
}

func sortStream(events []*model.ChainEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Before(events[j])
	})
}

// direction reports the trade direction from the trader's side: +1 buys
// token0 from the pool, -1 sells token0 into it, 0 is degenerate.
func direction(swap *model.SwapPayload) int {
	if swap.Amount0.Sign() < 0 && swap.Amount1.Sign() > 0 {
		return 1
	}
	if swap.Amount0.Sign() > 0 && swap.Amount1.Sign() < 0 {
		return -1
	}
	return 0
}

// execPrice is the trade-implied execution price (token1 per token0).
func execPrice(swap *model.SwapPayload) decimal.Decimal {
	if swap.Amount0.IsZero() || swap.Amount1.IsZero() {
		return decimal.Zero
	}
	return swap.Amount1.Abs().Div(swap.Amount0.Abs())
}

// moveBps is the relative distance of a from b in basis points.
func moveBps(a, b decimal.Decimal) decimal.Decimal {
	if a.Sign() <= 0 || b.Sign() <= 0 {
		return decimal.Zero
	}
	return a.Sub(b).Div(b).Mul(decimal.NewFromInt(10000)).Abs()
}

var weiPerEth = decimal.New(1, 18)

// gasQuote prices a swap's gas spend in the quote currency, converting
// through the supplied token1-per-token0 price. The gas token is assumed to
// be the pair's base token; callers pass zero gas fields otherwise.
func gasQuote(swap *model.SwapPayload, price decimal.Decimal) decimal.Decimal {
	if swap.GasUsed == 0 || swap.GasPriceWei == "" || price.Sign() <= 0 {
		return decimal.Zero
	}
	gasPrice, err := decimal.NewFromString(swap.GasPriceWei)
	if err != nil || gasPrice.Sign() <= 0 {
		return decimal.Zero
	}
	spentWei := gasPrice.Mul(decimal.NewFromInt(int64(swap.GasUsed)))
	return spentWei.Div(weiPerEth).Mul(price)
}

func clamp01(v decimal.Decimal) float64 {
	f, _ := v.Float64()
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
