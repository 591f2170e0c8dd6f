package mev

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dexlens/internal/model"
)

// detectArbitrage pairs swaps by the same actor across different pools or
// chains: same-chain legs inside the configured block window, cross-chain
// legs inside the wall-clock window. A pair qualifies when the price
// gap between the two legs clears the minimum move and the legs point the
// right way: buy the cheap leg, sell the rich one. No sandwiched victim is
// required.
func (d *Detector) detectArbitrage(swaps []*model.ChainEvent) []model.MEVCandidate {
	out := make([]model.MEVCandidate, 0)
	used := make(map[string]struct{})

	for i := 0; i < len(swaps); i++ {
		first := swaps[i]
		dirFirst := direction(first.Swap)
		if dirFirst == 0 {
			continue
		}
		priceFirst := execPrice(first.Swap)
		if priceFirst.Sign() <= 0 {
			continue
		}

		for j := i + 1; j < len(swaps); j++ {
			second := swaps[j]
			if !withinArbWindow(first, second, d.cfg.ArbWindowBlocks, d.cfg.ArbWindow) {
				continue
			}
			if samePoolAndChain(first, second) {
				continue
			}
			if !sameAddress(first.Swap.Sender, second.Swap.Sender) {
				continue
			}
			dirSecond := direction(second.Swap)
			if dirSecond != -dirFirst {
				continue
			}
			priceSecond := execPrice(second.Swap)
			if priceSecond.Sign() <= 0 {
				continue
			}

			gap := moveBps(priceFirst, priceSecond)
			if gap.LessThan(d.cfg.MinMoveBps) {
				continue
			}

			// Exploiting the spread means buying where the pair is
			// cheaper and selling where it is richer.
			buysCheap := (dirFirst == 1 && priceFirst.LessThan(priceSecond)) ||
				(dirFirst == -1 && priceFirst.GreaterThan(priceSecond))
			if !buysCheap {
				continue
			}

			if _, dup := used[first.TxHash]; dup {
				continue
			}
			if _, dup := used[second.TxHash]; dup {
				continue
			}
			used[first.TxHash] = struct{}{}
			used[second.TxHash] = struct{}{}

			profit := first.Swap.Amount1.Add(second.Swap.Amount1).Neg()
			profit = profit.Sub(gasQuote(first.Swap, priceFirst))
			profit = profit.Sub(gasQuote(second.Swap, priceSecond))

			fourMin := d.cfg.MinMoveBps.Mul(decimal.NewFromInt(4))
			confidence := clamp01(gap.Div(fourMin))

			out = append(out, model.MEVCandidate{
				ChainID:        first.ChainID,
				BlockNumber:    first.BlockNumber,
				Kind:           model.PatternArbitrage,
				Pool:           first.Pool + "->" + second.Pool,
				Actor:          strings.ToLower(first.Swap.Sender),
				TxHashes:       []string{first.TxHash, second.TxHash},
				EstProfitQuote: profit,
				Confidence:     confidence,
				PriceMoveBps:   gap,
			})
			break
		}
	}
	return out
}

// withinArbWindow pairs same-chain legs by block distance. Legs on
// different chains have incomparable block heights and pair by wall-clock
// gap instead; missing timestamps never pair.
func withinArbWindow(a, b *model.ChainEvent, windowBlocks uint64, window time.Duration) bool {
	if a.ChainID == b.ChainID {
		if b.BlockNumber < a.BlockNumber {
			return a.BlockNumber-b.BlockNumber <= windowBlocks
		}
		return b.BlockNumber-a.BlockNumber <= windowBlocks
	}
	if a.Timestamp == 0 || b.Timestamp == 0 {
		return false
	}
	gap := a.Timestamp - b.Timestamp
	if b.Timestamp > a.Timestamp {
		gap = b.Timestamp - a.Timestamp
	}
	return gap <= uint64(window/time.Second)
}

func samePoolAndChain(a, b *model.ChainEvent) bool {
	return a.ChainID == b.ChainID && strings.EqualFold(a.Pool, b.Pool)
}
