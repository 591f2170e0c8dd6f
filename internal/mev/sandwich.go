package mev

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexlens/internal/model"
)

type sandwichCandidate struct {
	candidate model.MEVCandidate
	victimTx  string
	span      uint64
	frontIdx  uint64
}

// detectSandwiches scans each (pool, block) group for front/victim/back
// triples. The front and back share a sender, bracket the victim by
// transaction index, trade through it in opposite directions, and the pool
// price after the back run reverts to the pre-front price within tolerance.
func (d *Detector) detectSandwiches(swaps []*model.ChainEvent) []model.MEVCandidate {
	groups := make(map[string][]*model.ChainEvent)
	order := make([]string, 0)
	for _, ev := range swaps {
		key := strings.ToLower(ev.Pool) + "/" + blockKey(ev.BlockNumber)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], ev)
	}

	found := make([]sandwichCandidate, 0)
	for _, key := range order {
		group := groups[key]
		if len(group) < 3 {
			continue
		}
		found = append(found, d.scanGroup(group)...)
	}
	return resolveOverlaps(found)
}

func (d *Detector) scanGroup(group []*model.ChainEvent) []sandwichCandidate {
	out := make([]sandwichCandidate, 0)
	n := len(group)
	for v := 1; v < n-1; v++ {
		victim := group[v]
		dirV := direction(victim.Swap)
		if dirV == 0 {
			continue
		}
		for a := 0; a < v; a++ {
			front := group[a]
			if front.TxIndex >= victim.TxIndex {
				continue
			}
			if direction(front.Swap) != dirV {
				continue
			}
			if sameAddress(front.Swap.Sender, victim.Swap.Sender) {
				continue
			}
			for b := v + 1; b < n; b++ {
				back := group[b]
				if back.TxIndex <= victim.TxIndex {
					continue
				}
				if !sameAddress(front.Swap.Sender, back.Swap.Sender) {
					continue
				}
				if direction(back.Swap) != -dirV {
					continue
				}

				cand, ok := d.evaluateTriple(front, victim, back)
				if !ok {
					continue
				}
				out = append(out, cand)
			}
		}
	}
	return out
}

func (d *Detector) evaluateTriple(front, victim, back *model.ChainEvent) (sandwichCandidate, bool) {
	preFront := execPrice(front.Swap)
	postBack := back.Swap.PriceAfter
	if postBack.Sign() <= 0 {
		postBack = execPrice(back.Swap)
	}
	if preFront.Sign() <= 0 || postBack.Sign() <= 0 {
		return sandwichCandidate{}, false
	}

	reversion := moveBps(postBack, preFront)
	if reversion.GreaterThan(d.cfg.ReversionTolBps) {
		return sandwichCandidate{}, false
	}

	victimMove := moveBps(execPrice(victim.Swap), preFront)
	if victimMove.LessThan(d.cfg.MinMoveBps) {
		return sandwichCandidate{}, false
	}

	// Attacker quote-token flow is the negated pool-side amount1 of both
	// bracket legs; gas for both legs is priced at the post-back-run price.
	profit := front.Swap.Amount1.Add(back.Swap.Amount1).Neg()
	profit = profit.Sub(gasQuote(front.Swap, postBack))
	profit = profit.Sub(gasQuote(back.Swap, postBack))

	confidence := clamp01(decimal.NewFromInt(1).Sub(reversion.Div(d.cfg.ReversionTolBps)))

	d.logger.Debug("sandwich candidate",
		zap.Uint64("block", victim.BlockNumber),
		zap.String("front", front.TxHash),
		zap.String("victim", victim.TxHash),
		zap.String("back", back.TxHash),
	)

	return sandwichCandidate{
		candidate: model.MEVCandidate{
			ChainID:        victim.ChainID,
			BlockNumber:    victim.BlockNumber,
			Kind:           model.PatternSandwich,
			Pool:           victim.Pool,
			Actor:          strings.ToLower(front.Swap.Sender),
			TxHashes:       []string{front.TxHash, victim.TxHash, back.TxHash},
			EstProfitQuote: profit,
			Confidence:     confidence,
			PriceMoveBps:   victimMove,
		},
		victimTx: victim.TxHash,
		span:     back.TxIndex - front.TxIndex,
		frontIdx: front.TxIndex,
	}, true
}

// resolveOverlaps keeps, per victim transaction, only the triple with the
// tightest front-to-back index span; everything else is discarded so a
// victim is never counted twice.
func resolveOverlaps(found []sandwichCandidate) []model.MEVCandidate {
	best := make(map[string]sandwichCandidate)
	order := make([]string, 0, len(found))
	for _, cand := range found {
		prev, ok := best[cand.victimTx]
		if !ok {
			best[cand.victimTx] = cand
			order = append(order, cand.victimTx)
			continue
		}
		if cand.span < prev.span || (cand.span == prev.span && cand.frontIdx < prev.frontIdx) {
			best[cand.victimTx] = cand
		}
	}

	out := make([]model.MEVCandidate, 0, len(best))
	for _, victim := range order {
		out = append(out, best[victim].candidate)
	}
	return out
}

func sameAddress(a, b string) bool {
	return a != "" && strings.EqualFold(a, b)
}

func blockKey(block uint64) string {
	return strconv.FormatUint(block, 10)
}
