// Package aggregate reduces derived records into per-chain summary rows.
// The reduction is associative and commutative, so partitions of a record
// set can be aggregated on separate workers and merged in any order.
package aggregate

import (
	"sort"

	"github.com/shopspring/decimal"

	"dexlens/internal/model"
)

// ChainSummary accumulates counters for one chain.
type ChainSummary struct {
	ChainID          uint64
	SwapCount        uint64
	MintCount        uint64
	BurnCount        uint64
	LiquidationCount uint64
	VolumeQuote      decimal.Decimal
	GasSpentWei      decimal.Decimal

	SandwichCount    uint64
	ArbitrageCount   uint64
	MEVProfitQuote   decimal.Decimal
	ActorProfit      map[string]decimal.Decimal
	SpreadWindows    uint64
	ProfitableSpread uint64
}

// TopActor returns the actor with the highest accumulated MEV profit and
// that profit. Ties resolve to the lexicographically smallest actor.
func (c *ChainSummary) TopActor() (string, decimal.Decimal) {
	best := ""
	profit := decimal.Zero
	for actor, p := range c.ActorProfit {
		if best == "" || p.GreaterThan(profit) || (p.Equal(profit) && actor < best) {
			best = actor
			profit = p
		}
	}
	return best, profit
}

// MEVShareBps is the share of swaps bracketed by a detected sandwich or
// arbitrage, in basis points. Zero swaps yields zero.
func (c *ChainSummary) MEVShareBps() decimal.Decimal {
	if c.SwapCount == 0 {
		return decimal.Zero
	}
	flagged := decimal.NewFromInt(int64(c.SandwichCount + c.ArbitrageCount))
	return flagged.Div(decimal.NewFromInt(int64(c.SwapCount))).Mul(decimal.NewFromInt(10000))
}

// ProfitableSpreadPct is the percentage of scored spread windows that
// cleared the profitability threshold.
func (c *ChainSummary) ProfitableSpreadPct() decimal.Decimal {
	if c.SpreadWindows == 0 {
		return decimal.Zero
	}
	hits := decimal.NewFromInt(int64(c.ProfitableSpread))
	return hits.Div(decimal.NewFromInt(int64(c.SpreadWindows))).Mul(decimal.NewFromInt(100))
}

// Summary is the full reduction state, grouped by chain.
type Summary struct {
	chains map[uint64]*ChainSummary
}

func NewSummary() *Summary {
	return &Summary{chains: make(map[uint64]*ChainSummary)}
}

func (s *Summary) chain(chainID uint64) *ChainSummary {
	c, ok := s.chains[chainID]
	if !ok {
		c = &ChainSummary{
			ChainID:        chainID,
			VolumeQuote:    decimal.Zero,
			GasSpentWei:    decimal.Zero,
			MEVProfitQuote: decimal.Zero,
			ActorProfit:    make(map[string]decimal.Decimal),
		}
		s.chains[chainID] = c
	}
	return c
}

// AddEvent folds one normalized event into the summary.
func (s *Summary) AddEvent(ev *model.ChainEvent) {
	if ev == nil {
		return
	}
	c := s.chain(ev.ChainID)
	switch ev.Kind {
	case model.KindSwap:
		c.SwapCount++
		if ev.Swap != nil {
			c.VolumeQuote = c.VolumeQuote.Add(ev.Swap.Amount1.Abs())
			c.GasSpentWei = c.GasSpentWei.Add(gasWei(ev.Swap))
		}
	case model.KindMint:
		c.MintCount++
	case model.KindBurn:
		c.BurnCount++
	case model.KindLiquidation:
		c.LiquidationCount++
	}
}

// AddCandidate folds one detected MEV candidate into the summary.
// Liquidation candidates are 1:1 pass-throughs of liquidation events, which
// AddEvent already counts; only their profit accrues here.
func (s *Summary) AddCandidate(cand model.MEVCandidate) {
	c := s.chain(cand.ChainID)
	switch cand.Kind {
	case model.PatternSandwich:
		c.SandwichCount++
	case model.PatternArbitrage:
		c.ArbitrageCount++
	}
	c.MEVProfitQuote = c.MEVProfitQuote.Add(cand.EstProfitQuote)
	if cand.Actor != "" {
		c.ActorProfit[cand.Actor] = c.ActorProfit[cand.Actor].Add(cand.EstProfitQuote)
	}
}

// AddSpread folds one spread observation into the summary, attributed to
// the observation's A-side chain.
func (s *Summary) AddSpread(obs model.SpreadObservation) {
	c := s.chain(obs.ChainA)
	c.SpreadWindows++
	if obs.Profitable {
		c.ProfitableSpread++
	}
}

// Merge folds another summary into this one. Merge order never changes the
// result, so partitioned runs can combine however they finish.
func (s *Summary) Merge(other *Summary) {
	if other == nil {
		return
	}
	for chainID, src := range other.chains {
		dst := s.chain(chainID)
		dst.SwapCount += src.SwapCount
		dst.MintCount += src.MintCount
		dst.BurnCount += src.BurnCount
		dst.LiquidationCount += src.LiquidationCount
		dst.VolumeQuote = dst.VolumeQuote.Add(src.VolumeQuote)
		dst.GasSpentWei = dst.GasSpentWei.Add(src.GasSpentWei)
		dst.SandwichCount += src.SandwichCount
		dst.ArbitrageCount += src.ArbitrageCount
		dst.MEVProfitQuote = dst.MEVProfitQuote.Add(src.MEVProfitQuote)
		for actor, profit := range src.ActorProfit {
			dst.ActorProfit[actor] = dst.ActorProfit[actor].Add(profit)
		}
		dst.SpreadWindows += src.SpreadWindows
		dst.ProfitableSpread += src.ProfitableSpread
	}
}

// Rows returns the per-chain summaries sorted by chain id. Sorting here,
// not at insertion, keeps Add and Merge order-free.
func (s *Summary) Rows() []ChainSummary {
	out := make([]ChainSummary, 0, len(s.chains))
	for _, c := range s.chains {
		row := *c
		row.ActorProfit = make(map[string]decimal.Decimal, len(c.ActorProfit))
		for actor, profit := range c.ActorProfit {
			row.ActorProfit[actor] = profit
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

func gasWei(swap *model.SwapPayload) decimal.Decimal {
	if swap.GasUsed == 0 || swap.GasPriceWei == "" {
		return decimal.Zero
	}
	gasPrice, err := decimal.NewFromString(swap.GasPriceWei)
	if err != nil || gasPrice.Sign() <= 0 {
		return decimal.Zero
	}
	return gasPrice.Mul(decimal.NewFromInt(int64(swap.GasUsed)))
}
