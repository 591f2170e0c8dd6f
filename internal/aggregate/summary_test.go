package aggregate

import (
	"testing"

	"github.com/shopspring/decimal"

	"dexlens/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func swapEvent(chainID uint64, amount1 string, gasUsed uint64, gasPrice string) *model.ChainEvent {
	return &model.ChainEvent{
		ChainID: chainID,
		Kind:    model.KindSwap,
		Swap: &model.SwapPayload{
			Amount0:     dec("-1"),
			Amount1:     dec(amount1),
			GasUsed:     gasUsed,
			GasPriceWei: gasPrice,
		},
	}
}

func TestSummaryCounts(t *testing.T) {
	s := NewSummary()
	s.AddEvent(swapEvent(1, "3000", 100000, "10000000000"))
	s.AddEvent(swapEvent(1, "-1500", 0, ""))
	s.AddEvent(&model.ChainEvent{ChainID: 1, Kind: model.KindMint, Mint: &model.MintPayload{}})
	s.AddEvent(&model.ChainEvent{ChainID: 42161, Kind: model.KindBurn, Burn: &model.BurnPayload{}})
	s.AddCandidate(model.MEVCandidate{ChainID: 1, Kind: model.PatternSandwich, EstProfitQuote: dec("20")})
	s.AddSpread(model.SpreadObservation{ChainA: 1, Profitable: true})
	s.AddSpread(model.SpreadObservation{ChainA: 1, Profitable: false})

	rows := s.Rows()
	if len(rows) != 2 {
		t.Fatalf("row count: %d", len(rows))
	}
	mainnet := rows[0]
	if mainnet.ChainID != 1 || mainnet.SwapCount != 2 || mainnet.MintCount != 1 {
		t.Fatalf("mainnet counters: %+v", mainnet)
	}
	if !mainnet.VolumeQuote.Equal(dec("4500")) {
		t.Fatalf("volume: %s", mainnet.VolumeQuote)
	}
	if !mainnet.GasSpentWei.Equal(dec("1000000000000000")) {
		t.Fatalf("gas: %s", mainnet.GasSpentWei)
	}
	if mainnet.SandwichCount != 1 || !mainnet.MEVProfitQuote.Equal(dec("20")) {
		t.Fatalf("mev: %+v", mainnet)
	}
	if mainnet.SpreadWindows != 2 || mainnet.ProfitableSpread != 1 {
		t.Fatalf("spread: %+v", mainnet)
	}
	if !mainnet.ProfitableSpreadPct().Equal(dec("50")) {
		t.Fatalf("profitable pct: %s", mainnet.ProfitableSpreadPct())
	}
	if !mainnet.MEVShareBps().Equal(dec("5000")) {
		t.Fatalf("mev share: %s", mainnet.MEVShareBps())
	}
	if rows[1].ChainID != 42161 || rows[1].BurnCount != 1 {
		t.Fatalf("arbitrum counters: %+v", rows[1])
	}
}

func TestSummaryLiquidationCountedOnce(t *testing.T) {
	s := NewSummary()
	s.AddEvent(&model.ChainEvent{ChainID: 1, Kind: model.KindLiquidation, Liquidation: &model.LiquidationPayload{}})
	s.AddCandidate(model.MEVCandidate{ChainID: 1, Kind: model.PatternLiquidation, Actor: "0xbot", EstProfitQuote: dec("3.95")})

	rows := s.Rows()
	if len(rows) != 1 {
		t.Fatalf("row count: %d", len(rows))
	}
	if rows[0].LiquidationCount != 1 {
		t.Fatalf("liquidation count: %d", rows[0].LiquidationCount)
	}
	if !rows[0].MEVProfitQuote.Equal(dec("3.95")) {
		t.Fatalf("profit: %s", rows[0].MEVProfitQuote)
	}
}

func TestSummaryTopActor(t *testing.T) {
	s := NewSummary()
	s.AddCandidate(model.MEVCandidate{ChainID: 1, Kind: model.PatternSandwich, Actor: "0xaaa", EstProfitQuote: dec("5")})
	s.AddCandidate(model.MEVCandidate{ChainID: 1, Kind: model.PatternArbitrage, Actor: "0xbbb", EstProfitQuote: dec("12")})
	s.AddCandidate(model.MEVCandidate{ChainID: 1, Kind: model.PatternSandwich, Actor: "0xaaa", EstProfitQuote: dec("4")})

	rows := s.Rows()
	if len(rows) != 1 {
		t.Fatalf("row count: %d", len(rows))
	}
	actor, profit := rows[0].TopActor()
	if actor != "0xbbb" || !profit.Equal(dec("12")) {
		t.Fatalf("top actor: %s %s", actor, profit)
	}
	if !rows[0].ActorProfit["0xaaa"].Equal(dec("9")) {
		t.Fatalf("actor profit: %s", rows[0].ActorProfit["0xaaa"])
	}
}

func TestSummaryCommutative(t *testing.T) {
	events := []*model.ChainEvent{
		swapEvent(1, "3000", 0, ""),
		swapEvent(42161, "100", 0, ""),
		{ChainID: 1, Kind: model.KindLiquidation, Liquidation: &model.LiquidationPayload{}},
		swapEvent(1, "-50", 21000, "5000000000"),
	}

	forward := NewSummary()
	for _, ev := range events {
		forward.AddEvent(ev)
	}
	backward := NewSummary()
	for i := len(events) - 1; i >= 0; i-- {
		backward.AddEvent(events[i])
	}

	a, b := forward.Rows(), backward.Rows()
	if len(a) != len(b) {
		t.Fatalf("row counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ChainID != b[i].ChainID || a[i].SwapCount != b[i].SwapCount ||
			!a[i].VolumeQuote.Equal(b[i].VolumeQuote) || !a[i].GasSpentWei.Equal(b[i].GasSpentWei) {
			t.Fatalf("row %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSummaryMergeAssociative(t *testing.T) {
	build := func(chainID uint64, volume string) *Summary {
		s := NewSummary()
		s.AddEvent(swapEvent(chainID, volume, 0, ""))
		return s
	}

	left := NewSummary()
	left.Merge(build(1, "100"))
	left.Merge(build(1, "200"))
	left.Merge(build(42161, "50"))

	right := NewSummary()
	right.Merge(build(42161, "50"))
	right.Merge(build(1, "200"))
	right.Merge(build(1, "100"))

	a, b := left.Rows(), right.Rows()
	if len(a) != 2 || len(b) != 2 {
		t.Fatalf("row counts: %d, %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ChainID != b[i].ChainID || a[i].SwapCount != b[i].SwapCount || !a[i].VolumeQuote.Equal(b[i].VolumeQuote) {
			t.Fatalf("merge order changed row %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
