package series

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dexlens/internal/model"
)

func swapEvent(block, txIdx, ts uint64, amount0, amount1, priceAfter string) *model.ChainEvent {
	return &model.ChainEvent{
		ChainID:     1,
		Pool:        "0xpool",
		BlockNumber: block,
		TxHash:      "0xtx",
		TxIndex:     txIdx,
		Timestamp:   ts,
		Kind:        model.KindSwap,
		Swap: &model.SwapPayload{
			Sender:     "0xsender",
			Amount0:    decimal.RequireFromString(amount0),
			Amount1:    decimal.RequireFromString(amount1),
			PriceAfter: decimal.RequireFromString(priceAfter),
		},
	}
}

func TestBuildVWAP(t *testing.T) {
	base := uint64(1700000040) // mid-minute, bucket starts at 1700000040 - 40
	events := []*model.ChainEvent{
		swapEvent(10, 0, base, "-2", "6000", "3000"),
		swapEvent(10, 1, base+5, "-1", "3010", "3010"),
	}

	builder := NewBuilder(Config{Bucket: time.Minute}, nil)
	out, err := builder.Build(1, "0xpool", events)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if out.Partial {
		t.Fatalf("series unexpectedly partial")
	}
	if len(out.Bars) != 1 {
		t.Fatalf("bar count: %d", len(out.Bars))
	}

	bar := out.Bars[0]
	if bar.BucketStart.Unix() != 1700000040-40 {
		t.Fatalf("bucket start: %v", bar.BucketStart)
	}
	// VWAP = (3000*2 + 3010*1) / 3
	want := decimal.RequireFromString("9010").Div(decimal.NewFromInt(3))
	if !bar.VWAP.Equal(want) {
		t.Fatalf("vwap mismatch: %s != %s", bar.VWAP, want)
	}
	if bar.Trades != 2 || !bar.Volume.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("bar stats: %+v", bar)
	}
	if !bar.MinPrice.Equal(decimal.NewFromInt(3000)) || !bar.MaxPrice.Equal(decimal.NewFromInt(3010)) {
		t.Fatalf("min/max mismatch: %+v", bar)
	}
}

func TestBuildSubSecondBucketRoundsUp(t *testing.T) {
	events := []*model.ChainEvent{
		swapEvent(10, 0, 1700000000, "-1", "3000", "3000"),
		swapEvent(10, 1, 1700000001, "-1", "3010", "3010"),
	}

	builder := NewBuilder(Config{Bucket: 500 * time.Millisecond}, nil)
	out, err := builder.Build(1, "0xpool", events)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(out.Bars) != 2 {
		t.Fatalf("bar count: %d", len(out.Bars))
	}
	if out.Bars[0].BucketStart.Unix() != 1700000000 || out.Bars[1].BucketStart.Unix() != 1700000001 {
		t.Fatalf("bucket starts: %v %v", out.Bars[0].BucketStart, out.Bars[1].BucketStart)
	}
}

func TestBuildSyntheticGapFill(t *testing.T) {
	base := uint64(1700000000) // exactly on a minute boundary
	events := []*model.ChainEvent{
		swapEvent(10, 0, base, "-1", "3000", "3000"),
		swapEvent(40, 0, base+180, "-1", "3050", "3050"),
	}

	builder := NewBuilder(Config{Bucket: time.Minute}, nil)
	out, err := builder.Build(1, "0xpool", events)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(out.Bars) != 4 {
		t.Fatalf("bar count: %d", len(out.Bars))
	}

	// Two interior buckets carry the previous close and are synthetic.
	for i := 1; i <= 2; i++ {
		bar := out.Bars[i]
		if !bar.Synthetic {
			t.Fatalf("bar %d not synthetic", i)
		}
		if !bar.VWAP.Equal(decimal.NewFromInt(3000)) {
			t.Fatalf("bar %d carried price mismatch: %s", i, bar.VWAP)
		}
		if bar.Trades != 0 || !bar.Volume.IsZero() {
			t.Fatalf("synthetic bar %d has trades: %+v", i, bar)
		}
	}
	if out.Bars[0].Synthetic || out.Bars[3].Synthetic {
		t.Fatalf("real bars flagged synthetic")
	}
}

func TestBuildOrderingTieBreak(t *testing.T) {
	// Identical timestamps order by (block, tx index); shuffled input must
	// still yield the same VWAP because summation follows sorted order.
	ts := uint64(1700000000)
	ordered := []*model.ChainEvent{
		swapEvent(10, 0, ts, "-1", "3000", "3000"),
		swapEvent(10, 1, ts, "-1", "3010", "3010"),
		swapEvent(11, 0, ts, "-1", "3020", "3020"),
	}
	shuffled := []*model.ChainEvent{ordered[2], ordered[0], ordered[1]}

	builder := NewBuilder(Config{Bucket: time.Minute}, nil)
	a, err := builder.Build(1, "0xpool", ordered)
	if err != nil {
		t.Fatalf("build ordered: %v", err)
	}
	b, err := builder.Build(1, "0xpool", shuffled)
	if err != nil {
		t.Fatalf("build shuffled: %v", err)
	}
	if !a.Bars[0].VWAP.Equal(b.Bars[0].VWAP) {
		t.Fatalf("vwap differs across permutations: %s != %s", a.Bars[0].VWAP, b.Bars[0].VWAP)
	}
}

func TestBuildNoLeadingBackfill(t *testing.T) {
	events := []*model.ChainEvent{
		swapEvent(10, 0, 1700000600, "-1", "3000", "3000"),
	}
	builder := NewBuilder(Config{Bucket: time.Minute}, nil)
	out, err := builder.Build(1, "0xpool", events)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(out.Bars) != 1 {
		t.Fatalf("leading buckets were backfilled: %d bars", len(out.Bars))
	}
}

func TestBuildBlockTimeFallback(t *testing.T) {
	events := []*model.ChainEvent{
		swapEvent(10, 0, 0, "-1", "3000", "3000"),
		swapEvent(11, 0, 0, "-1", "3010", "3010"),
	}

	blockTime := func(block uint64) (uint64, bool) {
		if block == 10 {
			return 1700000000, true
		}
		return 0, false
	}

	builder := NewBuilder(Config{Bucket: time.Minute, BlockTime: blockTime}, nil)
	out, err := builder.Build(1, "0xpool", events)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !out.Partial {
		t.Fatalf("expected partial series when a block timestamp is missing")
	}
	if len(out.Bars) != 1 || out.Bars[0].Trades != 1 {
		t.Fatalf("bars mismatch: %+v", out.Bars)
	}
}

func TestBuildAmountRatioFallback(t *testing.T) {
	// No sqrt-derived price: price comes from |amount1|/|amount0|.
	events := []*model.ChainEvent{
		swapEvent(10, 0, 1700000000, "-2", "6100", "0"),
	}
	builder := NewBuilder(Config{Bucket: time.Minute}, nil)
	out, err := builder.Build(1, "0xpool", events)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(out.Bars) != 1 {
		t.Fatalf("bar count: %d", len(out.Bars))
	}
	if !out.Bars[0].VWAP.Equal(decimal.NewFromInt(3050)) {
		t.Fatalf("fallback price mismatch: %s", out.Bars[0].VWAP)
	}
}
