package spread

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dexlens/internal/model"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func bar(bucket time.Time, vwap string) model.PriceBar {
	return model.PriceBar{BucketStart: bucket, VWAP: dec(vwap), Volume: dec("1"), Trades: 1}
}

func series(chainID uint64, pool string, bars ...model.PriceBar) *model.PriceSeries {
	return &model.PriceSeries{ChainID: chainID, Pool: pool, Bars: bars}
}

func testConfig() Config {
	return Config{
		FeeBpsEach:     decimal.NewFromInt(5),
		BridgeBps:      decimal.NewFromInt(10),
		ThresholdBps:   decimal.NewFromInt(30),
		AlignTolerance: 30 * time.Second,
	}
}

func TestScoreNetsCosts(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	a := series(1, "0xmain", bar(t0, "3000.00"))
	b := series(42161, "0xarb", bar(t0, "2994.00"))

	obs, err := NewScorer(testConfig(), nil).Score("WETH/USDC", a, b)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("observation count: %d", len(obs))
	}

	o := obs[0]
	if o.GrossBps.StringFixed(2) != "20.04" {
		t.Fatalf("gross bps: %s", o.GrossBps)
	}
	if o.NetBps.StringFixed(2) != "0.04" {
		t.Fatalf("net bps: %s", o.NetBps)
	}
	if o.Profitable {
		t.Fatal("0.04 bps should not clear a 30 bps threshold")
	}
	if o.Direction != "buy_b_sell_a" {
		t.Fatalf("direction: %s", o.Direction)
	}
}

func TestScoreNegativeSpread(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	a := series(1, "0xmain", bar(t0, "2900"))
	b := series(42161, "0xarb", bar(t0, "3000"))

	obs, err := NewScorer(testConfig(), nil).Score("WETH/USDC", a, b)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("observation count: %d", len(obs))
	}

	o := obs[0]
	// gross = -1000/3000*10000 = -333.33..., net keeps the sign after costs.
	if o.GrossBps.Sign() >= 0 || o.NetBps.Sign() >= 0 {
		t.Fatalf("signs: gross=%s net=%s", o.GrossBps, o.NetBps)
	}
	if !o.NetBps.Equal(o.GrossBps.Abs().Sub(dec("20")).Neg()) {
		t.Fatalf("net bps: %s", o.NetBps)
	}
	if !o.Profitable {
		t.Fatal("a 313 bps net spread clears a 30 bps threshold")
	}
	if o.Direction != "buy_a_sell_b" {
		t.Fatalf("direction: %s", o.Direction)
	}
}

func TestScoreOrderIndependent(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	barsA := []model.PriceBar{bar(t0, "3000"), bar(t0.Add(time.Minute), "3010"), bar(t0.Add(2*time.Minute), "3005")}
	barsB := []model.PriceBar{bar(t0, "2994"), bar(t0.Add(time.Minute), "3000"), bar(t0.Add(2*time.Minute), "3011")}

	forward, err := NewScorer(testConfig(), nil).Score("WETH/USDC",
		series(1, "0xmain", barsA[0], barsA[1], barsA[2]),
		series(42161, "0xarb", barsB[0], barsB[1], barsB[2]))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	reversed, err := NewScorer(testConfig(), nil).Score("WETH/USDC",
		series(1, "0xmain", barsA[2], barsA[0], barsA[1]),
		series(42161, "0xarb", barsB[1], barsB[2], barsB[0]))
	if err != nil {
		t.Fatalf("score: %v", err)
	}

	if len(forward) != 3 || len(reversed) != 3 {
		t.Fatalf("observation counts: %d, %d", len(forward), len(reversed))
	}
	for i := range forward {
		if !forward[i].NetBps.Equal(reversed[i].NetBps) || !forward[i].Timestamp.Equal(reversed[i].Timestamp) {
			t.Fatalf("bucket %d differs across permutations: %s vs %s", i, forward[i].NetBps, reversed[i].NetBps)
		}
	}
}

func TestScoreNearestBucketWithinTolerance(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	a := series(1, "0xmain", bar(t0, "3000"))
	// 20s away is inside the 30s tolerance, 45s away is not.
	b := series(42161, "0xarb", bar(t0.Add(20*time.Second), "2994"), bar(t0.Add(45*time.Second), "5000"))

	obs, err := NewScorer(testConfig(), nil).Score("WETH/USDC", a, b)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("observation count: %d", len(obs))
	}
	if !obs[0].PriceB.Equal(dec("2994")) {
		t.Fatalf("matched wrong bucket: %s", obs[0].PriceB)
	}
}

func TestScoreSkipsUnalignedBuckets(t *testing.T) {
	t0 := time.Unix(1700000000, 0).UTC()
	a := series(1, "0xmain", bar(t0, "3000"), bar(t0.Add(10*time.Minute), "3010"))
	b := series(42161, "0xarb", bar(t0, "2994"))

	obs, err := NewScorer(testConfig(), nil).Score("WETH/USDC", a, b)
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(obs) != 1 {
		t.Fatalf("unaligned bucket must be skipped, not interpolated: %d", len(obs))
	}
}

func TestScoreEmptySeries(t *testing.T) {
	obs, err := NewScorer(testConfig(), nil).Score("WETH/USDC",
		series(1, "0xmain"),
		series(42161, "0xarb", bar(time.Unix(1700000000, 0).UTC(), "2994")))
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(obs) != 0 {
		t.Fatalf("empty series must yield no observations: %d", len(obs))
	}
}
