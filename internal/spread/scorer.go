// Package spread computes cost-netted price spreads between two bar series
// for the same logical pair on different chains or pools. All arithmetic is
// decimal so a rerun over identical inputs is byte-identical.
package spread

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexlens/internal/model"
)

// Config carries the cost model and alignment policy for one pair.
type Config struct {
	// FeeBpsEach is the DEX fee paid on each side of the round trip.
	FeeBpsEach decimal.Decimal
	// BridgeBps is the cross-chain transfer cost.
	BridgeBps decimal.Decimal
	// ThresholdBps is the minimum net spread magnitude flagged profitable.
	ThresholdBps decimal.Decimal
	// AlignTolerance is how far apart two bucket starts may sit and still
	// be compared. Buckets with no counterpart inside the tolerance are
	// skipped, never interpolated. Zero means exact alignment only.
	AlignTolerance time.Duration
}

// Scorer pairs aligned buckets from two series and scores each pair.
type Scorer struct {
	cfg    Config
	logger *zap.Logger
}

func NewScorer(cfg Config, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{cfg: cfg, logger: logger}
}

var tenThousand = decimal.NewFromInt(10000)

// Score walks series A in bucket order, matches each bar to the nearest
// bar of series B within the alignment tolerance, and emits one observation
// per matched pair. Input bar order does not matter; both series are sorted
// before matching. Synthetic bars participate like real ones since they
// carry the pool's last known price.
func (s *Scorer) Score(pair string, seriesA, seriesB *model.PriceSeries) ([]model.SpreadObservation, error) {
	if seriesA == nil || seriesB == nil {
		return nil, fmt.Errorf("score %s: both series are required", pair)
	}

	barsA := sortedBars(seriesA.Bars)
	barsB := sortedBars(seriesB.Bars)
	if len(barsA) == 0 || len(barsB) == 0 {
		return []model.SpreadObservation{}, nil
	}

	roundTripCost := s.cfg.FeeBpsEach.Mul(decimal.NewFromInt(2)).Add(s.cfg.BridgeBps)

	out := make([]model.SpreadObservation, 0, len(barsA))
	for _, barA := range barsA {
		barB, ok := nearestWithin(barsB, barA.BucketStart, s.cfg.AlignTolerance)
		if !ok {
			continue
		}
		if barA.VWAP.Sign() <= 0 || barB.VWAP.Sign() <= 0 {
			s.logger.Warn("skipping bucket with non-positive price",
				zap.String("pair", pair),
				zap.Time("bucket", barA.BucketStart),
			)
			continue
		}

		grossBps := barA.VWAP.Sub(barB.VWAP).Div(barB.VWAP).Mul(tenThousand)
		netBps := netOfCosts(grossBps, roundTripCost)

		out = append(out, model.SpreadObservation{
			Pair:       pair,
			ChainA:     seriesA.ChainID,
			PoolA:      seriesA.Pool,
			ChainB:     seriesB.ChainID,
			PoolB:      seriesB.Pool,
			Timestamp:  barA.BucketStart,
			PriceA:     barA.VWAP,
			PriceB:     barB.VWAP,
			GrossBps:   grossBps,
			NetBps:     netBps,
			Profitable: netBps.Abs().GreaterThanOrEqual(s.cfg.ThresholdBps),
			Direction:  directionOf(netBps),
		})
	}
	return out, nil
}

// netOfCosts removes the round-trip cost from the spread magnitude while
// preserving the spread's sign. Costs larger than the gross magnitude push
// the net past zero, flipping the sign into loss territory.
func netOfCosts(grossBps, cost decimal.Decimal) decimal.Decimal {
	net := grossBps.Abs().Sub(cost)
	if grossBps.Sign() < 0 {
		return net.Neg()
	}
	return net
}

// directionOf names the trade implied by the spread sign: a rich A leg
// means buy on B and sell on A.
func directionOf(netBps decimal.Decimal) string {
	if netBps.Sign() < 0 {
		return "buy_a_sell_b"
	}
	return "buy_b_sell_a"
}

func sortedBars(bars []model.PriceBar) []model.PriceBar {
	out := make([]model.PriceBar, len(bars))
	copy(out, bars)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BucketStart.Before(out[j].BucketStart)
	})
	return out
}

// nearestWithin finds the bar whose bucket start is closest to target,
// provided the distance does not exceed the tolerance. Ties between an
// earlier and a later bucket at equal distance resolve to the earlier one.
func nearestWithin(bars []model.PriceBar, target time.Time, tolerance time.Duration) (model.PriceBar, bool) {
	idx := sort.Search(len(bars), func(i int) bool {
		return !bars[i].BucketStart.Before(target)
	})

	bestIdx := -1
	var bestDist time.Duration
	for _, i := range []int{idx - 1, idx} {
		if i < 0 || i >= len(bars) {
			continue
		}
		dist := bars[i].BucketStart.Sub(target)
		if dist < 0 {
			dist = -dist
		}
		if dist > tolerance {
			continue
		}
		if bestIdx == -1 || dist < bestDist {
			bestIdx = i
			bestDist = dist
		}
	}
	if bestIdx == -1 {
		return model.PriceBar{}, false
	}
	return bars[bestIdx], true
}
