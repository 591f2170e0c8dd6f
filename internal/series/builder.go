// Package series aggregates ordered swap events into fixed-duration VWAP
// bars. All price arithmetic uses shopspring decimals so that identical
// inputs always produce byte-identical bars.
package series

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexlens/internal/model"
)

// BlockTimeFunc resolves a block number to a unix timestamp. It is the
// explicit injection point for the gateway's header cache; swaps whose block
// cannot be resolved are dropped and the series marked partial.
type BlockTimeFunc func(block uint64) (uint64, bool)

// Config controls bar construction.
type Config struct {
	Bucket    time.Duration
	BlockTime BlockTimeFunc
}

// Builder turns one pool's swap stream into a PriceSeries.
type Builder struct {
	cfg    Config
	logger *zap.Logger
}

func NewBuilder(cfg Config, logger *zap.Logger) *Builder {
	if cfg.Bucket <= 0 {
		cfg.Bucket = time.Minute
	}
	// Block timestamps are whole seconds; a finer bucket cannot partition
	// them.
	if cfg.Bucket < time.Second {
		cfg.Bucket = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{cfg: cfg, logger: logger}
}

type trade struct {
	ts     uint64
	block  uint64
	txIdx  uint64
	price  decimal.Decimal
	weight decimal.Decimal
}

// Build partitions swaps into buckets and computes per-bucket VWAPs.
// Interior buckets without trades inherit the previous close and are marked
// synthetic; buckets before the first trade are omitted. Non-swap events are
// ignored; swaps for a different pool are rejected.
func (b *Builder) Build(chainID uint64, pool string, events []*model.ChainEvent) (*model.PriceSeries, error) {
	out := &model.PriceSeries{ChainID: chainID, Pool: pool, Bars: []model.PriceBar{}}

	trades := make([]trade, 0, len(events))
	for _, ev := range events {
		if ev.Kind != model.KindSwap || ev.Swap == nil {
			continue
		}
		if ev.Pool != pool {
			return nil, fmt.Errorf("event pool %s does not match series pool %s", ev.Pool, pool)
		}

		ts := ev.Timestamp
		if ts == 0 && b.cfg.BlockTime != nil {
			resolved, ok := b.cfg.BlockTime(ev.BlockNumber)
			if !ok {
				out.Partial = true
				b.logger.Warn("block timestamp unresolved, swap dropped",
					zap.Uint64("block", ev.BlockNumber),
					zap.String("tx", ev.TxHash),
				)
				continue
			}
			ts = resolved
		}
		if ts == 0 {
			out.Partial = true
			continue
		}

		price := tradePrice(ev.Swap)
		if price.Sign() <= 0 || ev.Swap.Amount0.IsZero() {
			continue
		}
		trades = append(trades, trade{
			ts:     ts,
			block:  ev.BlockNumber,
			txIdx:  ev.TxIndex,
			price:  price,
			weight: ev.Swap.Amount0.Abs(),
		})
	}

	if len(trades) == 0 {
		return out, nil
	}

	// Wall-clock order, ties broken by (block, tx index) ascending.
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].ts != trades[j].ts {
			return trades[i].ts < trades[j].ts
		}
		if trades[i].block != trades[j].block {
			return trades[i].block < trades[j].block
		}
		return trades[i].txIdx < trades[j].txIdx
	})

	bucketSec := int64(b.cfg.Bucket / time.Second)
	var (
		bars       []model.PriceBar
		cur        *model.PriceBar
		pvSum      decimal.Decimal
		wSum       decimal.Decimal
		lastBucket int64
	)

	flush := func() {
		if cur == nil {
			return
		}
		if wSum.Sign() > 0 {
			cur.VWAP = pvSum.Div(wSum)
		}
		bars = append(bars, *cur)
	}

	for _, tr := range trades {
		bucket := int64(tr.ts) - int64(tr.ts)%bucketSec
		if cur == nil || bucket != lastBucket {
			if cur != nil {
				flush()
				// Trade-free interior buckets carry the previous close.
				prev := bars[len(bars)-1]
				for gap := lastBucket + bucketSec; gap < bucket; gap += bucketSec {
					bars = append(bars, model.PriceBar{
						ChainID:     chainID,
						Pool:        pool,
						BucketStart: time.Unix(gap, 0).UTC(),
						VWAP:        prev.VWAP,
						Volume:      decimal.Zero,
						MinPrice:    prev.VWAP,
						MaxPrice:    prev.VWAP,
						Synthetic:   true,
					})
				}
			}
			cur = &model.PriceBar{
				ChainID:     chainID,
				Pool:        pool,
				BucketStart: time.Unix(bucket, 0).UTC(),
				MinPrice:    tr.price,
				MaxPrice:    tr.price,
			}
			pvSum = decimal.Zero
			wSum = decimal.Zero
			lastBucket = bucket
		}

		cur.Trades++
		cur.Volume = cur.Volume.Add(tr.weight)
		pvSum = pvSum.Add(tr.price.Mul(tr.weight))
		wSum = wSum.Add(tr.weight)
		if tr.price.LessThan(cur.MinPrice) {
			cur.MinPrice = tr.price
		}
		if tr.price.GreaterThan(cur.MaxPrice) {
			cur.MaxPrice = tr.price
		}
	}
	flush()

	out.Bars = bars
	return out, nil
}

// tradePrice prefers the post-swap sqrt-derived price and falls back to the
// amount ratio when it is missing.
func tradePrice(swap *model.SwapPayload) decimal.Decimal {
	if swap.PriceAfter.Sign() > 0 {
		return swap.PriceAfter
	}
	if swap.Amount0.IsZero() || swap.Amount1.IsZero() {
		return decimal.Zero
	}
	return swap.Amount1.Abs().Div(swap.Amount0.Abs())
}
