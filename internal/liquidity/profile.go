package liquidity

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"go.uber.org/zap"

	"dexlens/internal/model"
)

// TickDataFunc resolves (liquidityNet, liquidityGross) for an initialized
// tick. It is the gateway-backed lookup; a failed lookup skips that tick and
// marks the profile partial.
type TickDataFunc func(tick int32) (net *big.Int, gross *big.Int, err error)

// Window is the input to a profile reconstruction: the bitmap words scanned
// around the pool's current tick plus the pool state anchoring the walk.
type Window struct {
	ChainID          uint64
	Pool             string
	BlockNumber      uint64
	TickSpacing      int32
	Words            []model.TickWord
	CurrentTick      int32
	CurrentLiquidity *big.Int
	DecimalDiff      int32
	Lookup           TickDataFunc

	// NetSumTolerance bounds the acceptable residual of the net-liquidity
	// sum over the scanned range. Zero means any nonzero residual is
	// flagged. The check warns, it never fails the profile: a truncated
	// window legitimately clips positions.
	NetSumTolerance *big.Int
}

// Reconstructor derives liquidity profiles from tick-bitmap windows.
type Reconstructor struct {
	logger *zap.Logger
}

func NewReconstructor(logger *zap.Logger) *Reconstructor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconstructor{logger: logger}
}

// Reconstruct decodes the window's bitmap words into an ordered tick ledger
// and walks it to derive the active-liquidity curve. Rows carry the active
// liquidity after crossing their tick upward; between consecutive rows the
// value is constant.
func (r *Reconstructor) Reconstruct(w Window) (*model.LiquidityProfile, error) {
	if w.TickSpacing <= 0 {
		return nil, fmt.Errorf("tick spacing must be positive, got %d", w.TickSpacing)
	}
	if w.CurrentLiquidity == nil {
		return nil, fmt.Errorf("current liquidity is required")
	}
	if w.Lookup == nil {
		return nil, fmt.Errorf("tick lookup is required")
	}

	profile := &model.LiquidityProfile{
		ChainID:     w.ChainID,
		Pool:        w.Pool,
		BlockNumber: w.BlockNumber,
		TickSpacing: w.TickSpacing,
		CurrentTick: w.CurrentTick,
	}

	ticks, err := r.collectTicks(w, profile)
	if err != nil {
		return nil, err
	}
	if len(ticks) == 0 {
		profile.Rows = []model.ProfileRow{}
		return profile, nil
	}

	// Ascending tick order is the only valid order for the cumulative walk.
	sort.Slice(ticks, func(i, j int) bool { return ticks[i].Tick < ticks[j].Tick })

	r.checkNetSum(ticks, w.NetSumTolerance, profile)

	// Anchor the accumulator below the leftmost tick: the pool's current
	// active liquidity minus every net delta at or below the current tick.
	anchor := new(big.Int).Set(w.CurrentLiquidity)
	for _, t := range ticks {
		if t.Tick <= w.CurrentTick {
			anchor.Sub(anchor, t.LiquidityNet)
		}
	}

	rows := make([]model.ProfileRow, 0, len(ticks))
	active := anchor
	for _, t := range ticks {
		active = new(big.Int).Add(active, t.LiquidityNet)
		rows = append(rows, model.ProfileRow{
			Tick:            t.Tick,
			PriceT1PerT0:    PriceFromTick(t.Tick, w.DecimalDiff),
			LiquidityNet:    t.LiquidityNet,
			LiquidityGross:  t.LiquidityGross,
			ActiveLiquidity: active,
			WordIndex:       t.WordIndex,
		})
	}
	profile.Rows = rows
	return profile, nil
}

// collectTicks decodes every word, deduplicates by tick index, and resolves
// liquidity data through the lookup. The returned slice is sized once from
// the word window.
func (r *Reconstructor) collectTicks(w Window, profile *model.LiquidityProfile) ([]model.InitializedTick, error) {
	seen := make(map[int32]struct{})
	ticks := make([]model.InitializedTick, 0, len(w.Words)*8)

	for _, word := range w.Words {
		indexes, err := DecodeWord(word, w.TickSpacing)
		if err != nil {
			return nil, fmt.Errorf("decode word %d: %w", word.WordIndex, err)
		}
		for _, tick := range indexes {
			if _, dup := seen[tick]; dup {
				continue
			}
			seen[tick] = struct{}{}

			net, gross, err := w.Lookup(tick)
			if err != nil {
				profile.Partial = true
				r.logger.Warn("tick lookup failed, profile marked partial",
					zap.String("pool", w.Pool),
					zap.Int32("tick", tick),
					zap.Error(err),
				)
				continue
			}
			ticks = append(ticks, model.InitializedTick{
				Tick:           tick,
				LiquidityNet:   net,
				LiquidityGross: gross,
				WordIndex:      word.WordIndex,
			})
		}
	}
	return ticks, nil
}

func (r *Reconstructor) checkNetSum(ticks []model.InitializedTick, tolerance *big.Int, profile *model.LiquidityProfile) {
	sum := new(big.Int)
	for _, t := range ticks {
		sum.Add(sum, t.LiquidityNet)
	}
	if tolerance == nil {
		tolerance = new(big.Int)
	}
	residual := new(big.Int).Abs(sum)
	if residual.Cmp(tolerance) > 0 {
		profile.Warning = &model.InvariantWarning{
			Check:    "liquidity_net_sum",
			Residual: sum.String(),
		}
		r.logger.Warn("liquidity net sum nonzero over scanned range",
			zap.String("pool", profile.Pool),
			zap.String("residual", sum.String()),
		)
	}
}

// PriceFromTick converts a tick index to a token1-per-token0 price adjusted
// by the pair's decimal difference: 1.0001^tick * 10^(dec0-dec1).
func PriceFromTick(tick int32, decimalDiff int32) float64 {
	return math.Pow(1.0001, float64(tick)) * math.Pow(10, float64(decimalDiff))
}
