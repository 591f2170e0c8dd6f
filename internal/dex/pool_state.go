package dex

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"dexlens/internal/chain"
	"dexlens/internal/liquidity"
	"dexlens/internal/model"
)

// PoolState is the pool's trading state at one block, the anchor inputs for
// profile reconstruction.
type PoolState struct {
	TickSpacing  int32
	CurrentTick  int32
	SqrtPriceX96 string
	Liquidity    *big.Int
}

// FetchPoolState loads tickSpacing, slot0 and active liquidity at a block.
// Block zero means latest.
func FetchPoolState(ctx context.Context, chainClient *chain.Client, pool common.Address, blockNumber uint64) (PoolState, error) {
	if chainClient == nil {
		return PoolState{}, fmt.Errorf("chain client is nil")
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return PoolState{}, fmt.Errorf("parse pool abi: %w", err)
	}

	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}

	values, err := callPoolMethod(ctx, chainClient, pool, poolABI, "tickSpacing", blockPtr)
	if err != nil {
		return PoolState{}, err
	}
	spacingInt, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("tick spacing: %w", err)
	}
	spacing, err := int24FromBig(spacingInt)
	if err != nil {
		return PoolState{}, fmt.Errorf("tick spacing: %w", err)
	}

	values, err = callPoolMethod(ctx, chainClient, pool, poolABI, "slot0", blockPtr)
	if err != nil {
		return PoolState{}, err
	}
	if len(values) < 2 {
		return PoolState{}, fmt.Errorf("unexpected slot0 values: %d", len(values))
	}
	sqrt, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("sqrt price: %w", err)
	}
	tickInt, err := asBigInt(values[1])
	if err != nil {
		return PoolState{}, fmt.Errorf("current tick: %w", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return PoolState{}, fmt.Errorf("current tick: %w", err)
	}

	values, err = callPoolMethod(ctx, chainClient, pool, poolABI, "liquidity", blockPtr)
	if err != nil {
		return PoolState{}, err
	}
	liq, err := asBigInt(values[0])
	if err != nil {
		return PoolState{}, fmt.Errorf("liquidity: %w", err)
	}

	return PoolState{
		TickSpacing:  spacing,
		CurrentTick:  tick,
		SqrtPriceX96: sqrt.String(),
		Liquidity:    liq,
	}, nil
}

// FetchTickWords loads the bitmap words covering wordsEachSide words around
// the current tick. All-zero words are dropped; they carry no ticks.
func FetchTickWords(ctx context.Context, chainClient *chain.Client, pool common.Address, state PoolState, wordsEachSide int, blockNumber uint64) ([]model.TickWord, error) {
	if chainClient == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if state.TickSpacing <= 0 {
		return nil, fmt.Errorf("tick spacing must be positive, got %d", state.TickSpacing)
	}
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}

	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}

	center := liquidity.WordPosition(state.CurrentTick, state.TickSpacing)
	out := make([]model.TickWord, 0, 2*wordsEachSide+1)
	for wordIndex := center - int32(wordsEachSide); wordIndex <= center+int32(wordsEachSide); wordIndex++ {
		if wordIndex < math.MinInt16 || wordIndex > math.MaxInt16 {
			continue
		}
		values, err := callPoolMethod(ctx, chainClient, pool, poolABI, "tickBitmap", blockPtr, int16(wordIndex))
		if err != nil {
			return nil, fmt.Errorf("tickBitmap(%d): %w", wordIndex, err)
		}
		raw, err := asBigInt(values[0])
		if err != nil {
			return nil, fmt.Errorf("tickBitmap(%d): %w", wordIndex, err)
		}
		if raw.Sign() == 0 {
			continue
		}
		bitmap, overflow := uint256.FromBig(raw)
		if overflow {
			return nil, fmt.Errorf("tickBitmap(%d): word overflows 256 bits", wordIndex)
		}
		out = append(out, model.TickWord{
			Pool:      pool.Hex(),
			WordIndex: wordIndex,
			Bitmap:    bitmap,
		})
	}
	return out, nil
}

// NewTickLookup returns a per-tick data fetcher bound to one pool and block,
// suitable as the reconstructor's lookup function.
func NewTickLookup(ctx context.Context, chainClient *chain.Client, pool common.Address, blockNumber uint64) liquidity.TickDataFunc {
	var blockPtr *big.Int
	if blockNumber > 0 {
		blockPtr = new(big.Int).SetUint64(blockNumber)
	}
	return func(tick int32) (*big.Int, *big.Int, error) {
		poolABI, err := V3PoolABI()
		if err != nil {
			return nil, nil, fmt.Errorf("parse pool abi: %w", err)
		}
		values, err := callPoolMethod(ctx, chainClient, pool, poolABI, "ticks", blockPtr, big.NewInt(int64(tick)))
		if err != nil {
			return nil, nil, fmt.Errorf("ticks(%d): %w", tick, err)
		}
		if len(values) < 2 {
			return nil, nil, fmt.Errorf("ticks(%d): unexpected values: %d", tick, len(values))
		}
		gross, err := asBigInt(values[0])
		if err != nil {
			return nil, nil, fmt.Errorf("ticks(%d): gross: %w", tick, err)
		}
		net, err := asBigInt(values[1])
		if err != nil {
			return nil, nil, fmt.Errorf("ticks(%d): net: %w", tick, err)
		}
		return net, gross, nil
	}
}
