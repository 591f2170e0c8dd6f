// Package dex turns raw chain logs into canonical typed events and loads
// pool metadata needed to scale raw amounts.
package dex

import (
	"context"

	"go.uber.org/zap"

	"dexlens/internal/chain"
	"dexlens/internal/model"
)

// Normalizer converts one raw log record into exactly one ChainEvent. A
// record with missing or out-of-range fields is rejected with a
// MalformedRecordError; the caller keeps processing the rest of the batch.
// Normalizers never reorder: the gateway's (block, tx index, log index)
// positions pass through unchanged.
type Normalizer interface {
	CanNormalize(topic0 string) bool
	Normalize(log model.LogRecord, ctx NormalizeContext) (*model.ChainEvent, error)
}

// NormalizeContext provides shared dependencies for normalizers.
type NormalizeContext struct {
	Context         context.Context
	Chain           *chain.Client
	PoolMetaCache   *PoolMetaCache
	TokenMetaCache  *TokenMetaCache
	Logger          *zap.Logger
	IncludeLiveMeta bool
	// GasLookup resolves the gas spend of a transaction. Optional; swap
	// payloads carry zero gas fields when unset.
	GasLookup func(ctx context.Context, txHash string) (gasUsed uint64, gasPriceWei string, err error)
}
