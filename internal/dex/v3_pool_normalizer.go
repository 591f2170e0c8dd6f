package dex

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexlens/internal/model"
)

// NormalizerConfig configures normalizer behavior.
type NormalizerConfig struct {
	Topic0Map map[string]string
}

// V3PoolNormalizer normalizes PancakeSwap V3 / Uniswap V3 pool events.
type V3PoolNormalizer struct {
	poolABI     abi.ABI
	topicToKind map[string]model.EventKind
}

// NewV3PoolNormalizer builds a V3 pool normalizer.
func NewV3PoolNormalizer(cfg NormalizerConfig) (*V3PoolNormalizer, error) {
	poolABI, err := V3PoolABI()
	if err != nil {
		return nil, err
	}

	topicToKind := map[string]model.EventKind{
		strings.ToLower(poolABI.Events["Swap"].ID.Hex()): model.KindSwap,
		strings.ToLower(poolABI.Events["Mint"].ID.Hex()): model.KindMint,
		strings.ToLower(poolABI.Events["Burn"].ID.Hex()): model.KindBurn,
	}

	for topic0, name := range cfg.Topic0Map {
		kind, ok := kindFromName(name)
		if !ok {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		topicToKind[strings.ToLower(topic0)] = kind
	}

	return &V3PoolNormalizer{
		poolABI:     poolABI,
		topicToKind: topicToKind,
	}, nil
}

func kindFromName(name string) (model.EventKind, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "swap":
		return model.KindSwap, true
	case "mint":
		return model.KindMint, true
	case "burn":
		return model.KindBurn, true
	default:
		return 0, false
	}
}

// CanNormalize checks if the topic0 is supported.
func (n *V3PoolNormalizer) CanNormalize(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := n.topicToKind[strings.ToLower(topic0)]
	return ok
}

// Normalize converts a LogRecord into a ChainEvent.
func (n *V3PoolNormalizer) Normalize(log model.LogRecord, ctx NormalizeContext) (*model.ChainEvent, error) {
	if len(log.Topics) == 0 {
		return nil, model.Malformed("topics", "missing")
	}
	kind, ok := n.topicToKind[strings.ToLower(log.Topics[0])]
	if !ok {
		return nil, model.Malformed("topics", "unsupported topic0: %s", log.Topics[0])
	}

	if !common.IsHexAddress(log.Address) {
		return nil, model.Malformed("address", "invalid pool address: %s", log.Address)
	}
	pool := common.HexToAddress(log.Address)
	if pool == (common.Address{}) {
		return nil, model.Malformed("address", "zero pool address")
	}

	meta, err := getPoolMeta(ctx, pool, log.BlockNumber)
	if err != nil {
		return nil, err
	}

	event := &model.ChainEvent{
		ChainID:     log.ChainID,
		Pool:        pool.Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		LogIndex:    log.LogIndex,
		Timestamp:   log.Timestamp,
		Kind:        kind,
		PoolMeta:    meta,
	}

	switch kind {
	case model.KindSwap:
		payload, err := n.normalizeSwap(log, meta)
		if err != nil {
			return nil, err
		}
		n.attachGas(payload, log, ctx)
		event.Swap = payload
	case model.KindMint:
		payload, err := n.normalizeMint(log, meta)
		if err != nil {
			return nil, err
		}
		event.Mint = payload
	case model.KindBurn:
		payload, err := n.normalizeBurn(log, meta)
		if err != nil {
			return nil, err
		}
		event.Burn = payload
	default:
		return nil, model.Malformed("kind", "unsupported kind: %s", kind)
	}
	return event, nil
}

func (n *V3PoolNormalizer) attachGas(payload *model.SwapPayload, log model.LogRecord, ctx NormalizeContext) {
	if ctx.GasLookup == nil {
		return
	}
	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}
	gasUsed, gasPrice, err := ctx.GasLookup(callCtx, log.TxHash)
	if err != nil {
		if ctx.Logger != nil {
			ctx.Logger.Warn("gas lookup failed", zap.String("tx", log.TxHash), zap.Error(err))
		}
		return
	}
	payload.GasUsed = gasUsed
	payload.GasPriceWei = gasPrice
}

func (n *V3PoolNormalizer) normalizeSwap(log model.LogRecord, meta model.PoolMeta) (*model.SwapPayload, error) {
	event := n.poolABI.Events["Swap"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, model.Malformed("topics", "parse: %v", err)
	}
	if indexed.Sender == (common.Address{}) {
		return nil, model.Malformed("sender", "zero address")
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 5 {
		return nil, model.Malformed("data", "unexpected swap values: %d", len(values))
	}

	amount0, err := asBigInt(values[0])
	if err != nil {
		return nil, model.Malformed("amount0", "%v", err)
	}
	amount1, err := asBigInt(values[1])
	if err != nil {
		return nil, model.Malformed("amount1", "%v", err)
	}
	sqrtPrice, err := asBigInt(values[2])
	if err != nil {
		return nil, model.Malformed("sqrt_price_x96", "%v", err)
	}
	if sqrtPrice.Sign() <= 0 {
		return nil, model.Malformed("sqrt_price_x96", "non-positive: %s", sqrtPrice)
	}
	liquidity, err := asBigInt(values[3])
	if err != nil {
		return nil, model.Malformed("liquidity", "%v", err)
	}
	tickInt, err := asBigInt(values[4])
	if err != nil {
		return nil, model.Malformed("tick", "%v", err)
	}
	tick, err := int24FromBig(tickInt)
	if err != nil {
		return nil, model.Malformed("tick", "%v", err)
	}

	return &model.SwapPayload{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      scaledAmount(amount0, meta.Decimals0),
		Amount1:      scaledAmount(amount1, meta.Decimals1),
		SqrtPriceX96: sqrtPrice.String(),
		Liquidity:    liquidity.String(),
		Tick:         tick,
		PriceAfter:   PriceFromSqrtX96(sqrtPrice, meta.DecimalDiff()),
	}, nil
}

func (n *V3PoolNormalizer) normalizeMint(log model.LogRecord, meta model.PoolMeta) (*model.MintPayload, error) {
	event := n.poolABI.Events["Mint"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, model.Malformed("topics", "parse: %v", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, model.Malformed("data", "unexpected mint values: %d", len(values))
	}

	sender, err := asAddress(values[0])
	if err != nil {
		return nil, model.Malformed("sender", "%v", err)
	}
	amount, err := asBigInt(values[1])
	if err != nil {
		return nil, model.Malformed("amount", "%v", err)
	}
	amount0, err := asBigInt(values[2])
	if err != nil {
		return nil, model.Malformed("amount0", "%v", err)
	}
	amount1, err := asBigInt(values[3])
	if err != nil {
		return nil, model.Malformed("amount1", "%v", err)
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return nil, model.Malformed("tick_lower", "%v", err)
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return nil, model.Malformed("tick_upper", "%v", err)
	}

	return &model.MintPayload{
		Sender:    sender.Hex(),
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   scaledAmount(amount0, meta.Decimals0),
		Amount1:   scaledAmount(amount1, meta.Decimals1),
	}, nil
}

func (n *V3PoolNormalizer) normalizeBurn(log model.LogRecord, meta model.PoolMeta) (*model.BurnPayload, error) {
	event := n.poolABI.Events["Burn"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Owner     common.Address
		TickLower *big.Int
		TickUpper *big.Int
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, model.Malformed("topics", "parse: %v", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, model.Malformed("data", "unexpected burn values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, model.Malformed("amount", "%v", err)
	}
	amount0, err := asBigInt(values[1])
	if err != nil {
		return nil, model.Malformed("amount0", "%v", err)
	}
	amount1, err := asBigInt(values[2])
	if err != nil {
		return nil, model.Malformed("amount1", "%v", err)
	}

	tickLower, err := int24FromBig(indexed.TickLower)
	if err != nil {
		return nil, model.Malformed("tick_lower", "%v", err)
	}
	tickUpper, err := int24FromBig(indexed.TickUpper)
	if err != nil {
		return nil, model.Malformed("tick_upper", "%v", err)
	}

	return &model.BurnPayload{
		Owner:     indexed.Owner.Hex(),
		TickLower: tickLower,
		TickUpper: tickUpper,
		Amount:    amount.String(),
		Amount0:   scaledAmount(amount0, meta.Decimals0),
		Amount1:   scaledAmount(amount1, meta.Decimals1),
	}, nil
}

func getPoolMeta(ctx NormalizeContext, pool common.Address, blockNumber uint64) (model.PoolMeta, error) {
	var meta model.PoolMeta
	var ok bool
	if ctx.PoolMetaCache != nil {
		meta, ok = ctx.PoolMetaCache.Get(pool)
	}

	callCtx := ctx.Context
	if callCtx == nil {
		callCtx = context.Background()
	}

	if !ok {
		if ctx.Chain == nil {
			return model.PoolMeta{}, fmt.Errorf("chain client is nil")
		}
		var err error
		meta, err = FetchPoolMeta(callCtx, ctx.Chain, pool, ctx.TokenMetaCache, ctx.Logger)
		if err != nil {
			return model.PoolMeta{}, err
		}
		if ctx.PoolMetaCache != nil {
			ctx.PoolMetaCache.Set(pool, meta)
		}
	}

	if ctx.IncludeLiveMeta && ctx.Chain != nil {
		if optional, err := FetchPoolOptionalMeta(callCtx, ctx.Chain, pool, blockNumber, ctx.Logger); err == nil {
			if optional.Liquidity != "" {
				meta.Liquidity = optional.Liquidity
			}
			if optional.Slot0 != nil {
				meta.Slot0 = optional.Slot0
			}
		}
	}
	return meta, nil
}

// scaledAmount converts a raw token amount into decimal units.
func scaledAmount(raw *big.Int, decimals uint8) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

var q192 = new(big.Int).Lsh(big.NewInt(1), 192)

// PriceFromSqrtX96 derives the token1-per-token0 price from a Q64.96 sqrt
// price, shifted by the pair's decimal difference into human units.
func PriceFromSqrtX96(sqrtPriceX96 *big.Int, decimalDiff int32) decimal.Decimal {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return decimal.Zero
	}
	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	ratio := decimal.NewFromBigInt(squared, 0).Div(decimal.NewFromBigInt(q192, 0))
	return ratio.Shift(decimalDiff)
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, model.Malformed("topics", "expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, model.Malformed("topics", "invalid topic: %v", err)
		}
		if len(data) > 32 {
			return nil, model.Malformed("topics", "topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, model.Malformed("data", "invalid hex: %v", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, model.Malformed("data", "unpack %s: %v", event.Name, err)
	}
	return values, nil
}
