package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexlens/internal/model"
)

func TestV3PoolNormalizerSwap(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	poolMetaCache := NewPoolMetaCache()
	poolMetaCache.Set(pool, model.PoolMeta{
		Token0:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Token1:      "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Decimals0:   18,
		Decimals1:   6,
		Fee:         2500,
		TickSpacing: 60,
	})

	normalizer, err := NewV3PoolNormalizer(NormalizerConfig{})
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}

	ctx := NormalizeContext{
		PoolMetaCache: poolMetaCache,
		Logger:        zap.NewNop(),
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")

	amount0, _ := new(big.Int).SetString("-1000000000000000000", 10)
	sqrtPrice := new(big.Int).Lsh(big.NewInt(1), 96)
	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		amount0,
		big.NewInt(2000000),
		sqrtPrice,
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	logRecord := buildLogRecord(pool, poolABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(sender),
		topicFromAddress(recipient),
	})

	event, err := normalizer.Normalize(logRecord, ctx)
	if err != nil {
		t.Fatalf("normalize swap: %v", err)
	}

	if event.Kind != model.KindSwap || event.Swap == nil {
		t.Fatalf("kind mismatch: %+v", event)
	}
	swap := event.Swap
	if !swap.Amount0.Equal(decimal.RequireFromString("-1")) {
		t.Fatalf("amount0 scaling: %s", swap.Amount0)
	}
	if !swap.Amount1.Equal(decimal.RequireFromString("2")) {
		t.Fatalf("amount1 scaling: %s", swap.Amount1)
	}
	// A unit sqrt ratio with a 12-decimal difference is 1e12 token1/token0.
	if !swap.PriceAfter.Equal(decimal.New(1, 12)) {
		t.Fatalf("price after: %s", swap.PriceAfter)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
	if swap.Sender != sender.Hex() || swap.Recipient != recipient.Hex() {
		t.Fatalf("address mismatch")
	}
	if event.TxIndex != logRecord.TxIndex || event.LogIndex != logRecord.LogIndex {
		t.Fatalf("ordering fields not preserved")
	}
	if event.PoolMeta.Fee != 2500 || event.PoolMeta.TickSpacing != 60 {
		t.Fatalf("pool meta mismatch")
	}
}

func TestV3PoolNormalizerMintBurn(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	pool := common.HexToAddress("0x9999999999999999999999999999999999999999")
	poolMetaCache := NewPoolMetaCache()
	poolMetaCache.Set(pool, model.PoolMeta{
		Token0:      "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Token1:      "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb",
		Decimals0:   6,
		Decimals1:   6,
		Fee:         500,
		TickSpacing: 10,
	})

	normalizer, err := NewV3PoolNormalizer(NormalizerConfig{})
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}

	ctx := NormalizeContext{
		PoolMetaCache: poolMetaCache,
		Logger:        zap.NewNop(),
	}

	sender := common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	owner := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	mintData, err := poolABI.Events["Mint"].Inputs.NonIndexed().Pack(
		sender,
		big.NewInt(5000),
		big.NewInt(1000000),
		big.NewInt(2000000),
	)
	if err != nil {
		t.Fatalf("pack mint: %v", err)
	}

	mintLog := buildLogRecord(pool, poolABI.Events["Mint"].ID, mintData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-120),
		topicFromInt24(120),
	})

	mintEvent, err := normalizer.Normalize(mintLog, ctx)
	if err != nil {
		t.Fatalf("normalize mint: %v", err)
	}
	if mintEvent.Kind != model.KindMint || mintEvent.Mint == nil {
		t.Fatalf("mint kind mismatch: %+v", mintEvent)
	}
	if mintEvent.Mint.TickLower != -120 || mintEvent.Mint.TickUpper != 120 {
		t.Fatalf("mint tick mismatch: %+v", mintEvent.Mint)
	}
	if !mintEvent.Mint.Amount0.Equal(decimal.RequireFromString("1")) {
		t.Fatalf("mint amount0 scaling: %s", mintEvent.Mint.Amount0)
	}

	burnData, err := poolABI.Events["Burn"].Inputs.NonIndexed().Pack(
		big.NewInt(7000),
		big.NewInt(3000000),
		big.NewInt(4000000),
	)
	if err != nil {
		t.Fatalf("pack burn: %v", err)
	}

	burnLog := buildLogRecord(pool, poolABI.Events["Burn"].ID, burnData, []common.Hash{
		topicFromAddress(owner),
		topicFromInt24(-60),
		topicFromInt24(60),
	})

	burnEvent, err := normalizer.Normalize(burnLog, ctx)
	if err != nil {
		t.Fatalf("normalize burn: %v", err)
	}
	if burnEvent.Kind != model.KindBurn || burnEvent.Burn == nil {
		t.Fatalf("burn kind mismatch: %+v", burnEvent)
	}
	if burnEvent.Burn.Amount != "7000" {
		t.Fatalf("burn amount mismatch: %+v", burnEvent.Burn)
	}
}

func TestV3PoolNormalizerRejectsMalformed(t *testing.T) {
	normalizer, err := NewV3PoolNormalizer(NormalizerConfig{})
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	poolABI, _ := V3PoolABI()

	pool := common.HexToAddress("0x1111111111111111111111111111111111111111")
	poolMetaCache := NewPoolMetaCache()
	poolMetaCache.Set(pool, model.PoolMeta{Decimals0: 18, Decimals1: 18})
	ctx := NormalizeContext{PoolMetaCache: poolMetaCache, Logger: zap.NewNop()}

	_, err = normalizer.Normalize(model.LogRecord{}, ctx)
	if !model.IsMalformed(err) {
		t.Fatalf("empty record must be malformed, got %v", err)
	}

	noSender := buildLogRecord(pool, poolABI.Events["Swap"].ID, nil, nil)
	_, err = normalizer.Normalize(noSender, ctx)
	if !model.IsMalformed(err) {
		t.Fatalf("missing topics must be malformed, got %v", err)
	}

	zeroPool := buildLogRecord(common.Address{}, poolABI.Events["Swap"].ID, nil, []common.Hash{
		topicFromAddress(common.HexToAddress("0x2222222222222222222222222222222222222222")),
		topicFromAddress(common.HexToAddress("0x3333333333333333333333333333333333333333")),
	})
	_, err = normalizer.Normalize(zeroPool, ctx)
	if !model.IsMalformed(err) {
		t.Fatalf("zero pool address must be malformed, got %v", err)
	}
}

func TestV3PoolNormalizerOfflineNeedsCachedMeta(t *testing.T) {
	poolABI, err := V3PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	normalizer, err := NewV3PoolNormalizer(NormalizerConfig{})
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}

	// No chain client and no cached meta for this pool, so decimal scaling
	// has nothing to work from.
	ctx := NormalizeContext{PoolMetaCache: NewPoolMetaCache(), Logger: zap.NewNop()}

	pool := common.HexToAddress("0x4444444444444444444444444444444444444444")
	amount0, _ := new(big.Int).SetString("-1000000000000000000", 10)
	data, err := poolABI.Events["Swap"].Inputs.NonIndexed().Pack(
		amount0,
		big.NewInt(2000000),
		new(big.Int).Lsh(big.NewInt(1), 96),
		big.NewInt(987654321),
		big.NewInt(-15),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}
	logRecord := buildLogRecord(pool, poolABI.Events["Swap"].ID, data, []common.Hash{
		topicFromAddress(common.HexToAddress("0x2222222222222222222222222222222222222222")),
		topicFromAddress(common.HexToAddress("0x3333333333333333333333333333333333333333")),
	})

	_, err = normalizer.Normalize(logRecord, ctx)
	if err == nil {
		t.Fatal("expected meta resolution failure without a chain client")
	}
	if model.IsMalformed(err) {
		t.Fatalf("meta resolution failure must not be malformed: %v", err)
	}
}

func TestPriceFromSqrtX96(t *testing.T) {
	if !PriceFromSqrtX96(new(big.Int).Lsh(big.NewInt(1), 96), 0).Equal(decimal.NewFromInt(1)) {
		t.Fatal("unit sqrt ratio must price at 1")
	}
	if !PriceFromSqrtX96(new(big.Int).Lsh(big.NewInt(2), 96), 0).Equal(decimal.NewFromInt(4)) {
		t.Fatal("doubled sqrt ratio must price at 4")
	}
	if PriceFromSqrtX96(nil, 0).Sign() != 0 {
		t.Fatal("nil sqrt must price at zero")
	}
}

func buildLogRecord(pool common.Address, topic0 common.Hash, data []byte, indexed []common.Hash) model.LogRecord {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.LogRecord{
		ChainID:     56,
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xdef",
		TxIndex:     7,
		LogIndex:    1,
		Address:     pool.Hex(),
		Topics:      topics,
		Data:        hexutil.Encode(data),
		Timestamp:   1700000000,
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}

func topicFromInt24(value int32) common.Hash {
	bigVal := big.NewInt(int64(value))
	if value < 0 {
		bigVal = new(big.Int).Add(bigVal, new(big.Int).Lsh(big.NewInt(1), 256))
	}
	return common.BigToHash(bigVal)
}
