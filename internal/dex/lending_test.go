package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"dexlens/internal/model"
)

func TestLendingNormalizerLiquidationCall(t *testing.T) {
	lendingABI, err := LendingPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	collateral := common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")
	debt := common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	user := common.HexToAddress("0x4444444444444444444444444444444444444444")
	liquidator := common.HexToAddress("0x5555555555555555555555555555555555555555")
	market := common.HexToAddress("0x7d2768de32b0b80b7a3454c06bdac94a69ddc7a9")

	tokenCache := NewTokenMetaCache()
	tokenCache.Set(collateral, model.TokenMeta{Address: collateral.Hex(), Decimals: 18, Symbol: "WETH"})
	tokenCache.Set(debt, model.TokenMeta{Address: debt.Hex(), Decimals: 6, Symbol: "USDC"})

	// 100 USDC repaid, 0.05 WETH seized.
	repay := big.NewInt(100000000)
	seized, _ := new(big.Int).SetString("50000000000000000", 10)
	data, err := lendingABI.Events["LiquidationCall"].Inputs.NonIndexed().Pack(
		repay,
		seized,
		liquidator,
		false,
	)
	if err != nil {
		t.Fatalf("pack liquidation: %v", err)
	}

	logRecord := buildLogRecord(market, lendingABI.Events["LiquidationCall"].ID, data, []common.Hash{
		topicFromAddress(collateral),
		topicFromAddress(debt),
		topicFromAddress(user),
	})

	normalizer, err := NewLendingNormalizer("v2")
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	if !normalizer.CanNormalize(logRecord.Topics[0]) {
		t.Fatal("topic0 not recognized")
	}

	event, err := normalizer.Normalize(logRecord, NormalizeContext{
		TokenMetaCache: tokenCache,
		Logger:         zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("normalize liquidation: %v", err)
	}

	if event.Kind != model.KindLiquidation || event.Liquidation == nil {
		t.Fatalf("kind mismatch: %+v", event)
	}
	liq := event.Liquidation
	if !liq.RepayAmount.Equal(decimal.RequireFromString("100")) {
		t.Fatalf("repay scaling: %s", liq.RepayAmount)
	}
	if !liq.CollateralSeized.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("seized scaling: %s", liq.CollateralSeized)
	}
	if liq.User != user.Hex() || liq.Liquidator != liquidator.Hex() {
		t.Fatalf("address mismatch: %+v", liq)
	}
	if liq.ProtocolVersion != "v2" {
		t.Fatalf("protocol version: %s", liq.ProtocolVersion)
	}
	if liq.ReceiveAToken {
		t.Fatal("receiveAToken should be false")
	}
}

func TestLendingNormalizerRejectsZeroUser(t *testing.T) {
	lendingABI, err := LendingPoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}

	data, err := lendingABI.Events["LiquidationCall"].Inputs.NonIndexed().Pack(
		big.NewInt(1),
		big.NewInt(1),
		common.HexToAddress("0x5555555555555555555555555555555555555555"),
		false,
	)
	if err != nil {
		t.Fatalf("pack liquidation: %v", err)
	}

	logRecord := buildLogRecord(
		common.HexToAddress("0x7d2768de32b0b80b7a3454c06bdac94a69ddc7a9"),
		lendingABI.Events["LiquidationCall"].ID, data, []common.Hash{
			topicFromAddress(common.HexToAddress("0xc02aaa39b223fe8d0a0e5c4f27ead9083c756cc2")),
			topicFromAddress(common.HexToAddress("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")),
			topicFromAddress(common.Address{}),
		})

	normalizer, err := NewLendingNormalizer("v3")
	if err != nil {
		t.Fatalf("normalizer: %v", err)
	}
	_, err = normalizer.Normalize(logRecord, NormalizeContext{Logger: zap.NewNop()})
	if !model.IsMalformed(err) {
		t.Fatalf("zero user must be malformed, got %v", err)
	}
}
