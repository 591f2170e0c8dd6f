package dex

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"dexlens/internal/model"
)

// Aave V2 and V3 emit LiquidationCall with the same signature; the protocol
// version cannot be told apart from the log alone and is configured per
// market address set.
const lendingPoolABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "internalType": "address", "name": "collateralAsset", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "debtAsset", "type": "address"},
      {"indexed": true, "internalType": "address", "name": "user", "type": "address"},
      {"indexed": false, "internalType": "uint256", "name": "debtToCover", "type": "uint256"},
      {"indexed": false, "internalType": "uint256", "name": "liquidatedCollateralAmount", "type": "uint256"},
      {"indexed": false, "internalType": "address", "name": "liquidator", "type": "address"},
      {"indexed": false, "internalType": "bool", "name": "receiveAToken", "type": "bool"}
    ],
    "name": "LiquidationCall",
    "type": "event"
  }
]`

var (
	lendingPoolABI     abi.ABI
	lendingPoolABIOnce sync.Once
	lendingPoolABIErr  error
)

// LendingPoolABI returns the parsed lending pool ABI.
func LendingPoolABI() (abi.ABI, error) {
	lendingPoolABIOnce.Do(func() {
		lendingPoolABI, lendingPoolABIErr = abi.JSON(strings.NewReader(lendingPoolABIJSON))
	})
	return lendingPoolABI, lendingPoolABIErr
}

// LendingNormalizer normalizes Aave-style LiquidationCall events.
type LendingNormalizer struct {
	poolABI         abi.ABI
	topic0          string
	protocolVersion string
}

// NewLendingNormalizer builds a liquidation normalizer tagged with the
// protocol version of the configured market, e.g. "v2" or "v3".
func NewLendingNormalizer(protocolVersion string) (*LendingNormalizer, error) {
	poolABI, err := LendingPoolABI()
	if err != nil {
		return nil, err
	}
	return &LendingNormalizer{
		poolABI:         poolABI,
		topic0:          strings.ToLower(poolABI.Events["LiquidationCall"].ID.Hex()),
		protocolVersion: protocolVersion,
	}, nil
}

// CanNormalize checks if the topic0 is supported.
func (n *LendingNormalizer) CanNormalize(topic0 string) bool {
	return topic0 != "" && strings.ToLower(topic0) == n.topic0
}

// Normalize converts a LiquidationCall log into a ChainEvent.
func (n *LendingNormalizer) Normalize(log model.LogRecord, ctx NormalizeContext) (*model.ChainEvent, error) {
	if len(log.Topics) == 0 {
		return nil, model.Malformed("topics", "missing")
	}
	if !n.CanNormalize(log.Topics[0]) {
		return nil, model.Malformed("topics", "unsupported topic0: %s", log.Topics[0])
	}
	if !common.IsHexAddress(log.Address) {
		return nil, model.Malformed("address", "invalid market address: %s", log.Address)
	}

	event := n.poolABI.Events["LiquidationCall"]
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		CollateralAsset common.Address
		DebtAsset       common.Address
		User            common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, model.Malformed("topics", "parse: %v", err)
	}
	if indexed.User == (common.Address{}) {
		return nil, model.Malformed("user", "zero address")
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 4 {
		return nil, model.Malformed("data", "unexpected liquidation values: %d", len(values))
	}

	debtToCover, err := asBigInt(values[0])
	if err != nil {
		return nil, model.Malformed("debt_to_cover", "%v", err)
	}
	seized, err := asBigInt(values[1])
	if err != nil {
		return nil, model.Malformed("liquidated_collateral_amount", "%v", err)
	}
	liquidator, err := asAddress(values[2])
	if err != nil {
		return nil, model.Malformed("liquidator", "%v", err)
	}
	if liquidator == (common.Address{}) {
		return nil, model.Malformed("liquidator", "zero address")
	}
	receiveAToken, ok := values[3].(bool)
	if !ok {
		return nil, model.Malformed("receive_atoken", "unsupported bool type %T", values[3])
	}

	debtDecimals := n.tokenDecimals(ctx, indexed.DebtAsset)
	collateralDecimals := n.tokenDecimals(ctx, indexed.CollateralAsset)

	return &model.ChainEvent{
		ChainID:     log.ChainID,
		Pool:        common.HexToAddress(log.Address).Hex(),
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		TxIndex:     log.TxIndex,
		LogIndex:    log.LogIndex,
		Timestamp:   log.Timestamp,
		Kind:        model.KindLiquidation,
		Liquidation: &model.LiquidationPayload{
			Collateral:       indexed.CollateralAsset.Hex(),
			DebtToken:        indexed.DebtAsset.Hex(),
			User:             indexed.User.Hex(),
			Liquidator:       liquidator.Hex(),
			RepayAmount:      scaledAmount(debtToCover, debtDecimals),
			CollateralSeized: scaledAmount(seized, collateralDecimals),
			ReceiveAToken:    receiveAToken,
			ProtocolVersion:  n.protocolVersion,
		},
	}, nil
}

// tokenDecimals resolves a token's decimals through the cache, falling back
// to a live fetch when a chain client is wired. Unknown tokens default to
// 18, the dominant convention.
func (n *LendingNormalizer) tokenDecimals(ctx NormalizeContext, token common.Address) uint8 {
	if ctx.TokenMetaCache != nil {
		if meta, ok := ctx.TokenMetaCache.Get(token); ok {
			return meta.Decimals
		}
	}
	if ctx.Chain != nil {
		callCtx := ctx.Context
		if callCtx == nil {
			callCtx = context.Background()
		}
		if meta, err := FetchTokenMeta(callCtx, ctx.Chain, token, ctx.Logger); err == nil {
			if ctx.TokenMetaCache != nil {
				ctx.TokenMetaCache.Set(token, meta)
			}
			return meta.Decimals
		} else if ctx.Logger != nil {
			ctx.Logger.Warn("token decimals fetch failed", zap.String("token", token.Hex()), zap.Error(err))
		}
	}
	return 18
}
