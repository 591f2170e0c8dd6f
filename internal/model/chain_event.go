package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// EventKind enumerates the closed set of normalized event kinds.
type EventKind uint8

const (
	KindSwap EventKind = iota
	KindMint
	KindBurn
	KindLiquidation
)

// String returns the canonical event kind name.
func (k EventKind) String() string {
	switch k {
	case KindSwap:
		return "Swap"
	case KindMint:
		return "Mint"
	case KindBurn:
		return "Burn"
	case KindLiquidation:
		return "Liquidation"
	default:
		return fmt.Sprintf("EventKind(%d)", uint8(k))
	}
}

// ParseEventKind maps a kind name back to its EventKind.
func ParseEventKind(name string) (EventKind, error) {
	switch name {
	case "Swap":
		return KindSwap, nil
	case "Mint":
		return KindMint, nil
	case "Burn":
		return KindBurn, nil
	case "Liquidation":
		return KindLiquidation, nil
	default:
		return 0, fmt.Errorf("unknown event kind: %s", name)
	}
}

// MarshalText encodes the kind as its canonical name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind from its canonical name.
func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEventKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ChainEvent is a normalized on-chain event. Exactly one payload field is
// non-nil, selected by Kind. Events are immutable once built by the
// normalizer and keep the gateway's (block, tx index, log index) ordering.
type ChainEvent struct {
	ChainID     uint64    `json:"chain_id"`
	Pool        string    `json:"pool"`
	BlockNumber uint64    `json:"block_number"`
	TxHash      string    `json:"tx_hash"`
	TxIndex     uint64    `json:"tx_index"`
	LogIndex    uint64    `json:"log_index"`
	Timestamp   uint64    `json:"timestamp"`
	Kind        EventKind `json:"kind"`

	Swap        *SwapPayload        `json:"swap,omitempty"`
	Mint        *MintPayload        `json:"mint,omitempty"`
	Burn        *BurnPayload        `json:"burn,omitempty"`
	Liquidation *LiquidationPayload `json:"liquidation,omitempty"`

	PoolMeta PoolMeta `json:"pool_meta"`
}

// SwapPayload carries a decoded swap. Amounts are signed from the pool's
// perspective and already scaled by token decimals; PriceAfter is token1 per
// token0 derived from the post-swap sqrt price.
type SwapPayload struct {
	Sender       string          `json:"sender"`
	Recipient    string          `json:"recipient"`
	Amount0      decimal.Decimal `json:"amount0"`
	Amount1      decimal.Decimal `json:"amount1"`
	SqrtPriceX96 string          `json:"sqrt_price_x96"`
	Liquidity    string          `json:"liquidity"`
	Tick         int32           `json:"tick"`
	PriceAfter   decimal.Decimal `json:"price_after"`
	GasUsed      uint64          `json:"gas_used,omitempty"`
	GasPriceWei  string          `json:"gas_price_wei,omitempty"`
}

// MintPayload carries a decoded liquidity mint.
type MintPayload struct {
	Sender    string          `json:"sender"`
	Owner     string          `json:"owner"`
	TickLower int32           `json:"tick_lower"`
	TickUpper int32           `json:"tick_upper"`
	Amount    string          `json:"amount"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
}

// BurnPayload carries a decoded liquidity burn.
type BurnPayload struct {
	Owner     string          `json:"owner"`
	TickLower int32           `json:"tick_lower"`
	TickUpper int32           `json:"tick_upper"`
	Amount    string          `json:"amount"`
	Amount0   decimal.Decimal `json:"amount0"`
	Amount1   decimal.Decimal `json:"amount1"`
}

// LiquidationPayload carries a lending-protocol collateral seizure.
type LiquidationPayload struct {
	Collateral       string          `json:"collateral"`
	DebtToken        string          `json:"debt_token"`
	User             string          `json:"user"`
	Liquidator       string          `json:"liquidator"`
	RepayAmount      decimal.Decimal `json:"repay_amount"`
	CollateralSeized decimal.Decimal `json:"collateral_seized"`
	ReceiveAToken    bool            `json:"receive_atoken"`
	ProtocolVersion  string          `json:"protocol_version"`
}

// Actor returns the address that initiated the event.
func (e *ChainEvent) Actor() string {
	switch e.Kind {
	case KindSwap:
		if e.Swap != nil {
			return e.Swap.Sender
		}
	case KindMint:
		if e.Mint != nil {
			return e.Mint.Sender
		}
	case KindBurn:
		if e.Burn != nil {
			return e.Burn.Owner
		}
	case KindLiquidation:
		if e.Liquidation != nil {
			return e.Liquidation.Liquidator
		}
	}
	return ""
}

// Before reports whether e precedes other in canonical stream order.
func (e *ChainEvent) Before(other *ChainEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	if e.TxIndex != other.TxIndex {
		return e.TxIndex < other.TxIndex
	}
	return e.LogIndex < other.LogIndex
}
