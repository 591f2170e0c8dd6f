package mev

import (
	"strings"

	"github.com/shopspring/decimal"

	"dexlens/internal/model"
)

// detectLiquidations passes lending-protocol seizure events through as
// candidates. Profit is seized-collateral value minus debt repaid minus the
// protocol penalty on the seized value, priced with the configured quote
// conversions (default 1, i.e. amounts already in quote terms). The event is
// explicit on chain, so confidence is fixed at 1.
func (d *Detector) detectLiquidations(events []*model.ChainEvent) []model.MEVCandidate {
	pxCollateral := d.cfg.CollateralPrice
	if pxCollateral.Sign() <= 0 {
		pxCollateral = decimal.NewFromInt(1)
	}
	pxDebt := d.cfg.DebtPrice
	if pxDebt.Sign() <= 0 {
		pxDebt = decimal.NewFromInt(1)
	}

	var minBlock uint64
	if d.cfg.LiqSpanBlocks > 0 {
		var maxBlock uint64
		for _, ev := range events {
			if ev.BlockNumber > maxBlock {
				maxBlock = ev.BlockNumber
			}
		}
		if maxBlock >= d.cfg.LiqSpanBlocks {
			minBlock = maxBlock - d.cfg.LiqSpanBlocks + 1
		}
	}

	out := make([]model.MEVCandidate, 0, len(events))
	for _, ev := range events {
		if ev.BlockNumber < minBlock {
			continue
		}
		liq := ev.Liquidation

		seizedValue := liq.CollateralSeized.Mul(pxCollateral)
		repaidValue := liq.RepayAmount.Mul(pxDebt)
		penalty := seizedValue.Mul(d.cfg.PenaltyBps).Div(decimal.NewFromInt(10000))
		profit := seizedValue.Sub(repaidValue).Sub(penalty)

		out = append(out, model.MEVCandidate{
			ChainID:        ev.ChainID,
			BlockNumber:    ev.BlockNumber,
			Kind:           model.PatternLiquidation,
			Pool:           ev.Pool,
			Actor:          strings.ToLower(liq.Liquidator),
			TxHashes:       []string{ev.TxHash},
			EstProfitQuote: profit,
			Confidence:     1,
			PriceMoveBps:   decimal.Zero,
		})
	}
	return out
}
