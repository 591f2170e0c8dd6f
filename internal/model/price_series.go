package model

// PriceSeries is the ordered bar sequence for one pool. Partial flags a
// series where some swaps were dropped because their block timestamp could
// not be resolved.
type PriceSeries struct {
	ChainID uint64     `json:"chain_id"`
	Pool    string     `json:"pool"`
	Bars    []PriceBar `json:"bars"`
	Partial bool       `json:"partial"`
}
