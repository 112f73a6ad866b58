package domain

// Position is one open paper position. One entry per symbol; removed when the
// quantity reaches zero.
type Position struct {
	Symbol        string  `json:"symbol"`
	Qty           int64   `json:"qty"`
	AvgPrice      float64 `json:"avgPrice"`
	MarketValue   float64 `json:"marketValue"`
	UnrealizedPnL float64 `json:"unrealizedPnL"`
	RealizedPnL   float64 `json:"realizedPnL"`
}

// Balance is the singleton account balance. TotalValue is cash plus the
// market value of all open positions.
type Balance struct {
	Cash        float64 `json:"cash"`
	BuyingPower float64 `json:"buyingPower"`
	TotalValue  float64 `json:"totalValue"`
	Currency    string  `json:"currency"`
}
