package dto

import "github.com/shopspring/decimal"

// PositionLine is one holding in the portfolio summary.
type PositionLine struct {
	AssetID     uint            `json:"asset_id"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Industry    string          `json:"industry"`
	Quantity    int64           `json:"quantity"`
	AvgCost     decimal.Decimal `json:"avg_cost"`
	MarketValue decimal.Decimal `json:"market_value"`
	WeightPct   float64         `json:"weight_pct"`
}

// PositionSummary is the read-only portfolio view exposed to rendering layers.
type PositionSummary struct {
	Account          string          `json:"account"`
	TotalAsset       decimal.Decimal `json:"total_asset"`
	Cash             decimal.Decimal `json:"cash"`
	AvailableCash    decimal.Decimal `json:"available_cash"`
	MarketValue      decimal.Decimal `json:"market_value"`
	CumulativeProfit decimal.Decimal `json:"cumulative_profit"`
	TotalWeightPct   float64         `json:"total_weight_pct"`
	Positions        []PositionLine  `json:"positions"`
}

// ComplianceStats reports how disciplined recent decisions were: the share
// of override actions and of drafts the risk gate rejected.
type ComplianceStats struct {
	Account         string  `json:"account"`
	WindowDays      int     `json:"window_days"`
	TotalActions    int64   `json:"total_actions"`
	OverrideActions int64   `json:"override_actions"`
	RejectedActions int64   `json:"rejected_actions"`
	OverrideRatePct float64 `json:"override_rate_pct"`
	RejectedRatePct float64 `json:"rejected_rate_pct"`
}

// ScanProgress is the scanner state published for the status endpoint.
type ScanProgress struct {
	Account     string `json:"account"`
	Status      string `json:"status"`
	Owner       string `json:"owner"`
	Scanned     int    `json:"scanned"`
	Total       int    `json:"total"`
	Failed      int    `json:"failed"`
	LastCode    string `json:"last_code"`
	StartedAt   string `json:"started_at,omitempty"`
	HeartbeatAt string `json:"heartbeat_at,omitempty"`
}

// ErrorResponse is a generic error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}
