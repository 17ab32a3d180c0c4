package dto

// AssetRequest is the payload for admitting or updating a pool asset.
type AssetRequest struct {
	Code            string `json:"code"`
	Name            string `json:"name"`
	Market          string `json:"market"`
	Industry        string `json:"industry"`
	Tags            string `json:"tags"`
	CompetenceScore int    `json:"competence_score"`
	Notes           string `json:"notes"`
}

// SetThresholdsRequest is the payload for a manual threshold override.
type SetThresholdsRequest struct {
	BuyPB  float64 `json:"buy_pb"`
	AddPB  float64 `json:"add_pb"`
	SellPB float64 `json:"sell_pb"`
}

// UpsertValuationRequest is the payload for recording a valuation by hand,
// e.g. backfilling history from an export.
type UpsertValuationRequest struct {
	TradeDate  string   `json:"trade_date"`
	PB         float64  `json:"pb"`
	ClosePrice *float64 `json:"close_price"`
	BookValue  *float64 `json:"book_value"`
	Source     string   `json:"source"`
}
