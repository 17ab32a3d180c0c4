package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the current holding in one asset. Only confirmed actions mutate
// quantity and cost basis; market value and profit are derived on valuation
// refresh.
type Position struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Account     string          `gorm:"not null;uniqueIndex:idx_positions_account_asset" json:"account"`
	AssetID     uint            `gorm:"not null;uniqueIndex:idx_positions_account_asset" json:"asset_id"`
	Quantity    int64           `gorm:"not null;default:0" json:"quantity"`
	AvgCost     decimal.Decimal `gorm:"type:numeric(18,6)" json:"avg_cost"`
	MarketValue decimal.Decimal `gorm:"type:numeric(18,6)" json:"market_value"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}

// Live reports whether the position holds any shares.
func (p *Position) Live() bool {
	return p != nil && p.Quantity > 0
}

// CostBasis is quantity times average cost.
func (p *Position) CostBasis() decimal.Decimal {
	return p.AvgCost.Mul(decimal.NewFromInt(p.Quantity))
}
