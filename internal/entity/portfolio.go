package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Portfolio is the single account-level aggregate. Settled-state invariants:
// cash = total_asset - market value of holdings, and
// available cash = cash - frozen_cash >= 0.
type Portfolio struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	Account          string          `gorm:"not null;uniqueIndex" json:"account"`
	TotalAsset       decimal.Decimal `gorm:"type:numeric(18,6)" json:"total_asset"`
	Cash             decimal.Decimal `gorm:"type:numeric(18,6)" json:"cash"`
	FrozenCash       decimal.Decimal `gorm:"type:numeric(18,6)" json:"frozen_cash"`
	CumulativeProfit decimal.Decimal `gorm:"type:numeric(18,6)" json:"cumulative_profit"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Portfolio) TableName() string {
	return "portfolios"
}

// AvailableCash is cash not frozen by pending orders.
func (p *Portfolio) AvailableCash() decimal.Decimal {
	return p.Cash.Sub(p.FrozenCash)
}
