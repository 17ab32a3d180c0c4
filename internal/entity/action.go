package entity

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ActionKind is one of the four decision outcomes an operator can record.
type ActionKind string

const (
	ActionBuy  ActionKind = "BUY"
	ActionAdd  ActionKind = "ADD"
	ActionHold ActionKind = "HOLD"
	ActionSell ActionKind = "SELL"
)

// ActionStatus is the order lifecycle status of a ledger row.
type ActionStatus string

const (
	ActionStatusExecuted ActionStatus = "EXECUTED"
	ActionStatusRejected ActionStatus = "REJECTED"
)

// Action is one immutable ledger row. A rejected action carries the blocking
// risk findings in Findings instead of being dropped.
type Action struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Account     string          `gorm:"not null;index" json:"account"`
	AssetID     uint            `gorm:"not null;index" json:"asset_id"`
	SignalID    *uint           `json:"signal_id"`
	ActionDate  time.Time       `gorm:"type:date;not null" json:"action_date"`
	Kind        ActionKind      `gorm:"not null" json:"kind"`
	Quantity    int64           `json:"quantity"`
	Price       decimal.Decimal `gorm:"type:numeric(18,6)" json:"price"`
	Reason      string          `gorm:"not null" json:"reason"`
	Commission  decimal.Decimal `gorm:"type:numeric(18,6)" json:"commission"`
	Tax         decimal.Decimal `gorm:"type:numeric(18,6)" json:"tax"`
	TransferFee decimal.Decimal `gorm:"type:numeric(18,6)" json:"transfer_fee"`
	Slippage    decimal.Decimal `gorm:"type:numeric(18,6)" json:"slippage"`
	TotalCost   decimal.Decimal `gorm:"type:numeric(18,6)" json:"total_cost"`
	Status      ActionStatus    `gorm:"not null" json:"status"`
	Override    bool            `gorm:"default:false" json:"override"`
	Findings    datatypes.JSON  `gorm:"type:jsonb" json:"findings"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (Action) TableName() string {
	return "actions"
}

// GrossAmount is quantity times price, before costs.
func (a *Action) GrossAmount() decimal.Decimal {
	return a.Price.Mul(decimal.NewFromInt(a.Quantity))
}

// SumCosts computes the total transaction cost from the breakdown.
func (a *Action) SumCosts() decimal.Decimal {
	return a.Commission.Add(a.Tax).Add(a.TransferFee).Add(a.Slippage)
}
