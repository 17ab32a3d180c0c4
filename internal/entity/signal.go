package entity

import (
	"time"

	"gorm.io/datatypes"
)

// SignalKind is the action a signal proposes.
type SignalKind string

const (
	SignalBuy  SignalKind = "BUY"
	SignalAdd  SignalKind = "ADD"
	SignalSell SignalKind = "SELL"
)

// SignalStatus tracks the operator-facing lifecycle of an emitted signal.
type SignalStatus string

const (
	SignalStatusOpen      SignalStatus = "OPEN"
	SignalStatusExecuted  SignalStatus = "EXECUTED"
	SignalStatusDismissed SignalStatus = "DISMISSED"
	SignalStatusExpired   SignalStatus = "EXPIRED"
)

// Signal is an immutable threshold-crossing record emitted by the signal
// engine. (AssetID, Kind) is the de-duplication key the cooldown filter uses.
type Signal struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	AssetID     uint           `gorm:"not null;index" json:"asset_id"`
	Kind        SignalKind     `gorm:"not null" json:"kind"`
	TradeDate   time.Time      `gorm:"type:date;not null" json:"trade_date"`
	PB          float64        `gorm:"not null" json:"pb"`
	Threshold   float64        `gorm:"not null" json:"threshold"`
	Percentile  *float64       `json:"percentile"`
	Explanation string         `json:"explanation"`
	Status      SignalStatus   `gorm:"default:OPEN" json:"status"`
	Data        datatypes.JSON `gorm:"type:jsonb" json:"data"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
}

func (Signal) TableName() string {
	return "signals"
}
