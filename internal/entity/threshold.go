package entity

import (
	"time"

	"pb-sentinel/pkg/apperrors"
)

// ThresholdSource records where the active levels came from.
type ThresholdSource string

const (
	ThresholdSourceManual   ThresholdSource = "MANUAL"
	ThresholdSourceTemplate ThresholdSource = "TEMPLATE"
)

// Threshold holds the PB trigger levels for one asset. The write-time
// invariant is add_pb <= buy_pb < sell_pb.
type Threshold struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AssetID   uint            `gorm:"not null;uniqueIndex" json:"asset_id"`
	BuyPB     float64         `gorm:"not null" json:"buy_pb"`
	AddPB     float64         `gorm:"not null" json:"add_pb"`
	SellPB    float64         `gorm:"not null" json:"sell_pb"`
	Source    ThresholdSource `gorm:"default:MANUAL" json:"source"`
	UpdatedAt time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Threshold) TableName() string {
	return "thresholds"
}

// Validate checks the level ordering invariant.
func (t *Threshold) Validate() error {
	if t.BuyPB <= 0 || t.AddPB <= 0 || t.SellPB <= 0 {
		return apperrors.NewValidation("threshold", "levels must be positive, got buy=%.2f add=%.2f sell=%.2f", t.BuyPB, t.AddPB, t.SellPB)
	}
	if t.AddPB > t.BuyPB || t.BuyPB >= t.SellPB {
		return apperrors.NewValidation("threshold", "ordering add <= buy < sell violated: add=%.2f buy=%.2f sell=%.2f", t.AddPB, t.BuyPB, t.SellPB)
	}
	return nil
}
