package entity

import (
	"time"

	"gorm.io/gorm"
)

// Market identifies the exchange an asset trades on.
type Market string

const (
	MarketAShare Market = "A_SHARE"
	MarketHK     Market = "HK"
	MarketUS     Market = "US"
)

// Asset is a stock admitted to the watch pool. Assets with historical
// valuations or actions are soft-retired, never physically deleted.
type Asset struct {
	ID              uint           `gorm:"primaryKey" json:"id"`
	Code            string         `gorm:"not null;uniqueIndex" json:"code"`
	Name            string         `gorm:"not null" json:"name"`
	Market          Market         `gorm:"not null" json:"market"`
	Industry        string         `json:"industry"`
	Tags            string         `json:"tags"`
	CompetenceScore int            `gorm:"default:3" json:"competence_score"`
	Notes           string         `json:"notes"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Asset) TableName() string {
	return "assets"
}
