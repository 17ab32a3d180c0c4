package entity

import (
	"time"
)

// DataSource names a valuation provider tier.
type DataSource string

const (
	DataSourceEastmoney DataSource = "eastmoney"
	DataSourceDerived   DataSource = "derived_kline"
	DataSourceScraped   DataSource = "scraped"
)

// ComputationMethod records how the PB ratio was obtained.
type ComputationMethod string

const (
	MethodDirect  ComputationMethod = "DIRECT"
	MethodDerived ComputationMethod = "DERIVED"
)

// sourcePriority is the explicit trust order used to resolve same-day write
// conflicts. Higher wins; unknown sources rank lowest.
var sourcePriority = map[DataSource]int{
	DataSourceEastmoney: 3,
	DataSourceDerived:   2,
	DataSourceScraped:   1,
}

// SourcePriority returns the trust rank of a data source.
func SourcePriority(s DataSource) int {
	return sourcePriority[s]
}

// Valuation is one provenance-tracked PB observation. At most one row exists
// per (asset_id, trade_date); the unique index enforces this at the storage
// layer.
type Valuation struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	AssetID         uint              `gorm:"not null;uniqueIndex:idx_valuations_asset_date" json:"asset_id"`
	TradeDate       time.Time         `gorm:"type:date;not null;uniqueIndex:idx_valuations_asset_date" json:"trade_date"`
	PB              float64           `gorm:"not null" json:"pb"`
	ClosePrice      *float64          `json:"close_price"`
	BookValue       *float64          `json:"book_value_per_share"`
	DataSource      DataSource        `gorm:"not null" json:"data_source"`
	Method          ComputationMethod `gorm:"not null" json:"computation_method"`
	ReportingPeriod string            `json:"reporting_period"`
	FetchedAt       time.Time         `gorm:"autoCreateTime" json:"fetched_at"`
}

func (Valuation) TableName() string {
	return "valuations"
}

// ShouldReplace reports whether an incoming same-day observation may replace
// this row. Only an equal-or-higher trust source wins; anything else is a
// no-op so a late low-quality feed can never clobber a direct measurement.
func (v *Valuation) ShouldReplace(incoming DataSource) bool {
	return SourcePriority(incoming) >= SourcePriority(v.DataSource)
}
