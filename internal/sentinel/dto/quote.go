package dto

import (
	"time"

	"pb-sentinel/internal/entity"
)

// ValuationQuote is one observation fetched from a market data provider.
// ClosePrice stays nil when the provider cannot supply it; it is never
// substituted with an unrelated scale metric such as market capitalization.
type ValuationQuote struct {
	TradeDate       time.Time
	PB              float64
	ClosePrice      *float64
	BookValue       *float64
	ReportingPeriod string
	Source          entity.DataSource
	Method          entity.ComputationMethod
}
