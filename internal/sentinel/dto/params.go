package dto

import (
	"time"

	"pb-sentinel/internal/entity"
)

// GetValuationsParam filters valuation history queries.
type GetValuationsParam struct {
	AssetID uint
	Since   *time.Time
	Until   *time.Time
	// AfterDate and Limit support restartable chunked iteration: rows with
	// trade_date > AfterDate are returned oldest first, at most Limit rows.
	AfterDate *time.Time
	Limit     int
}

// GetSignalsParam filters signal queries.
type GetSignalsParam struct {
	AssetID  *uint
	Kinds    []entity.SignalKind
	Statuses []entity.SignalStatus
	Since    *time.Time
	Limit    int
}

// GetActionsParam filters action ledger queries.
type GetActionsParam struct {
	Account string
	AssetID *uint
	Kind    *entity.ActionKind
	Status  *entity.ActionStatus
	Since   *time.Time
	Limit   int
}
