package dto

import (
	"github.com/shopspring/decimal"

	"pb-sentinel/internal/entity"
)

// Severity classifies a risk finding.
type Severity string

const (
	SeverityBlock Severity = "BLOCK"
	SeverityWarn  Severity = "WARN"
)

// Finding is one risk control check outcome. Findings are never discarded;
// a rejected action carries all of them.
type Finding struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// HasBlock reports whether any finding is a hard block.
func HasBlock(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Messages flattens findings to their message strings.
func Messages(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Message)
	}
	return out
}

// CostBreakdown is the transaction cost estimate attached to a draft.
type CostBreakdown struct {
	Commission  decimal.Decimal `json:"commission"`
	Tax         decimal.Decimal `json:"tax"`
	TransferFee decimal.Decimal `json:"transfer_fee"`
	Slippage    decimal.Decimal `json:"slippage"`
}

// Total sums the breakdown.
func (c CostBreakdown) Total() decimal.Decimal {
	return c.Commission.Add(c.Tax).Add(c.TransferFee).Add(c.Slippage)
}

// ActionDraft is a proposed instruction, evaluated by the risk gate before
// the ledger will accept it.
type ActionDraft struct {
	Account        string            `json:"account"`
	AssetID        uint              `json:"asset_id"`
	SignalID       *uint             `json:"signal_id"`
	Kind           entity.ActionKind `json:"kind"`
	Quantity       int64             `json:"quantity"`
	Price          decimal.Decimal   `json:"price"`
	Reason         string            `json:"reason"`
	OverrideReason string            `json:"override_reason"`
	Costs          CostBreakdown     `json:"costs"`
}

// GrossAmount is quantity times price.
func (d *ActionDraft) GrossAmount() decimal.Decimal {
	return d.Price.Mul(decimal.NewFromInt(d.Quantity))
}
