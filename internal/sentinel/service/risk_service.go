package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/config"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
	"pb-sentinel/pkg/utils"
)

// Finding codes emitted by the risk gate.
const (
	FindingSinglePositionCap = "SINGLE_POSITION_CAP"
	FindingTotalPositionCap  = "TOTAL_POSITION_CAP"
	FindingCashInsufficient  = "CASH_INSUFFICIENT"
	FindingIndustryExposure  = "INDUSTRY_CONCENTRATION"
	FindingDailyTurnover     = "DAILY_TURNOVER"
	FindingOversell          = "OVERSELL"
)

// RiskService validates a proposed action against portfolio-level
// constraints. Every check is independently computable; Evaluate composes
// them and never discards a finding.
type RiskService interface {
	Evaluate(ctx context.Context, draft *dto.ActionDraft) ([]dto.Finding, error)
	PositionSummary(ctx context.Context, account string) (*dto.PositionSummary, error)
}

// NewRiskService creates the risk control gate.
func NewRiskService(
	positionRepo repository.PositionRepository,
	portfolioRepo repository.PortfolioRepository,
	assetRepo repository.AssetRepository,
	ledgerRepo repository.LedgerRepository,
	cfg *config.Config,
	log *logger.Logger,
) RiskService {
	return &riskService{
		positionRepo:  positionRepo,
		portfolioRepo: portfolioRepo,
		assetRepo:     assetRepo,
		ledgerRepo:    ledgerRepo,
		cfg:           cfg,
		logger:        log,
	}
}

type riskService struct {
	positionRepo  repository.PositionRepository
	portfolioRepo repository.PortfolioRepository
	assetRepo     repository.AssetRepository
	ledgerRepo    repository.LedgerRepository
	cfg           *config.Config
	logger        *logger.Logger
}

func (s *riskService) Evaluate(ctx context.Context, draft *dto.ActionDraft) ([]dto.Finding, error) {
	if draft.Kind == entity.ActionHold {
		return nil, nil
	}

	portfolio, err := s.portfolioRepo.Get(ctx, draft.Account)
	if err != nil {
		return nil, err
	}
	nav := portfolio.TotalAsset
	if nav.IsZero() {
		return nil, apperrors.NewValidation("portfolio", "NAV is zero for account %s", draft.Account)
	}

	positions, err := s.positionRepo.GetAll(ctx, draft.Account)
	if err != nil {
		return nil, err
	}
	current := positionFor(positions, draft.AssetID)

	var findings []dto.Finding
	switch draft.Kind {
	case entity.ActionBuy, entity.ActionAdd:
		amount := draft.GrossAmount()
		findings = append(findings, s.checkSingleCap(draft, current, amount, nav)...)
		findings = append(findings, s.checkTotalCap(positions, amount, nav)...)
		findings = append(findings, s.checkCash(portfolio, draft, amount, nav)...)
		industryFindings, err := s.checkIndustry(ctx, positions, draft, amount, nav)
		if err != nil {
			return nil, err
		}
		findings = append(findings, industryFindings...)
	case entity.ActionSell:
		findings = append(findings, s.checkOversell(draft, current)...)
	}

	turnoverFindings, err := s.checkTurnover(ctx, draft, nav)
	if err != nil {
		return nil, err
	}
	findings = append(findings, turnoverFindings...)

	return findings, nil
}

// checkSingleCap enforces the per-asset position ceiling. An explicit
// override reason downgrades the block to a logged warning.
func (s *riskService) checkSingleCap(draft *dto.ActionDraft, current *entity.Position, amount, nav decimal.Decimal) []dto.Finding {
	exposure := amount
	if current != nil {
		exposure = exposure.Add(positionValue(current))
	}
	pct := pctOf(exposure, nav)
	if pct <= s.cfg.Risk.MaxSinglePositionPct {
		return nil
	}

	message := fmt.Sprintf("post-action position %.1f%% of NAV exceeds single-asset cap %.1f%%",
		pct, s.cfg.Risk.MaxSinglePositionPct)
	if draft.OverrideReason != "" {
		s.logger.Warn("Single-position cap overridden",
			logger.Field("asset_id", draft.AssetID),
			logger.StringField("override_reason", draft.OverrideReason),
			logger.StringField("violation", message))
		return []dto.Finding{{
			Code:     FindingSinglePositionCap,
			Severity: dto.SeverityWarn,
			Message:  message + " (override: " + draft.OverrideReason + ")",
		}}
	}
	return []dto.Finding{{Code: FindingSinglePositionCap, Severity: dto.SeverityBlock, Message: message}}
}

// checkTotalCap enforces the aggregate ceiling. Not overridable.
func (s *riskService) checkTotalCap(positions []entity.Position, amount, nav decimal.Decimal) []dto.Finding {
	total := amount
	for i := range positions {
		total = total.Add(positionValue(&positions[i]))
	}
	pct := pctOf(total, nav)
	if pct <= s.cfg.Risk.MaxTotalPositionPct {
		return nil
	}
	return []dto.Finding{{
		Code:     FindingTotalPositionCap,
		Severity: dto.SeverityBlock,
		Message: fmt.Sprintf("aggregate position %.1f%% of NAV exceeds cap %.1f%%",
			pct, s.cfg.Risk.MaxTotalPositionPct),
	}}
}

// checkCash requires the amount plus costs to fit in available cash while
// keeping the configured reserve ratio of NAV untouched.
func (s *riskService) checkCash(portfolio *entity.Portfolio, draft *dto.ActionDraft, amount, nav decimal.Decimal) []dto.Finding {
	needed := amount.Add(draft.Costs.Total())
	if s.cfg.Risk.MinCashRatioPct > 0 {
		reserve := nav.Mul(decimal.NewFromFloat(s.cfg.Risk.MinCashRatioPct / 100))
		needed = needed.Add(reserve)
	}
	available := portfolio.AvailableCash()
	if available.GreaterThanOrEqual(needed) {
		return nil
	}
	return []dto.Finding{{
		Code:     FindingCashInsufficient,
		Severity: dto.SeverityBlock,
		Message: fmt.Sprintf("available cash %s below planned amount plus costs and reserve %s",
			available.StringFixed(2), needed.StringFixed(2)),
	}}
}

func (s *riskService) checkIndustry(ctx context.Context, positions []entity.Position, draft *dto.ActionDraft, amount, nav decimal.Decimal) ([]dto.Finding, error) {
	asset, err := s.assetRepo.FindByID(ctx, draft.AssetID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NewValidation("asset_id", "asset %d not in pool", draft.AssetID)
		}
		return nil, err
	}
	if asset.Industry == "" {
		return nil, nil
	}

	exposure := amount
	for i := range positions {
		peer, err := s.assetRepo.FindByID(ctx, positions[i].AssetID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if peer.Industry == asset.Industry {
			exposure = exposure.Add(positionValue(&positions[i]))
		}
	}

	pct := pctOf(exposure, nav)
	if pct <= s.cfg.Risk.MaxIndustryConcentrationPct {
		return nil, nil
	}

	severity := dto.SeverityWarn
	if s.cfg.Risk.StrictIndustryCap {
		severity = dto.SeverityBlock
	}
	return []dto.Finding{{
		Code:     FindingIndustryExposure,
		Severity: severity,
		Message: fmt.Sprintf("industry %q exposure %.1f%% of NAV exceeds ceiling %.1f%%",
			asset.Industry, pct, s.cfg.Risk.MaxIndustryConcentrationPct),
	}}, nil
}

func (s *riskService) checkTurnover(ctx context.Context, draft *dto.ActionDraft, nav decimal.Decimal) ([]dto.Finding, error) {
	today := utils.TruncateToDay(time.Now())
	executed, err := s.ledgerRepo.ExecutedTurnoverOn(ctx, draft.Account, today)
	if err != nil {
		return nil, err
	}
	pct := pctOf(executed.Add(draft.GrossAmount()), nav)
	if pct <= s.cfg.Risk.MaxDailyTurnoverPct {
		return nil, nil
	}
	return []dto.Finding{{
		Code:     FindingDailyTurnover,
		Severity: dto.SeverityWarn,
		Message: fmt.Sprintf("same-day turnover %.1f%% of NAV exceeds ceiling %.1f%%",
			pct, s.cfg.Risk.MaxDailyTurnoverPct),
	}}, nil
}

func (s *riskService) checkOversell(draft *dto.ActionDraft, current *entity.Position) []dto.Finding {
	held := int64(0)
	if current != nil {
		held = current.Quantity
	}
	if draft.Quantity <= held {
		return nil
	}
	return []dto.Finding{{
		Code:     FindingOversell,
		Severity: dto.SeverityBlock,
		Message:  fmt.Sprintf("sell quantity %d exceeds held quantity %d", draft.Quantity, held),
	}}
}

func (s *riskService) PositionSummary(ctx context.Context, account string) (*dto.PositionSummary, error) {
	portfolio, err := s.portfolioRepo.Get(ctx, account)
	if err != nil {
		return nil, err
	}
	positions, err := s.positionRepo.GetAll(ctx, account)
	if err != nil {
		return nil, err
	}

	summary := &dto.PositionSummary{
		Account:          account,
		TotalAsset:       portfolio.TotalAsset,
		Cash:             portfolio.Cash,
		AvailableCash:    portfolio.AvailableCash(),
		CumulativeProfit: portfolio.CumulativeProfit,
	}

	marketValue := decimal.Zero
	for i := range positions {
		value := positionValue(&positions[i])
		marketValue = marketValue.Add(value)

		line := dto.PositionLine{
			AssetID:     positions[i].AssetID,
			Quantity:    positions[i].Quantity,
			AvgCost:     positions[i].AvgCost,
			MarketValue: value,
			WeightPct:   pctOf(value, portfolio.TotalAsset),
		}
		if asset, err := s.assetRepo.FindByID(ctx, positions[i].AssetID); err == nil {
			line.Code = asset.Code
			line.Name = asset.Name
			line.Industry = asset.Industry
		}
		summary.Positions = append(summary.Positions, line)
	}
	summary.MarketValue = marketValue
	summary.TotalWeightPct = pctOf(marketValue, portfolio.TotalAsset)

	return summary, nil
}

func positionFor(positions []entity.Position, assetID uint) *entity.Position {
	for i := range positions {
		if positions[i].AssetID == assetID {
			return &positions[i]
		}
	}
	return nil
}

// positionValue prefers the refreshed market value and falls back to cost
// basis when no valuation has been applied yet.
func positionValue(p *entity.Position) decimal.Decimal {
	if !p.MarketValue.IsZero() {
		return p.MarketValue
	}
	return p.CostBasis()
}

func pctOf(part, whole decimal.Decimal) float64 {
	if whole.IsZero() {
		return 0
	}
	pct, _ := part.Div(whole).Mul(decimal.NewFromInt(100)).Float64()
	return pct
}
