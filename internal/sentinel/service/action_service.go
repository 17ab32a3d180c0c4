package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
	"pb-sentinel/pkg/utils"
)

// ActionService records operator decisions into the append-only ledger and
// applies the resulting position and portfolio mutations atomically.
type ActionService interface {
	// Record validates the draft, runs it through the risk gate and persists
	// the outcome. A blocked draft is still written as a REJECTED row carrying
	// every finding, and the call returns RiskBlockedError.
	Record(ctx context.Context, draft *dto.ActionDraft) (*entity.Action, error)
	History(ctx context.Context, param dto.GetActionsParam) ([]entity.Action, error)
	// ComplianceStats summarizes decision discipline over the trailing window.
	ComplianceStats(ctx context.Context, account string, days int) (*dto.ComplianceStats, error)
}

// NewActionService creates the ledger service.
func NewActionService(
	ledgerRepo repository.LedgerRepository,
	positionRepo repository.PositionRepository,
	portfolioRepo repository.PortfolioRepository,
	riskSvc RiskService,
	signalSvc SignalService,
	log *logger.Logger,
) ActionService {
	return &actionService{
		ledgerRepo:    ledgerRepo,
		positionRepo:  positionRepo,
		portfolioRepo: portfolioRepo,
		riskSvc:       riskSvc,
		signalSvc:     signalSvc,
		logger:        log,
	}
}

type actionService struct {
	ledgerRepo    repository.LedgerRepository
	positionRepo  repository.PositionRepository
	portfolioRepo repository.PortfolioRepository
	riskSvc       RiskService
	signalSvc     SignalService
	logger        *logger.Logger
}

func (s *actionService) Record(ctx context.Context, draft *dto.ActionDraft) (*entity.Action, error) {
	if err := s.validate(draft); err != nil {
		return nil, err
	}

	findings, err := s.riskSvc.Evaluate(ctx, draft)
	if err != nil {
		return nil, err
	}

	action := s.buildAction(draft, findings)

	if dto.HasBlock(findings) {
		action.Status = entity.ActionStatusRejected
		if err := s.ledgerRepo.Commit(ctx, action, nil, nil); err != nil {
			return nil, err
		}
		s.logger.WarnContext(ctx, "Action rejected by risk gate",
			logger.Field("asset_id", draft.AssetID),
			logger.StringField("kind", string(draft.Kind)),
			logger.Field("findings", dto.Messages(findings)))
		return action, &apperrors.RiskBlockedError{Findings: dto.Messages(findings)}
	}

	action.Status = entity.ActionStatusExecuted
	position, portfolio, err := s.applyLedger(ctx, draft, action)
	if err != nil {
		return nil, err
	}
	if err := s.ledgerRepo.Commit(ctx, action, position, portfolio); err != nil {
		return nil, err
	}

	s.settleSignal(ctx, draft)

	s.logger.InfoContext(ctx, "Action recorded",
		logger.Field("asset_id", draft.AssetID),
		logger.StringField("kind", string(draft.Kind)),
		logger.Field("quantity", draft.Quantity))
	return action, nil
}

func (s *actionService) validate(draft *dto.ActionDraft) error {
	if draft.Reason == "" {
		return apperrors.NewValidation("reason", "a decision reason is required")
	}
	if draft.Account == "" {
		return apperrors.NewValidation("account", "account is required")
	}
	if draft.Kind == entity.ActionHold {
		return nil
	}
	if draft.Quantity <= 0 {
		return apperrors.NewValidation("quantity", "quantity must be positive, got %d", draft.Quantity)
	}
	if !draft.Price.IsPositive() {
		return apperrors.NewValidation("price", "price must be positive, got %s", draft.Price)
	}
	return nil
}

func (s *actionService) buildAction(draft *dto.ActionDraft, findings []dto.Finding) *entity.Action {
	action := &entity.Action{
		Account:     draft.Account,
		AssetID:     draft.AssetID,
		SignalID:    draft.SignalID,
		ActionDate:  utils.TruncateToDay(time.Now()),
		Kind:        draft.Kind,
		Quantity:    draft.Quantity,
		Price:       draft.Price,
		Reason:      draft.Reason,
		Commission:  draft.Costs.Commission,
		Tax:         draft.Costs.Tax,
		TransferFee: draft.Costs.TransferFee,
		Slippage:    draft.Costs.Slippage,
		Override:    draft.OverrideReason != "",
	}
	action.TotalCost = action.SumCosts()
	if len(findings) > 0 {
		if raw, err := json.Marshal(findings); err == nil {
			action.Findings = raw
		}
	}
	return action
}

// applyLedger computes the post-action position and portfolio state. BUY/ADD
// roll transaction costs into the weighted average cost; SELL realizes profit
// proportionally to the sold quantity.
func (s *actionService) applyLedger(ctx context.Context, draft *dto.ActionDraft, action *entity.Action) (*entity.Position, *entity.Portfolio, error) {
	if draft.Kind == entity.ActionHold {
		return nil, nil, nil
	}

	portfolio, err := s.portfolioRepo.Get(ctx, draft.Account)
	if err != nil {
		return nil, nil, err
	}
	position, err := s.positionRepo.Get(ctx, draft.Account, draft.AssetID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			return nil, nil, err
		}
		position = &entity.Position{Account: draft.Account, AssetID: draft.AssetID}
	}

	gross := action.GrossAmount()
	costs := action.TotalCost

	switch draft.Kind {
	case entity.ActionBuy, entity.ActionAdd:
		oldBasis := position.CostBasis()
		newQuantity := position.Quantity + draft.Quantity
		position.AvgCost = oldBasis.Add(gross).Add(costs).
			Div(decimal.NewFromInt(newQuantity))
		position.Quantity = newQuantity
		portfolio.Cash = portfolio.Cash.Sub(gross).Sub(costs)

	case entity.ActionSell:
		realized := draft.Price.Sub(position.AvgCost).
			Mul(decimal.NewFromInt(draft.Quantity)).
			Sub(costs)
		position.Quantity -= draft.Quantity
		if position.Quantity == 0 {
			position.AvgCost = decimal.Zero
		}
		portfolio.Cash = portfolio.Cash.Add(gross).Sub(costs)
		portfolio.CumulativeProfit = portfolio.CumulativeProfit.Add(realized)
	}

	position.MarketValue = draft.Price.Mul(decimal.NewFromInt(position.Quantity))

	if portfolio.AvailableCash().IsNegative() {
		return nil, nil, apperrors.NewValidation("cash",
			"post-action available cash %s is negative", portfolio.AvailableCash().StringFixed(2))
	}
	if err := s.recomputeTotalAsset(ctx, portfolio, position); err != nil {
		return nil, nil, err
	}

	return position, portfolio, nil
}

// recomputeTotalAsset restates NAV as cash plus the market value of every
// holding, with the mutated position substituted for its stored row.
func (s *actionService) recomputeTotalAsset(ctx context.Context, portfolio *entity.Portfolio, mutated *entity.Position) error {
	positions, err := s.positionRepo.GetAll(ctx, portfolio.Account)
	if err != nil {
		return err
	}

	holdings := mutated.MarketValue
	for i := range positions {
		if positions[i].AssetID == mutated.AssetID {
			continue
		}
		holdings = holdings.Add(positionValue(&positions[i]))
	}
	portfolio.TotalAsset = portfolio.Cash.Add(holdings)
	return nil
}

// settleSignal closes out the linked signal: executed for trades, dismissed
// for a recorded HOLD. Failures only log; the ledger row is already durable.
func (s *actionService) settleSignal(ctx context.Context, draft *dto.ActionDraft) {
	if draft.SignalID == nil {
		return
	}
	var err error
	if draft.Kind == entity.ActionHold {
		err = s.signalSvc.Dismiss(ctx, *draft.SignalID)
	} else {
		err = s.signalSvc.MarkExecuted(ctx, *draft.SignalID)
	}
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to settle linked signal",
			logger.Field("signal_id", *draft.SignalID), logger.ErrorField(err))
	}
}

func (s *actionService) History(ctx context.Context, param dto.GetActionsParam) ([]entity.Action, error) {
	return s.ledgerRepo.Find(ctx, param)
}

func (s *actionService) ComplianceStats(ctx context.Context, account string, days int) (*dto.ComplianceStats, error) {
	if days <= 0 {
		return nil, apperrors.NewValidation("days", "window must be positive, got %d", days)
	}
	since := utils.TruncateToDay(time.Now().AddDate(0, 0, -days))
	counts, err := s.ledgerRepo.CountDiscipline(ctx, account, since)
	if err != nil {
		return nil, err
	}

	stats := &dto.ComplianceStats{
		Account:         account,
		WindowDays:      days,
		TotalActions:    counts.Total,
		OverrideActions: counts.Overrides,
		RejectedActions: counts.Rejected,
	}
	if counts.Total > 0 {
		stats.OverrideRatePct = float64(counts.Overrides) / float64(counts.Total) * 100
		stats.RejectedRatePct = float64(counts.Rejected) / float64(counts.Total) * 100
	}
	return stats, nil
}
