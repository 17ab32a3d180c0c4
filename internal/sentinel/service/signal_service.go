package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/config"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
)

// SignalService detects threshold crossings and emits filtered signals.
type SignalService interface {
	// EvaluateAsset runs one engine pass for the asset. At most one signal
	// kind is selected per pass; a nil signal with nil error means nothing
	// was eligible or a filter suppressed the candidate.
	EvaluateAsset(ctx context.Context, asset *entity.Asset) (*entity.Signal, error)
	LatestSignals(ctx context.Context, param dto.GetSignalsParam) ([]entity.Signal, error)
	// Dismiss terminates an open signal with an operator reason.
	Dismiss(ctx context.Context, signalID uint) error
	MarkExecuted(ctx context.Context, signalID uint) error
}

// NewSignalService creates the signal engine. Filters run in the given order;
// the first suppression wins.
func NewSignalService(
	signalRepo repository.SignalRepository,
	positionRepo repository.PositionRepository,
	thresholdSvc ThresholdService,
	valuationSvc ValuationService,
	filters []SignalFilter,
	cfg *config.Config,
	log *logger.Logger,
) SignalService {
	return &signalService{
		signalRepo:   signalRepo,
		positionRepo: positionRepo,
		thresholdSvc: thresholdSvc,
		valuationSvc: valuationSvc,
		filters:      filters,
		cfg:          cfg,
		logger:       log,
	}
}

type signalService struct {
	signalRepo   repository.SignalRepository
	positionRepo repository.PositionRepository
	thresholdSvc ThresholdService
	valuationSvc ValuationService
	filters      []SignalFilter
	cfg          *config.Config
	logger       *logger.Logger
}

func (s *signalService) EvaluateAsset(ctx context.Context, asset *entity.Asset) (*entity.Signal, error) {
	latest, err := s.valuationSvc.Latest(ctx, asset.ID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			// No valuation yet: skip silently, not an error.
			return nil, nil
		}
		return nil, err
	}

	threshold, err := s.thresholdSvc.ThresholdsFor(ctx, asset)
	if err != nil {
		return nil, err
	}

	position, err := s.positionRepo.Get(ctx, s.cfg.App.Account, asset.ID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	candidate := s.selectCandidate(asset, latest, threshold, position)
	if candidate == nil {
		return nil, nil
	}

	var notes []string
	for _, filter := range s.filters {
		result, err := filter.Check(ctx, candidate)
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", filter.Name(), err)
		}
		if !result.Pass {
			s.logger.InfoContext(ctx, "Signal candidate suppressed",
				logger.StringField("code", asset.Code),
				logger.StringField("kind", string(candidate.Kind)),
				logger.StringField("filter", filter.Name()),
				logger.StringField("reason", result.Note))
			return nil, nil
		}
		if result.Note != "" {
			notes = append(notes, result.Note)
		}
	}

	return s.emit(ctx, candidate, notes)
}

// selectCandidate picks at most one signal kind per pass. SELL wins for a
// held asset, then ADD; BUY applies only when no position is held, so ADD
// and BUY can never both fire.
func (s *signalService) selectCandidate(asset *entity.Asset, latest *entity.Valuation, threshold *entity.Threshold, position *entity.Position) *SignalCandidate {
	held := position.Live()
	switch {
	case held && latest.PB >= threshold.SellPB:
		return &SignalCandidate{Asset: asset, Kind: entity.SignalSell, Valuation: latest, Threshold: threshold.SellPB}
	case held && latest.PB <= threshold.AddPB:
		return &SignalCandidate{Asset: asset, Kind: entity.SignalAdd, Valuation: latest, Threshold: threshold.AddPB}
	case !held && latest.PB <= threshold.BuyPB:
		return &SignalCandidate{Asset: asset, Kind: entity.SignalBuy, Valuation: latest, Threshold: threshold.BuyPB}
	default:
		// HOLD is the implicit default and never materializes a signal.
		return nil
	}
}

func (s *signalService) emit(ctx context.Context, candidate *SignalCandidate, notes []string) (*entity.Signal, error) {
	percentile, err := s.valuationSvc.Percentile(ctx, candidate.Asset.ID, candidate.Valuation.PB, s.cfg.Signal.PercentileYears)
	if err != nil {
		s.logger.WarnContext(ctx, "Percentile computation failed",
			logger.StringField("code", candidate.Asset.Code), logger.ErrorField(err))
	}

	signal := &entity.Signal{
		AssetID:     candidate.Asset.ID,
		Kind:        candidate.Kind,
		TradeDate:   candidate.Valuation.TradeDate,
		PB:          candidate.Valuation.PB,
		Threshold:   candidate.Threshold,
		Percentile:  percentile,
		Explanation: s.explain(candidate, percentile, notes),
		Status:      entity.SignalStatusOpen,
	}
	if err := s.signalRepo.Create(ctx, signal); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Signal emitted",
		logger.StringField("code", candidate.Asset.Code),
		logger.StringField("kind", string(signal.Kind)),
		logger.Field("pb", signal.PB),
		logger.Field("threshold", signal.Threshold))
	return signal, nil
}

// explain builds the operator-facing text: trigger ratio, threshold used and
// the percentile context against trailing history, plus any filter caveats.
func (s *signalService) explain(candidate *SignalCandidate, percentile *float64, notes []string) string {
	comparator := "<="
	if candidate.Kind == entity.SignalSell {
		comparator = ">="
	}
	parts := []string{
		fmt.Sprintf("PB %.2f %s %s threshold %.2f", candidate.Valuation.PB, comparator, candidate.Kind, candidate.Threshold),
	}
	if percentile != nil {
		context := fmt.Sprintf("%d-year percentile %.1f%%", s.cfg.Signal.PercentileYears, *percentile)
		switch {
		case *percentile <= 15:
			context += " (historically scarce low valuation)"
		case *percentile <= 30:
			context += " (relatively undervalued)"
		case *percentile >= 85:
			context += " (historically high valuation)"
		}
		parts = append(parts, context)
	}
	parts = append(parts, notes...)
	return strings.Join(parts, "; ")
}

func (s *signalService) LatestSignals(ctx context.Context, param dto.GetSignalsParam) ([]entity.Signal, error) {
	return s.signalRepo.Find(ctx, param)
}

func (s *signalService) Dismiss(ctx context.Context, signalID uint) error {
	if _, err := s.signalRepo.FindByID(ctx, signalID); err != nil {
		return err
	}
	return s.signalRepo.UpdateStatus(ctx, signalID, entity.SignalStatusDismissed)
}

func (s *signalService) MarkExecuted(ctx context.Context, signalID uint) error {
	return s.signalRepo.UpdateStatus(ctx, signalID, entity.SignalStatusExecuted)
}
