package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/config"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
	"pb-sentinel/pkg/utils"
)

// ThresholdService resolves the trigger levels for an asset and proposes
// levels from valuation history.
type ThresholdService interface {
	// ThresholdsFor returns the active threshold row, or a template-derived
	// default for the asset's industry adjusted by the configured risk
	// profile. The fallback template covers unknown industries.
	ThresholdsFor(ctx context.Context, asset *entity.Asset) (*entity.Threshold, error)
	SetThresholds(ctx context.Context, assetID uint, buy, add, sell float64, source entity.ThresholdSource) (*entity.Threshold, error)
	// Recommend proposes buy = P25, add = P10, sell = P75 of the trailing
	// window. Fails with ErrInsufficientData below the minimum sample count.
	Recommend(ctx context.Context, assetID uint) (*entity.Threshold, error)
}

// riskProfileFactors multiplies template levels per configured risk profile.
// Conservative waits for deeper discounts and exits earlier; aggressive the
// opposite.
var riskProfileFactors = map[string]struct{ buy, add, sell float64 }{
	"conservative": {0.90, 0.85, 0.95},
	"moderate":     {1.0, 1.0, 1.0},
	"aggressive":   {1.10, 1.15, 1.05},
}

// NewThresholdService creates the threshold policy service.
func NewThresholdService(
	thresholdRepo repository.ThresholdRepository,
	valuationRepo repository.ValuationRepository,
	cfg *config.Config,
	log *logger.Logger,
) ThresholdService {
	return &thresholdService{
		thresholdRepo: thresholdRepo,
		valuationRepo: valuationRepo,
		cfg:           cfg,
		logger:        log,
	}
}

type thresholdService struct {
	thresholdRepo repository.ThresholdRepository
	valuationRepo repository.ValuationRepository
	cfg           *config.Config
	logger        *logger.Logger
}

func (s *thresholdService) ThresholdsFor(ctx context.Context, asset *entity.Asset) (*entity.Threshold, error) {
	threshold, err := s.thresholdRepo.GetByAssetID(ctx, asset.ID)
	if err == nil {
		return threshold, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	template, known := s.cfg.Thresholds.Industries[asset.Industry]
	if !known {
		template = s.cfg.Thresholds.Fallback
		s.logger.DebugContext(ctx, "No industry template, using fallback",
			logger.StringField("code", asset.Code), logger.StringField("industry", asset.Industry))
	}

	factors := riskProfileFactors[s.cfg.Thresholds.RiskProfile]
	return &entity.Threshold{
		AssetID: asset.ID,
		BuyPB:   template.BuyPB * factors.buy,
		AddPB:   template.AddPB * factors.add,
		SellPB:  template.SellPB * factors.sell,
		Source:  entity.ThresholdSourceTemplate,
	}, nil
}

func (s *thresholdService) SetThresholds(ctx context.Context, assetID uint, buy, add, sell float64, source entity.ThresholdSource) (*entity.Threshold, error) {
	threshold := &entity.Threshold{
		AssetID: assetID,
		BuyPB:   buy,
		AddPB:   add,
		SellPB:  sell,
		Source:  source,
	}
	if err := threshold.Validate(); err != nil {
		return nil, err
	}
	if err := s.thresholdRepo.Upsert(ctx, threshold); err != nil {
		return nil, err
	}
	return threshold, nil
}

func (s *thresholdService) Recommend(ctx context.Context, assetID uint) (*entity.Threshold, error) {
	since := utils.TruncateToDay(time.Now().AddDate(-s.cfg.Thresholds.WindowYears, 0, 0))
	values, err := s.valuationRepo.PBValues(ctx, assetID, dto.GetValuationsParam{Since: &since})
	if err != nil {
		return nil, err
	}
	if len(values) < s.cfg.Thresholds.MinSamplePoints {
		return nil, apperrors.ErrInsufficientData
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	threshold := &entity.Threshold{
		AssetID: assetID,
		BuyPB:   percentileOf(sorted, 25),
		AddPB:   percentileOf(sorted, 10),
		SellPB:  percentileOf(sorted, 75),
		Source:  entity.ThresholdSourceTemplate,
	}
	if err := threshold.Validate(); err != nil {
		return nil, err
	}
	return threshold, nil
}

// percentileOf returns the pth percentile of a sorted slice using the
// nearest-rank method: rank = ceil(n*p/100), 1-based.
func percentileOf(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(float64(len(sorted))*p/100)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
