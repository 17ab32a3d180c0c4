package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/common"
	"pb-sentinel/pkg/logger"
	"pb-sentinel/pkg/utils"

	redisPkg "pb-sentinel/pkg/redis"
)

// ValuationService is the provenance-tracked valuation store plus the
// refresh path that pulls fresh observations from the market data provider.
type ValuationService interface {
	Upsert(ctx context.Context, valuation *entity.Valuation) error
	Latest(ctx context.Context, assetID uint) (*entity.Valuation, error)
	History(ctx context.Context, param dto.GetValuationsParam) ([]entity.Valuation, error)
	// Percentile ranks currentPB against the trailing window, 0-100.
	Percentile(ctx context.Context, assetID uint, currentPB float64, years int) (*float64, error)
	Stats(ctx context.Context, assetID uint, years int) (*repository.ValuationStats, error)
	// Refresh fetches a fresh observation for the asset, persists it and
	// refreshes the derived position market value.
	Refresh(ctx context.Context, asset *entity.Asset) (*entity.Valuation, error)
}

// NewValuationService creates the valuation store service.
func NewValuationService(
	valuationRepo repository.ValuationRepository,
	marketDataRepo repository.MarketDataRepository,
	positionRepo repository.PositionRepository,
	redisClient *redisPkg.Client,
	log *logger.Logger,
	account string,
) ValuationService {
	return &valuationService{
		valuationRepo:  valuationRepo,
		marketDataRepo: marketDataRepo,
		positionRepo:   positionRepo,
		redisClient:    redisClient,
		logger:         log,
		account:        account,
	}
}

type valuationService struct {
	valuationRepo  repository.ValuationRepository
	marketDataRepo repository.MarketDataRepository
	positionRepo   repository.PositionRepository
	redisClient    *redisPkg.Client
	logger         *logger.Logger
	account        string
}

func (s *valuationService) Upsert(ctx context.Context, valuation *entity.Valuation) error {
	if valuation.PB <= 0 {
		return apperrors.NewValidation("pb", "ratio must be positive, got %.4f", valuation.PB)
	}
	today := utils.TruncateToDay(time.Now())
	if utils.TruncateToDay(valuation.TradeDate).After(today) {
		return apperrors.NewValidation("trade_date", "date %s is in the future", valuation.TradeDate.Format("2006-01-02"))
	}
	if valuation.FetchedAt.IsZero() {
		valuation.FetchedAt = time.Now()
	}
	return s.valuationRepo.Upsert(ctx, valuation)
}

func (s *valuationService) Latest(ctx context.Context, assetID uint) (*entity.Valuation, error) {
	return s.valuationRepo.Latest(ctx, assetID)
}

func (s *valuationService) History(ctx context.Context, param dto.GetValuationsParam) ([]entity.Valuation, error) {
	return s.valuationRepo.History(ctx, param)
}

func (s *valuationService) Percentile(ctx context.Context, assetID uint, currentPB float64, years int) (*float64, error) {
	since := utils.TruncateToDay(time.Now().AddDate(-years, 0, 0))
	values, err := s.valuationRepo.PBValues(ctx, assetID, dto.GetValuationsParam{Since: &since})
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	below := 0
	for _, v := range values {
		if v <= currentPB {
			below++
		}
	}
	pct := float64(below) / float64(len(values)) * 100
	return &pct, nil
}

func (s *valuationService) Stats(ctx context.Context, assetID uint, years int) (*repository.ValuationStats, error) {
	since := utils.TruncateToDay(time.Now().AddDate(-years, 0, 0))
	return s.valuationRepo.Stats(ctx, assetID, dto.GetValuationsParam{Since: &since})
}

func (s *valuationService) Refresh(ctx context.Context, asset *entity.Asset) (*entity.Valuation, error) {
	quote, err := s.marketDataRepo.FetchValuation(ctx, asset.Code, time.Now())
	if err != nil {
		return nil, err
	}

	valuation := &entity.Valuation{
		AssetID:         asset.ID,
		TradeDate:       quote.TradeDate,
		PB:              quote.PB,
		ClosePrice:      quote.ClosePrice,
		BookValue:       quote.BookValue,
		DataSource:      quote.Source,
		Method:          quote.Method,
		ReportingPeriod: quote.ReportingPeriod,
		FetchedAt:       time.Now(),
	}
	if err := s.Upsert(ctx, valuation); err != nil {
		return nil, err
	}

	s.cacheQuote(ctx, asset.Code, quote)
	s.refreshMarketValue(ctx, asset, quote)

	return valuation, nil
}

// cacheQuote mirrors the latest quote to redis for dashboards; a cache miss
// or failure never affects the stored valuation.
func (s *valuationService) cacheQuote(ctx context.Context, code string, quote *dto.ValuationQuote) {
	if s.redisClient == nil {
		return
	}
	key := common.RedisKeyLastQuote(code)
	fields := map[string]interface{}{
		"pb":        quote.PB,
		"timestamp": time.Now().Unix(),
	}
	if quote.ClosePrice != nil {
		fields["price"] = *quote.ClosePrice
	}
	pipe := s.redisClient.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, 24*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache quote", logger.StringField("code", code), logger.ErrorField(err))
	}
}

func (s *valuationService) refreshMarketValue(ctx context.Context, asset *entity.Asset, quote *dto.ValuationQuote) {
	if quote.ClosePrice == nil {
		return
	}
	position, err := s.positionRepo.Get(ctx, s.account, asset.ID)
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Failed to load position for market value refresh",
				logger.StringField("code", asset.Code), logger.ErrorField(err))
		}
		return
	}
	if !position.Live() {
		return
	}
	marketValue := decimal.NewFromFloat(*quote.ClosePrice).Mul(decimal.NewFromInt(position.Quantity))
	if err := s.positionRepo.UpdateMarketValue(ctx, s.account, asset.ID, marketValue); err != nil {
		s.logger.WarnContext(ctx, "Failed to refresh position market value",
			logger.StringField("code", asset.Code), logger.ErrorField(err))
	}
}
