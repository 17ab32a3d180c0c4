package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/pkg/apperrors"
)

// ValuationStats summarizes the trailing PB distribution of one asset.
type ValuationStats struct {
	MinPB float64
	MaxPB float64
	AvgPB float64
	Count int64
}

// ValuationRepository owns the append-only valuation time series.
type ValuationRepository interface {
	// Upsert writes one observation. A same-day conflict is resolved by trust
	// priority inside a transaction holding the existing row locked: an
	// equal-or-higher priority source replaces, anything else is a no-op.
	Upsert(ctx context.Context, valuation *entity.Valuation) error
	Latest(ctx context.Context, assetID uint) (*entity.Valuation, error)
	History(ctx context.Context, param dto.GetValuationsParam) ([]entity.Valuation, error)
	PBValues(ctx context.Context, assetID uint, param dto.GetValuationsParam) ([]float64, error)
	Stats(ctx context.Context, assetID uint, param dto.GetValuationsParam) (*ValuationStats, error)
}

func NewValuationRepository(db *gorm.DB) ValuationRepository {
	return &valuationRepository{db: db}
}

type valuationRepository struct {
	db *gorm.DB
}

func (r *valuationRepository) Upsert(ctx context.Context, valuation *entity.Valuation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing entity.Valuation
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("asset_id = ? AND trade_date = ?", valuation.AssetID, valuation.TradeDate).
			First(&existing).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return tx.Create(valuation).Error
			}
			return err
		}
		if !existing.ShouldReplace(valuation.DataSource) {
			valuation.ID = existing.ID
			return nil
		}
		valuation.ID = existing.ID
		return tx.Model(&existing).Select("pb", "close_price", "book_value", "data_source", "method", "reporting_period", "fetched_at").
			Updates(map[string]interface{}{
				"pb":               valuation.PB,
				"close_price":      valuation.ClosePrice,
				"book_value":       valuation.BookValue,
				"data_source":      valuation.DataSource,
				"method":           valuation.Method,
				"reporting_period": valuation.ReportingPeriod,
				"fetched_at":       valuation.FetchedAt,
			}).Error
	})
}

func (r *valuationRepository) Latest(ctx context.Context, assetID uint) (*entity.Valuation, error) {
	var valuation entity.Valuation
	err := r.db.WithContext(ctx).
		Where("asset_id = ?", assetID).
		Order("trade_date DESC").
		First(&valuation).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &valuation, nil
}

func (r *valuationRepository) History(ctx context.Context, param dto.GetValuationsParam) ([]entity.Valuation, error) {
	var valuations []entity.Valuation
	query := r.historyQuery(ctx, param)
	if err := query.Find(&valuations).Error; err != nil {
		return nil, err
	}
	return valuations, nil
}

func (r *valuationRepository) PBValues(ctx context.Context, assetID uint, param dto.GetValuationsParam) ([]float64, error) {
	param.AssetID = assetID
	var values []float64
	query := r.historyQuery(ctx, param).Model(&entity.Valuation{}).Pluck("pb", &values)
	if query.Error != nil {
		return nil, query.Error
	}
	return values, nil
}

func (r *valuationRepository) Stats(ctx context.Context, assetID uint, param dto.GetValuationsParam) (*ValuationStats, error) {
	param.AssetID = assetID
	var stats ValuationStats
	query := r.historyQuery(ctx, param).Model(&entity.Valuation{}).
		Select("MIN(pb) AS min_pb, MAX(pb) AS max_pb, AVG(pb) AS avg_pb, COUNT(pb) AS count")
	if err := query.Scan(&stats).Error; err != nil {
		return nil, err
	}
	if stats.Count == 0 {
		return nil, apperrors.ErrNotFound
	}
	return &stats, nil
}

func (r *valuationRepository) historyQuery(ctx context.Context, param dto.GetValuationsParam) *gorm.DB {
	query := r.db.WithContext(ctx).
		Where("asset_id = ?", param.AssetID).
		Order("trade_date ASC")
	if param.Since != nil {
		query = query.Where("trade_date >= ?", *param.Since)
	}
	if param.Until != nil {
		query = query.Where("trade_date <= ?", *param.Until)
	}
	if param.AfterDate != nil {
		query = query.Where("trade_date > ?", *param.AfterDate)
	}
	if param.Limit > 0 {
		query = query.Limit(param.Limit)
	}
	return query
}
