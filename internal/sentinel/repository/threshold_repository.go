package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pb-sentinel/internal/entity"
	"pb-sentinel/pkg/apperrors"
)

// ThresholdRepository manages the single active threshold row per asset.
type ThresholdRepository interface {
	GetByAssetID(ctx context.Context, assetID uint) (*entity.Threshold, error)
	Upsert(ctx context.Context, threshold *entity.Threshold) error
}

func NewThresholdRepository(db *gorm.DB) ThresholdRepository {
	return &thresholdRepository{db: db}
}

type thresholdRepository struct {
	db *gorm.DB
}

func (r *thresholdRepository) GetByAssetID(ctx context.Context, assetID uint) (*entity.Threshold, error) {
	var threshold entity.Threshold
	if err := r.db.WithContext(ctx).Where("asset_id = ?", assetID).First(&threshold).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &threshold, nil
}

func (r *thresholdRepository) Upsert(ctx context.Context, threshold *entity.Threshold) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"buy_pb", "add_pb", "sell_pb", "source", "updated_at"}),
	}).Create(threshold).Error
}
