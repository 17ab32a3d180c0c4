package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pb-sentinel/internal/entity"
	"pb-sentinel/pkg/apperrors"
)

// AssetRepository manages the watch pool.
type AssetRepository interface {
	Create(ctx context.Context, asset *entity.Asset) error
	FindByID(ctx context.Context, id uint) (*entity.Asset, error)
	FindByCode(ctx context.Context, code string) (*entity.Asset, error)
	GetAll(ctx context.Context) ([]entity.Asset, error)
	Update(ctx context.Context, asset *entity.Asset) error
	// HasHistory reports whether the asset has valuations or actions and
	// therefore may only be soft-retired.
	HasHistory(ctx context.Context, id uint) (bool, error)
	SoftDelete(ctx context.Context, id uint) error
	HardDelete(ctx context.Context, id uint) error
}

func NewAssetRepository(db *gorm.DB) AssetRepository {
	return &assetRepository{db: db}
}

type assetRepository struct {
	db *gorm.DB
}

func (r *assetRepository) Create(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Create(asset).Error
}

func (r *assetRepository) FindByID(ctx context.Context, id uint) (*entity.Asset, error) {
	var asset entity.Asset
	if err := r.db.WithContext(ctx).First(&asset, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) FindByCode(ctx context.Context, code string) (*entity.Asset, error) {
	var asset entity.Asset
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

func (r *assetRepository) GetAll(ctx context.Context) ([]entity.Asset, error) {
	var assets []entity.Asset
	if err := r.db.WithContext(ctx).Order("created_at").Find(&assets).Error; err != nil {
		return nil, err
	}
	return assets, nil
}

func (r *assetRepository) Update(ctx context.Context, asset *entity.Asset) error {
	return r.db.WithContext(ctx).Save(asset).Error
}

func (r *assetRepository) HasHistory(ctx context.Context, id uint) (bool, error) {
	var valuations int64
	if err := r.db.WithContext(ctx).Model(&entity.Valuation{}).Where("asset_id = ?", id).Count(&valuations).Error; err != nil {
		return false, err
	}
	if valuations > 0 {
		return true, nil
	}
	var actions int64
	if err := r.db.WithContext(ctx).Model(&entity.Action{}).Where("asset_id = ?", id).Count(&actions).Error; err != nil {
		return false, err
	}
	return actions > 0, nil
}

func (r *assetRepository) SoftDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&entity.Asset{}, id).Error
}

func (r *assetRepository) HardDelete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&entity.Asset{}, id).Error
}
