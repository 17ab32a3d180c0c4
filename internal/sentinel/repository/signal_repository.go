package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/pkg/apperrors"
)

// SignalRepository owns emitted signal rows.
type SignalRepository interface {
	Create(ctx context.Context, signal *entity.Signal) error
	// LastEmitted returns the most recent signal for the (asset, kind)
	// de-duplication key, regardless of status.
	LastEmitted(ctx context.Context, assetID uint, kind entity.SignalKind) (*entity.Signal, error)
	Find(ctx context.Context, param dto.GetSignalsParam) ([]entity.Signal, error)
	FindByID(ctx context.Context, id uint) (*entity.Signal, error)
	UpdateStatus(ctx context.Context, id uint, status entity.SignalStatus) error
}

func NewSignalRepository(db *gorm.DB) SignalRepository {
	return &signalRepository{db: db}
}

type signalRepository struct {
	db *gorm.DB
}

func (r *signalRepository) Create(ctx context.Context, signal *entity.Signal) error {
	return r.db.WithContext(ctx).Create(signal).Error
}

func (r *signalRepository) LastEmitted(ctx context.Context, assetID uint, kind entity.SignalKind) (*entity.Signal, error) {
	var signal entity.Signal
	err := r.db.WithContext(ctx).
		Where("asset_id = ? AND kind = ?", assetID, kind).
		Order("created_at DESC").
		First(&signal).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &signal, nil
}

func (r *signalRepository) Find(ctx context.Context, param dto.GetSignalsParam) ([]entity.Signal, error) {
	query := r.db.WithContext(ctx).Order("created_at DESC")
	if param.AssetID != nil {
		query = query.Where("asset_id = ?", *param.AssetID)
	}
	if len(param.Kinds) > 0 {
		query = query.Where("kind IN (?)", param.Kinds)
	}
	if len(param.Statuses) > 0 {
		query = query.Where("status IN (?)", param.Statuses)
	}
	if param.Since != nil {
		query = query.Where("created_at >= ?", *param.Since)
	}
	if param.Limit > 0 {
		query = query.Limit(param.Limit)
	}

	var signals []entity.Signal
	if err := query.Find(&signals).Error; err != nil {
		return nil, err
	}
	return signals, nil
}

func (r *signalRepository) FindByID(ctx context.Context, id uint) (*entity.Signal, error) {
	var signal entity.Signal
	if err := r.db.WithContext(ctx).First(&signal, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &signal, nil
}

func (r *signalRepository) UpdateStatus(ctx context.Context, id uint, status entity.SignalStatus) error {
	return r.db.WithContext(ctx).Model(&entity.Signal{}).Where("id = ?", id).
		Update("status", status).Error
}
