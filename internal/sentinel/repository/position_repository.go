package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pb-sentinel/internal/entity"
	"pb-sentinel/pkg/apperrors"
)

// PositionRepository reads holding state. Mutation happens only through the
// ledger transaction in LedgerRepository.
type PositionRepository interface {
	Get(ctx context.Context, account string, assetID uint) (*entity.Position, error)
	GetAll(ctx context.Context, account string) ([]entity.Position, error)
	// UpdateMarketValue refreshes the derived market value after a valuation
	// refresh; it never touches quantity or cost basis.
	UpdateMarketValue(ctx context.Context, account string, assetID uint, marketValue decimal.Decimal) error
}

func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepository{db: db}
}

type positionRepository struct {
	db *gorm.DB
}

func (r *positionRepository) Get(ctx context.Context, account string, assetID uint) (*entity.Position, error) {
	var position entity.Position
	err := r.db.WithContext(ctx).
		Where("account = ? AND asset_id = ?", account, assetID).
		First(&position).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &position, nil
}

func (r *positionRepository) GetAll(ctx context.Context, account string) ([]entity.Position, error) {
	var positions []entity.Position
	err := r.db.WithContext(ctx).
		Where("account = ? AND quantity > 0", account).
		Find(&positions).Error
	if err != nil {
		return nil, err
	}
	return positions, nil
}

func (r *positionRepository) UpdateMarketValue(ctx context.Context, account string, assetID uint, marketValue decimal.Decimal) error {
	return r.db.WithContext(ctx).Model(&entity.Position{}).
		Where("account = ? AND asset_id = ?", account, assetID).
		Update("market_value", marketValue).Error
}
