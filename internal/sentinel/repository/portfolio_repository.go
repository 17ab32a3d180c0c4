package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pb-sentinel/internal/entity"
	"pb-sentinel/pkg/apperrors"
)

// PortfolioRepository reads the account aggregate. Mutation happens only
// through the ledger transaction in LedgerRepository.
type PortfolioRepository interface {
	Get(ctx context.Context, account string) (*entity.Portfolio, error)
	// EnsureExists creates an empty portfolio row for the account if missing.
	EnsureExists(ctx context.Context, account string) error
}

func NewPortfolioRepository(db *gorm.DB) PortfolioRepository {
	return &portfolioRepository{db: db}
}

type portfolioRepository struct {
	db *gorm.DB
}

func (r *portfolioRepository) Get(ctx context.Context, account string) (*entity.Portfolio, error) {
	var portfolio entity.Portfolio
	if err := r.db.WithContext(ctx).Where("account = ?", account).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &portfolio, nil
}

func (r *portfolioRepository) EnsureExists(ctx context.Context, account string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoNothing: true,
	}).Create(&entity.Portfolio{Account: account}).Error
}
