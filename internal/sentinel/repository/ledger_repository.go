package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
)

// LedgerRepository owns action rows and the position/portfolio mutations
// that accompany them. Commit writes all three in a single transaction so a
// partial update is structurally impossible.
type LedgerRepository interface {
	// Commit appends the action and, when position/portfolio are non-nil,
	// saves them in the same transaction.
	Commit(ctx context.Context, action *entity.Action, position *entity.Position, portfolio *entity.Portfolio) error
	Find(ctx context.Context, param dto.GetActionsParam) ([]entity.Action, error)
	// ExecutedTurnoverOn sums the gross amounts of actions executed on a day,
	// feeding the daily turnover check.
	ExecutedTurnoverOn(ctx context.Context, account string, day time.Time) (decimal.Decimal, error)
	CountDiscipline(ctx context.Context, account string, since time.Time) (*DisciplineCounts, error)
}

// DisciplineCounts tallies ledger rows for the compliance view.
type DisciplineCounts struct {
	Total     int64
	Overrides int64
	Rejected  int64
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

type ledgerRepository struct {
	db *gorm.DB
}

func (r *ledgerRepository) Commit(ctx context.Context, action *entity.Action, position *entity.Position, portfolio *entity.Portfolio) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(action).Error; err != nil {
			return err
		}
		if position != nil {
			if err := tx.Save(position).Error; err != nil {
				return err
			}
		}
		if portfolio != nil {
			if err := tx.Save(portfolio).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ledgerRepository) Find(ctx context.Context, param dto.GetActionsParam) ([]entity.Action, error) {
	query := r.db.WithContext(ctx).Where("account = ?", param.Account).Order("created_at DESC")
	if param.AssetID != nil {
		query = query.Where("asset_id = ?", *param.AssetID)
	}
	if param.Kind != nil {
		query = query.Where("kind = ?", *param.Kind)
	}
	if param.Status != nil {
		query = query.Where("status = ?", *param.Status)
	}
	if param.Since != nil {
		query = query.Where("action_date >= ?", *param.Since)
	}
	if param.Limit > 0 {
		query = query.Limit(param.Limit)
	}

	var actions []entity.Action
	if err := query.Find(&actions).Error; err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *ledgerRepository) ExecutedTurnoverOn(ctx context.Context, account string, day time.Time) (decimal.Decimal, error) {
	var total decimal.NullDecimal
	err := r.db.WithContext(ctx).Model(&entity.Action{}).
		Where("account = ? AND action_date = ? AND status = ? AND kind <> ?",
			account, day, entity.ActionStatusExecuted, entity.ActionHold).
		Select("SUM(price * quantity)").
		Scan(&total).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !total.Valid {
		return decimal.Zero, nil
	}
	return total.Decimal, nil
}

func (r *ledgerRepository) CountDiscipline(ctx context.Context, account string, since time.Time) (*DisciplineCounts, error) {
	var counts DisciplineCounts
	err := r.db.WithContext(ctx).Model(&entity.Action{}).
		Where("account = ? AND action_date >= ?", account, since).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE override) AS overrides, COUNT(*) FILTER (WHERE status = ?) AS rejected",
			entity.ActionStatusRejected).
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	return &counts, nil
}
