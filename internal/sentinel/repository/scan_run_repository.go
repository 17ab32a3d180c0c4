package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pb-sentinel/internal/entity"
	"pb-sentinel/pkg/apperrors"
)

// ScanRunRepository manages the per-account scan mutual-exclusion token.
type ScanRunRepository interface {
	Get(ctx context.Context, account string) (*entity.ScanRun, error)
	EnsureExists(ctx context.Context, account string) error
	// Claim atomically flips the row to RUNNING for the given owner when it
	// is IDLE, STOPPED, CRASHED, or RUNNING with a heartbeat older than the
	// staleness threshold. Returns false when another live owner holds it.
	Claim(ctx context.Context, account, owner string, now time.Time, staleness time.Duration) (bool, error)
	// Heartbeat refreshes the liveness timestamp; it only touches rows still
	// RUNNING under the same owner.
	Heartbeat(ctx context.Context, account, owner string, now time.Time) error
	// Release transitions the row out of RUNNING for the given owner.
	Release(ctx context.Context, account, owner string, status entity.ScanStatus, lastError string) error
	// Reset forcibly returns the row to IDLE for manual recovery.
	Reset(ctx context.Context, account string) error
}

func NewScanRunRepository(db *gorm.DB) ScanRunRepository {
	return &scanRunRepository{db: db}
}

type scanRunRepository struct {
	db *gorm.DB
}

func (r *scanRunRepository) Get(ctx context.Context, account string) (*entity.ScanRun, error) {
	var run entity.ScanRun
	if err := r.db.WithContext(ctx).Where("account = ?", account).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, err
	}
	return &run, nil
}

func (r *scanRunRepository) EnsureExists(ctx context.Context, account string) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account"}},
		DoNothing: true,
	}).Create(&entity.ScanRun{Account: account, Status: entity.ScanStatusIdle}).Error
}

func (r *scanRunRepository) Claim(ctx context.Context, account, owner string, now time.Time, staleness time.Duration) (bool, error) {
	cutoff := now.Add(-staleness)
	result := r.db.WithContext(ctx).Model(&entity.ScanRun{}).
		Where("account = ?", account).
		Where("status IN (?) OR (status = ? AND (heartbeat_at IS NULL OR heartbeat_at < ?))",
			[]entity.ScanStatus{entity.ScanStatusIdle, entity.ScanStatusStopped, entity.ScanStatusCrashed},
			entity.ScanStatusRunning, cutoff).
		Updates(map[string]interface{}{
			"status":       entity.ScanStatusRunning,
			"owner":        owner,
			"started_at":   now,
			"heartbeat_at": now,
			"last_error":   "",
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *scanRunRepository) Heartbeat(ctx context.Context, account, owner string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&entity.ScanRun{}).
		Where("account = ? AND owner = ? AND status = ?", account, owner, entity.ScanStatusRunning).
		Update("heartbeat_at", now).Error
}

func (r *scanRunRepository) Release(ctx context.Context, account, owner string, status entity.ScanStatus, lastError string) error {
	return r.db.WithContext(ctx).Model(&entity.ScanRun{}).
		Where("account = ? AND owner = ? AND status = ?", account, owner, entity.ScanStatusRunning).
		Updates(map[string]interface{}{
			"status":     status,
			"last_error": lastError,
		}).Error
}

func (r *scanRunRepository) Reset(ctx context.Context, account string) error {
	return r.db.WithContext(ctx).Model(&entity.ScanRun{}).
		Where("account = ?", account).
		Updates(map[string]interface{}{
			"status":     entity.ScanStatusIdle,
			"owner":      "",
			"last_error": "",
		}).Error
}
