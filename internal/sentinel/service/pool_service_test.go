package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-sentinel/internal/entity"
	"pb-sentinel/pkg/apperrors"
)

func TestAdmit_ValidatesAsset(t *testing.T) {
	svc := NewPoolService(newFakeAssetRepo(), testLogger())
	ctx := context.Background()

	err := svc.Admit(ctx, &entity.Asset{Name: "ICBC", Market: entity.MarketAShare, CompetenceScore: 3})
	assert.True(t, apperrors.IsValidation(err), "missing code")

	err = svc.Admit(ctx, &entity.Asset{Code: "601398.SH", Name: "ICBC", Market: "NASDAQ?", CompetenceScore: 3})
	assert.True(t, apperrors.IsValidation(err), "unknown market")

	err = svc.Admit(ctx, &entity.Asset{Code: "601398.SH", Name: "ICBC", Market: entity.MarketAShare, CompetenceScore: 9})
	assert.True(t, apperrors.IsValidation(err), "score out of range")
}

func TestAdmit_RejectsDuplicateCode(t *testing.T) {
	repo := newFakeAssetRepo(&entity.Asset{ID: 1, Code: "601398.SH", Name: "ICBC", Market: entity.MarketAShare, CompetenceScore: 3})
	svc := NewPoolService(repo, testLogger())

	err := svc.Admit(context.Background(), &entity.Asset{Code: "601398.SH", Name: "ICBC again", Market: entity.MarketAShare, CompetenceScore: 3})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpdate_CodeIsImmutable(t *testing.T) {
	repo := newFakeAssetRepo(&entity.Asset{ID: 1, Code: "601398.SH", Name: "ICBC", Market: entity.MarketAShare, CompetenceScore: 3})
	svc := NewPoolService(repo, testLogger())

	err := svc.Update(context.Background(), &entity.Asset{ID: 1, Code: "601288.SH", Name: "ICBC", Market: entity.MarketAShare, CompetenceScore: 3})
	assert.True(t, apperrors.IsValidation(err))
}

func TestRetire_SoftDeletesAssetWithHistory(t *testing.T) {
	repo := newFakeAssetRepo(&entity.Asset{ID: 1, Code: "601398.SH", Name: "ICBC", Market: entity.MarketAShare, CompetenceScore: 3})
	repo.history[1] = true
	svc := NewPoolService(repo, testLogger())

	require.NoError(t, svc.Retire(context.Background(), 1))
	assert.Equal(t, []uint{1}, repo.soft)
	assert.Empty(t, repo.hard)
}

func TestRetire_HardDeletesCleanAsset(t *testing.T) {
	repo := newFakeAssetRepo(&entity.Asset{ID: 1, Code: "601398.SH", Name: "ICBC", Market: entity.MarketAShare, CompetenceScore: 3})
	svc := NewPoolService(repo, testLogger())

	require.NoError(t, svc.Retire(context.Background(), 1))
	assert.Equal(t, []uint{1}, repo.hard)
	assert.Empty(t, repo.soft)
}

func TestRetire_UnknownAsset(t *testing.T) {
	svc := NewPoolService(newFakeAssetRepo(), testLogger())
	err := svc.Retire(context.Background(), 99)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}
