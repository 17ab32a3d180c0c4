package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-sentinel/internal/entity"
	"pb-sentinel/pkg/apperrors"
)

func newValuationServiceForTest(repo *fakeValuationRepo) ValuationService {
	return NewValuationService(repo, nil, newFakePositionRepo(), nil, testLogger(), "default")
}

func TestUpsert_RejectsNonPositiveRatio(t *testing.T) {
	svc := newValuationServiceForTest(newFakeValuationRepo())

	err := svc.Upsert(context.Background(), &entity.Valuation{
		AssetID: 1, TradeDate: time.Now().AddDate(0, 0, -1), PB: 0,
		DataSource: entity.DataSourceEastmoney,
	})
	assert.True(t, apperrors.IsValidation(err))

	err = svc.Upsert(context.Background(), &entity.Valuation{
		AssetID: 1, TradeDate: time.Now().AddDate(0, 0, -1), PB: -0.4,
		DataSource: entity.DataSourceEastmoney,
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpsert_RejectsFutureDate(t *testing.T) {
	svc := newValuationServiceForTest(newFakeValuationRepo())

	err := svc.Upsert(context.Background(), &entity.Valuation{
		AssetID: 1, TradeDate: time.Now().AddDate(0, 0, 2), PB: 1.2,
		DataSource: entity.DataSourceEastmoney,
	})
	assert.True(t, apperrors.IsValidation(err))
}

func TestUpsert_AcceptsToday(t *testing.T) {
	repo := newFakeValuationRepo()
	svc := newValuationServiceForTest(repo)

	err := svc.Upsert(context.Background(), &entity.Valuation{
		AssetID: 1, TradeDate: time.Now(), PB: 1.2,
		DataSource: entity.DataSourceEastmoney,
	})
	require.NoError(t, err)
	assert.Len(t, repo.upserted, 1)
}

func TestPercentile(t *testing.T) {
	repo := newFakeValuationRepo()
	repo.pbValues[1] = []float64{0.5, 0.6, 0.7, 0.8, 0.9, 1.0, 1.1, 1.2, 1.3, 1.4}
	svc := newValuationServiceForTest(repo)

	pct, err := svc.Percentile(context.Background(), 1, 0.7, 5)
	require.NoError(t, err)
	require.NotNil(t, pct)
	assert.InDelta(t, 30.0, *pct, 1e-9, "3 of 10 points at or below 0.7")

	pct, err = svc.Percentile(context.Background(), 1, 0.4, 5)
	require.NoError(t, err)
	require.NotNil(t, pct)
	assert.InDelta(t, 0.0, *pct, 1e-9)

	pct, err = svc.Percentile(context.Background(), 1, 2.0, 5)
	require.NoError(t, err)
	require.NotNil(t, pct)
	assert.InDelta(t, 100.0, *pct, 1e-9)
}

func TestPercentile_NilOnEmptyHistory(t *testing.T) {
	svc := newValuationServiceForTest(newFakeValuationRepo())

	pct, err := svc.Percentile(context.Background(), 1, 1.0, 5)
	require.NoError(t, err)
	assert.Nil(t, pct)
}
