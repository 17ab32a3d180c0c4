package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-sentinel/internal/entity"
)

type signalEngineFixture struct {
	signalRepo    *fakeSignalRepo
	positionRepo  *fakePositionRepo
	valuationRepo *fakeValuationRepo
	thresholdRepo *fakeThresholdRepo
	engine        SignalService
}

func newSignalEngineFixture(t *testing.T, filters ...SignalFilter) *signalEngineFixture {
	t.Helper()
	cfg := testConfig()
	log := testLogger()

	f := &signalEngineFixture{
		signalRepo:    newFakeSignalRepo(),
		positionRepo:  newFakePositionRepo(),
		valuationRepo: newFakeValuationRepo(),
		thresholdRepo: newFakeThresholdRepo(),
	}
	valuationSvc := NewValuationService(f.valuationRepo, nil, f.positionRepo, nil, log, cfg.App.Account)
	thresholdSvc := NewThresholdService(f.thresholdRepo, f.valuationRepo, cfg, log)
	f.engine = NewSignalService(f.signalRepo, f.positionRepo, thresholdSvc, valuationSvc, filters, cfg, log)
	return f
}

func bankAsset() *entity.Asset {
	return &entity.Asset{ID: 1, Code: "601398.SH", Name: "ICBC", Industry: "bank"}
}

func (f *signalEngineFixture) setLatestPB(assetID uint, pb float64) {
	f.valuationRepo.latest[assetID] = &entity.Valuation{
		AssetID:    assetID,
		TradeDate:  time.Now().AddDate(0, 0, -1),
		PB:         pb,
		DataSource: entity.DataSourceEastmoney,
		Method:     entity.MethodDirect,
	}
}

func (f *signalEngineFixture) hold(assetID uint, quantity int64) {
	f.positionRepo.put(&entity.Position{Account: "default", AssetID: assetID, Quantity: quantity})
}

func TestEvaluateAsset_EmitsBuyWhenNotHeld(t *testing.T) {
	f := newSignalEngineFixture(t)
	f.setLatestPB(1, 0.55) // bank template buy 0.6

	signal, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	require.NotNil(t, signal)
	assert.Equal(t, entity.SignalBuy, signal.Kind)
	assert.Equal(t, 0.55, signal.PB)
	assert.InDelta(t, 0.6, signal.Threshold, 1e-9)
	assert.Equal(t, entity.SignalStatusOpen, signal.Status)
	assert.Contains(t, signal.Explanation, "BUY threshold")
}

func TestEvaluateAsset_NoSignalBetweenThresholds(t *testing.T) {
	f := newSignalEngineFixture(t)
	f.setLatestPB(1, 0.75) // between buy 0.6 and sell 0.9

	signal, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	assert.Nil(t, signal)
	assert.Empty(t, f.signalRepo.created)
}

func TestEvaluateAsset_SellWinsForHeldAsset(t *testing.T) {
	f := newSignalEngineFixture(t)
	f.hold(1, 1000)
	f.setLatestPB(1, 0.95) // above sell 0.9

	signal, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	require.NotNil(t, signal)
	assert.Equal(t, entity.SignalSell, signal.Kind)
}

func TestEvaluateAsset_AddForHeldAssetBelowAddLevel(t *testing.T) {
	f := newSignalEngineFixture(t)
	f.hold(1, 1000)
	f.setLatestPB(1, 0.45) // below add 0.5

	signal, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	require.NotNil(t, signal)
	assert.Equal(t, entity.SignalAdd, signal.Kind, "held asset below the add level must emit ADD, never BUY")
}

func TestEvaluateAsset_NoBuyForHeldAsset(t *testing.T) {
	f := newSignalEngineFixture(t)
	f.hold(1, 1000)
	f.setLatestPB(1, 0.55) // below buy 0.6 but above add 0.5

	signal, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	assert.Nil(t, signal, "BUY applies only when no position is held")
}

func TestEvaluateAsset_SkipsAssetWithoutValuation(t *testing.T) {
	f := newSignalEngineFixture(t)

	signal, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	assert.Nil(t, signal)
}

func TestEvaluateAsset_IncludesPercentileContext(t *testing.T) {
	f := newSignalEngineFixture(t)
	f.setLatestPB(1, 0.55)
	// 9 of 10 historical points above the current ratio: percentile 10%.
	f.valuationRepo.pbValues[1] = []float64{0.55, 0.7, 0.72, 0.75, 0.8, 0.82, 0.85, 0.88, 0.9, 0.95}

	signal, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	require.NotNil(t, signal)
	require.NotNil(t, signal.Percentile)
	assert.InDelta(t, 10.0, *signal.Percentile, 1e-9)
	assert.Contains(t, signal.Explanation, "percentile")
}

func TestCooldownFilter_SuppressesWithinWindow(t *testing.T) {
	signalRepo := newFakeSignalRepo()
	filter := NewCooldownFilter(signalRepo, 7)

	candidate := &SignalCandidate{Asset: bankAsset(), Kind: entity.SignalBuy}
	result, err := filter.Check(context.Background(), candidate)
	require.NoError(t, err)
	assert.True(t, result.Pass, "no prior signal means no cooldown")

	signalRepo.last[signalKey{1, entity.SignalBuy}] = &entity.Signal{
		AssetID: 1, Kind: entity.SignalBuy, CreatedAt: time.Now().Add(-3 * 24 * time.Hour),
	}
	result, err = filter.Check(context.Background(), candidate)
	require.NoError(t, err)
	assert.False(t, result.Pass, "signal 3 days ago is inside the 7-day window")

	signalRepo.last[signalKey{1, entity.SignalBuy}] = &entity.Signal{
		AssetID: 1, Kind: entity.SignalBuy, CreatedAt: time.Now().Add(-8 * 24 * time.Hour),
	}
	result, err = filter.Check(context.Background(), candidate)
	require.NoError(t, err)
	assert.True(t, result.Pass, "signal 8 days ago is outside the window")
}

func TestCooldownFilter_KindsAreIndependent(t *testing.T) {
	signalRepo := newFakeSignalRepo()
	signalRepo.last[signalKey{1, entity.SignalBuy}] = &entity.Signal{
		AssetID: 1, Kind: entity.SignalBuy, CreatedAt: time.Now().Add(-time.Hour),
	}
	filter := NewCooldownFilter(signalRepo, 7)

	result, err := filter.Check(context.Background(), &SignalCandidate{Asset: bankAsset(), Kind: entity.SignalSell})
	require.NoError(t, err)
	assert.True(t, result.Pass, "a recent BUY must not cool down SELL")
}

func TestCooldownResetsOnEveryEmission(t *testing.T) {
	f := newSignalEngineFixture(t)
	// The filter must see the fixture's repo so emissions restart the clock.
	f.engine.(*signalService).filters = []SignalFilter{NewCooldownFilter(f.signalRepo, 7)}
	f.setLatestPB(1, 0.55)

	first, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	require.NotNil(t, first)

	// Second pass right away: the emission above restarted the clock.
	second, err := f.engine.EvaluateAsset(context.Background(), bankAsset())
	require.NoError(t, err)
	assert.Nil(t, second)
}

func TestROEFilter_SuppressesLowQuality(t *testing.T) {
	filter := NewROEFilter(&fakeFundamentalsRepo{roe: 3.0, ok: true}, testLogger(), 5.0)

	result, err := filter.Check(context.Background(), &SignalCandidate{Asset: bankAsset(), Kind: entity.SignalBuy})
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Note, "ROE")
}

func TestROEFilter_InertWhenDataMissing(t *testing.T) {
	filter := NewROEFilter(&fakeFundamentalsRepo{ok: false}, testLogger(), 5.0)

	result, err := filter.Check(context.Background(), &SignalCandidate{Asset: bankAsset(), Kind: entity.SignalBuy})
	require.NoError(t, err)
	assert.True(t, result.Pass, "missing ROE must never suppress")
	assert.Contains(t, result.Note, "quality unknown")
}

func TestROEFilter_NeverGatesSell(t *testing.T) {
	filter := NewROEFilter(&fakeFundamentalsRepo{roe: 1.0, ok: true}, testLogger(), 5.0)

	result, err := filter.Check(context.Background(), &SignalCandidate{Asset: bankAsset(), Kind: entity.SignalSell})
	require.NoError(t, err)
	assert.True(t, result.Pass)
}
