package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/pkg/apperrors"
)

type stubSignalService struct {
	executed  []uint
	dismissed []uint
}

func (s *stubSignalService) EvaluateAsset(ctx context.Context, asset *entity.Asset) (*entity.Signal, error) {
	return nil, nil
}

func (s *stubSignalService) LatestSignals(ctx context.Context, param dto.GetSignalsParam) ([]entity.Signal, error) {
	return nil, nil
}

func (s *stubSignalService) Dismiss(ctx context.Context, signalID uint) error {
	s.dismissed = append(s.dismissed, signalID)
	return nil
}

func (s *stubSignalService) MarkExecuted(ctx context.Context, signalID uint) error {
	s.executed = append(s.executed, signalID)
	return nil
}

type ledgerFixture struct {
	ledgerRepo    *fakeLedgerRepo
	positionRepo  *fakePositionRepo
	portfolioRepo *fakePortfolioRepo
	signals       *stubSignalService
	svc           ActionService
}

func newLedgerFixture(t *testing.T, nav, cash int64) *ledgerFixture {
	t.Helper()
	f := &ledgerFixture{
		ledgerRepo:   &fakeLedgerRepo{},
		positionRepo: newFakePositionRepo(),
		portfolioRepo: &fakePortfolioRepo{row: &entity.Portfolio{
			Account:    "default",
			TotalAsset: decimal.NewFromInt(nav),
			Cash:       decimal.NewFromInt(cash),
		}},
		signals: &stubSignalService{},
	}
	assetRepo := newFakeAssetRepo(&entity.Asset{ID: 1, Code: "601398.SH", Industry: "bank"})
	riskSvc := NewRiskService(f.positionRepo, f.portfolioRepo, assetRepo, f.ledgerRepo, testConfig(), testLogger())
	f.svc = NewActionService(f.ledgerRepo, f.positionRepo, f.portfolioRepo, riskSvc, f.signals, testLogger())
	return f
}

func TestRecord_RequiresReason(t *testing.T) {
	f := newLedgerFixture(t, 100000, 100000)

	draft := buyDraft(1000, 5)
	draft.Reason = ""
	_, err := f.svc.Record(context.Background(), draft)
	assert.True(t, apperrors.IsValidation(err))
	assert.Empty(t, f.ledgerRepo.commits, "invalid drafts never reach the ledger")
}

func TestRecord_RejectsNonPositiveQuantityAndPrice(t *testing.T) {
	f := newLedgerFixture(t, 100000, 100000)

	draft := buyDraft(0, 5)
	_, err := f.svc.Record(context.Background(), draft)
	assert.True(t, apperrors.IsValidation(err))

	draft = buyDraft(100, 0)
	_, err = f.svc.Record(context.Background(), draft)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRecord_BuyRollsCostsIntoAvgCost(t *testing.T) {
	f := newLedgerFixture(t, 100000, 100000)

	draft := buyDraft(500, 10)
	draft.SignalID = func() *uint { id := uint(42); return &id }()
	draft.Costs = dto.CostBreakdown{Commission: decimal.NewFromInt(5)}

	action, err := f.svc.Record(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionStatusExecuted, action.Status)
	assert.True(t, action.TotalCost.Equal(decimal.NewFromInt(5)),
		"total cost must be the sum of the cost breakdown")

	require.Len(t, f.ledgerRepo.commits, 1)
	commit := f.ledgerRepo.commits[0]
	require.NotNil(t, commit.position)
	require.NotNil(t, commit.portfolio)

	// (5000 + 5) / 500 = 10.01
	assert.True(t, commit.position.AvgCost.Equal(decimal.RequireFromString("10.01")),
		"avg cost %s", commit.position.AvgCost)
	assert.Equal(t, int64(500), commit.position.Quantity)
	// 100000 - 5000 - 5
	assert.True(t, commit.portfolio.Cash.Equal(decimal.NewFromInt(94995)))
	// cash 94995 + market value 5000
	assert.True(t, commit.portfolio.TotalAsset.Equal(decimal.NewFromInt(99995)))

	assert.Equal(t, []uint{42}, f.signals.executed)
}

func TestRecord_AddUsesWeightedAverage(t *testing.T) {
	f := newLedgerFixture(t, 100000, 50000)
	f.positionRepo.put(&entity.Position{
		Account: "default", AssetID: 1, Quantity: 500,
		AvgCost:     decimal.NewFromInt(10),
		MarketValue: decimal.NewFromInt(5000),
	})

	draft := buyDraft(500, 6)
	draft.Kind = entity.ActionAdd
	_, err := f.svc.Record(context.Background(), draft)
	require.NoError(t, err)

	commit := f.ledgerRepo.commits[0]
	// (500*10 + 500*6) / 1000 = 8
	assert.True(t, commit.position.AvgCost.Equal(decimal.NewFromInt(8)),
		"avg cost %s", commit.position.AvgCost)
	assert.Equal(t, int64(1000), commit.position.Quantity)
}

func TestRecord_SellRealizesProportionalProfit(t *testing.T) {
	f := newLedgerFixture(t, 1120, 1000)
	f.positionRepo.put(&entity.Position{
		Account: "default", AssetID: 1, Quantity: 10,
		AvgCost:     decimal.NewFromInt(10),
		MarketValue: decimal.NewFromInt(120),
	})

	draft := &dto.ActionDraft{
		Account: "default", AssetID: 1, Kind: entity.ActionSell,
		Quantity: 5, Price: decimal.NewFromInt(12), Reason: "valuation above sell level",
		Costs: dto.CostBreakdown{Tax: decimal.NewFromInt(6)},
	}
	_, err := f.svc.Record(context.Background(), draft)
	require.NoError(t, err)

	commit := f.ledgerRepo.commits[0]
	assert.Equal(t, int64(5), commit.position.Quantity)
	assert.True(t, commit.position.AvgCost.Equal(decimal.NewFromInt(10)),
		"partial sell keeps the cost basis")
	// (12 - 10) * 5 - 6 = 4
	assert.True(t, commit.portfolio.CumulativeProfit.Equal(decimal.NewFromInt(4)),
		"realized %s", commit.portfolio.CumulativeProfit)
	// 1000 + 60 - 6 = 1054
	assert.True(t, commit.portfolio.Cash.Equal(decimal.NewFromInt(1054)))
}

func TestRecord_FullSellResetsCostBasis(t *testing.T) {
	f := newLedgerFixture(t, 1120, 1000)
	f.positionRepo.put(&entity.Position{
		Account: "default", AssetID: 1, Quantity: 10,
		AvgCost:     decimal.NewFromInt(10),
		MarketValue: decimal.NewFromInt(120),
	})

	draft := &dto.ActionDraft{
		Account: "default", AssetID: 1, Kind: entity.ActionSell,
		Quantity: 10, Price: decimal.NewFromInt(12), Reason: "exit",
	}
	_, err := f.svc.Record(context.Background(), draft)
	require.NoError(t, err)

	commit := f.ledgerRepo.commits[0]
	assert.Equal(t, int64(0), commit.position.Quantity)
	assert.True(t, commit.position.AvgCost.IsZero())
}

func TestRecord_BlockedDraftIsLedgeredAsRejected(t *testing.T) {
	f := newLedgerFixture(t, 100000, 100000)

	// 12% of NAV against a 10% cap, no override.
	action, err := f.svc.Record(context.Background(), buyDraft(2000, 6))
	require.Error(t, err)
	assert.True(t, apperrors.IsRiskBlocked(err))
	require.NotNil(t, action)
	assert.Equal(t, entity.ActionStatusRejected, action.Status)
	assert.NotEmpty(t, action.Findings, "rejection must carry the findings")

	require.Len(t, f.ledgerRepo.commits, 1)
	assert.Nil(t, f.ledgerRepo.commits[0].position, "a rejected draft mutates nothing")
	assert.Nil(t, f.ledgerRepo.commits[0].portfolio)
}

func TestRecord_OverrideExecutesWithWarnFindings(t *testing.T) {
	f := newLedgerFixture(t, 100000, 100000)

	draft := buyDraft(2000, 6)
	draft.OverrideReason = "sized intentionally"
	action, err := f.svc.Record(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, entity.ActionStatusExecuted, action.Status)
	assert.True(t, action.Override)
	assert.NotEmpty(t, action.Findings, "the downgraded finding stays on the record")
}

func TestRecord_HoldDismissesLinkedSignal(t *testing.T) {
	f := newLedgerFixture(t, 100000, 100000)

	signalID := uint(7)
	action, err := f.svc.Record(context.Background(), &dto.ActionDraft{
		Account: "default", AssetID: 1, SignalID: &signalID,
		Kind: entity.ActionHold, Reason: "not convinced by the crossing",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ActionStatusExecuted, action.Status)

	require.Len(t, f.ledgerRepo.commits, 1)
	assert.Nil(t, f.ledgerRepo.commits[0].position, "HOLD never touches holdings")
	assert.Equal(t, []uint{7}, f.signals.dismissed)
}

func TestComplianceStats_RatesOverWindow(t *testing.T) {
	f := newLedgerFixture(t, 100000, 100000)

	// Clean buy, an overridden buy, and a blocked one.
	_, err := f.svc.Record(context.Background(), buyDraft(500, 10))
	require.NoError(t, err)

	over := buyDraft(2000, 6)
	over.OverrideReason = "sized intentionally"
	_, err = f.svc.Record(context.Background(), over)
	require.NoError(t, err)

	_, err = f.svc.Record(context.Background(), buyDraft(5000, 6))
	require.Error(t, err)

	stats, err := f.svc.ComplianceStats(context.Background(), "default", 90)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalActions)
	assert.Equal(t, int64(1), stats.OverrideActions)
	assert.Equal(t, int64(1), stats.RejectedActions)
	assert.InDelta(t, 33.33, stats.OverrideRatePct, 0.01)
	assert.InDelta(t, 33.33, stats.RejectedRatePct, 0.01)
}

func TestComplianceStats_RejectsNonPositiveWindow(t *testing.T) {
	f := newLedgerFixture(t, 100000, 100000)

	_, err := f.svc.ComplianceStats(context.Background(), "default", 0)
	assert.True(t, apperrors.IsValidation(err))
}
