package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/config"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
)

func testLogger() *logger.Logger {
	l, err := logger.New("error", "console")
	if err != nil {
		panic(err)
	}
	return l
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Account = "default"
	cfg.Signal.CooldownDays = 7
	cfg.Signal.MinROE = 5.0
	cfg.Signal.PercentileYears = 5
	cfg.Risk.MaxSinglePositionPct = 10
	cfg.Risk.MaxTotalPositionPct = 100
	cfg.Risk.MaxIndustryConcentrationPct = 30
	cfg.Risk.MaxDailyTurnoverPct = 30
	cfg.Thresholds.RiskProfile = "moderate"
	cfg.Thresholds.WindowYears = 5
	cfg.Thresholds.MinSamplePoints = 30
	cfg.Thresholds.Fallback = config.IndustryTemplate{BuyPB: 1.0, AddPB: 0.8, SellPB: 2.5}
	cfg.Thresholds.Industries = map[string]config.IndustryTemplate{
		"bank": {BuyPB: 0.6, AddPB: 0.5, SellPB: 0.9},
	}
	return cfg
}

type fakeValuationRepo struct {
	latest   map[uint]*entity.Valuation
	pbValues map[uint][]float64
	upserted []*entity.Valuation
}

func newFakeValuationRepo() *fakeValuationRepo {
	return &fakeValuationRepo{
		latest:   map[uint]*entity.Valuation{},
		pbValues: map[uint][]float64{},
	}
}

func (f *fakeValuationRepo) Upsert(ctx context.Context, v *entity.Valuation) error {
	f.upserted = append(f.upserted, v)
	f.latest[v.AssetID] = v
	return nil
}

func (f *fakeValuationRepo) Latest(ctx context.Context, assetID uint) (*entity.Valuation, error) {
	v, ok := f.latest[assetID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return v, nil
}

func (f *fakeValuationRepo) History(ctx context.Context, param dto.GetValuationsParam) ([]entity.Valuation, error) {
	return nil, nil
}

func (f *fakeValuationRepo) PBValues(ctx context.Context, assetID uint, param dto.GetValuationsParam) ([]float64, error) {
	return f.pbValues[assetID], nil
}

func (f *fakeValuationRepo) Stats(ctx context.Context, assetID uint, param dto.GetValuationsParam) (*repository.ValuationStats, error) {
	return &repository.ValuationStats{}, nil
}

type fakeThresholdRepo struct {
	rows map[uint]*entity.Threshold
}

func newFakeThresholdRepo() *fakeThresholdRepo {
	return &fakeThresholdRepo{rows: map[uint]*entity.Threshold{}}
}

func (f *fakeThresholdRepo) GetByAssetID(ctx context.Context, assetID uint) (*entity.Threshold, error) {
	t, ok := f.rows[assetID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return t, nil
}

func (f *fakeThresholdRepo) Upsert(ctx context.Context, t *entity.Threshold) error {
	f.rows[t.AssetID] = t
	return nil
}

type signalKey struct {
	assetID uint
	kind    entity.SignalKind
}

type fakeSignalRepo struct {
	created  []*entity.Signal
	last     map[signalKey]*entity.Signal
	statuses map[uint]entity.SignalStatus
	nextID   uint
}

func newFakeSignalRepo() *fakeSignalRepo {
	return &fakeSignalRepo{
		last:     map[signalKey]*entity.Signal{},
		statuses: map[uint]entity.SignalStatus{},
	}
}

func (f *fakeSignalRepo) Create(ctx context.Context, s *entity.Signal) error {
	f.nextID++
	s.ID = f.nextID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	f.created = append(f.created, s)
	f.last[signalKey{s.AssetID, s.Kind}] = s
	return nil
}

func (f *fakeSignalRepo) LastEmitted(ctx context.Context, assetID uint, kind entity.SignalKind) (*entity.Signal, error) {
	s, ok := f.last[signalKey{assetID, kind}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

func (f *fakeSignalRepo) Find(ctx context.Context, param dto.GetSignalsParam) ([]entity.Signal, error) {
	out := make([]entity.Signal, 0, len(f.created))
	for _, s := range f.created {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSignalRepo) FindByID(ctx context.Context, id uint) (*entity.Signal, error) {
	for _, s := range f.created {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeSignalRepo) UpdateStatus(ctx context.Context, id uint, status entity.SignalStatus) error {
	f.statuses[id] = status
	return nil
}

type positionKey struct {
	account string
	assetID uint
}

type fakePositionRepo struct {
	rows map[positionKey]*entity.Position
}

func newFakePositionRepo() *fakePositionRepo {
	return &fakePositionRepo{rows: map[positionKey]*entity.Position{}}
}

func (f *fakePositionRepo) put(p *entity.Position) {
	f.rows[positionKey{p.Account, p.AssetID}] = p
}

func (f *fakePositionRepo) Get(ctx context.Context, account string, assetID uint) (*entity.Position, error) {
	p, ok := f.rows[positionKey{account, assetID}]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return p, nil
}

func (f *fakePositionRepo) GetAll(ctx context.Context, account string) ([]entity.Position, error) {
	var out []entity.Position
	for key, p := range f.rows {
		if key.account == account && p.Quantity > 0 {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePositionRepo) UpdateMarketValue(ctx context.Context, account string, assetID uint, marketValue decimal.Decimal) error {
	if p, ok := f.rows[positionKey{account, assetID}]; ok {
		p.MarketValue = marketValue
	}
	return nil
}

type fakePortfolioRepo struct {
	row *entity.Portfolio
}

func (f *fakePortfolioRepo) Get(ctx context.Context, account string) (*entity.Portfolio, error) {
	if f.row == nil {
		return nil, apperrors.ErrNotFound
	}
	copied := *f.row
	return &copied, nil
}

func (f *fakePortfolioRepo) EnsureExists(ctx context.Context, account string) error {
	if f.row == nil {
		f.row = &entity.Portfolio{Account: account}
	}
	return nil
}

type fakeAssetRepo struct {
	rows    map[uint]*entity.Asset
	history map[uint]bool
	soft    []uint
	hard    []uint
}

func newFakeAssetRepo(assets ...*entity.Asset) *fakeAssetRepo {
	f := &fakeAssetRepo{rows: map[uint]*entity.Asset{}, history: map[uint]bool{}}
	for _, a := range assets {
		f.rows[a.ID] = a
	}
	return f
}

func (f *fakeAssetRepo) Create(ctx context.Context, a *entity.Asset) error {
	f.rows[a.ID] = a
	return nil
}

func (f *fakeAssetRepo) FindByID(ctx context.Context, id uint) (*entity.Asset, error) {
	a, ok := f.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return a, nil
}

func (f *fakeAssetRepo) FindByCode(ctx context.Context, code string) (*entity.Asset, error) {
	for _, a := range f.rows {
		if a.Code == code {
			return a, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (f *fakeAssetRepo) GetAll(ctx context.Context) ([]entity.Asset, error) {
	var out []entity.Asset
	for _, a := range f.rows {
		out = append(out, *a)
	}
	return out, nil
}

func (f *fakeAssetRepo) Update(ctx context.Context, a *entity.Asset) error {
	f.rows[a.ID] = a
	return nil
}

func (f *fakeAssetRepo) HasHistory(ctx context.Context, id uint) (bool, error) {
	return f.history[id], nil
}

func (f *fakeAssetRepo) SoftDelete(ctx context.Context, id uint) error {
	f.soft = append(f.soft, id)
	delete(f.rows, id)
	return nil
}

func (f *fakeAssetRepo) HardDelete(ctx context.Context, id uint) error {
	f.hard = append(f.hard, id)
	delete(f.rows, id)
	return nil
}

type ledgerCommit struct {
	action    *entity.Action
	position  *entity.Position
	portfolio *entity.Portfolio
}

type fakeLedgerRepo struct {
	commits  []ledgerCommit
	turnover decimal.Decimal
}

func (f *fakeLedgerRepo) Commit(ctx context.Context, action *entity.Action, position *entity.Position, portfolio *entity.Portfolio) error {
	f.commits = append(f.commits, ledgerCommit{action, position, portfolio})
	return nil
}

func (f *fakeLedgerRepo) Find(ctx context.Context, param dto.GetActionsParam) ([]entity.Action, error) {
	var out []entity.Action
	for _, c := range f.commits {
		out = append(out, *c.action)
	}
	return out, nil
}

func (f *fakeLedgerRepo) ExecutedTurnoverOn(ctx context.Context, account string, day time.Time) (decimal.Decimal, error) {
	return f.turnover, nil
}

func (f *fakeLedgerRepo) CountDiscipline(ctx context.Context, account string, since time.Time) (*repository.DisciplineCounts, error) {
	counts := &repository.DisciplineCounts{}
	for _, c := range f.commits {
		counts.Total++
		if c.action.Override {
			counts.Overrides++
		}
		if c.action.Status == entity.ActionStatusRejected {
			counts.Rejected++
		}
	}
	return counts, nil
}

type fakeFundamentalsRepo struct {
	roe float64
	ok  bool
	err error
}

func (f *fakeFundamentalsRepo) ReturnOnEquity(ctx context.Context, code string) (float64, bool, error) {
	return f.roe, f.ok, f.err
}
