package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/config"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/common"
	"pb-sentinel/pkg/logger"
	"pb-sentinel/pkg/utils"

	redisPkg "pb-sentinel/pkg/redis"
)

// ScannerService drives the background valuation scan loop. At most one loop
// runs per account across all processes; the scan_runs row is the
// mutual-exclusion token and a heartbeat keeps the claim alive.
type ScannerService interface {
	// Start claims the run token and launches the loop. Returns
	// ErrScanAlreadyRunning when another live owner holds the token.
	Start(ctx context.Context) error
	// Stop asks the loop owned by this process to finish and releases the
	// token as STOPPED.
	Stop(ctx context.Context) error
	// Reset forcibly returns the token to IDLE. Manual recovery only.
	Reset(ctx context.Context) error
	Status(ctx context.Context) (*dto.ScanProgress, error)
	// Shutdown stops the loop during process teardown, if one is running.
	Shutdown(ctx context.Context)
}

// NewScannerService creates the scanner.
func NewScannerService(
	scanRunRepo repository.ScanRunRepository,
	assetRepo repository.AssetRepository,
	valuationSvc ValuationService,
	signalSvc SignalService,
	redisClient *redisPkg.Client,
	cfg *config.Config,
	log *logger.Logger,
) ScannerService {
	return &scannerService{
		scanRunRepo:  scanRunRepo,
		assetRepo:    assetRepo,
		valuationSvc: valuationSvc,
		signalSvc:    signalSvc,
		redisClient:  redisClient,
		cfg:          cfg,
		logger:       log,
	}
}

type scannerService struct {
	scanRunRepo  repository.ScanRunRepository
	assetRepo    repository.AssetRepository
	valuationSvc ValuationService
	signalSvc    SignalService
	redisClient  *redisPkg.Client
	cfg          *config.Config
	logger       *logger.Logger

	mu     sync.Mutex
	owner  string
	stopCh chan struct{}
	doneCh chan struct{}
}

func (s *scannerService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return apperrors.ErrScanAlreadyRunning
	}

	account := s.cfg.App.Account
	if err := s.scanRunRepo.EnsureExists(ctx, account); err != nil {
		return err
	}

	owner := uuid.NewString()
	staleness := time.Duration(s.cfg.Scanner.StalenessSeconds) * time.Second
	claimed, err := s.scanRunRepo.Claim(ctx, account, owner, time.Now(), staleness)
	if err != nil {
		return err
	}
	if !claimed {
		return apperrors.ErrScanAlreadyRunning
	}

	s.owner = owner
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.InfoContext(ctx, "Scan loop started",
		logger.StringField("account", account), logger.StringField("owner", owner))

	stopCh, doneCh := s.stopCh, s.doneCh
	utils.GoSafe(func() {
		s.run(owner, stopCh, doneCh)
	})
	return nil
}

// run is the loop body. It releases the token on exit; a panic in a scan
// pass releases it as CRASHED.
func (s *scannerService) run(owner string, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ctx := context.Background()
	account := s.cfg.App.Account

	scanTicker := time.NewTicker(time.Duration(s.cfg.Scanner.IntervalSeconds) * time.Second)
	defer scanTicker.Stop()

	// The heartbeat runs on its own goroutine: a scan pass can take longer
	// than the staleness threshold, and the claim must stay fresh throughout
	// or a rival process could steal the token mid-pass.
	hbStopCh := make(chan struct{})
	hbDoneCh := make(chan struct{})
	utils.GoSafe(func() {
		s.heartbeatLoop(ctx, account, owner, hbStopCh, hbDoneCh)
	})

	defer func() {
		close(hbStopCh)
		<-hbDoneCh
		if r := recover(); r != nil {
			s.logger.Error("Scan loop panicked", logger.Field("panic", r))
			_ = s.scanRunRepo.Release(ctx, account, owner, entity.ScanStatusCrashed, fmt.Sprint(r))
			return
		}
		if err := s.scanRunRepo.Release(ctx, account, owner, entity.ScanStatusStopped, ""); err != nil {
			s.logger.Error("Failed to release scan token", logger.ErrorField(err))
		}
		s.logger.Info("Scan loop stopped", logger.StringField("owner", owner))
	}()

	// First pass immediately so a fresh start does not wait a full interval.
	s.scanPass(ctx, owner)

	for {
		select {
		case <-stopCh:
			return
		case <-scanTicker.C:
			s.scanPass(ctx, owner)
		}
	}
}

func (s *scannerService) heartbeatLoop(ctx context.Context, account, owner string, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(time.Duration(s.cfg.Scanner.HeartbeatSeconds) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if err := s.scanRunRepo.Heartbeat(ctx, account, owner, time.Now()); err != nil {
				s.logger.Error("Heartbeat failed", logger.ErrorField(err))
			}
		}
	}
}

// scanPass refreshes every active pool asset and runs the signal engine on
// it. A failing asset is counted and skipped; the pass always finishes.
func (s *scannerService) scanPass(ctx context.Context, owner string) {
	assets, err := s.assetRepo.GetAll(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to load asset pool", logger.ErrorField(err))
		return
	}

	progress := dto.ScanProgress{
		Account:   s.cfg.App.Account,
		Status:    string(entity.ScanStatusRunning),
		Owner:     owner,
		Total:     len(assets),
		StartedAt: time.Now().Format(time.RFC3339),
	}

	for i := range assets {
		asset := &assets[i]
		if _, err := s.valuationSvc.Refresh(ctx, asset); err != nil {
			progress.Failed++
			s.logger.WarnContext(ctx, "Valuation refresh failed, skipping asset",
				logger.StringField("code", asset.Code), logger.ErrorField(err))
		} else if _, err := s.signalSvc.EvaluateAsset(ctx, asset); err != nil {
			progress.Failed++
			s.logger.WarnContext(ctx, "Signal evaluation failed, skipping asset",
				logger.StringField("code", asset.Code), logger.ErrorField(err))
		}
		progress.Scanned++
		progress.LastCode = asset.Code
		s.publishProgress(ctx, &progress)
	}

	s.logger.InfoContext(ctx, "Scan pass finished",
		logger.IntField("scanned", progress.Scanned),
		logger.IntField("failed", progress.Failed))
}

// publishProgress mirrors cycle progress to redis for the status endpoint.
// Best effort only.
func (s *scannerService) publishProgress(ctx context.Context, progress *dto.ScanProgress) {
	if s.redisClient == nil {
		return
	}
	raw, err := json.Marshal(progress)
	if err != nil {
		return
	}
	key := common.RedisKeyScanProgress(progress.Account)
	if err := s.redisClient.Set(ctx, key, raw, 24*time.Hour).Err(); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish scan progress", logger.ErrorField(err))
	}
}

func (s *scannerService) Stop(ctx context.Context) error {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh, s.owner = nil, nil, ""
	s.mu.Unlock()

	if stopCh == nil {
		return apperrors.NewValidation("scanner", "no scan loop is running in this process")
	}
	close(stopCh)
	select {
	case <-doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *scannerService) Reset(ctx context.Context) error {
	s.mu.Lock()
	local := s.stopCh != nil
	s.mu.Unlock()
	if local {
		return apperrors.NewValidation("scanner", "stop the local scan loop before resetting")
	}
	return s.scanRunRepo.Reset(ctx, s.cfg.App.Account)
}

func (s *scannerService) Status(ctx context.Context) (*dto.ScanProgress, error) {
	account := s.cfg.App.Account
	run, err := s.scanRunRepo.Get(ctx, account)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return &dto.ScanProgress{Account: account, Status: string(entity.ScanStatusIdle)}, nil
		}
		return nil, err
	}

	progress := &dto.ScanProgress{
		Account: account,
		Status:  string(run.Status),
		Owner:   run.Owner,
	}
	if run.StartedAt != nil {
		progress.StartedAt = run.StartedAt.Format(time.RFC3339)
	}
	if run.HeartbeatAt != nil {
		progress.HeartbeatAt = run.HeartbeatAt.Format(time.RFC3339)
	}

	if s.redisClient != nil && run.Status == entity.ScanStatusRunning {
		raw, err := s.redisClient.Get(ctx, common.RedisKeyScanProgress(account)).Bytes()
		if err == nil {
			var cached dto.ScanProgress
			if json.Unmarshal(raw, &cached) == nil {
				progress.Scanned = cached.Scanned
				progress.Total = cached.Total
				progress.Failed = cached.Failed
				progress.LastCode = cached.LastCode
			}
		}
	}
	return progress, nil
}

func (s *scannerService) Shutdown(ctx context.Context) {
	if err := s.Stop(ctx); err != nil && !apperrors.IsValidation(err) {
		s.logger.Error("Scanner shutdown failed", logger.ErrorField(err))
	}
}
