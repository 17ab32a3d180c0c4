package service

import (
	"context"
	"errors"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
)

// PoolService manages the watch pool: which assets the scanner covers.
type PoolService interface {
	Admit(ctx context.Context, asset *entity.Asset) error
	Update(ctx context.Context, asset *entity.Asset) error
	Get(ctx context.Context, id uint) (*entity.Asset, error)
	GetByCode(ctx context.Context, code string) (*entity.Asset, error)
	List(ctx context.Context) ([]entity.Asset, error)
	// Retire removes the asset from the pool. Assets with valuation or action
	// history are soft-retired to keep the ledger referentially intact; clean
	// assets are removed outright.
	Retire(ctx context.Context, id uint) error
}

// NewPoolService creates the watch pool service.
func NewPoolService(assetRepo repository.AssetRepository, log *logger.Logger) PoolService {
	return &poolService{assetRepo: assetRepo, logger: log}
}

type poolService struct {
	assetRepo repository.AssetRepository
	logger    *logger.Logger
}

func (s *poolService) Admit(ctx context.Context, asset *entity.Asset) error {
	if err := validateAsset(asset); err != nil {
		return err
	}
	if _, err := s.assetRepo.FindByCode(ctx, asset.Code); err == nil {
		return apperrors.NewValidation("code", "asset %s is already in the pool", asset.Code)
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return err
	}
	if err := s.assetRepo.Create(ctx, asset); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Asset admitted to pool",
		logger.StringField("code", asset.Code), logger.StringField("industry", asset.Industry))
	return nil
}

func (s *poolService) Update(ctx context.Context, asset *entity.Asset) error {
	if err := validateAsset(asset); err != nil {
		return err
	}
	existing, err := s.assetRepo.FindByID(ctx, asset.ID)
	if err != nil {
		return err
	}
	if existing.Code != asset.Code {
		return apperrors.NewValidation("code", "stock code is immutable")
	}
	return s.assetRepo.Update(ctx, asset)
}

func (s *poolService) Get(ctx context.Context, id uint) (*entity.Asset, error) {
	return s.assetRepo.FindByID(ctx, id)
}

func (s *poolService) GetByCode(ctx context.Context, code string) (*entity.Asset, error) {
	return s.assetRepo.FindByCode(ctx, code)
}

func (s *poolService) List(ctx context.Context) ([]entity.Asset, error) {
	return s.assetRepo.GetAll(ctx)
}

func (s *poolService) Retire(ctx context.Context, id uint) error {
	if _, err := s.assetRepo.FindByID(ctx, id); err != nil {
		return err
	}
	hasHistory, err := s.assetRepo.HasHistory(ctx, id)
	if err != nil {
		return err
	}
	if hasHistory {
		s.logger.InfoContext(ctx, "Asset has history, soft-retiring", logger.Field("asset_id", id))
		return s.assetRepo.SoftDelete(ctx, id)
	}
	return s.assetRepo.HardDelete(ctx, id)
}

func validateAsset(asset *entity.Asset) error {
	if asset.Code == "" {
		return apperrors.NewValidation("code", "stock code is required")
	}
	if asset.Name == "" {
		return apperrors.NewValidation("name", "name is required")
	}
	switch asset.Market {
	case entity.MarketAShare, entity.MarketHK, entity.MarketUS:
	default:
		return apperrors.NewValidation("market", "unknown market %q", asset.Market)
	}
	if asset.CompetenceScore < 1 || asset.CompetenceScore > 5 {
		return apperrors.NewValidation("competence_score", "score must be 1..5, got %d", asset.CompetenceScore)
	}
	return nil
}
