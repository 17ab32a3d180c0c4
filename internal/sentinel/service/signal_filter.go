package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/repository"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
)

// SignalCandidate is an eligible threshold crossing before quality filters.
type SignalCandidate struct {
	Asset     *entity.Asset
	Kind      entity.SignalKind
	Valuation *entity.Valuation
	Threshold float64
}

// FilterResult is the verdict of one filter stage.
type FilterResult struct {
	Pass bool
	// Note is appended to the signal explanation when the stage passes with
	// a caveat, or recorded as the suppression reason when it fails.
	Note string
}

// SignalFilter is one stage of the quality filter pipeline. Stages run in
// order and the first suppression wins.
type SignalFilter interface {
	Name() string
	Check(ctx context.Context, candidate *SignalCandidate) (FilterResult, error)
}

// cooldownFilter suppresses a candidate when a signal with the same
// (asset, kind) key was emitted within the cooldown window. The clock resets
// on every emission, not only the first.
type cooldownFilter struct {
	signalRepo repository.SignalRepository
	window     time.Duration
}

// NewCooldownFilter creates the cooldown stage.
func NewCooldownFilter(signalRepo repository.SignalRepository, cooldownDays int) SignalFilter {
	return &cooldownFilter{
		signalRepo: signalRepo,
		window:     time.Duration(cooldownDays) * 24 * time.Hour,
	}
}

func (f *cooldownFilter) Name() string { return "cooldown" }

func (f *cooldownFilter) Check(ctx context.Context, candidate *SignalCandidate) (FilterResult, error) {
	last, err := f.signalRepo.LastEmitted(ctx, candidate.Asset.ID, candidate.Kind)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return FilterResult{Pass: true}, nil
		}
		return FilterResult{}, err
	}
	elapsed := time.Since(last.CreatedAt)
	if elapsed < f.window {
		return FilterResult{
			Pass: false,
			Note: fmt.Sprintf("%s signal emitted %.0fh ago, inside %s cooldown", candidate.Kind, elapsed.Hours(), f.window),
		}, nil
	}
	return FilterResult{Pass: true}, nil
}

// roeFilter suppresses BUY/ADD candidates whose latest return-on-equity is
// below the configured floor. Unknown ROE never suppresses; it passes with a
// "quality unknown" note surfaced on the explanation.
type roeFilter struct {
	fundamentalsRepo repository.FundamentalsRepository
	log              *logger.Logger
	minROE           float64
}

// NewROEFilter creates the fundamental quality stage.
func NewROEFilter(fundamentalsRepo repository.FundamentalsRepository, log *logger.Logger, minROE float64) SignalFilter {
	return &roeFilter{fundamentalsRepo: fundamentalsRepo, log: log, minROE: minROE}
}

func (f *roeFilter) Name() string { return "roe_quality" }

func (f *roeFilter) Check(ctx context.Context, candidate *SignalCandidate) (FilterResult, error) {
	if candidate.Kind == entity.SignalSell {
		return FilterResult{Pass: true}, nil
	}
	roe, ok, err := f.fundamentalsRepo.ReturnOnEquity(ctx, candidate.Asset.Code)
	if err != nil {
		// Provider trouble is treated like missing data: the gate stays
		// inert rather than suppressing on a transport failure.
		f.log.WarnContext(ctx, "ROE fetch failed, quality gate inert",
			logger.StringField("code", candidate.Asset.Code), logger.ErrorField(err))
		return FilterResult{Pass: true, Note: "quality unknown (ROE unavailable)"}, nil
	}
	if !ok {
		return FilterResult{Pass: true, Note: "quality unknown (ROE unavailable)"}, nil
	}
	if roe < f.minROE {
		return FilterResult{
			Pass: false,
			Note: fmt.Sprintf("ROE %.1f%% below floor %.1f%%", roe, f.minROE),
		}, nil
	}
	return FilterResult{Pass: true}, nil
}
