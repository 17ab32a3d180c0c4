package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"pb-sentinel/internal/sentinel/config"
	"pb-sentinel/pkg/logger"
)

// FundamentalsRepository fetches fundamental quality metrics. A missing
// metric is reported as ok=false, never invented, so the quality gate can
// stay inert on unknown data.
type FundamentalsRepository interface {
	ReturnOnEquity(ctx context.Context, code string) (roe float64, ok bool, err error)
}

type roeResponse struct {
	Data *struct {
		ROE *float64 `json:"f37"` // weighted ROE, scaled x100
	} `json:"data"`
}

type fundamentalsRepository struct {
	cfg        *config.Config
	log        *logger.Logger
	httpClient *http.Client
	roeCache   *cache.Cache
}

func NewFundamentalsRepository(cfg *config.Config, log *logger.Logger) FundamentalsRepository {
	return &fundamentalsRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.MarketData.TimeoutSeconds) * time.Second,
		},
		roeCache: cache.New(15*time.Minute, 30*time.Minute),
	}
}

func (r *fundamentalsRepository) ReturnOnEquity(ctx context.Context, code string) (float64, bool, error) {
	if cached, found := r.roeCache.Get(code); found {
		roe, ok := cached.(float64)
		return roe, ok, nil
	}

	url := fmt.Sprintf("%s/api/qt/stock/get?secid=%s&fields=f37",
		r.cfg.MarketData.QuoteBaseURL, secID(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return 0, false, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed roeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return 0, false, err
	}
	if parsed.Data == nil || parsed.Data.ROE == nil {
		r.log.DebugContext(ctx, "ROE unavailable from provider", logger.StringField("code", code))
		return 0, false, nil
	}

	roe := *parsed.Data.ROE / 100
	r.roeCache.Set(code, roe, cache.DefaultExpiration)
	return roe, true, nil
}
