package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/config"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
	"pb-sentinel/pkg/utils"
)

// MarketDataRepository fetches PB observations from the quote provider.
// The primary tier reads the realtime indicator endpoint (direct PB plus
// close price); when it is exhausted the client falls back to deriving PB
// from the latest kline close and book value per share.
type MarketDataRepository interface {
	FetchValuation(ctx context.Context, code string, asOf time.Time) (*dto.ValuationQuote, error)
}

type marketDataRepository struct {
	cfg            *config.Config
	log            *logger.Logger
	httpClient     *http.Client
	requestLimiter *rate.Limiter
}

func NewMarketDataRepository(cfg *config.Config, log *logger.Logger) MarketDataRepository {
	secondsPerRequest := time.Minute / time.Duration(cfg.MarketData.MaxRequestPerMinute)
	return &marketDataRepository{
		cfg: cfg,
		log: log,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.MarketData.TimeoutSeconds) * time.Second,
		},
		requestLimiter: rate.NewLimiter(rate.Every(secondsPerRequest), 1),
	}
}

type quoteResponse struct {
	Data *struct {
		Price     *float64    `json:"f43"`  // close, scaled x100
		Name      string      `json:"f58"`  // display name
		PB        *float64    `json:"f23"`  // price-to-book, scaled x100
		BookValue *float64    `json:"f92"`  // book value per share
		Period    json.Number `json:"f162"` // reporting period tag
	} `json:"data"`
}

type klineResponse struct {
	Data *struct {
		Klines []string `json:"klines"`
	} `json:"data"`
}

func (r *marketDataRepository) FetchValuation(ctx context.Context, code string, asOf time.Time) (*dto.ValuationQuote, error) {
	quote, directErr := r.fetchDirect(ctx, code, asOf)
	if directErr == nil {
		return quote, nil
	}
	r.log.WarnContext(ctx, "Primary quote tier exhausted, falling back to kline derivation",
		logger.StringField("code", code), logger.ErrorField(directErr))

	quote, derivedErr := r.fetchDerived(ctx, code, asOf)
	if derivedErr == nil {
		return quote, nil
	}
	return nil, &apperrors.DataSourceError{
		Source: string(entity.DataSourceDerived),
		Code:   code,
		Err:    fmt.Errorf("all tiers failed: direct: %v; derived: %w", directErr, derivedErr),
	}
}

// fetchDirect reads the realtime indicator endpoint. The provider reports
// price and PB scaled by 100; book value per share arrives unscaled. Market
// capitalization fields are deliberately ignored: close_price is the close
// or nothing.
func (r *marketDataRepository) fetchDirect(ctx context.Context, code string, asOf time.Time) (*dto.ValuationQuote, error) {
	url := fmt.Sprintf("%s/api/qt/stock/get?secid=%s&fields=f43,f58,f23,f92,f162",
		r.cfg.MarketData.QuoteBaseURL, secID(code))

	var resp quoteResponse
	if err := r.getJSONWithRetry(ctx, url, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil || resp.Data.PB == nil || *resp.Data.PB <= 0 {
		return nil, fmt.Errorf("quote endpoint returned no usable PB for %s", code)
	}

	quote := &dto.ValuationQuote{
		TradeDate:       utils.TruncateToDay(asOf),
		PB:              *resp.Data.PB / 100,
		BookValue:       resp.Data.BookValue,
		ReportingPeriod: resp.Data.Period.String(),
		Source:          entity.DataSourceEastmoney,
		Method:          entity.MethodDirect,
	}
	if resp.Data.Price != nil && *resp.Data.Price > 0 {
		quote.ClosePrice = utils.ToPointer(*resp.Data.Price / 100)
	}
	return quote, nil
}

// fetchDerived computes PB from the latest kline close and the book value
// per share reported by the quote endpoint.
func (r *marketDataRepository) fetchDerived(ctx context.Context, code string, asOf time.Time) (*dto.ValuationQuote, error) {
	quoteURL := fmt.Sprintf("%s/api/qt/stock/get?secid=%s&fields=f92",
		r.cfg.MarketData.QuoteBaseURL, secID(code))
	var quoteResp quoteResponse
	if err := r.getJSONWithRetry(ctx, quoteURL, &quoteResp); err != nil {
		return nil, err
	}
	if quoteResp.Data == nil || quoteResp.Data.BookValue == nil || *quoteResp.Data.BookValue <= 0 {
		return nil, fmt.Errorf("no book value per share for %s", code)
	}
	bvps := *quoteResp.Data.BookValue

	klineURL := fmt.Sprintf("%s/api/qt/stock/kline/get?secid=%s&klt=101&fqt=0&lmt=1&end=20500101&fields1=f1,f2&fields2=f51,f52,f53",
		r.cfg.MarketData.KlineBaseURL, secID(code))
	var klineResp klineResponse
	if err := r.getJSONWithRetry(ctx, klineURL, &klineResp); err != nil {
		return nil, err
	}
	if klineResp.Data == nil || len(klineResp.Data.Klines) == 0 {
		return nil, fmt.Errorf("no kline rows for %s", code)
	}

	// kline row format: "2026-08-25,open,close,..."
	parts := strings.Split(klineResp.Data.Klines[len(klineResp.Data.Klines)-1], ",")
	if len(parts) < 3 {
		return nil, fmt.Errorf("malformed kline row for %s", code)
	}
	tradeDate, err := time.Parse("2006-01-02", parts[0])
	if err != nil {
		return nil, fmt.Errorf("malformed kline date for %s: %w", code, err)
	}
	close, err := strconv.ParseFloat(parts[2], 64)
	if err != nil || close <= 0 {
		return nil, fmt.Errorf("malformed kline close for %s", code)
	}

	return &dto.ValuationQuote{
		TradeDate:  tradeDate,
		PB:         close / bvps,
		ClosePrice: utils.ToPointer(close),
		BookValue:  utils.ToPointer(bvps),
		Source:     entity.DataSourceDerived,
		Method:     entity.MethodDerived,
	}, nil
}

// getJSONWithRetry performs a rate-limited GET with bounded retries and
// exponential backoff. Every attempt carries the configured timeout; the
// retry loop never outlives the caller's context.
func (r *marketDataRepository) getJSONWithRetry(ctx context.Context, url string, out interface{}) error {
	backoff := time.Duration(r.cfg.MarketData.BackoffBaseMillis) * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= r.cfg.MarketData.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err := r.requestLimiter.Wait(ctx); err != nil {
			return err
		}
		lastErr = r.getJSON(ctx, url, out)
		if lastErr == nil {
			return nil
		}
		r.log.DebugContext(ctx, "Quote request failed, will retry",
			logger.StringField("url", url),
			logger.IntField("attempt", attempt+1),
			logger.ErrorField(lastErr))
	}
	return lastErr
}

func (r *marketDataRepository) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "application/json, text/plain, */*")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

// secID converts a pool code like 600519.SH into the provider's secid form.
func secID(code string) string {
	symbol := code
	if idx := strings.Index(code, "."); idx >= 0 {
		symbol = code[:idx]
	}
	if strings.HasSuffix(code, ".SH") || strings.HasPrefix(symbol, "6") {
		return "1." + symbol
	}
	return "0." + symbol
}
