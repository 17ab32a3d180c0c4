package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/service"
	"pb-sentinel/pkg/logger"
)

// ValuationHandler handles HTTP requests for valuation history.
type ValuationHandler struct {
	valuationService service.ValuationService
	poolService      service.PoolService
	logger           *logger.Logger
}

// NewValuationHandler creates a new ValuationHandler.
func NewValuationHandler(valuationService service.ValuationService, poolService service.PoolService, logger *logger.Logger) *ValuationHandler {
	return &ValuationHandler{valuationService: valuationService, poolService: poolService, logger: logger}
}

// RegisterRoutes registers the valuation routes to the asset Echo group.
func (h *ValuationHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id/valuations", h.GetHistory)
	g.POST("/:id/valuations", h.UpsertValuation)
	g.GET("/:id/valuations/latest", h.GetLatest)
	g.GET("/:id/valuations/stats", h.GetStats)
	g.POST("/:id/valuations/refresh", h.Refresh)
}

func (h *ValuationHandler) GetHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}

	param := dto.GetValuationsParam{AssetID: id}
	if v := c.QueryParam("since"); v != "" {
		since, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid since date, want YYYY-MM-DD"})
		}
		param.Since = &since
	}
	if v := c.QueryParam("after"); v != "" {
		after, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid after date, want YYYY-MM-DD"})
		}
		param.AfterDate = &after
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
		param.Limit = limit
	}

	valuations, err := h.valuationService.History(c.Request().Context(), param)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, valuations)
}

func (h *ValuationHandler) UpsertValuation(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	var req dto.UpsertValuationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	tradeDate, err := time.Parse("2006-01-02", req.TradeDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid trade_date, want YYYY-MM-DD"})
	}

	source := entity.DataSource(req.Source)
	if source == "" {
		source = entity.DataSourceScraped
	}
	valuation := &entity.Valuation{
		AssetID:    id,
		TradeDate:  tradeDate,
		PB:         req.PB,
		ClosePrice: req.ClosePrice,
		BookValue:  req.BookValue,
		DataSource: source,
		Method:     entity.MethodDirect,
	}
	if err := h.valuationService.Upsert(c.Request().Context(), valuation); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, valuation)
}

func (h *ValuationHandler) GetLatest(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	latest, err := h.valuationService.Latest(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, latest)
}

func (h *ValuationHandler) GetStats(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	years := 5
	if v := c.QueryParam("years"); v != "" {
		years, err = strconv.Atoi(v)
		if err != nil || years <= 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid years"})
		}
	}
	stats, err := h.valuationService.Stats(c.Request().Context(), id, years)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func (h *ValuationHandler) Refresh(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	asset, err := h.poolService.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	valuation, err := h.valuationService.Refresh(c.Request().Context(), asset)
	if err != nil {
		h.logger.Error("Manual valuation refresh failed",
			logger.StringField("code", asset.Code), logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, valuation)
}
