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

// SignalHandler handles HTTP requests for emitted signals.
type SignalHandler struct {
	signalService service.SignalService
	logger        *logger.Logger
}

// NewSignalHandler creates a new SignalHandler.
func NewSignalHandler(signalService service.SignalService, logger *logger.Logger) *SignalHandler {
	return &SignalHandler{signalService: signalService, logger: logger}
}

// RegisterRoutes registers the signal routes to the Echo group.
func (h *SignalHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/latest", h.GetLatest)
	g.POST("/:id/dismiss", h.Dismiss)
}

func (h *SignalHandler) GetLatest(c echo.Context) error {
	param := dto.GetSignalsParam{Limit: 50}
	if v := c.QueryParam("asset_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset_id"})
		}
		assetID := uint(id)
		param.AssetID = &assetID
	}
	if v := c.QueryParam("kind"); v != "" {
		param.Kinds = []entity.SignalKind{entity.SignalKind(v)}
	}
	if v := c.QueryParam("status"); v != "" {
		param.Statuses = []entity.SignalStatus{entity.SignalStatus(v)}
	}
	if v := c.QueryParam("since"); v != "" {
		since, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid since date, want YYYY-MM-DD"})
		}
		param.Since = &since
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid limit"})
		}
		param.Limit = limit
	}

	signals, err := h.signalService.LatestSignals(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to query signals", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, signals)
}

func (h *SignalHandler) Dismiss(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid signal ID"})
	}
	if err := h.signalService.Dismiss(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
