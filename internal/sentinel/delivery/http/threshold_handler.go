package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/service"
	"pb-sentinel/pkg/logger"
)

// ThresholdHandler handles HTTP requests for threshold policy.
type ThresholdHandler struct {
	thresholdService service.ThresholdService
	poolService      service.PoolService
	logger           *logger.Logger
}

// NewThresholdHandler creates a new ThresholdHandler.
func NewThresholdHandler(thresholdService service.ThresholdService, poolService service.PoolService, logger *logger.Logger) *ThresholdHandler {
	return &ThresholdHandler{thresholdService: thresholdService, poolService: poolService, logger: logger}
}

// RegisterRoutes registers the threshold routes to the asset Echo group.
func (h *ThresholdHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id/thresholds", h.GetThresholds)
	g.PUT("/:id/thresholds", h.SetThresholds)
	g.GET("/:id/thresholds/recommendation", h.Recommend)
}

func (h *ThresholdHandler) GetThresholds(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	asset, err := h.poolService.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	threshold, err := h.thresholdService.ThresholdsFor(c.Request().Context(), asset)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, threshold)
}

func (h *ThresholdHandler) SetThresholds(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	var req dto.SetThresholdsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if _, err := h.poolService.Get(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}

	threshold, err := h.thresholdService.SetThresholds(c.Request().Context(), id,
		req.BuyPB, req.AddPB, req.SellPB, entity.ThresholdSourceManual)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, threshold)
}

func (h *ThresholdHandler) Recommend(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	threshold, err := h.thresholdService.Recommend(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, threshold)
}
