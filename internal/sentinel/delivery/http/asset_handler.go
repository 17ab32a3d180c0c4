package http

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/service"
	"pb-sentinel/pkg/logger"
)

// AssetHandler handles HTTP requests for the watch pool.
type AssetHandler struct {
	poolService service.PoolService
	logger      *logger.Logger
}

// NewAssetHandler creates a new AssetHandler.
func NewAssetHandler(poolService service.PoolService, logger *logger.Logger) *AssetHandler {
	return &AssetHandler{poolService: poolService, logger: logger}
}

// RegisterRoutes registers the pool routes to the Echo group.
func (h *AssetHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.AdmitAsset)
	g.GET("", h.ListAssets)
	g.GET("/:id", h.GetAsset)
	g.PUT("/:id", h.UpdateAsset)
	g.DELETE("/:id", h.RetireAsset)
}

func (h *AssetHandler) AdmitAsset(c echo.Context) error {
	var req dto.AssetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	asset := assetFromRequest(&req)
	if err := h.poolService.Admit(c.Request().Context(), asset); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, asset)
}

func (h *AssetHandler) ListAssets(c echo.Context) error {
	assets, err := h.poolService.List(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to list pool assets", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, assets)
}

func (h *AssetHandler) GetAsset(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	asset, err := h.poolService.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, asset)
}

func (h *AssetHandler) UpdateAsset(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	var req dto.AssetRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}

	asset := assetFromRequest(&req)
	asset.ID = id
	if err := h.poolService.Update(c.Request().Context(), asset); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, asset)
}

func (h *AssetHandler) RetireAsset(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset ID"})
	}
	if err := h.poolService.Retire(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func assetFromRequest(req *dto.AssetRequest) *entity.Asset {
	score := req.CompetenceScore
	if score == 0 {
		score = 3
	}
	return &entity.Asset{
		Code:            req.Code,
		Name:            req.Name,
		Market:          entity.Market(req.Market),
		Industry:        req.Industry,
		Tags:            req.Tags,
		CompetenceScore: score,
		Notes:           req.Notes,
	}
}

func parseID(c echo.Context) (uint, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return 0, err
	}
	return uint(id), nil
}
