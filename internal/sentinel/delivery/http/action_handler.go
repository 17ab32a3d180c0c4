package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"pb-sentinel/internal/entity"
	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/service"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
)

// ActionHandler handles HTTP requests for the decision ledger.
type ActionHandler struct {
	actionService service.ActionService
	account       string
	logger        *logger.Logger
}

// NewActionHandler creates a new ActionHandler.
func NewActionHandler(actionService service.ActionService, account string, logger *logger.Logger) *ActionHandler {
	return &ActionHandler{actionService: actionService, account: account, logger: logger}
}

// RegisterRoutes registers the action routes to the Echo group.
func (h *ActionHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.RecordAction)
	g.GET("", h.GetActions)
	g.GET("/stats", h.GetComplianceStats)
}

func (h *ActionHandler) RecordAction(c echo.Context) error {
	var draft dto.ActionDraft
	if err := c.Bind(&draft); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if draft.Account == "" {
		draft.Account = h.account
	}

	action, err := h.actionService.Record(c.Request().Context(), &draft)
	if err != nil {
		// A risk block still produced a ledger row; return it with the error
		// so the client sees the findings that rejected the draft.
		if apperrors.IsRiskBlocked(err) && action != nil {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{
				"error":  err.Error(),
				"action": action,
			})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, action)
}

func (h *ActionHandler) GetActions(c echo.Context) error {
	param := dto.GetActionsParam{Account: h.account, Limit: 100}
	if v := c.QueryParam("asset_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid asset_id"})
		}
		assetID := uint(id)
		param.AssetID = &assetID
	}
	if v := c.QueryParam("kind"); v != "" {
		kind := entity.ActionKind(v)
		param.Kind = &kind
	}
	if v := c.QueryParam("status"); v != "" {
		status := entity.ActionStatus(v)
		param.Status = &status
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

	actions, err := h.actionService.History(c.Request().Context(), param)
	if err != nil {
		h.logger.Error("Failed to query actions", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, actions)
}

func (h *ActionHandler) GetComplianceStats(c echo.Context) error {
	days := 90
	if v := c.QueryParam("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid days"})
		}
		days = parsed
	}

	stats, err := h.actionService.ComplianceStats(c.Request().Context(), h.account, days)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}
