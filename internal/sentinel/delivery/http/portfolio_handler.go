package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"pb-sentinel/internal/sentinel/dto"
	"pb-sentinel/internal/sentinel/service"
	"pb-sentinel/pkg/logger"
)

// PortfolioHandler handles HTTP requests for the portfolio view and the
// standalone risk evaluation endpoint.
type PortfolioHandler struct {
	riskService service.RiskService
	account     string
	logger      *logger.Logger
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(riskService service.RiskService, account string, logger *logger.Logger) *PortfolioHandler {
	return &PortfolioHandler{riskService: riskService, account: account, logger: logger}
}

// RegisterRoutes registers the portfolio routes to the root Echo group.
func (h *PortfolioHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/portfolio/summary", h.GetSummary)
	g.POST("/risk/findings", h.EvaluateRisk)
}

func (h *PortfolioHandler) GetSummary(c echo.Context) error {
	summary, err := h.riskService.PositionSummary(c.Request().Context(), h.account)
	if err != nil {
		h.logger.Error("Failed to build portfolio summary", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, summary)
}

// EvaluateRisk dry-runs a draft through the risk gate without touching the
// ledger, so the operator can see findings before committing.
func (h *PortfolioHandler) EvaluateRisk(c echo.Context) error {
	var draft dto.ActionDraft
	if err := c.Bind(&draft); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request payload"})
	}
	if draft.Account == "" {
		draft.Account = h.account
	}

	findings, err := h.riskService.Evaluate(c.Request().Context(), &draft)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"findings": findings,
		"blocked":  dto.HasBlock(findings),
	})
}
