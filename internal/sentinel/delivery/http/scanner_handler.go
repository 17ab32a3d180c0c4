package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"pb-sentinel/internal/sentinel/service"
	"pb-sentinel/pkg/apperrors"
	"pb-sentinel/pkg/logger"
)

// ScannerHandler handles HTTP requests for the background scan loop.
type ScannerHandler struct {
	scannerService service.ScannerService
	logger         *logger.Logger
}

// NewScannerHandler creates a new ScannerHandler.
func NewScannerHandler(scannerService service.ScannerService, logger *logger.Logger) *ScannerHandler {
	return &ScannerHandler{scannerService: scannerService, logger: logger}
}

// RegisterRoutes registers the scanner routes to the Echo group.
func (h *ScannerHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/start", h.Start)
	g.POST("/stop", h.Stop)
	g.POST("/reset", h.Reset)
	g.GET("/status", h.Status)
}

func (h *ScannerHandler) Start(c echo.Context) error {
	if err := h.scannerService.Start(c.Request().Context()); err != nil {
		// A live loop already covers the request; start stays idempotent.
		if errors.Is(err, apperrors.ErrScanAlreadyRunning) {
			return c.JSON(http.StatusOK, echo.Map{"status": "already_running"})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusAccepted, echo.Map{"status": "started"})
}

func (h *ScannerHandler) Stop(c echo.Context) error {
	if err := h.scannerService.Stop(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "stopped"})
}

func (h *ScannerHandler) Reset(c echo.Context) error {
	if err := h.scannerService.Reset(c.Request().Context()); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "reset"})
}

func (h *ScannerHandler) Status(c echo.Context) error {
	progress, err := h.scannerService.Status(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to read scanner status", logger.ErrorField(err))
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, progress)
}
