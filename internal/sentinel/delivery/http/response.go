package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"pb-sentinel/pkg/apperrors"
)

// writeError maps domain errors to HTTP status codes. Validation problems are
// the caller's fault, risk blocks and thin history are unprocessable, and
// anything unmapped is a 500.
func writeError(c echo.Context, err error) error {
	switch {
	case apperrors.IsValidation(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case apperrors.IsRiskBlocked(err), errors.Is(err, apperrors.ErrInsufficientData):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}
