package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/meatshop-backoffice/internal/apperr"
	"github.com/iliyamo/meatshop-backoffice/internal/logging"
)

// writeError is the single translation point from service errors to HTTP.
// Internal errors are logged with their cause and answered generically.
func writeError(c echo.Context, log logging.Logger, err error) error {
	kind := apperr.KindOf(err)
	if kind == apperr.Internal {
		log.Error(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
	}
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return c.JSON(kind.Status(), echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
