package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

func badRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, map[string]string{"error": message})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
}

func tooManyRequests(c echo.Context, message string) error {
	return c.JSON(http.StatusTooManyRequests, map[string]string{"error": message})
}

func gatewayTimeout(c echo.Context, message string) error {
	return c.JSON(http.StatusGatewayTimeout, map[string]string{"error": message})
}

func serverError(c echo.Context) error {
	return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
}
