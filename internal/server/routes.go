package server

import (
	"github.com/labstack/echo/v4"

	"example.com/finance-advisor/backend/internal/handlers"
)

func registerRoutes(
	e *echo.Echo,
	healthHandler *handlers.HealthHandler,
	advisorHandler *handlers.AdvisorHandler,
	diagnosticsHandler *handlers.DiagnosticsHandler,
	authMiddleware echo.MiddlewareFunc,
	streamAuthMiddleware echo.MiddlewareFunc,
	advisorRateLimiter echo.MiddlewareFunc,
) {
	e.GET("/health", healthHandler.Health)

	api := e.Group("/api/v1")

	advisorGroup := api.Group("/advisor")
	advisorGroup.GET("/insights", advisorHandler.Insights, authMiddleware, advisorRateLimiter)
	advisorGroup.GET("/diagnostics/stream", diagnosticsHandler.Stream, streamAuthMiddleware)
}
