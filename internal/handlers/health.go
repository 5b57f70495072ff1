package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"example.com/finance-advisor/backend/internal/advisor"
)

type HealthResponse struct {
	Status string              `json:"status"`
	Cache  *advisor.CacheStats `json:"cache,omitempty"`
}

type HealthHandler struct {
	Insights InsightGenerator
}

// NewHealthHandler создает обработчик проверки состояния.
func NewHealthHandler(insights InsightGenerator) *HealthHandler {
	return &HealthHandler{Insights: insights}
}

// Health возвращает статус сервиса и счетчики кеша советов.
func (h *HealthHandler) Health(c echo.Context) error {
	response := HealthResponse{Status: "ok"}
	if h.Insights != nil {
		stats := h.Insights.CacheStats()
		response.Cache = &stats
	}
	return c.JSON(http.StatusOK, response)
}
