package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"example.com/finance-advisor/backend/internal/advisor"
	"example.com/finance-advisor/backend/internal/ai"
	"example.com/finance-advisor/backend/internal/auth"
	"example.com/finance-advisor/backend/internal/config"
	"example.com/finance-advisor/backend/internal/notifications"
)

// InsightGenerator строит советы для пользователя.
type InsightGenerator interface {
	Generate(ctx context.Context, req advisor.Request) (advisor.Insight, error)
	CacheStats() advisor.CacheStats
}

type AdvisorHandler struct {
	Service InsightGenerator
	Hub     *notifications.Hub
	Config  config.AdvisorConfig
	now     func() time.Time
}

type insightQuery struct {
	Month      string `query:"month" validate:"omitempty,datetime=2006-01"`
	Language   string `query:"language" validate:"omitempty,max=8"`
	Regenerate bool   `query:"regenerate"`
}

// NewAdvisorHandler создает обработчик советов.
func NewAdvisorHandler(insights InsightGenerator, hub *notifications.Hub, cfg config.AdvisorConfig) *AdvisorHandler {
	return &AdvisorHandler{
		Service: insights,
		Hub:     hub,
		Config:  cfg,
		now:     time.Now,
	}
}

// Insights возвращает совет за месяц, по умолчанию за текущий.
func (h *AdvisorHandler) Insights(c echo.Context) error {
	userID, ok := auth.UserIDFromContext(c)
	if !ok {
		return unauthorized(c)
	}

	var req insightQuery
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid query")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(c, "month must be in YYYY-MM format")
	}

	month := req.Month
	if month == "" {
		month = h.now().UTC().Format("2006-01")
	}

	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = h.Config.DefaultLanguage
	}
	if !h.Config.Supports(language) {
		return badRequest(c, "unsupported language")
	}

	request := advisor.Request{
		UserID:     userID,
		Month:      month,
		Language:   language,
		Regenerate: req.Regenerate,
	}
	if h.Hub != nil {
		request.Sink = h.Hub.DiagnosticSink(userID)
	}

	insight, err := h.Service.Generate(c.Request().Context(), request)
	if err != nil {
		return insightError(c, err)
	}

	return c.JSON(http.StatusOK, insight)
}

func insightError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, advisor.ErrInvalidMonth):
		return badRequest(c, "month must be in YYYY-MM format")
	case errors.Is(err, advisor.ErrRateLimited):
		if providerErr, ok := ai.AsProviderError(err); ok && providerErr.RetryAfterSec > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(providerErr.RetryAfterSec))
		}
		return tooManyRequests(c, "advisor provider is rate limited, try again later")
	case errors.Is(err, advisor.ErrProviderTimeout):
		return gatewayTimeout(c, "advisor provider timed out")
	case errors.Is(err, advisor.ErrRequestInvalid):
		slog.Error("advisor request rejected by provider", slog.String("error", err.Error()))
		return serverError(c)
	case errors.Is(err, context.Canceled):
		return nil
	default:
		slog.Error("advisor insight failed", slog.String("error", err.Error()))
		return serverError(c)
	}
}
