package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"example.com/finance-advisor/backend/internal/advisor"
	"example.com/finance-advisor/backend/internal/ai"
	"example.com/finance-advisor/backend/internal/auth"
	"example.com/finance-advisor/backend/internal/config"
	"example.com/finance-advisor/backend/internal/diagnostics"
	"example.com/finance-advisor/backend/internal/handlers"
	"example.com/finance-advisor/backend/internal/models"
	"example.com/finance-advisor/backend/internal/notifications"
	"example.com/finance-advisor/backend/internal/repository"
)

// New собирает HTTP-сервер Echo с роутами и зависимостями.
func New(cfg config.Config, logger *slog.Logger, db *pgxpool.Pool) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	financeRepo := repository.NewFinanceRepository(db)
	advisorRepo := repository.NewAdvisorRepository(db)
	notificationHub := notifications.NewHub()

	service := advisor.NewService(advisor.ServiceConfig{
		Store:       financeRepo,
		Client:      NewProviderClient(cfg.AI),
		Cache:       advisor.NewCache(cfg.Advisor.CacheTTL),
		Preferences: advisorRepo,
		Requests:    advisorRepo,
		Sink:        diagnostics.NewLogSink(logger),
		Logger:      logger,
		Defaults: advisor.Preferences{
			TargetSavingsRate: cfg.Advisor.TargetSavingsRate,
			RiskProfile:       models.RiskProfile(cfg.Advisor.RiskProfile),
		},
		MaxTokens: cfg.AI.MaxOutputTokens,
	})

	return newEcho(cfg, logger, service, notificationHub)
}

func newEcho(cfg config.Config, logger *slog.Logger, service handlers.InsightGenerator, hub *notifications.Hub) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestLogger(logger))

	verifier := auth.NewTokenVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer)

	registerRoutes(
		e,
		handlers.NewHealthHandler(service),
		handlers.NewAdvisorHandler(service, hub, cfg.Advisor),
		handlers.NewDiagnosticsHandler(hub),
		auth.JWTMiddleware(verifier),
		auth.StreamJWTMiddleware(verifier),
		advisorRateLimiter(cfg.AI),
	)

	return e
}

// NewProviderClient создает клиента провайдера с повторами или nil, если ключ не задан.
func NewProviderClient(cfg config.AIConfig) ai.Client {
	if cfg.APIKey == "" {
		return nil
	}

	httpClient := &http.Client{}
	var client ai.Client
	switch cfg.Provider {
	case "cloudflare":
		client = ai.NewCloudflareClient(cfg.APIKey, cfg.BaseURL, cfg.AccountID, cfg.Model, httpClient)
	default:
		client = ai.NewGeminiClient(cfg.APIKey, cfg.BaseURL, cfg.Model, httpClient)
	}

	return ai.NewRetryClient(client, ai.RetryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.Timeout,
		BackoffBase:    cfg.BackoffBase,
		MaxJitter:      cfg.MaxJitter,
	})
}

// NewHTTPServer создает net/http сервер с заданными таймаутами.
func NewHTTPServer(cfg config.ServerConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/health"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
				slog.Duration("latency", v.Latency),
			}

			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}

			msg := "request completed"
			if v.Status >= http.StatusInternalServerError {
				logger.LogAttrs(c.Request().Context(), slog.LevelError, msg, attrs...)
				return nil
			}

			logger.LogAttrs(c.Request().Context(), slog.LevelInfo, msg, attrs...)
			return nil
		},
	})
}

// advisorRateLimiter ограничивает частоту запросов к советнику на пользователя, а без него по IP.
func advisorRateLimiter(cfg config.AIConfig) echo.MiddlewareFunc {
	limit := rate.Limit(float64(cfg.RateLimitPerMinute) / 60.0)
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      limit,
		Burst:     cfg.RateLimitBurst,
		ExpiresIn: time.Minute,
	})

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if userID, ok := auth.UserIDFromContext(c); ok {
				return userID.String(), nil
			}
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", "60")
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}
