package advisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"example.com/finance-advisor/backend/internal/ai"
	"example.com/finance-advisor/backend/internal/diagnostics"
	"example.com/finance-advisor/backend/internal/models"
)

const (
	defaultTargetSavingsRate = 20
	defaultAdviceMaxTokens   = 2048

	requestModeError = "error"
)

// PreferencesStore возвращает сохраненные предпочтения; nil означает, что их нет.
type PreferencesStore interface {
	AdvisorPreferences(ctx context.Context, userID uuid.UUID) (*models.AdvisorPreferences, error)
}

// RequestLogger сохраняет итог каждого обращения к советнику.
type RequestLogger interface {
	LogAdvisorRequest(ctx context.Context, entry models.AdvisorRequest) error
}

type ServiceConfig struct {
	Store       Store
	Client      ai.Client
	Cache       *Cache
	Preferences PreferencesStore
	Requests    RequestLogger
	Sink        diagnostics.Sink
	Logger      *slog.Logger
	Defaults    Preferences
	MaxTokens   int
}

type Service struct {
	aggregator *Aggregator
	client     ai.Client
	cache      *Cache
	prefs      PreferencesStore
	requests   RequestLogger
	sink       diagnostics.Sink
	logger     *slog.Logger
	defaults   Preferences
	maxTokens  int
	group      singleflight.Group
	now        func() time.Time
}

type Request struct {
	UserID     uuid.UUID
	Month      string
	Language   string
	Regenerate bool
	// Sink получает события только этого запроса, в дополнение к общему приемнику.
	Sink diagnostics.Sink
}

// NewService создает оркестратор советов.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(InsightTTL)
	}
	defaults := cfg.Defaults
	if defaults.TargetSavingsRate <= 0 {
		defaults.TargetSavingsRate = defaultTargetSavingsRate
	}
	if defaults.RiskProfile == "" {
		defaults.RiskProfile = models.RiskProfileBalanced
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAdviceMaxTokens
	}

	return &Service{
		aggregator: NewAggregator(cfg.Store),
		client:     cfg.Client,
		cache:      cache,
		prefs:      cfg.Preferences,
		requests:   cfg.Requests,
		sink:       cfg.Sink,
		logger:     logger,
		defaults:   defaults,
		maxTokens:  maxTokens,
		now:        time.Now,
	}
}

// CacheStats возвращает статистику кеша советов.
func (s *Service) CacheStats() CacheStats {
	return s.cache.Stats()
}

// ClearCache сбрасывает все закешированные советы.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// Generate возвращает совет из кеша или строит его заново через провайдера либо локально.
func (s *Service) Generate(ctx context.Context, req Request) (Insight, error) {
	if _, err := ParseMonth(req.Month); err != nil {
		return Insight{}, err
	}
	req.Language = NormalizeLanguage(req.Language)

	s.cache.Sweep()
	key := CacheKey(req.UserID, req.Month, req.Language)

	if !req.Regenerate {
		if cached, ok := s.cache.Get(key); ok {
			diagnostics.Emit(ctx, diagnostics.Multi(s.sink, req.Sink), diagnostics.Event{Stage: diagnostics.StageCacheHit})
			s.record(ctx, req, cached.Mode, cached.ModeReason, cached.Provider, cached.ProviderStatus, true, 0)
			return cached, nil
		}
	}

	flightKey := key
	if req.Regenerate {
		flightKey += "|regen"
	}

	// The flight must reach the cache even if this caller goes away.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.group.DoChan(flightKey, func() (interface{}, error) {
		return s.generate(flightCtx, req, key)
	})

	select {
	case <-ctx.Done():
		return Insight{}, ctx.Err()
	case result := <-ch:
		if result.Err != nil {
			return Insight{}, result.Err
		}
		// Collapsed callers share one flight result.
		return result.Val.(Insight).Clone(), nil
	}
}

type providerOutcome struct {
	advice   AdviceOutput
	reason   *Reason
	provider *string
	status   *int
}

func (s *Service) generate(ctx context.Context, req Request, key string) (Insight, error) {
	started := s.now()
	sink := diagnostics.Multi(s.sink, req.Sink)

	snapshot, err := s.aggregator.Aggregate(ctx, req.UserID, req.Month)
	if err != nil {
		return Insight{}, fmt.Errorf("aggregate snapshot: %w", err)
	}
	prefs := s.preferences(ctx, req.UserID)

	outcome, err := s.consultProvider(ctx, req, snapshot, prefs, sink)
	if err != nil {
		duration := s.now().Sub(started).Milliseconds()
		diagnostics.Emit(ctx, sink, diagnostics.Event{Stage: diagnostics.StageHardFail, DurationMs: duration, Detail: RedactPreview(err.Error())})
		s.logger.Warn("advisor request failed",
			"user_id", req.UserID,
			"month", req.Month,
			"language", req.Language,
			"error", err,
		)
		s.recordFailure(ctx, req, err, duration)
		return Insight{}, err
	}

	insight := Insight{
		Snapshot:       snapshot,
		Mode:           ModeAI,
		ModeReason:     outcome.reason,
		Provider:       outcome.provider,
		ProviderStatus: outcome.status,
		GeneratedAt:    s.now().UTC(),
	}
	if outcome.reason != nil {
		insight.Mode = ModeFallback
		insight.Advice = Synthesize(req.Language, FallbackInputFromSnapshot(snapshot), prefs)
	} else {
		insight.Advice = outcome.advice
	}

	s.cache.Set(key, insight)

	duration := s.now().Sub(started).Milliseconds()
	diagnostics.Emit(ctx, sink, diagnostics.Event{Stage: diagnostics.StageCompleted, DurationMs: duration, Detail: string(insight.Mode)})
	if insight.Mode == ModeFallback {
		s.logger.Info("advisor fallback used",
			"user_id", req.UserID,
			"month", req.Month,
			"language", req.Language,
			"reason", *insight.ModeReason,
		)
	} else {
		s.logger.Info("advisor insight generated",
			"user_id", req.UserID,
			"month", req.Month,
			"language", req.Language,
			"provider", *insight.Provider,
		)
	}
	s.record(ctx, req, insight.Mode, insight.ModeReason, insight.Provider, insight.ProviderStatus, false, duration)

	return insight, nil
}

// consultProvider возвращает совет провайдера, причину перехода на локальный совет или ошибку без fallback.
func (s *Service) consultProvider(ctx context.Context, req Request, snapshot Snapshot, prefs Preferences, sink diagnostics.Sink) (providerOutcome, error) {
	if s.client == nil {
		diagnostics.Emit(ctx, sink, diagnostics.Event{Stage: diagnostics.StageProviderSkipped, Reason: string(ReasonMissingAPIKey)})
		return s.fallback(ctx, sink, ReasonMissingAPIKey, nil, nil, ""), nil
	}

	prompt, err := RenderPrompt(req.Language, snapshot, prefs)
	if err != nil {
		return providerOutcome{}, err
	}

	result, err := s.client.Generate(ctx, ai.Request{
		SystemPrompt: SystemPrompt,
		UserPrompt:   prompt,
		MaxTokens:    s.maxTokens,
		Diagnostics:  sink,
	})
	if err != nil {
		return s.providerFailure(ctx, sink, req, err)
	}

	provider := result.Provider
	if provider == "" {
		provider = s.client.Name()
	}
	status := result.Status

	advice, err := ParseAdvice(result.Text)
	if err != nil {
		reason := ReasonProviderParseError
		detail := RedactPreview(result.Text)
		var repairErr *RepairError
		if errors.As(err, &repairErr) {
			reason = repairErr.Reason
			detail = repairErr.Preview
			if repairErr.Path != "" {
				detail = repairErr.Path + ": " + detail
			}
		}
		return s.fallback(ctx, sink, reason, &provider, &status, detail), nil
	}

	return providerOutcome{advice: advice, provider: &provider, status: &status}, nil
}

func (s *Service) providerFailure(ctx context.Context, sink diagnostics.Sink, req Request, err error) (providerOutcome, error) {
	providerErr, ok := ai.AsProviderError(err)
	if !ok {
		return s.fallback(ctx, sink, ReasonProviderUnknownError, nil, nil, RedactPreview(err.Error())), nil
	}

	detail := RedactPreview(providerErr.Error())
	var provider *string
	var status *int
	if providerErr.Status > 0 {
		name := providerErr.Provider
		code := providerErr.Status
		provider, status = &name, &code
	}

	switch providerErr.Reason {
	case ai.ReasonRateLimited:
		return providerOutcome{}, fmt.Errorf("%w: %w", ErrRateLimited, err)
	case ai.ReasonRequestInvalid:
		return providerOutcome{}, fmt.Errorf("%w: %w", ErrRequestInvalid, err)
	case ai.ReasonTimeout:
		if req.Regenerate {
			return providerOutcome{}, fmt.Errorf("%w: %w", ErrProviderTimeout, err)
		}
		return s.fallback(ctx, sink, ReasonProviderTimeout, nil, nil, detail), nil
	case ai.ReasonHTTP:
		return s.fallback(ctx, sink, ReasonProviderHTTPError, provider, status, detail), nil
	case ai.ReasonBadEnvelope:
		return s.fallback(ctx, sink, ReasonProviderParseError, provider, status, detail), nil
	case ai.ReasonMissingAPIKey:
		return s.fallback(ctx, sink, ReasonMissingAPIKey, nil, nil, detail), nil
	default:
		return s.fallback(ctx, sink, ReasonProviderUnknownError, nil, nil, detail), nil
	}
}

func (s *Service) fallback(ctx context.Context, sink diagnostics.Sink, reason Reason, provider *string, status *int, detail string) providerOutcome {
	event := diagnostics.Event{Stage: diagnostics.StageFallback, Reason: string(reason), Detail: detail}
	if status != nil {
		event.Status = *status
	}
	diagnostics.Emit(ctx, sink, event)

	return providerOutcome{reason: &reason, provider: provider, status: status}
}

func (s *Service) preferences(ctx context.Context, userID uuid.UUID) Preferences {
	prefs := s.defaults
	if s.prefs == nil {
		return prefs
	}

	stored, err := s.prefs.AdvisorPreferences(ctx, userID)
	if err != nil {
		s.logger.Warn("advisor preferences unavailable", "user_id", userID, "error", err)
		return prefs
	}
	if stored == nil {
		return prefs
	}

	if stored.TargetSavingsRate > 0 {
		prefs.TargetSavingsRate = stored.TargetSavingsRate
	}
	switch stored.RiskProfile {
	case models.RiskProfileConservative, models.RiskProfileBalanced, models.RiskProfileAggressive:
		prefs.RiskProfile = stored.RiskProfile
	}
	return prefs
}

func (s *Service) record(ctx context.Context, req Request, mode Mode, reason *Reason, provider *string, status *int, cacheHit bool, duration int64) {
	entry := models.AdvisorRequest{
		UserID:         req.UserID,
		Month:          req.Month,
		Language:       req.Language,
		Mode:           string(mode),
		Provider:       provider,
		ProviderStatus: status,
		CacheHit:       cacheHit,
		Regenerate:     req.Regenerate,
		DurationMs:     duration,
	}
	if reason != nil {
		value := string(*reason)
		entry.Reason = &value
	}
	s.writeRecord(ctx, entry)
}

func (s *Service) recordFailure(ctx context.Context, req Request, err error, duration int64) {
	entry := models.AdvisorRequest{
		UserID:     req.UserID,
		Month:      req.Month,
		Language:   req.Language,
		Mode:       requestModeError,
		Regenerate: req.Regenerate,
		DurationMs: duration,
	}
	if providerErr, ok := ai.AsProviderError(err); ok {
		reason := string(providerErr.Reason)
		entry.Reason = &reason
		if providerErr.Status > 0 {
			name := providerErr.Provider
			status := providerErr.Status
			entry.Provider, entry.ProviderStatus = &name, &status
		}
	}
	s.writeRecord(ctx, entry)
}

func (s *Service) writeRecord(ctx context.Context, entry models.AdvisorRequest) {
	if s.requests == nil {
		return
	}
	if err := s.requests.LogAdvisorRequest(ctx, entry); err != nil {
		s.logger.Error("failed to log advisor request", "user_id", entry.UserID, "error", err)
	}
}
