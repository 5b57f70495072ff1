package ai

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"example.com/finance-advisor/backend/internal/diagnostics"
)

type RetryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffBase    time.Duration
	MaxJitter      time.Duration
}

// DefaultRetryPolicy возвращает политику: 3 попытки, 20s на попытку, 300ms база, до 120ms джиттера.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    3,
		AttemptTimeout: 20 * time.Second,
		BackoffBase:    300 * time.Millisecond,
		MaxJitter:      120 * time.Millisecond,
	}
}

// RetryClient оборачивает Client ограниченными повторами с экспоненциальной задержкой.
type RetryClient struct {
	client Client
	policy RetryPolicy
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(max time.Duration) time.Duration
}

// NewRetryClient создает клиент с повторами; нулевые поля политики берутся по умолчанию.
func NewRetryClient(client Client, policy RetryPolicy) *RetryClient {
	defaults := DefaultRetryPolicy()
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = defaults.MaxAttempts
	}
	if policy.AttemptTimeout <= 0 {
		policy.AttemptTimeout = defaults.AttemptTimeout
	}
	if policy.BackoffBase <= 0 {
		policy.BackoffBase = defaults.BackoffBase
	}
	if policy.MaxJitter < 0 {
		policy.MaxJitter = 0
	}

	return &RetryClient{
		client: client,
		policy: policy,
		now:    time.Now,
		sleep:  sleepContext,
		jitter: randomJitter,
	}
}

// Name возвращает имя обернутого провайдера.
func (c *RetryClient) Name() string {
	return c.client.Name()
}

// Generate вызывает провайдера, повторяя 429, 5xx и таймауты до исчерпания попыток.
func (c *RetryClient) Generate(ctx context.Context, request Request) (Result, error) {
	sink := request.Diagnostics
	var lastErr error

	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		diagnostics.Emit(ctx, sink, diagnostics.Event{Stage: diagnostics.StageProviderAttemptStart, Attempt: attempt})

		started := c.now()
		result, err := c.attempt(ctx, request)
		elapsed := c.now().Sub(started)

		end := diagnostics.Event{
			Stage:      diagnostics.StageProviderAttemptEnd,
			Attempt:    attempt,
			DurationMs: elapsed.Milliseconds(),
			OK:         diagnostics.Bool(err == nil),
		}
		if err == nil {
			end.Status = result.Status
			diagnostics.Emit(ctx, sink, end)
			return result, nil
		}

		providerErr, ok := AsProviderError(err)
		if !ok {
			providerErr = &ProviderError{Provider: c.client.Name(), Reason: ReasonNetwork, Err: err}
		}
		end.Status = providerErr.Status
		end.Reason = string(providerErr.Reason)
		diagnostics.Emit(ctx, sink, end)

		lastErr = providerErr
		if !providerErr.Retryable() || attempt == c.policy.MaxAttempts {
			break
		}

		if err := c.sleep(ctx, c.Backoff(attempt)); err != nil {
			return Result{}, &ProviderError{Provider: c.client.Name(), Reason: ReasonTimeout, Err: err}
		}
	}

	return Result{}, lastErr
}

// Backoff возвращает задержку перед попыткой attempt+1: base * 2^(attempt-1) + jitter.
func (c *RetryClient) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := c.policy.BackoffBase << (attempt - 1)
	if c.policy.MaxJitter > 0 {
		delay += c.jitter(c.policy.MaxJitter)
	}
	return delay
}

func (c *RetryClient) attempt(ctx context.Context, request Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, &ProviderError{Provider: c.client.Name(), Reason: ReasonTimeout, Err: err}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.policy.AttemptTimeout)
	defer cancel()

	result, err := c.client.Generate(attemptCtx, request)
	if err == nil {
		return result, nil
	}

	// An aborted attempt is a timeout regardless of how the transport surfaced it.
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || errors.Is(ctx.Err(), context.Canceled) {
		if providerErr, ok := AsProviderError(err); ok && providerErr.Reason == ReasonTimeout {
			return Result{}, providerErr
		}
		return Result{}, &ProviderError{Provider: c.client.Name(), Reason: ReasonTimeout, Err: err}
	}

	return Result{}, err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func randomJitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max) + 1))
}
