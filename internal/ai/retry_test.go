package ai

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"example.com/finance-advisor/backend/internal/diagnostics"
)

type scriptedClient struct {
	mu      sync.Mutex
	calls   int
	respond func(ctx context.Context, call int) (Result, error)
}

func (c *scriptedClient) Name() string { return "scripted" }

func (c *scriptedClient) Generate(ctx context.Context, _ Request) (Result, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.mu.Unlock()
	return c.respond(ctx, call)
}

func newTestRetryClient(client Client, policy RetryPolicy) (*RetryClient, *[]time.Duration) {
	retry := NewRetryClient(client, policy)
	waits := &[]time.Duration{}
	retry.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	retry.jitter = func(time.Duration) time.Duration { return 0 }
	return retry, waits
}

// TestRetryServerErrorCeiling проверяет ровно 3 попытки при постоянном HTTP 500.
func TestRetryServerErrorCeiling(t *testing.T) {
	client := &scriptedClient{respond: func(context.Context, int) (Result, error) {
		return Result{}, &ProviderError{Provider: "scripted", Reason: ReasonHTTP, Status: 500}
	}}
	retry, waits := newTestRetryClient(client, RetryPolicy{MaxAttempts: 3})

	var events []diagnostics.Event
	sink := diagnostics.SinkFunc(func(_ context.Context, e diagnostics.Event) { events = append(events, e) })

	_, err := retry.Generate(context.Background(), Request{UserPrompt: "x", Diagnostics: sink})

	providerErr, ok := AsProviderError(err)
	if !ok || providerErr.Reason != ReasonHTTP {
		t.Fatalf("expected http_error, got %v", err)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.calls)
	}
	if len(*waits) != 2 || (*waits)[0] != 300*time.Millisecond || (*waits)[1] != 600*time.Millisecond {
		t.Fatalf("unexpected backoff waits: %v", *waits)
	}
	if len(events) != 6 {
		t.Fatalf("expected start/end event per attempt, got %d", len(events))
	}
	if events[5].Stage != diagnostics.StageProviderAttemptEnd || events[5].Status != 500 || *events[5].OK {
		t.Fatalf("unexpected last event: %+v", events[5])
	}
}

// TestRetryRequestInvalidNotRetried проверяет, что 4xx (кроме 429) не повторяется.
func TestRetryRequestInvalidNotRetried(t *testing.T) {
	client := &scriptedClient{respond: func(context.Context, int) (Result, error) {
		return Result{}, &ProviderError{Provider: "scripted", Reason: ReasonRequestInvalid, Status: 400}
	}}
	retry, waits := newTestRetryClient(client, RetryPolicy{MaxAttempts: 3})

	_, err := retry.Generate(context.Background(), Request{UserPrompt: "x"})

	providerErr, ok := AsProviderError(err)
	if !ok || providerErr.Reason != ReasonRequestInvalid {
		t.Fatalf("expected request_invalid, got %v", err)
	}
	if client.calls != 1 || len(*waits) != 0 {
		t.Fatalf("expected a single attempt without waits, got %d calls and %v", client.calls, *waits)
	}
}

// TestRetryRateLimitedThenSuccess проверяет повтор после 429.
func TestRetryRateLimitedThenSuccess(t *testing.T) {
	client := &scriptedClient{respond: func(_ context.Context, call int) (Result, error) {
		if call == 1 {
			return Result{}, &ProviderError{Provider: "scripted", Reason: ReasonRateLimited, Status: 429}
		}
		return Result{Provider: "scripted", Status: 200, Text: "{}"}, nil
	}}
	retry, _ := newTestRetryClient(client, RetryPolicy{MaxAttempts: 3})

	result, err := retry.Generate(context.Background(), Request{UserPrompt: "x"})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if result.Text != "{}" || client.calls != 2 {
		t.Fatalf("unexpected result %+v after %d calls", result, client.calls)
	}
}

// TestRetryTimeoutExhausted проверяет, что таймауты повторяются и затем возвращаются как timeout.
func TestRetryTimeoutExhausted(t *testing.T) {
	client := &scriptedClient{respond: func(ctx context.Context, _ int) (Result, error) {
		<-ctx.Done()
		return Result{}, ctx.Err()
	}}
	retry, _ := newTestRetryClient(client, RetryPolicy{MaxAttempts: 3, AttemptTimeout: 5 * time.Millisecond})

	_, err := retry.Generate(context.Background(), Request{UserPrompt: "x"})

	providerErr, ok := AsProviderError(err)
	if !ok || providerErr.Reason != ReasonTimeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", client.calls)
	}
}

// TestRetryNetworkErrorNotRetried проверяет, что сетевые ошибки не повторяются.
func TestRetryNetworkErrorNotRetried(t *testing.T) {
	client := &scriptedClient{respond: func(context.Context, int) (Result, error) {
		return Result{}, errors.New("dial tcp: connection refused")
	}}
	retry, _ := newTestRetryClient(client, RetryPolicy{MaxAttempts: 3})

	_, err := retry.Generate(context.Background(), Request{UserPrompt: "x"})

	providerErr, ok := AsProviderError(err)
	if !ok || providerErr.Reason != ReasonNetwork {
		t.Fatalf("expected network_error, got %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", client.calls)
	}
}

// TestBackoffJitterBounds проверяет границы экспоненциальной задержки с джиттером.
func TestBackoffJitterBounds(t *testing.T) {
	retry := NewRetryClient(&scriptedClient{}, DefaultRetryPolicy())

	for attempt := 1; attempt <= 3; attempt++ {
		base := 300 * time.Millisecond << (attempt - 1)
		for i := 0; i < 50; i++ {
			delay := retry.Backoff(attempt)
			if delay < base || delay > base+120*time.Millisecond {
				t.Fatalf("attempt %d: delay %v out of bounds", attempt, delay)
			}
		}
	}
}
