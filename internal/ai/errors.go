package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type Reason string

const (
	ReasonMissingAPIKey  Reason = "missing_api_key"
	ReasonRateLimited    Reason = "rate_limited"
	ReasonRequestInvalid Reason = "request_invalid"
	ReasonTimeout        Reason = "timeout"
	ReasonHTTP           Reason = "http_error"
	ReasonNetwork        Reason = "network_error"
	ReasonBadEnvelope    Reason = "bad_envelope"
)

// ProviderError описывает неуспешное обращение к провайдеру.
type ProviderError struct {
	Provider      string
	Reason        Reason
	Status        int
	CFRay         string
	RetryAfterSec int
	ProviderCode  string
	Message       string
	Err           error
}

func (e *ProviderError) Error() string {
	var builder strings.Builder
	builder.WriteString(e.Provider)
	builder.WriteString(" provider error: ")
	builder.WriteString(string(e.Reason))
	if e.Status > 0 {
		builder.WriteString(fmt.Sprintf(" (status %d)", e.Status))
	}
	if e.Message != "" {
		builder.WriteString(": ")
		builder.WriteString(e.Message)
	} else if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Retryable сообщает, стоит ли повторять попытку: 429, 5xx и таймауты.
func (e *ProviderError) Retryable() bool {
	switch e.Reason {
	case ReasonRateLimited, ReasonHTTP, ReasonTimeout:
		return true
	default:
		return false
	}
}

// AsProviderError извлекает ProviderError из цепочки ошибок.
func AsProviderError(err error) (*ProviderError, bool) {
	var providerErr *ProviderError
	if errors.As(err, &providerErr) {
		return providerErr, true
	}
	return nil, false
}

func reasonForStatus(status int) Reason {
	switch {
	case status == http.StatusTooManyRequests:
		return ReasonRateLimited
	case status >= 500:
		return ReasonHTTP
	default:
		return ReasonRequestInvalid
	}
}

func statusError(provider string, response *http.Response, code, message string) *ProviderError {
	return &ProviderError{
		Provider:      provider,
		Reason:        reasonForStatus(response.StatusCode),
		Status:        response.StatusCode,
		CFRay:         response.Header.Get("cf-ray"),
		RetryAfterSec: parseRetryAfter(response.Header.Get("Retry-After")),
		ProviderCode:  code,
		Message:       message,
	}
}

func transportError(ctx context.Context, provider string, err error) *ProviderError {
	reason := ReasonNetwork
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	return &ProviderError{Provider: provider, Reason: reason, Err: err}
}

func parseRetryAfter(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return seconds
	}

	if at, err := http.ParseTime(value); err == nil {
		if seconds := int(time.Until(at).Seconds()); seconds > 0 {
			return seconds
		}
	}

	return 0
}
