package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// TestGeminiGenerateSuccess проверяет извлечение текста и передачу ключа в заголовке.
func TestGeminiGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-test:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("expected api key header")
		}
		if r.URL.Query().Get("key") != "" {
			t.Errorf("api key must not be sent in the query string")
		}

		var body geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.SystemInstruction == nil || body.GenerationConfig.MaxOutputTokens != 512 {
			t.Errorf("unexpected request body: %+v", body)
		}

		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"summary\":"},{"text":"\"ok\"}"}]}}]}`))
	}))
	defer server.Close()

	client := NewGeminiClient("secret", server.URL+"/", "gemini-test", server.Client())
	result, err := client.Generate(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "user", MaxTokens: 512})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Text != `{"summary":"ok"}` || result.Status != http.StatusOK || result.Provider != ProviderGemini {
		t.Fatalf("unexpected result: %+v", result)
	}
}

// TestGeminiGenerateRateLimited проверяет классификацию 429 и разбор Retry-After.
func TestGeminiGenerateRateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"quota","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client := NewGeminiClient("secret", server.URL, "m", server.Client())
	_, err := client.Generate(context.Background(), Request{UserPrompt: "x"})

	providerErr, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("expected provider error, got %v", err)
	}
	if providerErr.Reason != ReasonRateLimited || providerErr.RetryAfterSec != 7 || providerErr.ProviderCode != "RESOURCE_EXHAUSTED" {
		t.Fatalf("unexpected provider error: %+v", providerErr)
	}
}

// TestGeminiGenerateMissingKey проверяет ошибку при отсутствии ключа.
func TestGeminiGenerateMissingKey(t *testing.T) {
	client := NewGeminiClient(" ", "http://127.0.0.1:1", "m", nil)
	_, err := client.Generate(context.Background(), Request{UserPrompt: "x"})

	providerErr, ok := AsProviderError(err)
	if !ok || providerErr.Reason != ReasonMissingAPIKey {
		t.Fatalf("expected missing_api_key, got %v", err)
	}
}

// TestGeminiGenerateBadEnvelope проверяет ответ 200 без кандидатов.
func TestGeminiGenerateBadEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	client := NewGeminiClient("secret", server.URL, "m", server.Client())
	_, err := client.Generate(context.Background(), Request{UserPrompt: "x"})

	providerErr, ok := AsProviderError(err)
	if !ok || providerErr.Reason != ReasonBadEnvelope {
		t.Fatalf("expected bad_envelope, got %v", err)
	}
}

// TestCloudflareGenerateSuccess проверяет маршрут, авторизацию и строковый ответ.
func TestCloudflareGenerateSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts/acc-1/ai/run/@cf/meta/llama" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("unexpected authorization header")
		}

		var body cloudflareRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", body.Messages)
		}

		_, _ = w.Write([]byte(`{"success":true,"result":{"response":"hello"},"errors":[]}`))
	}))
	defer server.Close()

	client := NewCloudflareClient("token", server.URL, "acc-1", "@cf/meta/llama", server.Client())
	result, err := client.Generate(context.Background(), Request{SystemPrompt: "sys", UserPrompt: "user"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Text != "hello" || result.Provider != ProviderCloudflare {
		t.Fatalf("unexpected result: %+v", result)
	}
}

// TestCloudflareGenerateObjectResponse проверяет ответ-объект в JSON-режиме.
func TestCloudflareGenerateObjectResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"result":{"response":{"summary":"ok"}}}`))
	}))
	defer server.Close()

	client := NewCloudflareClient("token", server.URL, "acc", "m", server.Client())
	result, err := client.Generate(context.Background(), Request{UserPrompt: "user"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if result.Text != `{"summary":"ok"}` {
		t.Fatalf("unexpected text: %s", result.Text)
	}
}

// TestCloudflareGenerateServerError проверяет классификацию 5xx и cf-ray.
func TestCloudflareGenerateServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("cf-ray", "8a1b2c3d4e5f-AMS")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"success":false,"errors":[{"code":3040,"message":"capacity"}]}`))
	}))
	defer server.Close()

	client := NewCloudflareClient("token", server.URL, "acc", "m", server.Client())
	_, err := client.Generate(context.Background(), Request{UserPrompt: "user"})

	providerErr, ok := AsProviderError(err)
	if !ok {
		t.Fatalf("expected provider error, got %v", err)
	}
	if providerErr.Reason != ReasonHTTP || providerErr.CFRay != "8a1b2c3d4e5f-AMS" || providerErr.ProviderCode != "3040" {
		t.Fatalf("unexpected provider error: %+v", providerErr)
	}
	if !providerErr.Retryable() {
		t.Fatal("expected 5xx to be retryable")
	}
}

// TestReasonForStatus проверяет таблицу классификации HTTP-статусов.
func TestReasonForStatus(t *testing.T) {
	cases := map[int]Reason{
		400: ReasonRequestInvalid,
		401: ReasonRequestInvalid,
		404: ReasonRequestInvalid,
		429: ReasonRateLimited,
		500: ReasonHTTP,
		503: ReasonHTTP,
	}

	for status, want := range cases {
		if got := reasonForStatus(status); got != want {
			t.Fatalf("status %d: expected %s, got %s", status, want, got)
		}
	}
}
