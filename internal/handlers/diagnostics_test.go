package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/finance-advisor/backend/internal/auth"
	"example.com/finance-advisor/backend/internal/diagnostics"
	"example.com/finance-advisor/backend/internal/notifications"
)

// TestDiagnosticsStream проверяет доставку диагностики подписчику через SSE.
func TestDiagnosticsStream(t *testing.T) {
	hub := notifications.NewHub()
	handler := NewDiagnosticsHandler(hub)
	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/advisor/diagnostics/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(auth.ContextUserIDKey, userID)

	done := make(chan error, 1)
	go func() {
		done <- handler.Stream(c)
	}()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream did not subscribe")
		}
		time.Sleep(time.Millisecond)
	}

	sink := hub.DiagnosticSink(userID)
	sink.Emit(context.Background(), diagnostics.Event{Stage: diagnostics.StageFallback, Reason: "provider_timeout"})

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("stream did not stop after cancel")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "event: connected") {
		t.Fatalf("expected connected event, got %s", body)
	}
	if !strings.Contains(body, "event: advisor.diagnostic") || !strings.Contains(body, "provider_timeout") {
		t.Fatalf("expected diagnostic event, got %s", body)
	}
	if rec.Header().Get(echo.HeaderContentType) != "text/event-stream" {
		t.Fatalf("unexpected content type: %s", rec.Header().Get(echo.HeaderContentType))
	}
}
