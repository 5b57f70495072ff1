package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func runMiddleware(t *testing.T, mw echo.MiddlewareFunc, req *http.Request) (uuid.UUID, error) {
	t.Helper()

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var userID uuid.UUID
	err := mw(func(c echo.Context) error {
		id, ok := UserIDFromContext(c)
		if !ok {
			t.Fatalf("expected user id in context")
		}
		userID = id
		return nil
	})(c)
	return userID, err
}

func statusOf(err error) int {
	if httpErr, ok := err.(*echo.HTTPError); ok {
		return httpErr.Code
	}
	return 0
}

// TestJWTMiddlewareAcceptsBearer проверяет успешную проверку access-токена.
func TestJWTMiddlewareAcceptsBearer(t *testing.T) {
	verifier := NewTokenVerifier("secret", "finance-advisor")
	userID := uuid.New()
	token, err := verifier.IssueAccessToken(userID, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)

	got, err := runMiddleware(t, JWTMiddleware(verifier), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != userID {
		t.Fatalf("expected %s, got %s", userID, got)
	}
}

// TestJWTMiddlewareRejectsForeignIssuer проверяет отказ для токена другого издателя.
func TestJWTMiddlewareRejectsForeignIssuer(t *testing.T) {
	other := NewTokenVerifier("secret", "someone-else")
	token, err := other.IssueAccessToken(uuid.New(), time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)

	_, err = runMiddleware(t, JWTMiddleware(NewTokenVerifier("secret", "finance-advisor")), req)
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

// TestJWTMiddlewareRejectsExpired проверяет отказ для просроченного токена.
func TestJWTMiddlewareRejectsExpired(t *testing.T) {
	verifier := NewTokenVerifier("secret", "finance-advisor")
	issuedAt := time.Now().Add(-time.Hour)
	verifier.now = func() time.Time { return issuedAt }
	token, err := verifier.IssueAccessToken(uuid.New(), time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	verifier.now = time.Now

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)

	_, err = runMiddleware(t, JWTMiddleware(verifier), req)
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

// TestStreamMiddlewareAcceptsQueryToken проверяет токен из query только для потока.
func TestStreamMiddlewareAcceptsQueryToken(t *testing.T) {
	verifier := NewTokenVerifier("secret", "finance-advisor")
	userID := uuid.New()
	token, err := verifier.IssueAccessToken(userID, time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil)
	got, err := runMiddleware(t, StreamJWTMiddleware(verifier), req)
	if err != nil || got != userID {
		t.Fatalf("expected stream access, got %v %s", err, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil)
	_, err = runMiddleware(t, JWTMiddleware(verifier), req)
	if statusOf(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 without header, got %v", err)
	}
}
