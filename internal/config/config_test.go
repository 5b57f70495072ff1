package config

import (
	"reflect"
	"testing"
	"time"
)

// TestParseCSVEnv проверяет разбор списка языков из ENV.
func TestParseCSVEnv(t *testing.T) {
	t.Setenv("ADVISOR_LANGUAGES", " EN, ,ru ")

	got := parseCSVEnv("ADVISOR_LANGUAGES")
	want := []string{"en", "ru"}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

// TestParseCSVEnvMissing проверяет поведение при отсутствии переменной.
func TestParseCSVEnvMissing(t *testing.T) {
	got := parseCSVEnv("MISSING_ENV")
	if got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

// TestParseFloatEnv проверяет разбор дробных значений.
func TestParseFloatEnv(t *testing.T) {
	t.Setenv("ADVISOR_TARGET_SAVINGS_RATE", "12.5")
	got, err := parseFloatEnv("ADVISOR_TARGET_SAVINGS_RATE", 20)
	if err != nil || got != 12.5 {
		t.Fatalf("expected 12.5, got %v (%v)", got, err)
	}

	t.Setenv("ADVISOR_TARGET_SAVINGS_RATE", "abc")
	if _, err := parseFloatEnv("ADVISOR_TARGET_SAVINGS_RATE", 20); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
}

// TestLoadDefaults проверяет значения по умолчанию для советника и AI.
func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if cfg.AI.Provider != "gemini" || cfg.AI.MaxAttempts != 3 || cfg.AI.Timeout != 20*time.Second {
		t.Fatalf("unexpected AI config: %+v", cfg.AI)
	}
	if cfg.AI.BackoffBase != 300*time.Millisecond || cfg.AI.MaxJitter != 120*time.Millisecond {
		t.Fatalf("unexpected backoff config: %+v", cfg.AI)
	}
	if cfg.Advisor.CacheTTL != 6*time.Hour || cfg.Advisor.DefaultLanguage != "en" || !cfg.Advisor.Supports("es") {
		t.Fatalf("unexpected advisor config: %+v", cfg.Advisor)
	}
}

// TestLoadCloudflareRequiresAccount проверяет обязательный AI_ACCOUNT_ID для Cloudflare.
func TestLoadCloudflareRequiresAccount(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("AI_PROVIDER", "cloudflare")
	t.Setenv("AI_API_KEY", "token")
	t.Setenv("AI_ACCOUNT_ID", "")
	t.Setenv("CLOUDFLARE_ACCOUNT_ID", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without account id")
	}

	t.Setenv("AI_ACCOUNT_ID", "acc-1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.AI.BaseURL != "https://api.cloudflare.com/client/v4" || cfg.AI.AccountID != "acc-1" {
		t.Fatalf("unexpected AI config: %+v", cfg.AI)
	}
}

// TestLoadRejectsUnknownRiskProfile проверяет валидацию профиля риска.
func TestLoadRejectsUnknownRiskProfile(t *testing.T) {
	t.Setenv("ENV_FILE", "")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ADVISOR_RISK_PROFILE", "yolo")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for unknown risk profile")
	}
}
