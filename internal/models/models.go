package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

type RiskProfile string

const (
	TransactionTypeIncome   TransactionType = "income"
	TransactionTypeExpense  TransactionType = "expense"
	TransactionTypeTransfer TransactionType = "transfer"

	TransactionKindNormal = "normal"

	RecurringKindIncome   = "income"
	RecurringKindExpense  = "expense"
	RecurringKindTransfer = "transfer"

	RiskProfileConservative RiskProfile = "conservative"
	RiskProfileBalanced     RiskProfile = "balanced"
	RiskProfileAggressive   RiskProfile = "aggressive"
)

type Account struct {
	ID       uuid.UUID       `json:"id"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}

type Transaction struct {
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CategoryID  *uuid.UUID      `json:"category_id,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Description *string         `json:"description,omitempty"`
}

type Budget struct {
	CategoryID  uuid.UUID       `json:"category_id"`
	Month       time.Time       `json:"month"`
	LimitAmount decimal.Decimal `json:"limit_amount"`
}

type RecurringRule struct {
	Kind          string          `json:"kind"`
	Cadence       string          `json:"cadence"`
	Amount        decimal.Decimal `json:"amount"`
	NextRunAt     time.Time       `json:"next_run_at"`
	CategoryID    *uuid.UUID      `json:"category_id,omitempty"`
	FromAccountID *uuid.UUID      `json:"from_account_id,omitempty"`
	ToAccountID   *uuid.UUID      `json:"to_account_id,omitempty"`
	Description   *string         `json:"description,omitempty"`
}

type AdvisorPreferences struct {
	TargetSavingsRate float64     `json:"target_savings_rate"`
	RiskProfile       RiskProfile `json:"risk_profile"`
}

type AdvisorRequest struct {
	UserID         uuid.UUID `json:"user_id"`
	Month          string    `json:"month"`
	Language       string    `json:"language"`
	Mode           string    `json:"mode"`
	Reason         *string   `json:"reason,omitempty"`
	Provider       *string   `json:"provider,omitempty"`
	ProviderStatus *int      `json:"provider_status,omitempty"`
	CacheHit       bool      `json:"cache_hit"`
	Regenerate     bool      `json:"regenerate"`
	DurationMs     int64     `json:"duration_ms"`
}
