package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"example.com/finance-advisor/backend/internal/models"
)

// TestTransactionsQueryFilters проверяет фильтры выборки транзакций.
func TestTransactionsQueryFilters(t *testing.T) {
	userID := uuid.New()
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	query, args, err := transactionsQuery(userID, from, to).ToSql()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, part := range []string{
		"FROM transactions",
		"deleted_at IS NULL",
		"occurred_at >= $",
		"occurred_at < $",
		"kind = $",
		"user_id = $",
	} {
		if !strings.Contains(query, part) {
			t.Fatalf("expected %q in query %s", part, query)
		}
	}

	if len(args) != 4 {
		t.Fatalf("expected 4 args, got %d", len(args))
	}
	if !containsArg(args, models.TransactionKindNormal) {
		t.Fatalf("expected kind arg, got %v", args)
	}
}

// TestAccountsQueryBalance проверяет join транзакций для баланса счетов.
func TestAccountsQueryBalance(t *testing.T) {
	query, args, err := accountsQuery(uuid.New()).ToSql()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(query, "LEFT JOIN transactions t ON t.account_id = a.id AND t.deleted_at IS NULL AND t.kind = $1") {
		t.Fatalf("unexpected join: %s", query)
	}
	if !strings.Contains(query, "GROUP BY a.id") {
		t.Fatalf("expected grouping: %s", query)
	}
	if len(args) != 2 || args[0] != models.TransactionKindNormal {
		t.Fatalf("unexpected args: %v", args)
	}
}

// TestCategoryNamesQueryUsesIn проверяет выборку категорий по набору идентификаторов.
func TestCategoryNamesQueryUsesIn(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New()}

	query, args, err := categoryNamesQuery(uuid.New(), ids).ToSql()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(query, "id IN ($1,$2)") {
		t.Fatalf("expected IN clause: %s", query)
	}
	if len(args) != 3 {
		t.Fatalf("expected 3 args, got %d", len(args))
	}
}

// TestRecurringRulesQueryActiveOnly проверяет выборку только активных правил.
func TestRecurringRulesQueryActiveOnly(t *testing.T) {
	query, args, err := recurringRulesQuery(uuid.New()).ToSql()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(query, "active = $1") {
		t.Fatalf("expected active filter: %s", query)
	}
	if !containsArg(args, true) {
		t.Fatalf("expected active arg, got %v", args)
	}
}

// TestAdvisorRequestInsert проверяет вставку записи журнала советника.
func TestAdvisorRequestInsert(t *testing.T) {
	reason := "provider_timeout"
	query, args, err := advisorRequestInsert(models.AdvisorRequest{
		UserID:   uuid.New(),
		Month:    "2024-03",
		Language: "en",
		Mode:     "fallback",
		Reason:   &reason,
	}).ToSql()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.HasPrefix(query, "INSERT INTO advisor_requests") {
		t.Fatalf("unexpected query: %s", query)
	}
	if !strings.Contains(query, "$10") {
		t.Fatalf("expected 10 placeholders: %s", query)
	}
	if len(args) != 10 {
		t.Fatalf("expected 10 args, got %d", len(args))
	}
}

func containsArg(args []interface{}, want interface{}) bool {
	for _, arg := range args {
		if arg == want {
			return true
		}
	}
	return false
}
