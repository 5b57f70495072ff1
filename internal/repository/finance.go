package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/finance-advisor/backend/internal/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// FinanceRepository читает финансовые данные пользователя только для агрегации.
type FinanceRepository struct {
	db *pgxpool.Pool
}

// NewFinanceRepository создает репозиторий финансовых данных.
func NewFinanceRepository(db *pgxpool.Pool) *FinanceRepository {
	return &FinanceRepository{db: db}
}

func accountsQuery(userID uuid.UUID) sq.SelectBuilder {
	return psql.Select(
		"a.id",
		"a.currency",
		`COALESCE(SUM(CASE WHEN t.type = 'income' THEN t.amount WHEN t.type = 'expense' THEN -t.amount ELSE 0 END), 0) AS balance`,
	).
		From("accounts a").
		LeftJoin("transactions t ON t.account_id = a.id AND t.deleted_at IS NULL AND t.kind = ?", models.TransactionKindNormal).
		Where(sq.Eq{"a.user_id": userID}).
		Where("a.deleted_at IS NULL").
		GroupBy("a.id").
		OrderBy("a.created_at", "a.id")
}

func transactionsQuery(userID uuid.UUID, from, to time.Time) sq.SelectBuilder {
	return psql.Select("type", "amount", "currency", "category_id", "occurred_at", "description").
		From("transactions").
		Where(sq.Eq{"user_id": userID, "kind": models.TransactionKindNormal}).
		Where("deleted_at IS NULL").
		Where(sq.GtOrEq{"occurred_at": from}).
		Where(sq.Lt{"occurred_at": to}).
		OrderBy("occurred_at")
}

func budgetsQuery(userID uuid.UUID, month time.Time) sq.SelectBuilder {
	return psql.Select("category_id", "month", "limit_amount").
		From("budgets").
		Where(sq.Eq{"user_id": userID, "month": month})
}

func recurringRulesQuery(userID uuid.UUID) sq.SelectBuilder {
	return psql.Select("kind", "cadence", "amount", "next_run_at", "category_id", "from_account_id", "to_account_id", "description").
		From("recurring_rules").
		Where(sq.Eq{"user_id": userID, "active": true}).
		OrderBy("next_run_at")
}

func categoryNamesQuery(userID uuid.UUID, ids []uuid.UUID) sq.SelectBuilder {
	return psql.Select("id", "name").
		From("categories").
		Where(sq.Eq{"user_id": userID, "id": ids})
}

// ListAccounts возвращает счета пользователя с балансом по доходам и расходам.
func (r *FinanceRepository) ListAccounts(ctx context.Context, userID uuid.UUID) ([]models.Account, error) {
	query, args, err := accountsQuery(userID).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	accounts := make([]models.Account, 0)
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.Currency, &account.Balance); err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return accounts, nil
}

// ListTransactions возвращает обычные неудаленные транзакции в полуинтервале [from, to).
func (r *FinanceRepository) ListTransactions(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]models.Transaction, error) {
	query, args, err := transactionsQuery(userID, from, to).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	transactions := make([]models.Transaction, 0)
	for rows.Next() {
		var tx models.Transaction
		err := rows.Scan(&tx.Type, &tx.Amount, &tx.Currency, &tx.CategoryID, &tx.OccurredAt, &tx.Description)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return transactions, nil
}

// ListBudgets возвращает бюджеты пользователя на месяц.
func (r *FinanceRepository) ListBudgets(ctx context.Context, userID uuid.UUID, month time.Time) ([]models.Budget, error) {
	query, args, err := budgetsQuery(userID, month).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	budgets := make([]models.Budget, 0)
	for rows.Next() {
		var budget models.Budget
		if err := rows.Scan(&budget.CategoryID, &budget.Month, &budget.LimitAmount); err != nil {
			return nil, err
		}
		budgets = append(budgets, budget)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return budgets, nil
}

// ListRecurringRules возвращает активные регулярные операции пользователя.
func (r *FinanceRepository) ListRecurringRules(ctx context.Context, userID uuid.UUID) ([]models.RecurringRule, error) {
	query, args, err := recurringRulesQuery(userID).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rules := make([]models.RecurringRule, 0)
	for rows.Next() {
		var rule models.RecurringRule
		err := rows.Scan(
			&rule.Kind,
			&rule.Cadence,
			&rule.Amount,
			&rule.NextRunAt,
			&rule.CategoryID,
			&rule.FromAccountID,
			&rule.ToAccountID,
			&rule.Description,
		)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rules, nil
}

// CategoryNames возвращает названия категорий пользователя по идентификаторам.
func (r *FinanceRepository) CategoryNames(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	names := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}

	query, args, err := categoryNamesQuery(userID, ids).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		names[id] = name
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return names, nil
}
