package repository

import (
	"context"
	"errors"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/finance-advisor/backend/internal/models"
)

type AdvisorRepository struct {
	db *pgxpool.Pool
}

// NewAdvisorRepository создает репозиторий журнала и настроек советника.
func NewAdvisorRepository(db *pgxpool.Pool) *AdvisorRepository {
	return &AdvisorRepository{db: db}
}

func advisorRequestInsert(entry models.AdvisorRequest) sq.InsertBuilder {
	return psql.Insert("advisor_requests").
		Columns("user_id", "month", "language", "mode", "reason", "provider", "provider_status", "cache_hit", "regenerate", "duration_ms").
		Values(
			entry.UserID,
			entry.Month,
			entry.Language,
			entry.Mode,
			entry.Reason,
			entry.Provider,
			entry.ProviderStatus,
			entry.CacheHit,
			entry.Regenerate,
			entry.DurationMs,
		)
}

// LogAdvisorRequest сохраняет итог обращения к советнику.
func (r *AdvisorRepository) LogAdvisorRequest(ctx context.Context, entry models.AdvisorRequest) error {
	query, args, err := advisorRequestInsert(entry).ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query, args...)
	return err
}

// AdvisorPreferences возвращает сохраненные предпочтения пользователя или nil, если их нет.
func (r *AdvisorRepository) AdvisorPreferences(ctx context.Context, userID uuid.UUID) (*models.AdvisorPreferences, error) {
	query, args, err := psql.Select("target_savings_rate", "risk_profile").
		From("advisor_preferences").
		Where(sq.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var prefs models.AdvisorPreferences
	err = r.db.QueryRow(ctx, query, args...).Scan(&prefs.TargetSavingsRate, &prefs.RiskProfile)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &prefs, nil
}
