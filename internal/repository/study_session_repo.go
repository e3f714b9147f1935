package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"skilltrack-backend/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore persists sessions and badge records in PostgreSQL.
// The partial unique index study_sessions_one_open_idx guards the one-open-session rule.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const sessionColumns = `id, user_id, skill_id, started_at, ended_at, duration_minutes`

func scanSession(row pgx.Row) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := row.Scan(&s.ID, &s.UserID, &s.SkillID, &s.StartedAt, &s.EndedAt, &s.DurationMinutes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return s, nil
}

func (r *PostgresStore) CreateOpenSession(ctx context.Context, s *models.StudySession) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO study_sessions (id, user_id, skill_id, started_at)
		VALUES ($1, $2, $3, $4)
	`, s.ID, s.UserID, s.SkillID, s.StartedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrOpenSessionExists
		}
		return fmt.Errorf("failed to insert study session: %w", err)
	}
	return nil
}

func (r *PostgresStore) FindOpenSession(ctx context.Context, userID uuid.UUID, skillID string) (*models.StudySession, error) {
	return scanSession(r.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE user_id = $1
		  AND skill_id = $2
		  AND ended_at IS NULL
	`, userID, skillID))
}

func (r *PostgresStore) ListOpenSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE user_id = $1
		  AND ended_at IS NULL
		ORDER BY started_at
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

func (r *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	return scanSession(r.pool.QueryRow(ctx, `SELECT `+sessionColumns+` FROM study_sessions WHERE id = $1`, id))
}

func (r *PostgresStore) CloseSessionAndRecord(ctx context.Context, c models.SessionClose, apply ApplyFunc) (*models.StudySession, *models.BadgeRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin close transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	session, err := scanSession(tx.QueryRow(ctx, `
		UPDATE study_sessions
		SET ended_at = $3,
			duration_minutes = $4
		WHERE id = $1
		  AND user_id = $2
		  AND ended_at IS NULL
		RETURNING `+sessionColumns,
		c.SessionID, c.UserID, c.EndedAt, c.DurationMinutes))
	if err != nil {
		return nil, nil, err
	}

	rec, err := updateBadgeInTx(ctx, tx, c.UserID, apply)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to commit close transaction: %w", err)
	}
	return session, rec, nil
}

func (r *PostgresStore) ListSkillTotals(ctx context.Context, userID uuid.UUID) ([]models.SkillTotal, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT skill_id, SUM(duration_minutes)::INT AS total_minutes
		FROM study_sessions
		WHERE user_id = $1
		  AND duration_minutes IS NOT NULL
		GROUP BY skill_id
		ORDER BY total_minutes DESC, skill_id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make([]models.SkillTotal, 0)
	for rows.Next() {
		var t models.SkillTotal
		if err := rows.Scan(&t.SkillID, &t.TotalMinutes); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func (r *PostgresStore) ListRecentSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE user_id = $1
		  AND ended_at IS NOT NULL
		ORDER BY ended_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectSessions(rows)
}

func collectSessions(rows pgx.Rows) ([]*models.StudySession, error) {
	sessions := make([]*models.StudySession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
