package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"skilltrack-backend/internal/models"
)

// SQLiteStore is the single-file backend. The connection pool is pinned to one
// connection, so every transaction is also the only writer.
type SQLiteStore struct {
	db *sqlx.DB
}

func NewSQLiteStore(db *sqlx.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS study_sessions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		skill_id TEXT NOT NULL,
		started_at TIMESTAMP NOT NULL,
		ended_at TIMESTAMP,
		duration_minutes INTEGER CHECK (duration_minutes IS NULL OR duration_minutes >= 0)
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS study_sessions_one_open_idx
		ON study_sessions (user_id, skill_id)
		WHERE ended_at IS NULL`,
	`CREATE INDEX IF NOT EXISTS study_sessions_user_idx ON study_sessions (user_id, ended_at)`,
	`CREATE TABLE IF NOT EXISTS user_badges (
		user_id TEXT PRIMARY KEY,
		total_study_minutes INTEGER NOT NULL DEFAULT 0 CHECK (total_study_minutes >= 0),
		current_badge TEXT NOT NULL,
		badge_updated_at TIMESTAMP NOT NULL
	)`,
}

// InitSchema creates the tables and indexes if they don't exist.
func (r *SQLiteStore) InitSchema(ctx context.Context) error {
	for _, stmt := range sqliteSchema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply sqlite schema: %w", err)
		}
	}
	return nil
}

func (r *SQLiteStore) CreateOpenSession(ctx context.Context, s *models.StudySession) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO study_sessions (id, user_id, skill_id, started_at) VALUES (?, ?, ?, ?)`,
		s.ID, s.UserID, s.SkillID, s.StartedAt)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrOpenSessionExists
		}
		return fmt.Errorf("failed to insert study session: %w", err)
	}
	return nil
}

func (r *SQLiteStore) FindOpenSession(ctx context.Context, userID uuid.UUID, skillID string) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := r.db.GetContext(ctx, s,
		`SELECT `+sessionColumns+` FROM study_sessions WHERE user_id = ? AND skill_id = ? AND ended_at IS NULL`,
		userID, skillID)
	return sqliteOne(s, err)
}

func (r *SQLiteStore) ListOpenSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	sessions := make([]*models.StudySession, 0)
	err := r.db.SelectContext(ctx, &sessions,
		`SELECT `+sessionColumns+` FROM study_sessions WHERE user_id = ? AND ended_at IS NULL ORDER BY started_at`,
		userID)
	return sessions, err
}

func (r *SQLiteStore) GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error) {
	s := &models.StudySession{}
	err := r.db.GetContext(ctx, s, `SELECT `+sessionColumns+` FROM study_sessions WHERE id = ?`, id)
	return sqliteOne(s, err)
}

func (r *SQLiteStore) CloseSessionAndRecord(ctx context.Context, c models.SessionClose, apply ApplyFunc) (*models.StudySession, *models.BadgeRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin close transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE study_sessions
		SET ended_at = ?, duration_minutes = ?
		WHERE id = ? AND user_id = ? AND ended_at IS NULL
	`, c.EndedAt, c.DurationMinutes, c.SessionID, c.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to close study session: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, nil, err
	} else if n == 0 {
		return nil, nil, ErrNotFound
	}

	session := &models.StudySession{}
	if err := tx.GetContext(ctx, session, `SELECT `+sessionColumns+` FROM study_sessions WHERE id = ?`, c.SessionID); err != nil {
		return nil, nil, err
	}

	rec, err := sqliteUpdateBadge(ctx, tx, c.UserID, apply)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit close transaction: %w", err)
	}
	return session, rec, nil
}

func (r *SQLiteStore) ListSkillTotals(ctx context.Context, userID uuid.UUID) ([]models.SkillTotal, error) {
	totals := make([]models.SkillTotal, 0)
	err := r.db.SelectContext(ctx, &totals, `
		SELECT skill_id, SUM(duration_minutes) AS total_minutes
		FROM study_sessions
		WHERE user_id = ? AND duration_minutes IS NOT NULL
		GROUP BY skill_id
		ORDER BY total_minutes DESC, skill_id
	`, userID)
	return totals, err
}

func (r *SQLiteStore) ListRecentSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	sessions := make([]*models.StudySession, 0)
	err := r.db.SelectContext(ctx, &sessions, `
		SELECT `+sessionColumns+`
		FROM study_sessions
		WHERE user_id = ? AND ended_at IS NOT NULL
		ORDER BY ended_at DESC
		LIMIT ?
	`, userID, limit)
	return sessions, err
}

func (r *SQLiteStore) InitBadgeRecord(ctx context.Context, rec *models.BadgeRecord) (bool, error) {
	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO user_badges (user_id, total_study_minutes, current_badge, badge_updated_at)
		VALUES (:user_id, :total_study_minutes, :current_badge, :badge_updated_at)
		ON CONFLICT (user_id) DO NOTHING
	`, rec)
	if err != nil {
		return false, fmt.Errorf("failed to insert badge record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *SQLiteStore) GetBadgeRecord(ctx context.Context, userID uuid.UUID) (*models.BadgeRecord, error) {
	rec := &models.BadgeRecord{}
	err := r.db.GetContext(ctx, rec, `SELECT `+badgeColumns+` FROM user_badges WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBadgeRecordMissing
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (r *SQLiteStore) UpdateBadgeRecord(ctx context.Context, userID uuid.UUID, apply ApplyFunc) (*models.BadgeRecord, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin badge transaction: %w", err)
	}
	defer tx.Rollback()

	rec, err := sqliteUpdateBadge(ctx, tx, userID, apply)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit badge transaction: %w", err)
	}
	return rec, nil
}

func (r *SQLiteStore) ListBadgeAudits(ctx context.Context) ([]models.BadgeAudit, error) {
	audits := make([]models.BadgeAudit, 0)
	err := r.db.SelectContext(ctx, &audits, `
		SELECT b.user_id, b.total_study_minutes, b.current_badge,
			COALESCE(SUM(s.duration_minutes), 0) AS session_minutes
		FROM user_badges b
		LEFT JOIN study_sessions s
			ON s.user_id = b.user_id AND s.duration_minutes IS NOT NULL
		GROUP BY b.user_id, b.total_study_minutes, b.current_badge
	`)
	return audits, err
}

const badgeColumns = `user_id, total_study_minutes, current_badge, badge_updated_at`

func sqliteUpdateBadge(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, apply ApplyFunc) (*models.BadgeRecord, error) {
	rec := &models.BadgeRecord{}
	err := tx.GetContext(ctx, rec, `SELECT `+badgeColumns+` FROM user_badges WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBadgeRecordMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load badge record: %w", err)
	}

	if err := apply(rec); err != nil {
		return nil, err
	}

	_, err = tx.NamedExecContext(ctx, `
		UPDATE user_badges
		SET total_study_minutes = :total_study_minutes,
			current_badge = :current_badge,
			badge_updated_at = :badge_updated_at
		WHERE user_id = :user_id
	`, rec)
	if err != nil {
		return nil, fmt.Errorf("failed to update badge record: %w", err)
	}
	return rec, nil
}

func sqliteOne(s *models.StudySession, err error) (*models.StudySession, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
