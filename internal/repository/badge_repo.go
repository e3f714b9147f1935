package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"skilltrack-backend/internal/models"
)

func (r *PostgresStore) InitBadgeRecord(ctx context.Context, rec *models.BadgeRecord) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO user_badges (user_id, total_study_minutes, current_badge, badge_updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
	`, rec.UserID, rec.TotalStudyMinutes, rec.CurrentBadge, rec.BadgeUpdatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert badge record: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PostgresStore) GetBadgeRecord(ctx context.Context, userID uuid.UUID) (*models.BadgeRecord, error) {
	rec := &models.BadgeRecord{}
	err := r.pool.QueryRow(ctx, `
		SELECT user_id, total_study_minutes, current_badge, badge_updated_at
		FROM user_badges
		WHERE user_id = $1
	`, userID).Scan(&rec.UserID, &rec.TotalStudyMinutes, &rec.CurrentBadge, &rec.BadgeUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBadgeRecordMissing
		}
		return nil, err
	}
	return rec, nil
}

func (r *PostgresStore) UpdateBadgeRecord(ctx context.Context, userID uuid.UUID, apply ApplyFunc) (*models.BadgeRecord, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin badge transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	rec, err := updateBadgeInTx(ctx, tx, userID, apply)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit badge transaction: %w", err)
	}
	return rec, nil
}

// updateBadgeInTx locks the user's badge row, applies the change and writes it back.
func updateBadgeInTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID, apply ApplyFunc) (*models.BadgeRecord, error) {
	rec := &models.BadgeRecord{}
	err := tx.QueryRow(ctx, `
		SELECT user_id, total_study_minutes, current_badge, badge_updated_at
		FROM user_badges
		WHERE user_id = $1
		FOR UPDATE
	`, userID).Scan(&rec.UserID, &rec.TotalStudyMinutes, &rec.CurrentBadge, &rec.BadgeUpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrBadgeRecordMissing
		}
		return nil, fmt.Errorf("failed to lock badge record: %w", err)
	}

	if err := apply(rec); err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE user_badges
		SET total_study_minutes = $2,
			current_badge = $3,
			badge_updated_at = $4
		WHERE user_id = $1
	`, rec.UserID, rec.TotalStudyMinutes, rec.CurrentBadge, rec.BadgeUpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update badge record: %w", err)
	}
	return rec, nil
}

func (r *PostgresStore) ListBadgeAudits(ctx context.Context) ([]models.BadgeAudit, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT b.user_id,
			b.total_study_minutes,
			b.current_badge,
			COALESCE(SUM(s.duration_minutes), 0)::INT AS session_minutes
		FROM user_badges b
		LEFT JOIN study_sessions s
			ON s.user_id = b.user_id
			AND s.duration_minutes IS NOT NULL
		GROUP BY b.user_id, b.total_study_minutes, b.current_badge
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	audits := make([]models.BadgeAudit, 0)
	for rows.Next() {
		var a models.BadgeAudit
		if err := rows.Scan(&a.UserID, &a.TotalStudyMinutes, &a.CurrentBadge, &a.SessionMinutes); err != nil {
			return nil, err
		}
		audits = append(audits, a)
	}
	return audits, rows.Err()
}
