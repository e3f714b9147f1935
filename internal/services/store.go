package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"skilltrack-backend/internal/models"
	"skilltrack-backend/internal/repository"
)

// SessionStore is the persistence the timer needs. Implemented by repository.PostgresStore,
// repository.SQLiteStore and repository.MemoryStore.
type SessionStore interface {
	CreateOpenSession(ctx context.Context, s *models.StudySession) error
	FindOpenSession(ctx context.Context, userID uuid.UUID, skillID string) (*models.StudySession, error)
	ListOpenSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	CloseSessionAndRecord(ctx context.Context, c models.SessionClose, apply repository.ApplyFunc) (*models.StudySession, *models.BadgeRecord, error)
	ListRecentSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error)
}

type BadgeStore interface {
	InitBadgeRecord(ctx context.Context, rec *models.BadgeRecord) (bool, error)
	GetBadgeRecord(ctx context.Context, userID uuid.UUID) (*models.BadgeRecord, error)
	UpdateBadgeRecord(ctx context.Context, userID uuid.UUID, apply repository.ApplyFunc) (*models.BadgeRecord, error)
	ListSkillTotals(ctx context.Context, userID uuid.UUID) ([]models.SkillTotal, error)
}

type AuditStore interface {
	ListBadgeAudits(ctx context.Context) ([]models.BadgeAudit, error)
	UpdateBadgeRecord(ctx context.Context, userID uuid.UUID, apply repository.ApplyFunc) (*models.BadgeRecord, error)
}

// Store is everything a backend provides.
type Store interface {
	SessionStore
	BadgeStore
	AuditStore
}

// Clock returns the current time. Tests substitute a controllable clock.
type Clock func() time.Time

// storeTime normalizes to UTC at second precision, the precision sessions are stored at.
func storeTime(c Clock) time.Time {
	return c().UTC().Truncate(time.Second)
}
