package services

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"skilltrack-backend/internal/badges"
	"skilltrack-backend/internal/models"
	"skilltrack-backend/internal/repository"
)

type BadgeService struct {
	store  BadgeStore
	table  *badges.Table
	events Publisher
	clock  Clock
}

func NewBadgeService(store BadgeStore, table *badges.Table, events Publisher, clock Clock) *BadgeService {
	if clock == nil {
		clock = time.Now
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &BadgeService{store: store, table: table, events: events, clock: clock}
}

func (s *BadgeService) Table() *badges.Table {
	return s.table
}

// InitializeUser creates the user's badge record at the lowest tier. Calling it again is a no-op.
func (s *BadgeService) InitializeUser(ctx context.Context, userID uuid.UUID) (bool, error) {
	if userID == uuid.Nil {
		return false, &ValidationError{Fields: map[string]string{"user_id": "User ID is required"}}
	}

	return s.store.InitBadgeRecord(ctx, &models.BadgeRecord{
		UserID:            userID,
		TotalStudyMinutes: 0,
		CurrentBadge:      s.table.Lowest().Title,
		BadgeUpdatedAt:    storeTime(s.clock),
	})
}

// RecordMinutes adds delta minutes to the user's total and recomputes the tier.
func (s *BadgeService) RecordMinutes(ctx context.Context, userID uuid.UUID, delta int) (*models.BadgeRecord, error) {
	if delta < 0 {
		return nil, &InvalidDurationError{Minutes: delta}
	}

	var previous string
	rec, err := s.store.UpdateBadgeRecord(ctx, userID, s.recordStep(delta, storeTime(s.clock), &previous))
	if err != nil {
		return nil, s.translate(userID, err)
	}

	s.announceUpgrade(ctx, previous, rec)
	return rec, nil
}

// recordStep is the badge half of a close: it runs inside the store transaction.
// previous receives the tier title held before the change.
func (s *BadgeService) recordStep(delta int, at time.Time, previous *string) repository.ApplyFunc {
	return func(rec *models.BadgeRecord) error {
		if delta < 0 {
			return &InvalidDurationError{Minutes: delta}
		}
		*previous = rec.CurrentBadge
		rec.TotalStudyMinutes += delta
		rec.CurrentBadge = s.table.TierFor(rec.TotalStudyMinutes).Title
		rec.BadgeUpdatedAt = at
		return nil
	}
}

func (s *BadgeService) announceUpgrade(ctx context.Context, previous string, rec *models.BadgeRecord) {
	if rec == nil || previous == rec.CurrentBadge {
		return
	}
	publish(ctx, s.events, rec.UserID, models.EventBadgeUpgraded, models.BadgeUpgrade{
		UserID:        rec.UserID,
		PreviousBadge: previous,
		CurrentBadge:  rec.CurrentBadge,
		TotalMinutes:  rec.TotalStudyMinutes,
	})
}

// Status projects the user's total onto the tier table. A user without a record
// is shown at zero minutes.
func (s *BadgeService) Status(ctx context.Context, userID uuid.UUID) (*models.BadgeStatus, error) {
	rec, err := s.store.GetBadgeRecord(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrBadgeRecordMissing) {
			status := s.Project(0)
			return &status, nil
		}
		return nil, err
	}

	status := s.Project(rec.TotalStudyMinutes)
	return &status, nil
}

// Project derives the display status from a total. The badge is always recomputed
// from the total, never read from the stored title.
func (s *BadgeService) Project(totalMinutes int) models.BadgeStatus {
	p := s.table.Progress(totalMinutes)
	return models.BadgeStatus{
		TotalMinutes:       totalMinutes,
		TotalHours:         math.Round(float64(totalMinutes)/60*10) / 10,
		CurrentBadge:       p.Current.Title,
		NextBadge:          p.NextTitle(),
		MinutesToNextBadge: p.MinutesToNext,
		ProgressPercent:    p.ProgressPercent,
		MaxTierReached:     p.Next == nil,
	}
}

func (s *BadgeService) SkillBreakdown(ctx context.Context, userID uuid.UUID) ([]models.SkillTotal, error) {
	return s.store.ListSkillTotals(ctx, userID)
}

func (s *BadgeService) translate(userID uuid.UUID, err error) error {
	if errors.Is(err, repository.ErrBadgeRecordMissing) {
		return &UserNotInitializedError{UserID: userID.String()}
	}
	return err
}
