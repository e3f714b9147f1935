package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"skilltrack-backend/internal/models"
	"skilltrack-backend/internal/repository"
)

const maxSkillIDLength = 128

// TimerService runs the per-(user, skill) study timer. Open/closed state lives only
// in the store, so restarts and multiple instances see the same timers.
type TimerService struct {
	store  SessionStore
	badges *BadgeService
	events Publisher
	clock  Clock
}

func NewTimerService(store SessionStore, badgeService *BadgeService, events Publisher, clock Clock) *TimerService {
	if clock == nil {
		clock = time.Now
	}
	if events == nil {
		events = NopPublisher{}
	}
	return &TimerService{store: store, badges: badgeService, events: events, clock: clock}
}

// Start opens a session for (user, skill). The store's uniqueness constraint decides
// between concurrent starts, so exactly one of them succeeds.
func (s *TimerService) Start(ctx context.Context, userID uuid.UUID, skillID string) (*models.StudySession, error) {
	skillID, err := validateTimerInput(userID, skillID)
	if err != nil {
		return nil, err
	}

	session := &models.StudySession{
		ID:        uuid.New(),
		UserID:    userID,
		SkillID:   skillID,
		StartedAt: storeTime(s.clock),
	}

	if err := s.store.CreateOpenSession(ctx, session); err != nil {
		if errors.Is(err, repository.ErrOpenSessionExists) {
			alreadyActive := &AlreadyActiveError{SkillID: skillID}
			if open, findErr := s.store.FindOpenSession(ctx, userID, skillID); findErr == nil {
				alreadyActive.SessionID = open.ID.String()
			}
			return nil, alreadyActive
		}
		return nil, err
	}

	publish(ctx, s.events, userID, models.EventSessionStarted, session)
	return session, nil
}

// End closes the open session for (user, skill) and records its minutes.
func (s *TimerService) End(ctx context.Context, userID uuid.UUID, skillID string) (*models.StudySession, *models.BadgeRecord, error) {
	skillID, err := validateTimerInput(userID, skillID)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.store.FindOpenSession(ctx, userID, skillID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, &NoActiveSessionError{SkillID: skillID}
		}
		return nil, nil, err
	}

	return s.close(ctx, session)
}

// EndByID closes a session by the id Start returned. Sessions of other users are
// reported as not active.
func (s *TimerService) EndByID(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, *models.BadgeRecord, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, &NoActiveSessionError{}
		}
		return nil, nil, err
	}
	if session.UserID != userID {
		return nil, nil, &NoActiveSessionError{}
	}
	if !session.IsOpen() {
		return nil, nil, &NoActiveSessionError{SkillID: session.SkillID}
	}

	return s.close(ctx, session)
}

// EndAll closes every open session of the user, each in its own close transaction.
// Used on logout. It returns the closed sessions and the badge record after the last
// close; a missing badge record is reported after the remaining sessions are tried.
func (s *TimerService) EndAll(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, *models.BadgeRecord, error) {
	if userID == uuid.Nil {
		return nil, nil, &ValidationError{Fields: map[string]string{"user_id": "User ID is required"}}
	}

	open, err := s.store.ListOpenSessions(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	var (
		closed  = make([]*models.StudySession, 0, len(open))
		rec     *models.BadgeRecord
		notInit *UserNotInitializedError
	)
	for _, session := range open {
		c, r, err := s.close(ctx, session)
		if err != nil {
			var noActive *NoActiveSessionError
			switch {
			case errors.As(err, &noActive):
				continue
			case errors.As(err, &notInit):
				continue
			}
			return closed, rec, err
		}
		closed = append(closed, c)
		rec = r
	}

	if notInit != nil {
		return closed, rec, notInit
	}
	return closed, rec, nil
}

func (s *TimerService) close(ctx context.Context, session *models.StudySession) (*models.StudySession, *models.BadgeRecord, error) {
	endedAt := storeTime(s.clock)
	duration := DurationMinutes(session.StartedAt, endedAt)

	var previous string
	closed, rec, err := s.store.CloseSessionAndRecord(ctx, models.SessionClose{
		SessionID:       session.ID,
		UserID:          session.UserID,
		EndedAt:         endedAt,
		DurationMinutes: duration,
	}, s.badges.recordStep(duration, endedAt, &previous))
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			// Closed by a concurrent call between lookup and update.
			return nil, nil, &NoActiveSessionError{SkillID: session.SkillID}
		case errors.Is(err, repository.ErrBadgeRecordMissing):
			return nil, nil, &UserNotInitializedError{UserID: session.UserID.String()}
		}
		return nil, nil, err
	}

	publish(ctx, s.events, closed.UserID, models.EventSessionEnded, closed)
	s.badges.announceUpgrade(ctx, previous, rec)
	return closed, rec, nil
}

// ActiveSession returns the open session for (user, skill) with freshly computed
// elapsed time, or nil when nothing is open.
func (s *TimerService) ActiveSession(ctx context.Context, userID uuid.UUID, skillID string) (*models.ActiveSession, error) {
	skillID, err := validateTimerInput(userID, skillID)
	if err != nil {
		return nil, err
	}

	session, err := s.store.FindOpenSession(ctx, userID, skillID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return s.withElapsed(session), nil
}

// ActiveSessions lists every open timer of the user, one per skill.
func (s *TimerService) ActiveSessions(ctx context.Context, userID uuid.UUID) ([]*models.ActiveSession, error) {
	sessions, err := s.store.ListOpenSessions(ctx, userID)
	if err != nil {
		return nil, err
	}

	active := make([]*models.ActiveSession, 0, len(sessions))
	for _, session := range sessions {
		active = append(active, s.withElapsed(session))
	}
	return active, nil
}

func (s *TimerService) RecentSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.ListRecentSessions(ctx, userID, limit)
}

func (s *TimerService) withElapsed(session *models.StudySession) *models.ActiveSession {
	elapsed := int64(storeTime(s.clock).Sub(session.StartedAt) / time.Second)
	if elapsed < 0 {
		elapsed = 0
	}
	return &models.ActiveSession{Session: session, ElapsedSeconds: elapsed}
}

// DurationMinutes is the whole minutes between start and end, truncated, never negative.
func DurationMinutes(start, end time.Time) int {
	seconds := int64(end.Sub(start) / time.Second)
	if seconds <= 0 {
		return 0
	}
	return int(seconds / 60)
}

func validateTimerInput(userID uuid.UUID, skillID string) (string, error) {
	fields := make(map[string]string)
	if userID == uuid.Nil {
		fields["user_id"] = "User ID is required"
	}

	skillID = strings.TrimSpace(skillID)
	if skillID == "" {
		fields["skill_id"] = "Skill ID is required"
	} else if len(skillID) > maxSkillIDLength {
		fields["skill_id"] = "Skill ID must be at most 128 characters"
	}

	if len(fields) > 0 {
		return "", &ValidationError{Fields: fields}
	}
	return skillID, nil
}
