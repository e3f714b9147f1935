package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"skilltrack-backend/internal/models"
)

type openKey struct {
	userID  uuid.UUID
	skillID string
}

// MemoryStore keeps sessions and badge records in process memory.
// Intended for local development and tests; a single mutex serializes writes.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]models.StudySession
	open     map[openKey]uuid.UUID
	badges   map[uuid.UUID]models.BadgeRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[uuid.UUID]models.StudySession),
		open:     make(map[openKey]uuid.UUID),
		badges:   make(map[uuid.UUID]models.BadgeRecord),
	}
}

func (m *MemoryStore) CreateOpenSession(_ context.Context, s *models.StudySession) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := openKey{userID: s.UserID, skillID: s.SkillID}
	if _, exists := m.open[key]; exists {
		return ErrOpenSessionExists
	}

	m.sessions[s.ID] = copySession(*s)
	m.open[key] = s.ID
	return nil
}

func (m *MemoryStore) FindOpenSession(_ context.Context, userID uuid.UUID, skillID string) (*models.StudySession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.open[openKey{userID: userID, skillID: skillID}]
	if !ok {
		return nil, ErrNotFound
	}
	s := copySession(m.sessions[id])
	return &s, nil
}

func (m *MemoryStore) ListOpenSessions(_ context.Context, userID uuid.UUID) ([]*models.StudySession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.StudySession, 0)
	for key, id := range m.open {
		if key.userID != userID {
			continue
		}
		s := copySession(m.sessions[id])
		out = append(out, &s)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*models.StudySession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	s = copySession(s)
	return &s, nil
}

func (m *MemoryStore) CloseSessionAndRecord(_ context.Context, c models.SessionClose, apply ApplyFunc) (*models.StudySession, *models.BadgeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[c.SessionID]
	if !ok || s.UserID != c.UserID || !s.IsOpen() {
		return nil, nil, ErrNotFound
	}

	rec, ok := m.badges[c.UserID]
	if !ok {
		return nil, nil, ErrBadgeRecordMissing
	}
	if err := apply(&rec); err != nil {
		return nil, nil, err
	}

	endedAt := c.EndedAt
	duration := c.DurationMinutes
	s.EndedAt = &endedAt
	s.DurationMinutes = &duration

	m.sessions[s.ID] = s
	delete(m.open, openKey{userID: s.UserID, skillID: s.SkillID})
	m.badges[c.UserID] = rec

	closed := copySession(s)
	return &closed, &rec, nil
}

func (m *MemoryStore) ListSkillTotals(_ context.Context, userID uuid.UUID) ([]models.SkillTotal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	totals := make(map[string]int)
	for _, s := range m.sessions {
		if s.UserID != userID || s.DurationMinutes == nil {
			continue
		}
		totals[s.SkillID] += *s.DurationMinutes
	}

	out := make([]models.SkillTotal, 0, len(totals))
	for skill, total := range totals {
		out = append(out, models.SkillTotal{SkillID: skill, TotalMinutes: total})
	}
	sortSkillTotals(out)
	return out, nil
}

func (m *MemoryStore) ListRecentSessions(_ context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.StudySession, 0)
	for _, s := range m.sessions {
		if s.UserID != userID || s.IsOpen() {
			continue
		}
		cp := copySession(s)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].EndedAt.After(*out[j].EndedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) InitBadgeRecord(_ context.Context, rec *models.BadgeRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.badges[rec.UserID]; exists {
		return false, nil
	}
	m.badges[rec.UserID] = *rec
	return true, nil
}

func (m *MemoryStore) GetBadgeRecord(_ context.Context, userID uuid.UUID) (*models.BadgeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.badges[userID]
	if !ok {
		return nil, ErrBadgeRecordMissing
	}
	return &rec, nil
}

func (m *MemoryStore) UpdateBadgeRecord(_ context.Context, userID uuid.UUID, apply ApplyFunc) (*models.BadgeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.badges[userID]
	if !ok {
		return nil, ErrBadgeRecordMissing
	}
	if err := apply(&rec); err != nil {
		return nil, err
	}
	m.badges[userID] = rec
	return &rec, nil
}

func (m *MemoryStore) ListBadgeAudits(_ context.Context) ([]models.BadgeAudit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sums := make(map[uuid.UUID]int)
	for _, s := range m.sessions {
		if s.DurationMinutes != nil {
			sums[s.UserID] += *s.DurationMinutes
		}
	}

	out := make([]models.BadgeAudit, 0, len(m.badges))
	for userID, rec := range m.badges {
		out = append(out, models.BadgeAudit{
			UserID:            userID,
			TotalStudyMinutes: rec.TotalStudyMinutes,
			CurrentBadge:      rec.CurrentBadge,
			SessionMinutes:    sums[userID],
		})
	}
	return out, nil
}

func copySession(s models.StudySession) models.StudySession {
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	if s.DurationMinutes != nil {
		d := *s.DurationMinutes
		s.DurationMinutes = &d
	}
	return s
}

func sortSkillTotals(totals []models.SkillTotal) {
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].TotalMinutes != totals[j].TotalMinutes {
			return totals[i].TotalMinutes > totals[j].TotalMinutes
		}
		return totals[i].SkillID < totals[j].SkillID
	})
}
