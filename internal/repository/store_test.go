package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"skilltrack-backend/internal/database"
	"skilltrack-backend/internal/models"
)

// contractStore is the surface every backend must provide.
type contractStore interface {
	CreateOpenSession(ctx context.Context, s *models.StudySession) error
	FindOpenSession(ctx context.Context, userID uuid.UUID, skillID string) (*models.StudySession, error)
	ListOpenSessions(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, error)
	GetSession(ctx context.Context, id uuid.UUID) (*models.StudySession, error)
	CloseSessionAndRecord(ctx context.Context, c models.SessionClose, apply ApplyFunc) (*models.StudySession, *models.BadgeRecord, error)
	ListSkillTotals(ctx context.Context, userID uuid.UUID) ([]models.SkillTotal, error)
	ListRecentSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error)
	InitBadgeRecord(ctx context.Context, rec *models.BadgeRecord) (bool, error)
	GetBadgeRecord(ctx context.Context, userID uuid.UUID) (*models.BadgeRecord, error)
	UpdateBadgeRecord(ctx context.Context, userID uuid.UUID, apply ApplyFunc) (*models.BadgeRecord, error)
	ListBadgeAudits(ctx context.Context) ([]models.BadgeAudit, error)
}

var (
	_ contractStore = (*MemoryStore)(nil)
	_ contractStore = (*SQLiteStore)(nil)
	_ contractStore = (*PostgresStore)(nil)
)

func newSQLiteTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sqlx.Connect("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := NewSQLiteStore(db)
	if err := store.InitSchema(context.Background()); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return store
}

func forEachStore(t *testing.T, fn func(t *testing.T, store contractStore)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteTestStore(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, newPostgresTestStore(t)) })
}

// newPostgresTestStore runs against TEST_DATABASE_URL with the migrations applied and
// both tables emptied.
func newPostgresTestStore(t *testing.T) *PostgresStore {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(url, 10)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := database.RunMigrations(ctx, pool, filepath.Join("..", "..", "migrations")); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if _, err := pool.Exec(ctx, "TRUNCATE study_sessions, user_badges"); err != nil {
		t.Fatalf("failed to truncate: %v", err)
	}
	return NewPostgresStore(pool)
}

var baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func openSession(userID uuid.UUID, skill string, startedAt time.Time) *models.StudySession {
	return &models.StudySession{ID: uuid.New(), UserID: userID, SkillID: skill, StartedAt: startedAt}
}

func addMinutes(delta int, at time.Time) ApplyFunc {
	return func(rec *models.BadgeRecord) error {
		rec.TotalStudyMinutes += delta
		rec.BadgeUpdatedAt = at
		return nil
	}
}

func initUser(t *testing.T, store contractStore) uuid.UUID {
	t.Helper()
	userID := uuid.New()
	created, err := store.InitBadgeRecord(context.Background(), &models.BadgeRecord{
		UserID:         userID,
		CurrentBadge:   "Member",
		BadgeUpdatedAt: baseTime,
	})
	if err != nil || !created {
		t.Fatalf("init badge record: created=%v err=%v", created, err)
	}
	return userID
}

func TestStore_OneOpenSessionPerSkill(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contractStore) {
		ctx := context.Background()
		userID := uuid.New()

		if err := store.CreateOpenSession(ctx, openSession(userID, "go", baseTime)); err != nil {
			t.Fatalf("first create failed: %v", err)
		}
		err := store.CreateOpenSession(ctx, openSession(userID, "go", baseTime.Add(time.Second)))
		if !errors.Is(err, ErrOpenSessionExists) {
			t.Fatalf("expected ErrOpenSessionExists, got %v", err)
		}
		if err := store.CreateOpenSession(ctx, openSession(userID, "rust", baseTime)); err != nil {
			t.Fatalf("other skill should be allowed: %v", err)
		}

		open, err := store.ListOpenSessions(ctx, userID)
		if err != nil || len(open) != 2 {
			t.Fatalf("expected 2 open sessions, got %d (%v)", len(open), err)
		}
	})
}

func TestStore_ConcurrentCreateOnlyOneOpen(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contractStore) {
		ctx := context.Background()
		userID := uuid.New()

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ok  int
			dup int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := store.CreateOpenSession(ctx, openSession(userID, "go", baseTime))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrOpenSessionExists):
					dup++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}()
		}
		wg.Wait()

		if ok != 1 || dup != 15 {
			t.Fatalf("expected 1 created and 15 duplicates, got %d / %d", ok, dup)
		}
	})
}

func TestStore_CloseSessionAndRecord(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contractStore) {
		ctx := context.Background()
		userID := initUser(t, store)
		s := openSession(userID, "go", baseTime)
		store.CreateOpenSession(ctx, s)

		endedAt := baseTime.Add(25 * time.Minute)
		closed, rec, err := store.CloseSessionAndRecord(ctx, models.SessionClose{
			SessionID: s.ID, UserID: userID, EndedAt: endedAt, DurationMinutes: 25,
		}, addMinutes(25, endedAt))
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if closed.EndedAt == nil || !closed.EndedAt.Equal(endedAt) || *closed.DurationMinutes != 25 {
			t.Fatalf("unexpected closed session: %+v", closed)
		}
		if rec.TotalStudyMinutes != 25 {
			t.Fatalf("expected total 25, got %d", rec.TotalStudyMinutes)
		}

		if _, err := store.FindOpenSession(ctx, userID, "go"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected no open session after close, got %v", err)
		}

		// A closed session can't be closed again.
		_, _, err = store.CloseSessionAndRecord(ctx, models.SessionClose{
			SessionID: s.ID, UserID: userID, EndedAt: endedAt, DurationMinutes: 25,
		}, addMinutes(25, endedAt))
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound on second close, got %v", err)
		}

		stored, _ := store.GetBadgeRecord(ctx, userID)
		if stored.TotalStudyMinutes != 25 {
			t.Fatalf("expected total to stay 25, got %d", stored.TotalStudyMinutes)
		}

		if err := store.CreateOpenSession(ctx, openSession(userID, "go", endedAt)); err != nil {
			t.Fatalf("expected new session after close, got %v", err)
		}
	})
}

func TestStore_CloseRollsBackWhenBadgeStepFails(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contractStore) {
		ctx := context.Background()
		userID := initUser(t, store)
		s := openSession(userID, "go", baseTime)
		store.CreateOpenSession(ctx, s)

		boom := errors.New("boom")
		_, _, err := store.CloseSessionAndRecord(ctx, models.SessionClose{
			SessionID: s.ID, UserID: userID, EndedAt: baseTime.Add(time.Minute), DurationMinutes: 1,
		}, func(*models.BadgeRecord) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("expected apply error, got %v", err)
		}

		open, err := store.FindOpenSession(ctx, userID, "go")
		if err != nil || open.ID != s.ID {
			t.Fatalf("session must still be open after rollback, got %v / %v", open, err)
		}
	})
}

func TestStore_CloseWithoutBadgeRecord(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contractStore) {
		ctx := context.Background()
		userID := uuid.New()
		s := openSession(userID, "go", baseTime)
		store.CreateOpenSession(ctx, s)

		_, _, err := store.CloseSessionAndRecord(ctx, models.SessionClose{
			SessionID: s.ID, UserID: userID, EndedAt: baseTime.Add(time.Minute), DurationMinutes: 1,
		}, addMinutes(1, baseTime))
		if !errors.Is(err, ErrBadgeRecordMissing) {
			t.Fatalf("expected ErrBadgeRecordMissing, got %v", err)
		}

		if _, err := store.FindOpenSession(ctx, userID, "go"); err != nil {
			t.Fatalf("session must still be open, got %v", err)
		}
	})
}

func TestStore_SkillTotalsAndRecent(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contractStore) {
		ctx := context.Background()
		userID := initUser(t, store)

		at := baseTime
		for _, entry := range []struct {
			skill   string
			minutes int
		}{{"go", 10}, {"rust", 40}, {"go", 35}, {"css", 40}} {
			s := openSession(userID, entry.skill, at)
			if err := store.CreateOpenSession(ctx, s); err != nil {
				t.Fatalf("create failed: %v", err)
			}
			at = at.Add(time.Duration(entry.minutes) * time.Minute)
			if _, _, err := store.CloseSessionAndRecord(ctx, models.SessionClose{
				SessionID: s.ID, UserID: userID, EndedAt: at, DurationMinutes: entry.minutes,
			}, addMinutes(entry.minutes, at)); err != nil {
				t.Fatalf("close failed: %v", err)
			}
		}
		store.CreateOpenSession(ctx, openSession(userID, "open-only", at))

		totals, err := store.ListSkillTotals(ctx, userID)
		if err != nil {
			t.Fatalf("totals failed: %v", err)
		}
		want := []models.SkillTotal{{SkillID: "go", TotalMinutes: 45}, {SkillID: "css", TotalMinutes: 40}, {SkillID: "rust", TotalMinutes: 40}}
		if len(totals) != len(want) {
			t.Fatalf("expected %d totals, got %+v", len(want), totals)
		}
		for i := range want {
			if totals[i] != want[i] {
				t.Fatalf("position %d: expected %+v, got %+v", i, want[i], totals[i])
			}
		}

		recent, err := store.ListRecentSessions(ctx, userID, 2)
		if err != nil {
			t.Fatalf("recent failed: %v", err)
		}
		if len(recent) != 2 || recent[0].SkillID != "css" || recent[1].SkillID != "go" {
			t.Fatalf("unexpected recent sessions: %+v", recent)
		}
	})
}

func TestStore_BadgeRecords(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contractStore) {
		ctx := context.Background()
		userID := initUser(t, store)

		created, err := store.InitBadgeRecord(ctx, &models.BadgeRecord{UserID: userID, CurrentBadge: "Member", BadgeUpdatedAt: baseTime})
		if err != nil || created {
			t.Fatalf("expected duplicate init to be ignored, got %v / %v", created, err)
		}

		rec, err := store.UpdateBadgeRecord(ctx, userID, addMinutes(90, baseTime.Add(time.Hour)))
		if err != nil {
			t.Fatalf("update failed: %v", err)
		}
		if rec.TotalStudyMinutes != 90 {
			t.Fatalf("expected 90, got %d", rec.TotalStudyMinutes)
		}

		stored, err := store.GetBadgeRecord(ctx, userID)
		if err != nil {
			t.Fatalf("get failed: %v", err)
		}
		if stored.TotalStudyMinutes != 90 || !stored.BadgeUpdatedAt.Equal(baseTime.Add(time.Hour)) {
			t.Fatalf("unexpected stored record: %+v", stored)
		}

		if _, err := store.GetBadgeRecord(ctx, uuid.New()); !errors.Is(err, ErrBadgeRecordMissing) {
			t.Fatalf("expected ErrBadgeRecordMissing, got %v", err)
		}
		if _, err := store.UpdateBadgeRecord(ctx, uuid.New(), addMinutes(1, baseTime)); !errors.Is(err, ErrBadgeRecordMissing) {
			t.Fatalf("expected ErrBadgeRecordMissing, got %v", err)
		}
	})
}

func TestStore_BadgeAudits(t *testing.T) {
	forEachStore(t, func(t *testing.T, store contractStore) {
		ctx := context.Background()
		userID := initUser(t, store)
		idle := initUser(t, store)

		s := openSession(userID, "go", baseTime)
		store.CreateOpenSession(ctx, s)
		store.CloseSessionAndRecord(ctx, models.SessionClose{
			SessionID: s.ID, UserID: userID, EndedAt: baseTime.Add(12 * time.Minute), DurationMinutes: 12,
		}, addMinutes(12, baseTime))

		audits, err := store.ListBadgeAudits(ctx)
		if err != nil {
			t.Fatalf("audits failed: %v", err)
		}

		byUser := make(map[uuid.UUID]models.BadgeAudit)
		for _, a := range audits {
			byUser[a.UserID] = a
		}
		if a := byUser[userID]; a.SessionMinutes != 12 || a.TotalStudyMinutes != 12 {
			t.Fatalf("unexpected audit for active user: %+v", a)
		}
		if a, ok := byUser[idle]; !ok || a.SessionMinutes != 0 {
			t.Fatalf("expected idle user with 0 session minutes, got %+v (present=%v)", a, ok)
		}
	})
}
