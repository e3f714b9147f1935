package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"skilltrack-backend/internal/models"
)

func TestBadge_InitializeUserIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	created, err := f.badges.InitializeUser(ctx, userID)
	if err != nil || !created {
		t.Fatalf("expected record to be created, got %v / %v", created, err)
	}

	if _, err := f.badges.RecordMinutes(ctx, userID, 10); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	created, err = f.badges.InitializeUser(ctx, userID)
	if err != nil || created {
		t.Fatalf("expected second init to be a no-op, got %v / %v", created, err)
	}

	rec, _ := f.store.GetBadgeRecord(ctx, userID)
	if rec.TotalStudyMinutes != 10 {
		t.Fatalf("re-initialization must not reset the total, got %d", rec.TotalStudyMinutes)
	}
}

func TestBadge_RecordMinutesBoundary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.registeredUser(t)

	rec, err := f.badges.RecordMinutes(ctx, userID, 59)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if rec.CurrentBadge != "Member" {
		t.Fatalf("expected Member at 59, got %q", rec.CurrentBadge)
	}

	f.clock.Advance(time.Hour)
	rec, err = f.badges.RecordMinutes(ctx, userID, 1)
	if err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if rec.CurrentBadge != "Entry" {
		t.Fatalf("expected Entry at 60, got %q", rec.CurrentBadge)
	}
	if !rec.BadgeUpdatedAt.Equal(f.clock.Now()) {
		t.Fatalf("expected badge_updated_at %v, got %v", f.clock.Now(), rec.BadgeUpdatedAt)
	}
}

func TestBadge_RecordMinutesRejectsNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.registeredUser(t)

	_, err := f.badges.RecordMinutes(ctx, userID, -1)
	var invalid *InvalidDurationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDurationError, got %v", err)
	}

	rec, _ := f.store.GetBadgeRecord(ctx, userID)
	if rec.TotalStudyMinutes != 0 {
		t.Fatalf("expected untouched total, got %d", rec.TotalStudyMinutes)
	}
}

func TestBadge_RecordStepAbortsOnNegative(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.registeredUser(t)

	var previous string
	_, err := f.store.UpdateBadgeRecord(ctx, userID, f.badges.recordStep(-5, f.clock.Now(), &previous))
	var invalid *InvalidDurationError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidDurationError from record step, got %v", err)
	}
}

func TestBadge_RecordMinutesUninitializedUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.badges.RecordMinutes(context.Background(), uuid.New(), 5)
	var notInit *UserNotInitializedError
	if !errors.As(err, &notInit) {
		t.Fatalf("expected UserNotInitializedError, got %v", err)
	}
}

func TestBadge_StatusMidTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.registeredUser(t)

	if _, err := f.badges.RecordMinutes(ctx, userID, 150); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	status, err := f.badges.Status(ctx, userID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}

	want := models.BadgeStatus{
		TotalMinutes:       150,
		TotalHours:         2.5,
		CurrentBadge:       "Entry",
		NextBadge:          "Beginner",
		MinutesToNextBadge: 150,
		ProgressPercent:    38,
	}
	if *status != want {
		t.Fatalf("unexpected status:\n got  %+v\n want %+v", *status, want)
	}
}

func TestBadge_StatusMaxTier(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.registeredUser(t)

	f.badges.RecordMinutes(ctx, userID, 50_000)

	status, err := f.badges.Status(ctx, userID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.CurrentBadge != "Beginner" || !status.MaxTierReached {
		t.Fatalf("expected max tier Beginner, got %+v", status)
	}
	if status.MinutesToNextBadge != 0 || status.ProgressPercent != 100 {
		t.Fatalf("expected 0 minutes / 100%%, got %d / %d", status.MinutesToNextBadge, status.ProgressPercent)
	}
	if status.TotalHours != 833.3 {
		t.Fatalf("expected 833.3 hours, got %v", status.TotalHours)
	}
}

func TestBadge_StatusUninitializedUserIsZero(t *testing.T) {
	f := newFixture(t)

	status, err := f.badges.Status(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if status.TotalMinutes != 0 || status.CurrentBadge != "Member" || status.NextBadge != "Entry" || status.MinutesToNextBadge != 60 {
		t.Fatalf("unexpected zero projection: %+v", status)
	}
}

func TestBadge_SkillBreakdownOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := f.registeredUser(t)

	study := func(skill string, d time.Duration) {
		if _, err := f.timer.Start(ctx, userID, skill); err != nil {
			t.Fatalf("start %s failed: %v", skill, err)
		}
		f.clock.Advance(d)
		if _, _, err := f.timer.End(ctx, userID, skill); err != nil {
			t.Fatalf("end %s failed: %v", skill, err)
		}
	}

	study("go", 10*time.Minute)
	study("rust", 25*time.Minute)
	study("go", 20*time.Minute)
	study("sql", 5*time.Minute)

	totals, err := f.badges.SkillBreakdown(ctx, userID)
	if err != nil {
		t.Fatalf("breakdown failed: %v", err)
	}

	want := []models.SkillTotal{
		{SkillID: "go", TotalMinutes: 30},
		{SkillID: "rust", TotalMinutes: 25},
		{SkillID: "sql", TotalMinutes: 5},
	}
	if len(totals) != len(want) {
		t.Fatalf("expected %d skills, got %d", len(want), len(totals))
	}
	for i := range want {
		if totals[i] != want[i] {
			t.Fatalf("position %d: expected %+v, got %+v", i, want[i], totals[i])
		}
	}
}
