package models

import (
	"time"

	"github.com/google/uuid"
)

type StudySession struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	UserID          uuid.UUID  `json:"user_id" db:"user_id"`
	SkillID         string     `json:"skill_id" db:"skill_id"`
	StartedAt       time.Time  `json:"started_at" db:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DurationMinutes *int       `json:"duration_minutes,omitempty" db:"duration_minutes"`
}

func (s *StudySession) IsOpen() bool {
	return s.EndedAt == nil
}

// ActiveSession is an open session with elapsed time computed at read time.
type ActiveSession struct {
	Session        *StudySession `json:"session"`
	ElapsedSeconds int64         `json:"elapsed_seconds"`
}

// SessionClose carries the values written when an open session is ended.
type SessionClose struct {
	SessionID       uuid.UUID
	UserID          uuid.UUID
	EndedAt         time.Time
	DurationMinutes int
}

type SkillTotal struct {
	SkillID      string `json:"skill_id" db:"skill_id"`
	TotalMinutes int    `json:"total_minutes" db:"total_minutes"`
}

type StartSessionRequest struct {
	SkillID string `json:"skill_id" validate:"required,max=128"`
}

type StopSessionRequest struct {
	SkillID string `json:"skill_id" validate:"required,max=128"`
}
