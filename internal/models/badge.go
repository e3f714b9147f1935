package models

import (
	"time"

	"github.com/google/uuid"
)

type BadgeRecord struct {
	UserID            uuid.UUID `json:"user_id" db:"user_id"`
	TotalStudyMinutes int       `json:"total_study_minutes" db:"total_study_minutes"`
	CurrentBadge      string    `json:"current_badge" db:"current_badge"`
	BadgeUpdatedAt    time.Time `json:"badge_updated_at" db:"badge_updated_at"`
}

// BadgeAudit compares a stored record with the minutes its closed sessions add up to.
type BadgeAudit struct {
	UserID            uuid.UUID `db:"user_id"`
	TotalStudyMinutes int       `db:"total_study_minutes"`
	CurrentBadge      string    `db:"current_badge"`
	SessionMinutes    int       `db:"session_minutes"`
}

type BadgeStatus struct {
	TotalMinutes       int     `json:"total_minutes"`
	TotalHours         float64 `json:"total_hours"`
	CurrentBadge       string  `json:"current_badge"`
	NextBadge          string  `json:"next_badge"`
	MinutesToNextBadge int     `json:"minutes_to_next_badge"`
	ProgressPercent    int     `json:"progress_percent"`
	MaxTierReached     bool    `json:"max_tier_reached"`
}

type RecordMinutesRequest struct {
	Minutes int `json:"minutes" validate:"gte=0,lte=1440"`
}
