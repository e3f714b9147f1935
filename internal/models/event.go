package models

import "github.com/google/uuid"

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventBadgeUpgraded  = "badge_upgraded"
)

type BadgeUpgrade struct {
	UserID        uuid.UUID `json:"user_id"`
	PreviousBadge string    `json:"previous_badge"`
	CurrentBadge  string    `json:"current_badge"`
	TotalMinutes  int       `json:"total_minutes"`
}

// UserUpdatesChannel is the Redis pub/sub channel carrying one user's live events.
func UserUpdatesChannel(userID uuid.UUID) string {
	return "user_updates:" + userID.String()
}
