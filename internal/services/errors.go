package services

import (
	"fmt"
)

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

// AlreadyActiveError: start was called while a session for the skill is still open.
type AlreadyActiveError struct {
	SkillID   string
	SessionID string
}

func (e *AlreadyActiveError) Error() string {
	return fmt.Sprintf("You already have an ongoing study session for skill %q.", e.SkillID)
}

// NoActiveSessionError: end was called with nothing open.
type NoActiveSessionError struct {
	SkillID string
}

func (e *NoActiveSessionError) Error() string {
	if e.SkillID == "" {
		return "No active study session found."
	}
	return fmt.Sprintf("No active study session found for skill %q.", e.SkillID)
}

// UserNotInitializedError means the registration collaborator never created the badge record.
type UserNotInitializedError struct {
	UserID string
}

func (e *UserNotInitializedError) Error() string {
	return fmt.Sprintf("badge record for user %s has not been initialized", e.UserID)
}

// InvalidDurationError guards the badge engine against negative deltas.
// Reaching it is an internal consistency violation, not a user error.
type InvalidDurationError struct {
	Minutes int
}

func (e *InvalidDurationError) Error() string {
	return fmt.Sprintf("invalid study duration: %d minutes", e.Minutes)
}
