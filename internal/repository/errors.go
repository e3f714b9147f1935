package repository

import (
	"errors"

	"skilltrack-backend/internal/models"
)

var (
	// ErrNotFound is returned when the requested row (or open session) does not exist.
	ErrNotFound = errors.New("not found")
	// ErrOpenSessionExists is returned when an open session already exists for the user and skill.
	ErrOpenSessionExists = errors.New("open session already exists")
	// ErrBadgeRecordMissing is returned when a user has no badge record yet.
	ErrBadgeRecordMissing = errors.New("badge record missing")
)

// ApplyFunc mutates a locked badge record inside a store transaction.
// Returning an error aborts the transaction.
type ApplyFunc func(rec *models.BadgeRecord) error
