package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"skilltrack-backend/internal/badges"
	"skilltrack-backend/internal/middleware"
	"skilltrack-backend/internal/models"
)

type badgeEngine interface {
	Table() *badges.Table
	InitializeUser(ctx context.Context, userID uuid.UUID) (bool, error)
	RecordMinutes(ctx context.Context, userID uuid.UUID, delta int) (*models.BadgeRecord, error)
	Status(ctx context.Context, userID uuid.UUID) (*models.BadgeStatus, error)
	Project(totalMinutes int) models.BadgeStatus
}

type BadgeHandler struct {
	badges badgeEngine
}

func NewBadgeHandler(engine badgeEngine) *BadgeHandler {
	return &BadgeHandler{badges: engine}
}

func (h *BadgeHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	status, err := h.badges.Status(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, status)
}

func (h *BadgeHandler) Tiers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tiers": h.badges.Table().Tiers()})
}

// RecordMinutes logs study done away from the timer.
func (h *BadgeHandler) RecordMinutes(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.RecordMinutesRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	rec, err := h.badges.RecordMinutes(r.Context(), userID, req.Minutes)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.badges.Project(rec.TotalStudyMinutes))
}

// Init creates the caller's badge record. Called by the registration flow; repeat
// calls leave the existing record alone.
func (h *BadgeHandler) Init(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	created, err := h.badges.InitializeUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]interface{}{"created": created})
}
