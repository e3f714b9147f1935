package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"skilltrack-backend/internal/middleware"
	"skilltrack-backend/internal/models"
)

type studyTimer interface {
	Start(ctx context.Context, userID uuid.UUID, skillID string) (*models.StudySession, error)
	End(ctx context.Context, userID uuid.UUID, skillID string) (*models.StudySession, *models.BadgeRecord, error)
	EndByID(ctx context.Context, userID, sessionID uuid.UUID) (*models.StudySession, *models.BadgeRecord, error)
	EndAll(ctx context.Context, userID uuid.UUID) ([]*models.StudySession, *models.BadgeRecord, error)
	ActiveSession(ctx context.Context, userID uuid.UUID, skillID string) (*models.ActiveSession, error)
	ActiveSessions(ctx context.Context, userID uuid.UUID) ([]*models.ActiveSession, error)
	RecentSessions(ctx context.Context, userID uuid.UUID, limit int) ([]*models.StudySession, error)
}

type progressReader interface {
	Project(totalMinutes int) models.BadgeStatus
	SkillBreakdown(ctx context.Context, userID uuid.UUID) ([]models.SkillTotal, error)
}

type StudySessionHandler struct {
	timer    studyTimer
	progress progressReader
}

func NewStudySessionHandler(timer studyTimer, progress progressReader) *StudySessionHandler {
	return &StudySessionHandler{timer: timer, progress: progress}
}

func (h *StudySessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.StartSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, err := h.timer.Start(r.Context(), userID, req.SkillID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"session": session,
	})
}

// Stop ends the open session for the skill named in the body.
func (h *StudySessionHandler) Stop(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req models.StopSessionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, rec, err := h.timer.End(r.Context(), userID, req.SkillID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeStopped(w, session, rec)
}

// StopByID ends a session addressed by its id.
func (h *StudySessionHandler) StopByID(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	sessionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid session ID", r))
		return
	}

	session, rec, err := h.timer.EndByID(r.Context(), userID, sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.writeStopped(w, session, rec)
}

// StopAll ends every open session of the caller. The identity service calls it on logout.
func (h *StudySessionHandler) StopAll(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessions, rec, err := h.timer.EndAll(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := map[string]interface{}{
		"sessions": sessions,
		"badge":    nil,
	}
	if rec != nil {
		resp["badge"] = h.progress.Project(rec.TotalStudyMinutes)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *StudySessionHandler) writeStopped(w http.ResponseWriter, session *models.StudySession, rec *models.BadgeRecord) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session": session,
		"badge":   h.progress.Project(rec.TotalStudyMinutes),
	})
}

// Active returns the open session for ?skill_id=, or every open session when it is omitted.
func (h *StudySessionHandler) Active(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	skillID := r.URL.Query().Get("skill_id")
	if skillID == "" {
		sessions, err := h.timer.ActiveSessions(r.Context(), userID)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
		return
	}

	active, err := h.timer.ActiveSession(r.Context(), userID, skillID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if active == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"session": nil})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session":         active.Session,
		"elapsed_seconds": active.ElapsedSeconds,
	})
}

// History returns per-skill totals and the most recent closed sessions.
func (h *StudySessionHandler) History(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil {
			limit = parsed
		}
	}

	skills, err := h.progress.SkillBreakdown(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	recent, err := h.timer.RecentSessions(r.Context(), userID, limit)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"skills": skills,
		"recent": recent,
	})
}
