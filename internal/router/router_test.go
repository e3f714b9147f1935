package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"skilltrack-backend/internal/badges"
	"skilltrack-backend/internal/handlers"
	"skilltrack-backend/internal/middleware"
	"skilltrack-backend/internal/repository"
	"skilltrack-backend/internal/services"
)

func newTestRouter(t *testing.T, startLimit int) (http.Handler, *middleware.JWTAuth) {
	t.Helper()
	store := repository.NewMemoryStore()
	badgeService := services.NewBadgeService(store, badges.Default(), nil, nil)
	timerService := services.NewTimerService(store, badgeService, nil, nil)

	jwtAuth := middleware.NewJWTAuth("router-test-secret")
	limiter := middleware.NewRateLimiter(startLimit, time.Minute)
	t.Cleanup(limiter.Close)

	return New(Deps{
		JWTAuth:             jwtAuth,
		StudySessionHandler: handlers.NewStudySessionHandler(timerService, badgeService),
		BadgeHandler:        handlers.NewBadgeHandler(badgeService),
		StartLimiter:        limiter,
		FrontendURL:         "http://localhost:5173",
	}), jwtAuth
}

func authed(t *testing.T, jwtAuth *middleware.JWTAuth, method, path, body string, userID uuid.UUID) *http.Request {
	t.Helper()
	token, err := jwtAuth.GenerateAccessToken(userID, time.Minute)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestRouter_PublicRoutes(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	for _, path := range []string{"/health", "/api/v1/badges/tiers"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("%s: expected 200, got %d", path, rr.Code)
		}
		if rr.Header().Get(middleware.RequestIDHeader) == "" {
			t.Errorf("%s: expected a request id header", path)
		}
	}
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/v1/study-sessions/start"},
		{http.MethodPost, "/api/v1/study-sessions/stop"},
		{http.MethodPost, "/api/v1/study-sessions/stop-all"},
		{http.MethodGet, "/api/v1/study-sessions/active"},
		{http.MethodGet, "/api/v1/study-sessions/history"},
		{http.MethodGet, "/api/v1/badges/status"},
		{http.MethodPost, "/api/v1/badges/minutes"},
		{http.MethodPost, "/api/v1/badges/init"},
	}

	for _, route := range routes {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(route.method, route.path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.path, rr.Code)
		}
	}
}

func TestRouter_StudyFlow(t *testing.T) {
	r, jwtAuth := newTestRouter(t, 10)
	userID := uuid.New()

	steps := []struct {
		method, path, body string
		want               int
	}{
		{http.MethodPost, "/api/v1/badges/init", "", http.StatusCreated},
		{http.MethodPost, "/api/v1/study-sessions/start", `{"skill_id":"go"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/study-sessions/start", `{"skill_id":"go"}`, http.StatusConflict},
		{http.MethodGet, "/api/v1/study-sessions/active?skill_id=go", "", http.StatusOK},
		{http.MethodPost, "/api/v1/study-sessions/stop", `{"skill_id":"go"}`, http.StatusOK},
		{http.MethodPost, "/api/v1/study-sessions/stop", `{"skill_id":"go"}`, http.StatusNotFound},
		{http.MethodPost, "/api/v1/study-sessions/start", `{"skill_id":"sql"}`, http.StatusCreated},
		{http.MethodPost, "/api/v1/study-sessions/stop-all", "", http.StatusOK},
		{http.MethodGet, "/api/v1/badges/status", "", http.StatusOK},
		{http.MethodGet, "/api/v1/study-sessions/history", "", http.StatusOK},
	}

	for _, step := range steps {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, authed(t, jwtAuth, step.method, step.path, step.body, userID))
		if rr.Code != step.want {
			t.Fatalf("%s %s: expected %d, got %d: %s", step.method, step.path, step.want, rr.Code, rr.Body.String())
		}
	}
}

func TestRouter_StartIsRateLimited(t *testing.T) {
	r, jwtAuth := newTestRouter(t, 1)
	userID := uuid.New()

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, authed(t, jwtAuth, http.MethodPost, "/api/v1/study-sessions/start", `{"skill_id":"go"}`, userID))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, authed(t, jwtAuth, http.MethodPost, "/api/v1/study-sessions/start", `{"skill_id":"sql"}`, userID))
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
}

func TestRouter_WebSocketDisabledWithoutHub(t *testing.T) {
	r, _ := newTestRouter(t, 10)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}
