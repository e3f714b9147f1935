package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"skilltrack-backend/internal/handlers"
	"skilltrack-backend/internal/middleware"
	"skilltrack-backend/internal/websocket"
)

type Deps struct {
	JWTAuth             *middleware.JWTAuth
	StudySessionHandler *handlers.StudySessionHandler
	BadgeHandler        *handlers.BadgeHandler
	// WSHub is nil when Redis is not configured.
	WSHub        *websocket.Hub
	StartLimiter *middleware.RateLimiter
	FrontendURL  string
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(d.FrontendURL))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Study Session Routes ────
		r.Route("/study-sessions", func(r chi.Router) {
			r.Use(d.JWTAuth.Middleware)
			r.With(d.StartLimiter.Middleware).Post("/start", d.StudySessionHandler.Start)
			r.Post("/stop", d.StudySessionHandler.Stop)
			r.Post("/stop-all", d.StudySessionHandler.StopAll)
			r.Post("/{id}/stop", d.StudySessionHandler.StopByID)
			r.Get("/active", d.StudySessionHandler.Active)
			r.Get("/history", d.StudySessionHandler.History)
		})

		// ──── Badge Routes ────
		r.Route("/badges", func(r chi.Router) {
			r.Get("/tiers", d.BadgeHandler.Tiers) // Public

			r.Group(func(r chi.Router) {
				r.Use(d.JWTAuth.Middleware)
				r.Get("/status", d.BadgeHandler.Status)
				r.Post("/minutes", d.BadgeHandler.RecordMinutes)
				r.Post("/init", d.BadgeHandler.Init)
			})
		})

		// ──── WebSocket ────
		if d.WSHub != nil {
			r.Get("/ws", d.WSHub.HandleWebSocket)
		} else {
			r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "Live updates are not enabled", http.StatusServiceUnavailable)
			})
		}
	})

	return r
}
