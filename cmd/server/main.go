package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"skilltrack-backend/internal/badges"
	"skilltrack-backend/internal/config"
	"skilltrack-backend/internal/database"
	"skilltrack-backend/internal/handlers"
	"skilltrack-backend/internal/middleware"
	"skilltrack-backend/internal/router"
	"skilltrack-backend/internal/services"
	"skilltrack-backend/internal/websocket"
)

func main() {
	log.Println("🚀 Starting SkillTrack Backend...")

	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("✗ Invalid configuration: %v", err)
	}
	log.Println("✓ Environment variables loaded")

	// ──── Step 2: Open Session Store ────
	store, closeStore, err := openStore(context.Background(), cfg)
	if err != nil {
		log.Fatalf("✗ %v", err)
	}
	defer closeStore()

	// ──── Step 3: Initialize Redis Clients (optional) ────
	var (
		events services.Publisher = services.NopPublisher{}
		wsHub  *websocket.Hub
	)
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(cfg.RedisURL)
		if err != nil {
			log.Fatalf("✗ Redis connection failed: %v", err)
		}
		defer redisClients.Close()

		events = services.NewRedisPublisher(redisClients.Publish)
		wsHub = websocket.NewHub(redisClients.PubSub, jwtAuth, cfg.FrontendURL)
		defer wsHub.Close()
		log.Println("✓ Redis connected, WebSocket hub started")
	} else {
		log.Println("⚠ REDIS_URL not set; live updates disabled")
	}

	// ──── Step 4: Initialize Services ────
	table := badges.Default()
	badgeService := services.NewBadgeService(store, table, events, nil)
	timerService := services.NewTimerService(store, badgeService, events, nil)

	// ──── Step 5: Start Badge Reconciler ────
	reconciler := services.NewReconciler(store, table, time.Duration(cfg.ReconcileIntervalMinutes)*time.Minute, nil)
	if err := reconciler.Start(); err != nil {
		log.Fatalf("✗ Badge reconciler failed to start: %v", err)
	}

	// ──── Step 6: Start HTTP Server ────
	startLimiter := middleware.NewRateLimiter(cfg.StartRateLimitPerMin, time.Minute)
	defer startLimiter.Close()

	r := router.New(router.Deps{
		JWTAuth:             jwtAuth,
		StudySessionHandler: handlers.NewStudySessionHandler(timerService, badgeService),
		BadgeHandler:        handlers.NewBadgeHandler(badgeService),
		WSHub:               wsHub,
		StartLimiter:        startLimiter,
		FrontendURL:         cfg.FrontendURL,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		reconciler.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ SkillTrack Backend ready on http://localhost:%s (store: %s)", cfg.Port, cfg.StoreDriver)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	if wsHub != nil {
		log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)
	}

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
