// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/pinball19/bus-app/internal/database"
	"github.com/pinball19/bus-app/internal/handler"
	"github.com/pinball19/bus-app/internal/logger"
	"github.com/pinball19/bus-app/internal/repository"
	"github.com/pinball19/bus-app/internal/service"
)

// defaultRoster matches the fleet the calendar was built for: two
// microbuses, a small, a medium and a large coach. Override with the
// FLEET_BUSES env var (comma-separated, order defines the grid rows).
const defaultRoster = "micro-1,micro-2,small-1,medium-1,large-1"

func main() {
	ctx := context.Background()

	log, err := logger.New(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, log)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()
	log.Info("connected to postgres")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	roster := parseRoster(getEnv("FLEET_BUSES", defaultRoster))
	repo := repository.NewScheduleRepository(pool)
	svc := service.NewScheduleService(repo, roster, log)
	scheduleHandler := handler.NewScheduleHandler(svc, log)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer)  // recover from panics, return 500
	r.Use(chimiddleware.RequestID)  // attach request IDs
	r.Use(chimiddleware.RealIP)     // trust X-Forwarded-For
	r.Use(handler.Logger(log))      // structured access log
	r.Use(handler.CORS)             // permissive CORS for the browser UI

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/grid", scheduleHandler.GetGrid)
		r.Post("/reconcile", scheduleHandler.Reconcile)
		r.Route("/schedules", func(r chi.Router) {
			r.Get("/", scheduleHandler.ListSchedules)
			r.Post("/", scheduleHandler.CreateSchedule)
			r.Get("/export", scheduleHandler.ExportCSV)
			r.Put("/{id}", scheduleHandler.UpdateSchedule)
			r.Delete("/{id}", scheduleHandler.DeleteSchedule)
		})
	})

	// Static HTML – serve the web/ directory at the root.
	webFS := http.Dir("./web")
	r.Handle("/*", http.FileServer(webFS))

	// ── 4. Start server with graceful shutdown ────────────────────────────
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Info("server listening", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("graceful shutdown failed", zap.Error(err))
	}
	log.Info("server stopped")
}

func parseRoster(s string) []string {
	var roster []string
	for _, name := range strings.Split(s, ",") {
		if name = strings.TrimSpace(name); name != "" {
			roster = append(roster, name)
		}
	}
	return roster
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
