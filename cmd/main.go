// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"slotcal/internal/database"
	"slotcal/internal/gateway"
	"slotcal/internal/handler"
	"slotcal/internal/policy"
	"slotcal/internal/repository"
	"slotcal/internal/service"
)

func main() {
	_ = godotenv.Load()
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	if err := database.ApplySchema(ctx, pool, getEnv("SCHEMA_FILE", "db/schema.sql")); err != nil {
		log.Fatalf("schema: %v", err)
	}
	log.Println("connected to postgres")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	limits, err := policy.Parse(os.Getenv("SLOTCAL_TIER_LIMITS"))
	if err != nil {
		log.Fatalf("tier limits: %v", err)
	}

	subRepo := repository.NewSubscriberRepository(pool)
	calRepo := repository.NewCalendarRepository(pool)
	apptRepo := repository.NewAppointmentRepository(pool)
	gw := gateway.NewClient(logger, remoteTimeout())
	svc := service.New(subRepo, calRepo, apptRepo, gw, limits, logger)
	h := handler.New(svc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(handler.AccessLog(logger))

	r.Get("/health", handler.HealthCheck)

	// Authenticated owner surface.
	r.Group(func(r chi.Router) {
		r.Use(handler.Identity(svc))

		r.Get("/me", h.Me)
		r.Put("/me", h.UpdateMe)
		r.Get("/me/calendars", h.ListMyCalendars)

		r.Route("/calendars", func(r chi.Router) {
			r.Post("/", h.CreateCalendar)
			r.Get("/{id}", h.GetCalendar)
			r.Put("/{id}", h.UpdateCalendar)
			r.Delete("/{id}", h.DeleteCalendar)
			r.Get("/{id}/discover", h.DiscoverRemoteCalendars)
			r.Get("/{id}/events", h.ListRemoteEvents)
			r.Post("/{id}/events", h.CreateRemoteEvent)
			r.Delete("/{id}/events", h.DeleteRemoteEvents)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.Post("/", h.CreateAppointment)
			r.Get("/{id}", h.GetAppointment)
			r.Put("/{id}", h.UpdateAppointment)
			r.Delete("/{id}", h.DeleteAppointment)
		})
	})

	// Public (anonymous) surface.
	r.Route("/p/{handle}/{slug}", func(r chi.Router) {
		r.Get("/", h.PublicAppointment)
		r.Post("/slots/{slotID}/claim", h.ClaimSlot)
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	port := getEnv("PORT", "8080")
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on :%s", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}

func remoteTimeout() time.Duration {
	if v := os.Getenv("REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
		log.Printf("ignoring invalid REMOTE_TIMEOUT %q", v)
	}
	return 15 * time.Second
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
