// Package main is the entry point for the visit tracker API server.
// Its sole responsibility is wiring dependencies together and starting the server.
// No business logic belongs here.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for goose
	"golang.org/x/time/rate"

	"github.com/pkordes/visit-tracker/internal/config"
	"github.com/pkordes/visit-tracker/internal/geo"
	"github.com/pkordes/visit-tracker/internal/handler"
	"github.com/pkordes/visit-tracker/internal/identity"
	"github.com/pkordes/visit-tracker/internal/middleware"
	"github.com/pkordes/visit-tracker/internal/repo"
	"github.com/pkordes/visit-tracker/internal/service"
	"github.com/pkordes/visit-tracker/migrations"
)

func main() {
	// --- Config -----------------------------------------------------------
	cfg, err := config.Load()
	if err != nil {
		// Use plain stderr before the logger is configured.
		slog.Error("configuration error", "error", err)
		os.Exit(1)
	}

	// --- Logger -----------------------------------------------------------
	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// --- Migrations -------------------------------------------------------
	if cfg.AutoMigrate {
		if err := migrate(context.Background(), cfg.DatabaseURL); err != nil {
			slog.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	// --- Database ---------------------------------------------------------
	// New() does not open connections immediately; the first query does.
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	slog.Info("database connection established")

	// --- Services ---------------------------------------------------------
	var miles geo.MileageCalculator = geo.GreatCircle{}
	if cfg.MapsAPIKey != "" {
		routed, err := geo.NewRouted(cfg.MapsAPIKey, logger)
		if err != nil {
			slog.Error("failed to create maps client", "error", err)
			os.Exit(1)
		}
		miles = routed
		slog.Info("routed mileage enabled")
	}

	legRepo := repo.NewLegRepo(pool)
	journeyRepo := repo.NewJourneyRepo(pool)
	apptRepo := repo.NewAppointmentRepo(pool)

	server := handler.NewServer(
		service.NewLegService(legRepo, journeyRepo, apptRepo, miles, logger),
		service.NewJourneyService(journeyRepo, legRepo),
		service.NewAppointmentService(apptRepo),
		logger,
	)
	sessions := identity.NewSessionCodec(cfg.SessionSecret, identity.DefaultSessionTTL)

	// --- Router -----------------------------------------------------------
	// Order matters: RealIP must precede the rate limiter, and the identity
	// handler must precede SlogLogger so request logs carry user_id.
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewCORSHandler(cfg.CORSOrigins))
	r.Use(middleware.NewRateLimitHandler(middleware.NewIPRateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)))
	r.Use(middleware.NewMaxBodySizeHandler(cfg.MaxBodyBytes))
	r.Use(middleware.NewIdentityHandler(sessions, cfg.SessionCookie, logger))
	r.Use(middleware.NewSlogLogger(logger))
	r.Use(chimiddleware.Recoverer)

	server.Mount(r)

	// --- HTTP Server ------------------------------------------------------
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second, // routed mileage calls an external API
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown: wait for OS signal, then give in-flight requests
	// up to 15 seconds to complete before forcefully closing.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-stop
	slog.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

// migrate applies pending migrations over a short-lived database/sql handle.
func migrate(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := migrations.Up(ctx, db)
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "count", n)
	return nil
}
