package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/relayloop/relayloop/internal/config"
	"github.com/relayloop/relayloop/internal/domain/department"
	"github.com/relayloop/relayloop/internal/domain/patient"
	"github.com/relayloop/relayloop/internal/domain/vitalsign"
	"github.com/relayloop/relayloop/internal/platform/apperr"
	"github.com/relayloop/relayloop/internal/platform/auth"
	"github.com/relayloop/relayloop/internal/platform/db"
	"github.com/relayloop/relayloop/internal/platform/jsonx"
	"github.com/relayloop/relayloop/internal/platform/live"
	"github.com/relayloop/relayloop/internal/platform/middleware"
	"github.com/relayloop/relayloop/internal/platform/validation"
)

func runServer() error {
	started := time.Now()

	// Config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Database
	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonx.Serializer{}
	e.Validator = validation.New()
	e.HTTPErrorHandler = apperr.Handler(logger)

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, cfg.APIPrefix+"/live"))

	api := e.Group(cfg.APIPrefix)

	// Auth middleware
	jwtCfg := jwtConfig(cfg)
	if cfg.ResolvedAuthMode() == "development" {
		logger.Warn().Msg("development auth enabled: unauthenticated requests run as admin")
		api.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		api.Use(auth.JWTMiddleware(jwtCfg))
	}

	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}))
	api.Use(middleware.Audit(logger, cfg.APIPrefix))
	auth.NewProfileHandler().RegisterRoutes(api)

	// Live feed
	hub := live.NewHub()
	var publisher live.Publisher = hub
	if cfg.RedisURL != "" {
		client, err := live.NewRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		defer client.Close()
		publisher = livePublisher(ctx, hub, client, logger, relayReadyTimeout)
	}

	// Domains
	v := validation.New()
	vitalRepo := vitalsign.NewRepoPG(pool)
	patientSvc := patient.NewService(
		patient.NewPatientRepoPG(pool),
		patient.NewMedicationRepoPG(pool),
		patient.NewNoteRepoPG(pool),
		vitalRepo,
		v,
	)
	vitalSvc := vitalsign.NewService(vitalRepo, patientSvc, v).WithEvents(publisher, logger)
	deptSvc := department.NewService()

	patient.NewHandler(patientSvc).RegisterRoutes(api)
	vitalsign.NewHandler(vitalSvc).RegisterRoutes(api)
	department.NewHandler(deptSvc).RegisterRoutes(api)
	live.NewHandler(hub, patientSvc, cfg.CORSOrigins, logger).RegisterRoutes(api)

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":      "ok",
			"message":     "RelayLoop API is running",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"version":     version,
			"environment": cfg.Env,
			"uptime":      uptime(started),
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, db.StatsFromPool(pool)))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("prefix", cfg.APIPrefix).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}

// relayReadyTimeout bounds how long startup waits for the redis
// subscription before serving the live feed from the local hub alone.
const relayReadyTimeout = 5 * time.Second

// livePublisher starts the redis relay and returns it once its
// subscription is confirmed. If the relay fails or is not ready within
// wait, events go straight to the local hub instead.
func livePublisher(ctx context.Context, hub *live.Hub, client *redis.Client, logger zerolog.Logger, wait time.Duration) live.Publisher {
	relay := live.NewRedisRelay(client, live.DefaultChannel, hub, logger)
	failed := make(chan error, 1)
	go func() {
		err := relay.Run(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("live relay stopped")
		}
		failed <- err
	}()

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-relay.Ready():
		logger.Info().Str("channel", live.DefaultChannel).Msg("live feed relayed through redis")
		return relay
	case err := <-failed:
		logger.Warn().Err(err).Msg("redis relay unavailable, live feed is local only")
	case <-timer.C:
		logger.Warn().Dur("waited", wait).Msg("redis relay not ready, live feed is local only")
	}
	return hub
}
