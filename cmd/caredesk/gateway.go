package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/ehr/caredesk/internal/config"
	"github.com/ehr/caredesk/internal/domain/directory"
	"github.com/ehr/caredesk/internal/platform/db"
	"github.com/ehr/caredesk/internal/platform/middleware"
)

// newGateway builds the reference care API. The returned func releases the
// database pool, if one was opened.
func newGateway(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*echo.Echo, func(), error) {
	var (
		repo   directory.Repository
		health db.Pinger
		closer = func() {}
	)

	switch cfg.GatewayStore {
	case "postgres":
		pool, err := db.NewPool(ctx, db.PoolConfig{
			URL:      cfg.DatabaseURL,
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		closer = pool.Close

		n, err := db.NewMigrator(pool, directory.Migrations()).Up(ctx)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		logger.Info().Int("applied", n).Msg("migrations applied")

		repo = directory.NewDirectoryRepoPG(pool)
		health = pool
	default:
		repo = directory.NewMemoryRepo()
		health = repo
	}

	svc := directory.NewService(repo, logger)
	seed := directory.DefaultSeedConfig()
	seed.Patients = cfg.SeedPatients
	seed.Doctors = cfg.SeedDoctors
	seed.Seed = cfg.Seed
	if _, err := svc.Seed(ctx, seed); err != nil {
		closer()
		return nil, nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORS())

	directory.NewHandler(svc, logger).RegisterRoutes(e.Group(""))
	e.GET("/health", db.HealthHandler(health))

	return e, closer, nil
}

func runGateway(cfg *config.Config, logger zerolog.Logger) error {
	e, closer, err := newGateway(context.Background(), cfg, logger)
	if err != nil {
		return err
	}
	defer closer()

	go func() {
		addr := ":" + cfg.GatewayPort
		logger.Info().Str("addr", addr).Str("store", cfg.GatewayStore).Msg("starting reference gateway")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gateway")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("gateway shutdown failed")
	}
	logger.Info().Msg("gateway stopped")
	return nil
}
