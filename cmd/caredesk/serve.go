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
	"github.com/ehr/caredesk/internal/dashboard"
	"github.com/ehr/caredesk/internal/orchestrator"
	"github.com/ehr/caredesk/internal/platform/gateway"
	"github.com/ehr/caredesk/internal/platform/middleware"
	"github.com/ehr/caredesk/internal/platform/telemetry"
	"github.com/ehr/caredesk/internal/platform/websocket"
	"github.com/ehr/caredesk/internal/state"
)

const version = "0.1.0"

// app is the wired dashboard service.
type app struct {
	echo  *echo.Echo
	orch  *orchestrator.Orchestrator
	store *state.Store
	tp    *telemetry.TelemetryProvider
	hub   *websocket.Hub
}

// newApp wires the store, orchestrator, and HTTP surface. ctx bounds every
// operation started through the API and the snapshot stream.
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	tp, err := telemetry.NewTelemetryProvider(telemetry.TelemetryConfig{
		ServiceName:    "caredesk",
		ServiceVersion: version,
		Environment:    cfg.Env,
		TraceExporter:  cfg.TraceExporter,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	gw := gateway.New(cfg.APIURL,
		gateway.WithTimeout(cfg.RequestTimeout),
		gateway.WithLogger(logger),
		gateway.WithRecorder(tp),
		gateway.WithTracer(tp.Tracer("caredesk/gateway")),
	)

	eventLog := logger.With().Str("component", "store").Logger()
	store := state.NewStore(state.WithObserver(func(t state.Transition) {
		tp.ObserveEvent(t.Event.Kind(), t.Applied)
		tp.SetDoctorsCached(len(t.Next.DoctorsByID))
		eventLog.Debug().
			Str("event", t.Event.Kind()).
			Bool("applied", t.Applied).
			Uint64("version", t.Next.Version).
			Msg("event dispatched")
	}))

	orch := orchestrator.New(store, gw,
		orchestrator.WithLogger(logger),
		orchestrator.WithTracker(tp),
		orchestrator.WithMaxParallel(cfg.MaxParallelFetches),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, middleware.RequestIDHeader},
	}))
	e.Use(tp.MetricsMiddleware())
	e.Use(tp.TracingMiddleware())

	dash := dashboard.NewHandler(ctx, orch)
	dash.RegisterRoutes(e.Group("/api"))

	hub := websocket.NewHub(logger)
	websocket.NewWebSocketHandler(ctx, hub, dash.Command).RegisterRoutes(e.Group(""))

	e.GET("/metrics", tp.PrometheusHandler())
	e.GET("/health", func(c echo.Context) error {
		snap := store.Snapshot()
		return c.JSON(http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"version":  snap.Version,
			"patients": snap.PatientsMeta.Status,
			"clients":  hub.ClientCount(),
		})
	})

	return &app{echo: e, orch: orch, store: store, tp: tp, hub: hub}, nil
}

// close waits for in-flight operations and releases the store and telemetry.
func (a *app) close(ctx context.Context) error {
	a.orch.Wait()
	a.store.Close()
	return a.tp.Shutdown(ctx)
}

func runServe(cfg *config.Config, logger zerolog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	go dashboard.Stream(ctx, a.store, a.hub, logger)
	a.orch.Ensure(ctx)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("api_url", cfg.APIURL).Msg("starting dashboard server")
		if err := a.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
	}
	cancel()
	if err := a.close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("telemetry shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}
