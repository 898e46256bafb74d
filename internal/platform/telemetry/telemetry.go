// Package telemetry provides metrics and tracing for caredesk: Prometheus
// collectors for gateway calls, state transitions and HTTP traffic, and an
// OpenTelemetry tracer provider for gateway request spans.
package telemetry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// TelemetryConfig holds all configuration for the telemetry provider.
type TelemetryConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	Namespace      string    // Prometheus namespace (default "caredesk")
	MetricsEnabled *bool     // nil = use default (true)
	TraceExporter  string    // "none" or "stdout"
	TraceOutput    io.Writer // stdout exporter destination (default os.Stdout)
	SampleRate     float64   // 0.0 to 1.0
}

// metricsOn returns whether metrics are enabled (defaults to true).
func (c *TelemetryConfig) metricsOn() bool {
	if c.MetricsEnabled == nil {
		return true
	}
	return *c.MetricsEnabled
}

func (c *TelemetryConfig) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "caredesk"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "0.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Namespace == "" {
		c.Namespace = "caredesk"
	}
	if c.TraceExporter == "" {
		c.TraceExporter = "none"
	}
	if c.TraceOutput == nil {
		c.TraceOutput = os.Stdout
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
}

// BoolPtr is a helper to create a *bool for TelemetryConfig fields.
func BoolPtr(b bool) *bool {
	return &b
}

// ---------------------------------------------------------------------------
// TelemetryProvider
// ---------------------------------------------------------------------------

// TelemetryProvider owns the Prometheus registry and the tracer provider.
// A provider with metrics disabled still works; every recorder is a no-op.
type TelemetryProvider struct {
	cfg      TelemetryConfig
	registry *prometheus.Registry
	tp       *sdktrace.TracerProvider

	gatewayRequests *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	transitions     *prometheus.CounterVec
	doctorsCached   prometheus.Gauge
	inflight        prometheus.Gauge
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
}

// NewTelemetryProvider builds collectors and the tracer provider.
func NewTelemetryProvider(cfg TelemetryConfig) (*TelemetryProvider, error) {
	cfg.applyDefaults()

	tp, err := newTracerProvider(cfg)
	if err != nil {
		return nil, err
	}
	p := &TelemetryProvider{cfg: cfg, tp: tp}
	if !cfg.metricsOn() {
		return p, nil
	}

	ns := cfg.Namespace
	p.registry = prometheus.NewRegistry()
	p.gatewayRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "gateway_requests_total",
		Help:      "Calls made to the care API, by operation and outcome.",
	}, []string{"operation", "outcome"})
	p.gatewayDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "gateway_request_duration_seconds",
		Help:      "Latency of calls made to the care API.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	p.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "state_events_total",
		Help:      "Events dispatched to the state store, by kind and whether they applied.",
	}, []string{"kind", "applied"})
	p.doctorsCached = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "doctors_cached",
		Help:      "Entries in the doctor cross-reference cache.",
	})
	p.inflight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "operations_inflight",
		Help:      "Orchestrator operations that have not settled.",
	})
	p.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by method, route and status.",
	}, []string{"method", "route", "status"})
	p.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "http_request_duration_seconds",
		Help:      "Latency of HTTP requests served.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	p.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "http_active_requests",
		Help:      "HTTP requests currently being served.",
	})

	p.registry.MustRegister(
		p.gatewayRequests, p.gatewayDuration, p.transitions, p.doctorsCached,
		p.inflight, p.httpRequests, p.httpDuration, p.activeRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p, nil
}

func newTracerProvider(cfg TelemetryConfig) (*sdktrace.TracerProvider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.Environment),
	)
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRate))),
	}

	switch cfg.TraceExporter {
	case "none":
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cfg.TraceOutput))
		if err != nil {
			return nil, fmt.Errorf("create stdout trace exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exp))
	default:
		return nil, fmt.Errorf("unsupported trace exporter %q", cfg.TraceExporter)
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// Tracer returns a named tracer backed by the provider.
func (p *TelemetryProvider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// Registry exposes the Prometheus registry, nil when metrics are disabled.
func (p *TelemetryProvider) Registry() *prometheus.Registry {
	return p.registry
}

// Shutdown flushes pending spans.
func (p *TelemetryProvider) Shutdown(ctx context.Context) error {
	return p.tp.Shutdown(ctx)
}

// ---------------------------------------------------------------------------
// Recorders
// ---------------------------------------------------------------------------

// ObserveGatewayRequest records one care API call.
func (p *TelemetryProvider) ObserveGatewayRequest(operation string, err error, d time.Duration) {
	if p.registry == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.gatewayRequests.WithLabelValues(operation, outcome).Inc()
	p.gatewayDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ObserveEvent records one dispatched state event.
func (p *TelemetryProvider) ObserveEvent(kind string, applied bool) {
	if p.registry == nil {
		return
	}
	p.transitions.WithLabelValues(kind, strconv.FormatBool(applied)).Inc()
}

// SetDoctorsCached reports the size of the doctor cache.
func (p *TelemetryProvider) SetDoctorsCached(n int) {
	if p.registry == nil {
		return
	}
	p.doctorsCached.Set(float64(n))
}

// OperationStarted and OperationSettled track in-flight orchestrator work.
func (p *TelemetryProvider) OperationStarted() {
	if p.registry == nil {
		return
	}
	p.inflight.Inc()
}

func (p *TelemetryProvider) OperationSettled() {
	if p.registry == nil {
		return
	}
	p.inflight.Dec()
}

// ---------------------------------------------------------------------------
// HTTP
// ---------------------------------------------------------------------------

// MetricsMiddleware returns an Echo middleware that records HTTP server metrics.
func (p *TelemetryProvider) MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if p.registry == nil {
				return next(c)
			}

			p.activeRequests.Inc()
			start := time.Now()
			err := next(c)
			p.activeRequests.Dec()

			route := c.Path()
			if route == "" {
				route = c.Request().URL.Path
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			method := c.Request().Method
			p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
			p.httpDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// TracingMiddleware starts a server span per request.
func (p *TelemetryProvider) TracingMiddleware() echo.MiddlewareFunc {
	tracer := p.Tracer("caredesk/http")
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			ctx, span := tracer.Start(req.Context(), "HTTP "+req.Method+" "+c.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", req.Method),
					attribute.String("http.route", c.Path()),
				))
			defer span.End()
			c.SetRequest(req.WithContext(ctx))

			err := next(c)
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			span.SetAttributes(attribute.Int("http.status_code", status))
			if status >= 500 {
				span.SetStatus(codes.Error, fmt.Sprintf("status %d", status))
			}
			return err
		}
	}
}

// PrometheusHandler serves metrics in Prometheus text exposition format.
func (p *TelemetryProvider) PrometheusHandler() echo.HandlerFunc {
	if p.registry == nil {
		return func(c echo.Context) error {
			return echo.NewHTTPError(http.StatusNotFound, "metrics disabled")
		}
	}
	return echo.WrapHandler(promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
}
