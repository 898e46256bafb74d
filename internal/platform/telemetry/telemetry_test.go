package telemetry

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func newTestProvider(t *testing.T) *TelemetryProvider {
	t.Helper()
	p, err := NewTelemetryProvider(TelemetryConfig{ServiceName: "caredesk-test"})
	if err != nil {
		t.Fatalf("NewTelemetryProvider: %v", err)
	}
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })
	return p
}

func scrape(t *testing.T, p *TelemetryProvider) string {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	if err := p.PrometheusHandler()(e.NewContext(req, rec)); err != nil {
		t.Fatalf("scrape: %v", err)
	}
	return rec.Body.String()
}

func TestProvider_RecordsDomainMetrics(t *testing.T) {
	p := newTestProvider(t)
	p.ObserveGatewayRequest("get_doctor", nil, 20*time.Millisecond)
	p.ObserveGatewayRequest("get_doctor", errors.New("boom"), time.Millisecond)
	p.ObserveEvent("detail_succeeded", false)
	p.SetDoctorsCached(3)
	p.OperationStarted()

	body := scrape(t, p)
	for _, want := range []string{
		`caredesk_gateway_requests_total{operation="get_doctor",outcome="ok"} 1`,
		`caredesk_gateway_requests_total{operation="get_doctor",outcome="error"} 1`,
		`caredesk_state_events_total{applied="false",kind="detail_succeeded"} 1`,
		`caredesk_doctors_cached 3`,
		`caredesk_operations_inflight 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestProvider_MetricsMiddleware(t *testing.T) {
	p := newTestProvider(t)
	e := echo.New()
	e.Use(p.MetricsMiddleware())
	e.GET("/api/state", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	body := scrape(t, p)
	want := `caredesk_http_requests_total{method="GET",route="/api/state",status="200"} 1`
	if !strings.Contains(body, want) {
		t.Errorf("expected %q in metrics output", want)
	}
}

func TestProvider_MetricsDisabled(t *testing.T) {
	p, err := NewTelemetryProvider(TelemetryConfig{MetricsEnabled: BoolPtr(false)})
	if err != nil {
		t.Fatalf("NewTelemetryProvider: %v", err)
	}
	p.ObserveGatewayRequest("list_patients", nil, time.Second)
	p.ObserveEvent("list_requested", true)
	p.SetDoctorsCached(1)
	p.OperationStarted()
	p.OperationSettled()
	if p.Registry() != nil {
		t.Error("expected no registry when metrics are disabled")
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	err = p.PrometheusHandler()(e.NewContext(req, rec))
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Errorf("expected 404 HTTPError, got %v", err)
	}
}

func TestProvider_UnsupportedExporter(t *testing.T) {
	if _, err := NewTelemetryProvider(TelemetryConfig{TraceExporter: "zipkin"}); err == nil {
		t.Error("expected error for unsupported exporter")
	}
}

func TestProvider_StdoutExporterWritesSpans(t *testing.T) {
	var buf bytes.Buffer
	p, err := NewTelemetryProvider(TelemetryConfig{TraceExporter: "stdout", TraceOutput: &buf})
	if err != nil {
		t.Fatalf("NewTelemetryProvider: %v", err)
	}
	_, span := p.Tracer("test").Start(context.Background(), "GET /patients")
	span.End()
	if err := p.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if !strings.Contains(buf.String(), "GET /patients") {
		t.Errorf("expected span name in exporter output, got %q", buf.String())
	}
}
