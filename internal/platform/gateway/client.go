// Package gateway is the HTTP/JSON client for the care API: the patient
// list, patient detail, appointments by patient, and doctor lookups.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ehr/caredesk/internal/domain/care"
)

// DefaultBaseURL matches the development API server.
const DefaultBaseURL = "http://localhost:3000"

// maxErrorBody caps how much of a failed response is kept as the message.
const maxErrorBody = 64 << 10

// Recorder receives one observation per call.
type Recorder interface {
	ObserveGatewayRequest(operation string, err error, d time.Duration)
}

// Error is a non-2xx response. Its message is the response body, or
// "Request failed" when the body is empty.
type Error struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *Error) Error() string {
	if e.Body == "" {
		return "Request failed"
	}
	return e.Body
}

// Client calls the care API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     zerolog.Logger
	recorder   Recorder
	tracer     trace.Tracer
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithLogger sets the logger used for call diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Client) { c.recorder = r }
}

// WithTracer sets the tracer used for call spans.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// New creates a Client for baseURL. An empty baseURL means DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: zerolog.Nop(),
		tracer: otel.Tracer("caredesk/gateway"),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the API address the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// ListPatients calls GET /patients.
func (c *Client) ListPatients(ctx context.Context) ([]care.Patient, error) {
	var out []care.Patient
	if err := c.get(ctx, "list_patients", "/patients", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPatient calls GET /patients/{id}.
func (c *Client) GetPatient(ctx context.Context, id care.ID) (care.Patient, error) {
	var out care.Patient
	err := c.get(ctx, "get_patient", "/patients/"+url.PathEscape(id.String()), &out)
	return out, err
}

// ListAppointments calls GET /appointments?patientId={id}.
func (c *Client) ListAppointments(ctx context.Context, patientID care.ID) ([]care.Appointment, error) {
	var out []care.Appointment
	path := "/appointments?" + url.Values{"patientId": {patientID.String()}}.Encode()
	if err := c.get(ctx, "list_appointments", path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDoctor calls GET /doctors/{id}.
func (c *Client) GetDoctor(ctx context.Context, id care.ID) (care.Doctor, error) {
	var out care.Doctor
	err := c.get(ctx, "get_doctor", "/doctors/"+url.PathEscape(id.String()), &out)
	return out, err
}

// ListDoctors calls GET /doctors.
func (c *Client) ListDoctors(ctx context.Context) ([]care.Doctor, error) {
	var out []care.Doctor
	if err := c.get(ctx, "list_doctors", "/doctors", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) (err error) {
	target := c.baseURL + path
	ctx, span := c.tracer.Start(ctx, "gateway."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", http.MethodGet),
			attribute.String("http.url", target),
		))
	start := time.Now()
	defer func() {
		d := time.Since(start)
		if c.recorder != nil {
			c.recorder.ObserveGatewayRequest(op, err, d)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			c.logger.Debug().Err(err).Str("operation", op).Str("url", target).Dur("latency", d).Msg("gateway call failed")
		}
		span.End()
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.New().String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{Operation: op, StatusCode: resp.StatusCode, Body: string(body)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
