package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/caredesk/internal/domain/care"
	"github.com/ehr/caredesk/internal/orchestrator"
	"github.com/ehr/caredesk/internal/platform/websocket"
	"github.com/ehr/caredesk/internal/state"
)

// Handler exposes the snapshot and the orchestrator operations over HTTP.
//
// Operations are started with the handler's context rather than the
// request's, so they keep running after the response is written. Passing
// ?wait=true holds the response until the operation settles.
type Handler struct {
	ctx   context.Context
	orch  *orchestrator.Orchestrator
	store *state.Store
	now   func() time.Time
}

// NewHandler creates a Handler. ctx bounds every operation it starts.
func NewHandler(ctx context.Context, orch *orchestrator.Orchestrator) *Handler {
	return &Handler{ctx: ctx, orch: orch, store: orch.Store(), now: time.Now}
}

// RegisterRoutes registers the dashboard API on g.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/state", h.GetState)
	g.GET("/patients", h.ListPatients)
	g.GET("/appointments", h.ListAppointments)
	g.POST("/patients/reload", h.Reload)
	g.POST("/patients/:id/select", h.Select)
	g.POST("/selection/retry", h.Retry)
	g.PUT("/search", h.SetSearch)
	g.POST("/doctors/prime", h.PrimeDoctors)
}

// GetState returns the full snapshot.
func (h *Handler) GetState(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Snapshot())
}

type patientsResponse struct {
	Search   string             `json:"search"`
	Total    int                `json:"total"`
	Patients []care.Patient     `json:"patients"`
	Meta     state.ResourceMeta `json:"meta"`
	Selected *care.ID           `json:"selectedPatientId"`
}

// ListPatients returns the loaded patients filtered by the search query, or
// by the stored search text when the query is absent.
func (h *Handler) ListPatients(c echo.Context) error {
	s := h.store.Snapshot()
	search := s.Filters.Search
	if q, ok := c.QueryParams()["search"]; ok && len(q) > 0 {
		search = q[0]
	}
	resp := patientsResponse{
		Search:   search,
		Total:    len(s.Patients),
		Patients: FilterPatients(s.Patients, search),
		Meta:     s.PatientsMeta,
	}
	if !s.SelectedPatientID.IsZero() {
		id := s.SelectedPatientID
		resp.Selected = &id
	}
	return c.JSON(http.StatusOK, resp)
}

type appointmentsResponse struct {
	PatientID    care.ID            `json:"patientId"`
	Appointments []AppointmentView  `json:"appointments"`
	Meta         state.ResourceMeta `json:"meta"`
	DoctorsMeta  state.ResourceMeta `json:"doctorsMeta"`
}

// ListAppointments returns the selected patient's appointments formatted for
// display.
func (h *Handler) ListAppointments(c echo.Context) error {
	s := h.store.Snapshot()
	return c.JSON(http.StatusOK, appointmentsResponse{
		PatientID:    s.SelectedPatientID,
		Appointments: AppointmentViews(s, h.now()),
		Meta:         s.AppointmentsMeta,
		DoctorsMeta:  s.DoctorsMeta,
	})
}

// Reload refetches the patient list.
func (h *Handler) Reload(c echo.Context) error {
	return h.accepted(c, h.orch.LoadList(h.ctx))
}

// Select changes the selection and loads the patient.
func (h *Handler) Select(c echo.Context) error {
	id := care.ID(c.Param("id"))
	if id.IsZero() {
		return echo.NewHTTPError(http.StatusBadRequest, "patient id is required")
	}
	p := h.orch.SelectItem(h.ctx, id)
	if p.Rejected() {
		return echo.NewHTTPError(http.StatusNotFound, fmt.Sprintf("patient %s is not in the list", id))
	}
	return h.accepted(c, p)
}

// Retry reloads the current selection.
func (h *Handler) Retry(c echo.Context) error {
	if h.store.Snapshot().SelectedPatientID.IsZero() {
		return echo.NewHTTPError(http.StatusConflict, "no patient selected")
	}
	return h.accepted(c, h.orch.RetrySelection(h.ctx))
}

type searchRequest struct {
	Search string `json:"search"`
}

// SetSearch stores the search text.
func (h *Handler) SetSearch(c echo.Context) error {
	var req searchRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	h.orch.SetSearch(req.Search)
	return c.JSON(http.StatusOK, h.store.Snapshot())
}

// PrimeDoctors loads the whole doctor directory into the cache.
func (h *Handler) PrimeDoctors(c echo.Context) error {
	return h.accepted(c, h.orch.PrimeDoctors(h.ctx))
}

func (h *Handler) accepted(c echo.Context, p orchestrator.Pending) error {
	wait, _ := strconv.ParseBool(c.QueryParam("wait"))
	if !wait {
		return c.JSON(http.StatusAccepted, h.store.Snapshot())
	}
	if err := p.WaitContext(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "request canceled before the operation settled")
	}
	return c.JSON(http.StatusOK, h.store.Snapshot())
}

// Command runs a WebSocket command.
func (h *Handler) Command(ctx context.Context, msg websocket.ClientMessage) error {
	switch msg.Action {
	case "reload":
		h.orch.LoadList(ctx)
	case "select":
		id := msg.PatientID
		if id.IsZero() {
			return fmt.Errorf("select: patientId is required")
		}
		if h.orch.SelectItem(ctx, id).Rejected() {
			return fmt.Errorf("select: patient %s is not in the list", id)
		}
	case "retry":
		h.orch.RetrySelection(ctx)
	case "search":
		h.orch.SetSearch(msg.Search)
	case "prime_doctors":
		h.orch.PrimeDoctors(ctx)
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
	return nil
}
