package directory

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/caredesk/internal/domain/care"
)

// Handler serves the care API. Error responses are plain text so clients
// can show the body as the message.
type Handler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHandler(svc *Service, logger zerolog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.ListPatients)
	g.GET("/patients/:id", h.GetPatient)
	g.GET("/appointments", h.ListAppointments)
	g.GET("/doctors", h.ListDoctors)
	g.GET("/doctors/:id", h.GetDoctor)
}

func (h *Handler) ListPatients(c echo.Context) error {
	patients, err := h.svc.ListPatients(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "")
	}
	return c.JSON(http.StatusOK, patients)
}

func (h *Handler) GetPatient(c echo.Context) error {
	p, err := h.svc.GetPatient(c.Request().Context(), care.ID(c.Param("id")))
	if err != nil {
		return h.fail(c, err, "Patient not found")
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) ListAppointments(c echo.Context) error {
	appts, err := h.svc.ListAppointments(c.Request().Context(), care.ID(c.QueryParam("patientId")))
	if err != nil {
		return h.fail(c, err, "")
	}
	return c.JSON(http.StatusOK, appts)
}

func (h *Handler) ListDoctors(c echo.Context) error {
	doctors, err := h.svc.ListDoctors(c.Request().Context())
	if err != nil {
		return h.fail(c, err, "")
	}
	return c.JSON(http.StatusOK, doctors)
}

func (h *Handler) GetDoctor(c echo.Context) error {
	d, err := h.svc.GetDoctor(c.Request().Context(), care.ID(c.Param("id")))
	if err != nil {
		return h.fail(c, err, "Doctor not found")
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) fail(c echo.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, ErrNotFound) && notFound != "":
		return c.String(http.StatusNotFound, notFound)
	case errors.Is(err, ErrPatientIDRequired):
		return c.String(http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("directory request failed")
		return c.String(http.StatusInternalServerError, "Internal server error")
	}
}
