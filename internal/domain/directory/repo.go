package directory

import (
	"context"

	"github.com/ehr/caredesk/internal/domain/care"
)

// Repository stores the directory. Lookups of a missing record return
// ErrNotFound. Lists preserve load order.
type Repository interface {
	ListPatients(ctx context.Context) ([]care.Patient, error)
	GetPatient(ctx context.Context, id care.ID) (care.Patient, error)
	ListAppointments(ctx context.Context, patientID care.ID) ([]care.Appointment, error)
	ListDoctors(ctx context.Context) ([]care.Doctor, error)
	GetDoctor(ctx context.Context, id care.ID) (care.Doctor, error)

	// Load replaces the whole dataset.
	Load(ctx context.Context, d Dataset) error
	Ping(ctx context.Context) error
}
