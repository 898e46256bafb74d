package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ehr/caredesk/internal/domain/care"
)

var ErrPatientIDRequired = errors.New("patientId is required")

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Repository() Repository { return s.repo }

func (s *Service) ListPatients(ctx context.Context) ([]care.Patient, error) {
	return s.repo.ListPatients(ctx)
}

func (s *Service) GetPatient(ctx context.Context, id care.ID) (care.Patient, error) {
	if id.IsZero() {
		return care.Patient{}, ErrNotFound
	}
	return s.repo.GetPatient(ctx, id)
}

func (s *Service) ListAppointments(ctx context.Context, patientID care.ID) ([]care.Appointment, error) {
	if patientID.IsZero() {
		return nil, ErrPatientIDRequired
	}
	return s.repo.ListAppointments(ctx, patientID)
}

func (s *Service) ListDoctors(ctx context.Context) ([]care.Doctor, error) {
	return s.repo.ListDoctors(ctx)
}

func (s *Service) GetDoctor(ctx context.Context, id care.ID) (care.Doctor, error) {
	if id.IsZero() {
		return care.Doctor{}, ErrNotFound
	}
	return s.repo.GetDoctor(ctx, id)
}

// Seed replaces the directory with a generated dataset.
func (s *Service) Seed(ctx context.Context, cfg SeedConfig) (Dataset, error) {
	d := GenerateDataset(cfg)
	if err := s.repo.Load(ctx, d); err != nil {
		return Dataset{}, fmt.Errorf("load seed data: %w", err)
	}
	s.logger.Info().
		Int("patients", len(d.Patients)).
		Int("doctors", len(d.Doctors)).
		Int("appointments", len(d.Appointments)).
		Int64("seed", cfg.Seed).
		Msg("directory seeded")
	return d, nil
}
