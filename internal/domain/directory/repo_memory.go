package directory

import (
	"context"
	"sync"

	"github.com/ehr/caredesk/internal/domain/care"
)

type memoryRepo struct {
	mu        sync.RWMutex
	data      Dataset
	patients  map[care.ID]int
	doctors   map[care.ID]int
	byPatient map[care.ID][]int
}

// NewMemoryRepo returns an empty in-memory Repository.
func NewMemoryRepo() Repository {
	r := &memoryRepo{}
	r.index(Dataset{})
	return r
}

func (r *memoryRepo) index(d Dataset) {
	r.data = d
	r.patients = make(map[care.ID]int, len(d.Patients))
	for i, p := range d.Patients {
		r.patients[p.ID] = i
	}
	r.doctors = make(map[care.ID]int, len(d.Doctors))
	for i, doc := range d.Doctors {
		r.doctors[doc.ID] = i
	}
	r.byPatient = make(map[care.ID][]int)
	for i, a := range d.Appointments {
		r.byPatient[a.PatientID] = append(r.byPatient[a.PatientID], i)
	}
}

func (r *memoryRepo) Load(_ context.Context, d Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	cp := Dataset{
		Patients:     append([]care.Patient(nil), d.Patients...),
		Appointments: append([]care.Appointment(nil), d.Appointments...),
		Doctors:      append([]care.Doctor(nil), d.Doctors...),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.index(cp)
	return nil
}

func (r *memoryRepo) ListPatients(_ context.Context) ([]care.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]care.Patient{}, r.data.Patients...), nil
}

func (r *memoryRepo) GetPatient(_ context.Context, id care.ID) (care.Patient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.patients[id]
	if !ok {
		return care.Patient{}, ErrNotFound
	}
	return r.data.Patients[i], nil
}

func (r *memoryRepo) ListAppointments(_ context.Context, patientID care.ID) ([]care.Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.byPatient[patientID]
	out := make([]care.Appointment, 0, len(idx))
	for _, i := range idx {
		out = append(out, r.data.Appointments[i])
	}
	return out, nil
}

func (r *memoryRepo) ListDoctors(_ context.Context) ([]care.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]care.Doctor{}, r.data.Doctors...), nil
}

func (r *memoryRepo) GetDoctor(_ context.Context, id care.ID) (care.Doctor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.doctors[id]
	if !ok {
		return care.Doctor{}, ErrNotFound
	}
	return r.data.Doctors[i], nil
}

func (r *memoryRepo) Ping(context.Context) error { return nil }
