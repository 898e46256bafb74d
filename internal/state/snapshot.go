// Package state holds the observable snapshot of the care dashboard, the
// closed set of events that change it, and the store that applies them one
// at a time.
package state

import (
	"encoding/json"

	"github.com/ehr/caredesk/internal/domain/care"
)

// Filters are presentation-side inputs. They are never fetched.
type Filters struct {
	Search string `json:"search"`
}

// Snapshot is an immutable view of every resource. Slices and maps inside a
// Snapshot are shared with later snapshots and must not be modified.
type Snapshot struct {
	Patients     []care.Patient
	PatientsMeta ResourceMeta

	SelectedPatientID care.ID
	Patient           *care.Patient
	PatientMeta       ResourceMeta

	Appointments     []care.Appointment
	AppointmentsMeta ResourceMeta

	DoctorsByID map[care.ID]care.Doctor
	DoctorsMeta ResourceMeta

	Filters Filters

	// Version counts applied events.
	Version uint64
}

// New returns the session's initial snapshot: everything idle and empty.
func New() Snapshot {
	return Snapshot{
		Patients:         []care.Patient{},
		PatientsMeta:     ResourceMeta{Status: StatusIdle},
		PatientMeta:      ResourceMeta{Status: StatusIdle},
		Appointments:     []care.Appointment{},
		AppointmentsMeta: ResourceMeta{Status: StatusIdle},
		DoctorsByID:      map[care.ID]care.Doctor{},
		DoctorsMeta:      ResourceMeta{Status: StatusIdle},
	}
}

// Doctor looks up a cached doctor.
func (s Snapshot) Doctor(id care.ID) (care.Doctor, bool) {
	d, ok := s.DoctorsByID[id]
	return d, ok
}

// HasPatient reports whether id is in the loaded list.
func (s Snapshot) HasPatient(id care.ID) bool {
	return indexOf(s.Patients, id) >= 0
}

// MissingDoctors returns the distinct doctor ids referenced by appts that are
// not yet cached, in first-seen order.
func (s Snapshot) MissingDoctors(appts []care.Appointment) []care.ID {
	var missing []care.ID
	for _, id := range care.DoctorIDs(appts) {
		if _, ok := s.DoctorsByID[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func indexOf(patients []care.Patient, id care.ID) int {
	for i, p := range patients {
		if p.ID == id {
			return i
		}
	}
	return -1
}

type snapshotJSON struct {
	Patients          []care.Patient          `json:"patients"`
	PatientsMeta      ResourceMeta            `json:"patientsMeta"`
	SelectedPatientID *care.ID                `json:"selectedPatientId"`
	Patient           *care.Patient           `json:"patient"`
	PatientMeta       ResourceMeta            `json:"patientMeta"`
	Appointments      []care.Appointment      `json:"appointments"`
	AppointmentsMeta  ResourceMeta            `json:"appointmentsMeta"`
	DoctorsByID       map[care.ID]care.Doctor `json:"doctorsById"`
	DoctorsMeta       ResourceMeta            `json:"doctorsMeta"`
	Filters           Filters                 `json:"filters"`
	Version           uint64                  `json:"version"`
}

// MarshalJSON renders the snapshot with the field names the dashboard uses;
// an empty selection is null.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Patients:         s.Patients,
		PatientsMeta:     s.PatientsMeta,
		Patient:          s.Patient,
		PatientMeta:      s.PatientMeta,
		Appointments:     s.Appointments,
		AppointmentsMeta: s.AppointmentsMeta,
		DoctorsByID:      s.DoctorsByID,
		DoctorsMeta:      s.DoctorsMeta,
		Filters:          s.Filters,
		Version:          s.Version,
	}
	if !s.SelectedPatientID.IsZero() {
		id := s.SelectedPatientID
		out.SelectedPatientID = &id
	}
	if out.Patients == nil {
		out.Patients = []care.Patient{}
	}
	if out.Appointments == nil {
		out.Appointments = []care.Appointment{}
	}
	if out.DoctorsByID == nil {
		out.DoctorsByID = map[care.ID]care.Doctor{}
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON. Request tokens are not part of
// the wire form, so a decoded snapshot is for display only.
func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in snapshotJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = Snapshot{
		Patients:         in.Patients,
		PatientsMeta:     in.PatientsMeta,
		Patient:          in.Patient,
		PatientMeta:      in.PatientMeta,
		Appointments:     in.Appointments,
		AppointmentsMeta: in.AppointmentsMeta,
		DoctorsByID:      in.DoctorsByID,
		DoctorsMeta:      in.DoctorsMeta,
		Filters:          in.Filters,
		Version:          in.Version,
	}
	if in.SelectedPatientID != nil {
		s.SelectedPatientID = *in.SelectedPatientID
	}
	return nil
}
