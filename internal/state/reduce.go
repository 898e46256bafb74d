package state

import (
	"fmt"

	"github.com/ehr/caredesk/internal/domain/care"
)

// Reduce applies ev to s and returns the next snapshot. It never modifies s.
// The boolean is false when ev was rejected (stale, out of order, or a no-op
// selection), in which case the returned snapshot is s.
func Reduce(s Snapshot, ev Event) (Snapshot, bool) {
	switch e := ev.(type) {
	case ListRequested:
		meta, ok := s.PatientsMeta.request(e.Token)
		if !ok {
			return s, false
		}
		s.PatientsMeta = meta
		return s, true

	case ListSucceeded:
		meta, ok := s.PatientsMeta.succeed(e.Token)
		if !ok {
			return s, false
		}
		s.PatientsMeta = meta
		s.Patients = e.Patients
		if s.Patients == nil {
			s.Patients = []care.Patient{}
		}
		if s.SelectedPatientID.IsZero() || !s.HasPatient(s.SelectedPatientID) {
			var first care.ID
			if len(s.Patients) > 0 {
				first = s.Patients[0].ID
			}
			s = s.reselect(first)
		}
		return s, true

	case ListFailed:
		meta, ok := s.PatientsMeta.fail(e.Token, e.Err)
		if !ok {
			return s, false
		}
		s.PatientsMeta = meta
		return s, true

	case SearchChanged:
		s.Filters.Search = e.Text
		return s, true

	case SelectionChanged:
		if e.PatientID.IsZero() {
			return s, false
		}
		if s.PatientsMeta.Status == StatusSuccess && !s.HasPatient(e.PatientID) {
			return s, false
		}
		return s.reselect(e.PatientID), true

	case DetailRequested:
		if e.PatientID.IsZero() || e.PatientID != s.SelectedPatientID {
			return s, false
		}
		meta, ok := s.PatientMeta.request(e.Token)
		if !ok {
			return s, false
		}
		s.PatientMeta = meta
		return s, true

	case DetailSucceeded:
		if e.PatientID != s.SelectedPatientID || e.Patient.ID != e.PatientID {
			return s, false
		}
		meta, ok := s.PatientMeta.succeed(e.Token)
		if !ok {
			return s, false
		}
		p := e.Patient
		s.PatientMeta = meta
		s.Patient = &p
		return s, true

	case DetailFailed:
		if e.PatientID != s.SelectedPatientID {
			return s, false
		}
		meta, ok := s.PatientMeta.fail(e.Token, e.Err)
		if !ok {
			return s, false
		}
		s.PatientMeta = meta
		return s, true

	case AppointmentsRequested:
		if e.PatientID.IsZero() || e.PatientID != s.SelectedPatientID {
			return s, false
		}
		meta, ok := s.AppointmentsMeta.request(e.Token)
		if !ok {
			return s, false
		}
		s.AppointmentsMeta = meta
		return s, true

	case AppointmentsSucceeded:
		if e.PatientID != s.SelectedPatientID {
			return s, false
		}
		meta, ok := s.AppointmentsMeta.succeed(e.Token)
		if !ok {
			return s, false
		}
		s.AppointmentsMeta = meta
		s.Appointments = e.Appointments
		if s.Appointments == nil {
			s.Appointments = []care.Appointment{}
		}
		return s, true

	case AppointmentsFailed:
		if e.PatientID != s.SelectedPatientID {
			return s, false
		}
		meta, ok := s.AppointmentsMeta.fail(e.Token, e.Err)
		if !ok {
			return s, false
		}
		s.AppointmentsMeta = meta
		return s, true

	case DoctorsRequested:
		if !s.ownsDoctors(e.PatientID) {
			return s, false
		}
		meta, ok := s.DoctorsMeta.request(e.Token)
		if !ok {
			return s, false
		}
		s.DoctorsMeta = meta
		return s, true

	// The doctor cache does not depend on the selection, so the request that
	// owns DoctorsMeta always settles it. A failure for a patient that is no
	// longer selected says nothing about the current view and settles to idle.
	case DoctorsMerged:
		merged := s.mergeDoctors(e.Doctors)
		if e.Token != 0 {
			if meta, ok := s.DoctorsMeta.succeed(e.Token); ok {
				s.DoctorsMeta = meta
				merged = true
			}
		}
		return s, merged

	case DoctorsFailed:
		merged := s.mergeDoctors(e.Doctors)
		var (
			meta ResourceMeta
			ok   bool
		)
		if s.ownsDoctors(e.PatientID) {
			meta, ok = s.DoctorsMeta.fail(e.Token, e.Err)
		} else {
			meta, ok = s.DoctorsMeta.release(e.Token)
		}
		if ok {
			s.DoctorsMeta = meta
			merged = true
		}
		return s, merged

	default:
		panic(fmt.Sprintf("state: unhandled event %T", ev))
	}
}

// reselect points the selection at id, dropping the detail and appointments
// that belong to a different patient. With nothing selected there is nothing
// to load, so both resources go back to idle.
func (s Snapshot) reselect(id care.ID) Snapshot {
	prev := s.SelectedPatientID
	s.SelectedPatientID = id
	if s.Patient != nil && s.Patient.ID != id {
		s.Patient = nil
	}
	if prev != id {
		s.Appointments = []care.Appointment{}
	}
	if id.IsZero() {
		s.PatientMeta = s.PatientMeta.reset()
		s.AppointmentsMeta = s.AppointmentsMeta.reset()
	}
	return s
}

func (s Snapshot) ownsDoctors(patientID care.ID) bool {
	return patientID.IsZero() || patientID == s.SelectedPatientID
}

// mergeDoctors swaps in a copy of the cache with docs added. Entries are
// never removed. Reduce only calls it on its own copy of the snapshot.
func (s *Snapshot) mergeDoctors(docs []care.Doctor) bool {
	if len(docs) == 0 {
		return false
	}
	next := make(map[care.ID]care.Doctor, len(s.DoctorsByID)+len(docs))
	for id, d := range s.DoctorsByID {
		next[id] = d
	}
	for _, d := range docs {
		if d.ID.IsZero() {
			continue
		}
		next[d.ID] = d
	}
	s.DoctorsByID = next
	return true
}
