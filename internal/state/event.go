package state

import "github.com/ehr/caredesk/internal/domain/care"

// Event is the closed set of inputs to Reduce. Every type in this file
// implements it; nothing outside the package can.
//
// Token identifies the request an event belongs to (see Store.NextToken).
// PatientID on detail, appointment, and doctor events is the selection the
// request was issued for.
type Event interface {
	Kind() string
	isEvent()
}

type ListRequested struct{ Token uint64 }

type ListSucceeded struct {
	Token    uint64
	Patients []care.Patient
}

type ListFailed struct {
	Token uint64
	Err   string
}

type SearchChanged struct{ Text string }

type SelectionChanged struct{ PatientID care.ID }

type DetailRequested struct {
	Token     uint64
	PatientID care.ID
}

type DetailSucceeded struct {
	Token     uint64
	PatientID care.ID
	Patient   care.Patient
}

type DetailFailed struct {
	Token     uint64
	PatientID care.ID
	Err       string
}

type AppointmentsRequested struct {
	Token     uint64
	PatientID care.ID
}

type AppointmentsSucceeded struct {
	Token        uint64
	PatientID    care.ID
	Appointments []care.Appointment
}

type AppointmentsFailed struct {
	Token     uint64
	PatientID care.ID
	Err       string
}

// DoctorsRequested opens a cross-reference batch. An empty PatientID means
// the batch is not tied to a selection (directory warm-up).
type DoctorsRequested struct {
	Token     uint64
	PatientID care.ID
}

// DoctorsMerged adds Doctors to the cache. With a zero Token it is a pure
// merge and leaves DoctorsMeta alone.
type DoctorsMerged struct {
	Token     uint64
	PatientID care.ID
	Doctors   []care.Doctor
}

// DoctorsFailed closes a batch in which some lookups failed. Doctors holds the
// lookups that did resolve; they are merged regardless.
type DoctorsFailed struct {
	Token     uint64
	PatientID care.ID
	Doctors   []care.Doctor
	Err       string
}

func (ListRequested) Kind() string         { return "list_requested" }
func (ListSucceeded) Kind() string         { return "list_succeeded" }
func (ListFailed) Kind() string            { return "list_failed" }
func (SearchChanged) Kind() string         { return "search_changed" }
func (SelectionChanged) Kind() string      { return "selection_changed" }
func (DetailRequested) Kind() string       { return "detail_requested" }
func (DetailSucceeded) Kind() string       { return "detail_succeeded" }
func (DetailFailed) Kind() string          { return "detail_failed" }
func (AppointmentsRequested) Kind() string { return "appointments_requested" }
func (AppointmentsSucceeded) Kind() string { return "appointments_succeeded" }
func (AppointmentsFailed) Kind() string    { return "appointments_failed" }
func (DoctorsRequested) Kind() string      { return "doctors_requested" }
func (DoctorsMerged) Kind() string         { return "doctors_merged" }
func (DoctorsFailed) Kind() string         { return "doctors_failed" }

func (ListRequested) isEvent()         {}
func (ListSucceeded) isEvent()         {}
func (ListFailed) isEvent()            {}
func (SearchChanged) isEvent()         {}
func (SelectionChanged) isEvent()      {}
func (DetailRequested) isEvent()       {}
func (DetailSucceeded) isEvent()       {}
func (DetailFailed) isEvent()          {}
func (AppointmentsRequested) isEvent() {}
func (AppointmentsSucceeded) isEvent() {}
func (AppointmentsFailed) isEvent()    {}
func (DoctorsRequested) isEvent()      {}
func (DoctorsMerged) isEvent()         {}
func (DoctorsFailed) isEvent()         {}
