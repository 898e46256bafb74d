// Package dashboard is the presentation boundary of the care dashboard: view
// helpers over a snapshot, an HTTP API that reads the snapshot and triggers
// orchestrator operations, and the snapshot stream.
package dashboard

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ehr/caredesk/internal/domain/care"
	"github.com/ehr/caredesk/internal/state"
)

const (
	UnknownDoctor       = "Unknown doctor"
	UnknownSpecialty    = "Specialty unavailable"
	DefaultReason       = "General consultation"
	ReasonPreviewLength = 100
)

// FilterPatients keeps the patients whose name contains search, ignoring
// case. An empty search keeps everyone.
func FilterPatients(patients []care.Patient, search string) []care.Patient {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return patients
	}
	out := make([]care.Patient, 0, len(patients))
	for _, p := range patients {
		if strings.Contains(strings.ToLower(p.Name), needle) {
			out = append(out, p)
		}
	}
	return out
}

// DoctorLabel resolves the doctor of a, falling back to placeholder text
// when the doctor is unknown or not cached.
func DoctorLabel(a care.Appointment, doctors map[care.ID]care.Doctor) (name, specialty string) {
	name, specialty = UnknownDoctor, UnknownSpecialty
	d, ok := doctors[a.DoctorID]
	if !ok {
		return name, specialty
	}
	if d.Name != "" {
		name = d.Name
	}
	if d.Specialty != "" {
		specialty = d.Specialty
	}
	return name, specialty
}

// AppointmentView is an appointment ready for display.
type AppointmentView struct {
	ID        care.ID `json:"id"`
	DateTime  string  `json:"dateTime"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Past      bool    `json:"past"`
	Doctor    string  `json:"doctor"`
	Specialty string  `json:"specialty"`
	Reason    string  `json:"reason"`
	Preview   string  `json:"preview"`
	Truncated bool    `json:"truncated"`
}

// NewAppointmentView formats a relative to now. Unparseable timestamps are
// shown verbatim and never count as past.
func NewAppointmentView(a care.Appointment, doctors map[care.ID]care.Doctor, now time.Time) AppointmentView {
	v := AppointmentView{ID: a.ID, DateTime: a.DateTime, Date: a.DateTime}
	if when, ok := a.When(); ok {
		v.Date = when.Format("Monday, January 2, 2006")
		v.Time = when.Format("3:04 PM")
		v.Past = when.Before(now)
	}
	v.Doctor, v.Specialty = DoctorLabel(a, doctors)

	v.Reason = strings.TrimSpace(a.Reason)
	if v.Reason == "" {
		v.Reason = DefaultReason
	}
	v.Preview = v.Reason
	if utf8.RuneCountInString(v.Reason) > ReasonPreviewLength {
		v.Preview = string([]rune(v.Reason)[:ReasonPreviewLength]) + "..."
		v.Truncated = true
	}
	return v
}

// AppointmentViews formats the appointments of the selected patient.
func AppointmentViews(s state.Snapshot, now time.Time) []AppointmentView {
	out := make([]AppointmentView, 0, len(s.Appointments))
	for _, a := range s.Appointments {
		out = append(out, NewAppointmentView(a, s.DoctorsByID, now))
	}
	return out
}
