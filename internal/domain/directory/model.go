// Package directory is the reference care API: patients, their
// appointments, and doctors, served read-only over HTTP from memory or
// PostgreSQL.
package directory

import (
	"errors"
	"fmt"

	"github.com/ehr/caredesk/internal/domain/care"
)

var ErrNotFound = errors.New("not found")

// Dataset is everything the directory serves.
type Dataset struct {
	Patients     []care.Patient     `json:"patients"`
	Appointments []care.Appointment `json:"appointments"`
	Doctors      []care.Doctor      `json:"doctors"`
}

// Validate checks ids are present and unique and that every appointment
// belongs to a known patient. Appointments may reference doctors that do not
// exist; clients are expected to cope.
func (d Dataset) Validate() error {
	patients := make(map[care.ID]struct{}, len(d.Patients))
	for i, p := range d.Patients {
		if p.ID.IsZero() {
			return fmt.Errorf("patient %d: id is required", i)
		}
		if _, dup := patients[p.ID]; dup {
			return fmt.Errorf("patient %s: duplicate id", p.ID)
		}
		patients[p.ID] = struct{}{}
	}

	doctors := make(map[care.ID]struct{}, len(d.Doctors))
	for i, doc := range d.Doctors {
		if doc.ID.IsZero() {
			return fmt.Errorf("doctor %d: id is required", i)
		}
		if _, dup := doctors[doc.ID]; dup {
			return fmt.Errorf("doctor %s: duplicate id", doc.ID)
		}
		doctors[doc.ID] = struct{}{}
	}

	appts := make(map[care.ID]struct{}, len(d.Appointments))
	for i, a := range d.Appointments {
		if a.ID.IsZero() {
			return fmt.Errorf("appointment %d: id is required", i)
		}
		if _, dup := appts[a.ID]; dup {
			return fmt.Errorf("appointment %s: duplicate id", a.ID)
		}
		appts[a.ID] = struct{}{}
		if _, ok := patients[a.PatientID]; !ok {
			return fmt.Errorf("appointment %s: unknown patient %q", a.ID, a.PatientID)
		}
	}
	return nil
}
