// Package care holds the records exchanged with the care API: patients,
// their appointments, and the doctors those appointments reference.
package care

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ID identifies a record on the remote API. Backends emit either JSON strings
// or JSON numbers, so both decode into the same textual form.
type ID string

// IsZero reports whether the id is empty, which callers treat as "no id".
func (id ID) IsZero() bool { return id == "" }

func (id ID) String() string { return string(id) }

// MarshalJSON writes canonical integers ("7", not "07") as JSON numbers so
// ids keep the token kind numeric backends use. Everything else is a string.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(string(id)), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts "7", 7, and null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("decode id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = ID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = ID(n.String())
	return nil
}

// Patient is read-only once fetched.
type Patient struct {
	ID             ID     `json:"id"`
	Name           string `json:"name"`
	Age            int    `json:"age"`
	Gender         string `json:"gender"`
	MedicalHistory string `json:"medicalHistory,omitempty"`
}

// Appointment belongs to one patient and optionally references a doctor.
type Appointment struct {
	ID        ID     `json:"id"`
	PatientID ID     `json:"patientId"`
	DoctorID  ID     `json:"doctorId,omitempty"`
	DateTime  string `json:"dateTime"`
	Reason    string `json:"reason,omitempty"`
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// When parses DateTime. The API does not pin a layout, so a few common ones
// are tried in order.
func (a Appointment) When() (time.Time, bool) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.Parse(layout, a.DateTime); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Doctor is the cross-referenced record behind Appointment.DoctorID.
type Doctor struct {
	ID        ID     `json:"id"`
	Name      string `json:"name"`
	Specialty string `json:"specialty,omitempty"`
}

// DoctorIDs returns the distinct non-empty doctor ids referenced by appts, in
// first-seen order.
func DoctorIDs(appts []Appointment) []ID {
	seen := make(map[ID]struct{}, len(appts))
	var ids []ID
	for _, a := range appts {
		if a.DoctorID.IsZero() {
			continue
		}
		if _, ok := seen[a.DoctorID]; ok {
			continue
		}
		seen[a.DoctorID] = struct{}{}
		ids = append(ids, a.DoctorID)
	}
	return ids
}
