package care

import (
	"encoding/json"
	"testing"
)

func TestID_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{`"abc"`, "abc"},
		{`"7"`, "7"},
		{`7`, "7"},
		{`100`, "100"},
		{`null`, ""},
		{`1.5`, "1.5"},
	}
	for _, tt := range tests {
		var id ID
		if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
			t.Fatalf("unmarshal %s: %v", tt.in, err)
		}
		if id != tt.want {
			t.Errorf("unmarshal %s = %q, want %q", tt.in, id, tt.want)
		}
	}
}

func TestID_MarshalJSON_KeepsNumericIDsNumeric(t *testing.T) {
	tests := []struct {
		id   ID
		want string
	}{
		{"7", `7`},
		{"100", `100`},
		{"-3", `-3`},
		{"07", `"07"`},
		{"1.5", `"1.5"`},
		{"abc", `"abc"`},
		{"", `""`},
		{"99999999999999999999", `"99999999999999999999"`},
	}
	for _, tt := range tests {
		got, err := json.Marshal(tt.id)
		if err != nil {
			t.Fatalf("marshal %q: %v", tt.id, err)
		}
		if string(got) != tt.want {
			t.Errorf("marshal %q = %s, want %s", tt.id, got, tt.want)
		}
	}
}

func TestPatient_RoundTripKeepsNumericID(t *testing.T) {
	in := `{"id":1,"name":"Ann","age":40,"gender":"female"}`
	var p Patient
	if err := json.Unmarshal([]byte(in), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != in {
		t.Errorf("got %s, want %s", out, in)
	}
}

func TestID_UnmarshalJSON_Invalid(t *testing.T) {
	var id ID
	if err := json.Unmarshal([]byte(`{}`), &id); err == nil {
		t.Error("expected error for object id")
	}
}

func TestAppointment_DecodeNumericIDs(t *testing.T) {
	body := `{"id":9,"patientId":1,"doctorId":100,"dateTime":"2024-03-01T09:30:00Z","reason":"checkup"}`
	var a Appointment
	if err := json.Unmarshal([]byte(body), &a); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if a.ID != "9" || a.PatientID != "1" || a.DoctorID != "100" {
		t.Errorf("unexpected ids: %+v", a)
	}
	when, ok := a.When()
	if !ok {
		t.Fatal("expected dateTime to parse")
	}
	if when.Hour() != 9 || when.Minute() != 30 {
		t.Errorf("unexpected time %v", when)
	}
}

func TestAppointment_When_Layouts(t *testing.T) {
	for _, raw := range []string{"2024-03-01T09:30:00Z", "2024-03-01T09:30:00", "2024-03-01T09:30", "2024-03-01 09:30", "2024-03-01"} {
		if _, ok := (Appointment{DateTime: raw}).When(); !ok {
			t.Errorf("expected %q to parse", raw)
		}
	}
	if _, ok := (Appointment{DateTime: "next tuesday"}).When(); ok {
		t.Error("expected free text to fail")
	}
}

func TestDoctorIDs(t *testing.T) {
	appts := []Appointment{
		{ID: "1", DoctorID: "5"},
		{ID: "2", DoctorID: "5"},
		{ID: "3", DoctorID: "6"},
		{ID: "4"},
	}
	got := DoctorIDs(appts)
	if len(got) != 2 || got[0] != "5" || got[1] != "6" {
		t.Errorf("DoctorIDs = %v, want [5 6]", got)
	}
}

func TestDoctorIDs_Empty(t *testing.T) {
	if got := DoctorIDs(nil); len(got) != 0 {
		t.Errorf("expected no ids, got %v", got)
	}
}
