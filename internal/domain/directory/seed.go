package directory

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/ehr/caredesk/internal/domain/care"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	Patients int
	Doctors  int
	// MaxAppointments per patient; each patient gets 0..MaxAppointments.
	MaxAppointments int
	Seed            int64
	// Now anchors appointment dates; zero means time.Now.
	Now time.Time
}

// DefaultSeedConfig returns a small clinic.
func DefaultSeedConfig() SeedConfig {
	return SeedConfig{Patients: 25, Doctors: 8, MaxAppointments: 5, Seed: 1}
}

var (
	firstNamesMale = []string{
		"James", "Robert", "John", "Michael", "David", "William", "Richard",
		"Joseph", "Thomas", "Christopher", "Charles", "Daniel", "Matthew",
		"Anthony", "Mark", "Steven", "Paul", "Andrew", "Kevin", "Brian",
	}
	firstNamesFemale = []string{
		"Mary", "Patricia", "Jennifer", "Linda", "Barbara", "Elizabeth",
		"Susan", "Jessica", "Sarah", "Karen", "Lisa", "Nancy", "Margaret",
		"Emily", "Michelle", "Amanda", "Melissa", "Rebecca", "Laura", "Anna",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia",
		"Miller", "Davis", "Rodriguez", "Martinez", "Wilson", "Anderson",
		"Taylor", "Moore", "Jackson", "Martin", "Lee", "Thompson", "White",
		"Harris", "Clark", "Lewis", "Walker", "Young", "King", "Nguyen",
	}
	specialties = []string{
		"Cardiology", "Dermatology", "Endocrinology", "Family Medicine",
		"Gastroenterology", "Neurology", "Oncology", "Orthopedics",
		"Pediatrics", "Psychiatry", "Pulmonology", "Rheumatology",
	}
	conditions = []string{
		"Type 2 diabetes mellitus",
		"Essential hypertension",
		"Asthma",
		"Hyperlipidemia",
		"Low back pain",
		"Major depressive disorder",
		"Gastro-esophageal reflux disease",
		"Hypothyroidism",
		"Migraine",
		"Insomnia",
		"Allergic rhinitis",
		"Vitamin D deficiency",
	}
	reasons = []string{
		"Annual physical examination",
		"Follow-up on blood pressure medication",
		"Persistent cough for two weeks",
		"Review of recent lab results",
		"Medication refill",
		"Knee pain after running",
		"Skin rash on forearm",
		"Pre-operative assessment",
		"Recurring headaches in the afternoon, worse after screen time, with occasional nausea and sensitivity to light over the past month",
	}
)

// generator produces a deterministic dataset.
type generator struct {
	rng *rand.Rand
	cfg SeedConfig
}

// GenerateDataset builds a reproducible dataset from cfg. Ids are sequential
// numbers, as a json-server style backend would assign them.
func GenerateDataset(cfg SeedConfig) Dataset {
	if cfg.Now.IsZero() {
		cfg.Now = time.Now()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	g := &generator{rng: rand.New(rand.NewSource(seed)), cfg: cfg}

	d := Dataset{
		Patients:     make([]care.Patient, 0, cfg.Patients),
		Doctors:      make([]care.Doctor, 0, cfg.Doctors),
		Appointments: []care.Appointment{},
	}
	for i := 1; i <= cfg.Doctors; i++ {
		d.Doctors = append(d.Doctors, g.doctor(i))
	}
	apptID := 0
	for i := 1; i <= cfg.Patients; i++ {
		p := g.patient(i)
		d.Patients = append(d.Patients, p)
		n := 0
		if cfg.MaxAppointments > 0 {
			n = g.rng.Intn(cfg.MaxAppointments + 1)
		}
		for j := 0; j < n; j++ {
			apptID++
			d.Appointments = append(d.Appointments, g.appointment(apptID, p.ID))
		}
	}
	return d
}

func (g *generator) pick(pool []string) string {
	return pool[g.rng.Intn(len(pool))]
}

func (g *generator) patient(n int) care.Patient {
	gender, first := "male", g.pick(firstNamesMale)
	if g.rng.Intn(2) == 0 {
		gender, first = "female", g.pick(firstNamesFemale)
	}

	var history []string
	for k := g.rng.Intn(3); k > 0; k-- {
		c := g.pick(conditions)
		if !contains(history, c) {
			history = append(history, c)
		}
	}

	return care.Patient{
		ID:             care.ID(strconv.Itoa(n)),
		Name:           first + " " + g.pick(lastNames),
		Age:            18 + g.rng.Intn(72),
		Gender:         gender,
		MedicalHistory: strings.Join(history, ", "),
	}
}

func (g *generator) doctor(n int) care.Doctor {
	first := g.pick(firstNamesFemale)
	if g.rng.Intn(2) == 0 {
		first = g.pick(firstNamesMale)
	}
	return care.Doctor{
		ID:        care.ID(strconv.Itoa(n)),
		Name:      fmt.Sprintf("Dr. %s %s", first, g.pick(lastNames)),
		Specialty: g.pick(specialties),
	}
}

// appointment lands between 120 days before and 60 days after Now, on the
// quarter hour during clinic hours. One in eight has no stated reason.
func (g *generator) appointment(n int, patientID care.ID) care.Appointment {
	day := g.cfg.Now.UTC().Truncate(24*time.Hour).AddDate(0, 0, g.rng.Intn(181)-120)
	at := day.Add(time.Duration(8+g.rng.Intn(9))*time.Hour + time.Duration(15*g.rng.Intn(4))*time.Minute)

	a := care.Appointment{
		ID:        care.ID(strconv.Itoa(n)),
		PatientID: patientID,
		DateTime:  at.Format(time.RFC3339),
	}
	if g.cfg.Doctors > 0 {
		a.DoctorID = care.ID(strconv.Itoa(1 + g.rng.Intn(g.cfg.Doctors)))
	}
	if g.rng.Intn(8) != 0 {
		a.Reason = g.pick(reasons)
	}
	return a
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
