package directory

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ehr/caredesk/internal/domain/care"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrations returns the schema scripts for the PostgreSQL repository.
func Migrations() fs.FS {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}

type directoryRepoPG struct{ pool *pgxpool.Pool }

// NewDirectoryRepoPG returns a Repository over pool. The schema from
// Migrations must already be applied.
func NewDirectoryRepoPG(pool *pgxpool.Pool) Repository {
	return &directoryRepoPG{pool: pool}
}

const (
	patientCols = `id, name, age, gender, medical_history`
	apptCols    = `id, patient_id, COALESCE(doctor_id, ''), date_time, reason`
	doctorCols  = `id, name, specialty`
)

func scanPatient(row pgx.Row) (care.Patient, error) {
	var p care.Patient
	var id string
	err := row.Scan(&id, &p.Name, &p.Age, &p.Gender, &p.MedicalHistory)
	p.ID = care.ID(id)
	return p, err
}

func scanAppointment(row pgx.Row) (care.Appointment, error) {
	var a care.Appointment
	var id, patientID, doctorID string
	err := row.Scan(&id, &patientID, &doctorID, &a.DateTime, &a.Reason)
	a.ID, a.PatientID, a.DoctorID = care.ID(id), care.ID(patientID), care.ID(doctorID)
	return a, err
}

func scanDoctor(row pgx.Row) (care.Doctor, error) {
	var d care.Doctor
	var id string
	err := row.Scan(&id, &d.Name, &d.Specialty)
	d.ID = care.ID(id)
	return d, err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *directoryRepoPG) ListPatients(ctx context.Context) ([]care.Patient, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+patientCols+` FROM patients ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	return collect(rows, scanPatient)
}

func (r *directoryRepoPG) GetPatient(ctx context.Context, id care.ID) (care.Patient, error) {
	p, err := scanPatient(r.pool.QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id.String()))
	return p, notFound(err)
}

func (r *directoryRepoPG) ListAppointments(ctx context.Context, patientID care.ID) ([]care.Appointment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+apptCols+` FROM appointments WHERE patient_id = $1 ORDER BY position`, patientID.String())
	if err != nil {
		return nil, fmt.Errorf("query appointments: %w", err)
	}
	return collect(rows, scanAppointment)
}

func (r *directoryRepoPG) ListDoctors(ctx context.Context) ([]care.Doctor, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+doctorCols+` FROM doctors ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query doctors: %w", err)
	}
	return collect(rows, scanDoctor)
}

func (r *directoryRepoPG) GetDoctor(ctx context.Context, id care.ID) (care.Doctor, error) {
	d, err := scanDoctor(r.pool.QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id.String()))
	return d, notFound(err)
}

// Load truncates the tables and bulk-copies d in one transaction.
func (r *directoryRepoPG) Load(ctx context.Context, d Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `TRUNCATE appointments, patients, doctors`); err != nil {
		return fmt.Errorf("truncate directory: %w", err)
	}

	patients := make([][]any, len(d.Patients))
	for i, p := range d.Patients {
		patients[i] = []any{p.ID.String(), i, p.Name, p.Age, p.Gender, p.MedicalHistory}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"patients"},
		[]string{"id", "position", "name", "age", "gender", "medical_history"},
		pgx.CopyFromRows(patients)); err != nil {
		return fmt.Errorf("copy patients: %w", err)
	}

	doctors := make([][]any, len(d.Doctors))
	for i, doc := range d.Doctors {
		doctors[i] = []any{doc.ID.String(), i, doc.Name, doc.Specialty}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"doctors"},
		[]string{"id", "position", "name", "specialty"},
		pgx.CopyFromRows(doctors)); err != nil {
		return fmt.Errorf("copy doctors: %w", err)
	}

	appts := make([][]any, len(d.Appointments))
	for i, a := range d.Appointments {
		var doctorID any
		if !a.DoctorID.IsZero() {
			doctorID = a.DoctorID.String()
		}
		appts[i] = []any{a.ID.String(), i, a.PatientID.String(), doctorID, a.DateTime, a.Reason}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"appointments"},
		[]string{"id", "position", "patient_id", "doctor_id", "date_time", "reason"},
		pgx.CopyFromRows(appts)); err != nil {
		return fmt.Errorf("copy appointments: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *directoryRepoPG) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
