package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGPatientDirectory reads patients via prepared statements registered in
// internal/db.
type PGPatientDirectory struct {
	pool *pgxpool.Pool
}

func NewPGPatientDirectory(pool *pgxpool.Pool) *PGPatientDirectory {
	return &PGPatientDirectory{pool: pool}
}

func (d *PGPatientDirectory) GetPatients(ctx context.Context) ([]Patient, error) {
	rows, err := d.pool.Query(ctx, "get_patients")
	if err != nil {
		return nil, fmt.Errorf("get patients: %w", err)
	}
	defer rows.Close()

	var patients []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		patients = append(patients, p)
	}
	return patients, rows.Err()
}

func (d *PGPatientDirectory) GetPatientByID(ctx context.Context, id string) (*Patient, error) {
	rows, err := d.pool.Query(ctx, "get_patient_by_id", id)
	if err != nil {
		return nil, fmt.Errorf("get patient %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("get patient %s: %w", id, err)
		}
		return nil, ErrPatientNotFound
	}
	p, err := scanPatient(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPatient(rows pgx.Rows) (Patient, error) {
	var p Patient
	if err := rows.Scan(&p.ID, &p.Name, &p.Age, &p.MedicalHistory, &p.LastVisit, &p.EmergencyContact); err != nil {
		return Patient{}, fmt.Errorf("scan patient: %w", err)
	}
	return p, nil
}

// PGAppointmentBook reads appointments via prepared statements.
type PGAppointmentBook struct {
	pool *pgxpool.Pool
}

func NewPGAppointmentBook(pool *pgxpool.Pool) *PGAppointmentBook {
	return &PGAppointmentBook{pool: pool}
}

func (b *PGAppointmentBook) GetAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := b.pool.Query(ctx, "get_appointments")
	if err != nil {
		return nil, fmt.Errorf("get appointments: %w", err)
	}
	defer rows.Close()

	var appts []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.Provider, &a.VisitDate, &a.VisitTime, &a.Status); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		appts = append(appts, a)
	}
	return appts, rows.Err()
}

func (b *PGAppointmentBook) GetAppointmentByID(ctx context.Context, id string) (*Appointment, error) {
	var a Appointment
	err := b.pool.QueryRow(ctx, "get_appointment_by_id", id).
		Scan(&a.ID, &a.PatientID, &a.Provider, &a.VisitDate, &a.VisitTime, &a.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("get appointment %s: %w", id, err)
	}
	return &a, nil
}
