package directory

import (
	"context"
	"errors"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// PatientDirectory reads patient facts from the external patient store.
type PatientDirectory interface {
	GetPatients(ctx context.Context) ([]Patient, error)
	GetPatientByID(ctx context.Context, id string) (*Patient, error)
}

// AppointmentBook reads appointments from the external scheduling store.
type AppointmentBook interface {
	GetAppointments(ctx context.Context) ([]Appointment, error)
	GetAppointmentByID(ctx context.Context, id string) (*Appointment, error)
}
