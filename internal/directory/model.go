// Package directory exposes the external patient and appointment stores the
// reminder engine reads from. The engine never writes through this package;
// appointment mutations arrive as change events instead.
package directory

import "time"

type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusBooked    AppointmentStatus = "booked"
	StatusCompleted AppointmentStatus = "completed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Terminal reports whether the appointment can no longer generate reminders.
func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Patient carries the clinical/demographic facts the risk scorer reads.
// Age and LastVisit are optional; absent values contribute nothing to the
// risk score.
type Patient struct {
	ID               string
	Name             string
	Age              *int
	MedicalHistory   []string
	LastVisit        *time.Time
	EmergencyContact bool
}

// Appointment is an externally-owned booking. VisitDate ("2006-01-02") and
// VisitTime ("3:04 PM") are wall-clock strings in the facility timezone;
// they carry no zone of their own.
type Appointment struct {
	ID        string
	PatientID string
	Provider  string
	VisitDate string
	VisitTime string
	Status    AppointmentStatus
}
