package directory

import (
	"context"
	"sort"
	"sync"
)

// MemoryDirectory is an in-memory PatientDirectory + AppointmentBook used in
// tests and local development without Postgres.
type MemoryDirectory struct {
	mu       sync.RWMutex
	patients map[string]Patient
	appts    map[string]Appointment
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		patients: make(map[string]Patient),
		appts:    make(map[string]Appointment),
	}
}

// PutPatient adds or replaces a patient.
func (m *MemoryDirectory) PutPatient(p Patient) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patients[p.ID] = p
}

// PutAppointment adds or replaces an appointment.
func (m *MemoryDirectory) PutAppointment(a Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[a.ID] = a
}

func (m *MemoryDirectory) GetPatients(_ context.Context) ([]Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Patient, 0, len(m.patients))
	for _, p := range m.patients {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryDirectory) GetPatientByID(_ context.Context, id string) (*Patient, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (m *MemoryDirectory) GetAppointments(_ context.Context) ([]Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Appointment, 0, len(m.appts))
	for _, a := range m.appts {
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryDirectory) GetAppointmentByID(_ context.Context, id string) (*Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}
