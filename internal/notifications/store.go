package notifications

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is the durable keyed collection of notification records. It owns the
// dedup invariant: Insert is an atomic upsert-if-absent on the record's Key,
// and ClaimDue atomically moves due pending records out of the claimable set
// so overlapping ticks can never double-deliver.
type Store interface {
	// Insert persists the record unless one with the same Key already
	// exists. Returns false (and no error) on a duplicate.
	Insert(ctx context.Context, n *Notification) (bool, error)

	// ClaimDue atomically transitions every pending record with
	// scheduled_for <= now to "sending" and returns them.
	ClaimDue(ctx context.Context, now time.Time) ([]Notification, error)

	// MarkSent finalizes a claimed record. lastError records a dispatch
	// failure; the record is consumed either way (at-most-once).
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error

	// CancelForAppointment marks every pending record for the appointment
	// cancelled. Sent records are untouched. Returns the count cancelled.
	CancelForAppointment(ctx context.Context, appointmentID string) (int, error)

	// Upcoming returns pending records ascending by scheduled_for.
	Upcoming(ctx context.Context) ([]Notification, error)

	// History returns sent records, most recent first.
	History(ctx context.Context) ([]Notification, error)

	// Purge removes sent/cancelled records older than the cutoff and
	// returns the count removed.
	Purge(ctx context.Context, before time.Time) (int, error)
}

// MemoryStore is a mutex-guarded in-memory Store. Dedup does not survive a
// restart; production deployments use PGStore.
type MemoryStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]*Notification
	keys    map[Key]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[uuid.UUID]*Notification),
		keys:    make(map[Key]uuid.UUID),
	}
}

func (s *MemoryStore) Insert(_ context.Context, n *Notification) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.keys[n.Key()]; exists {
		return false, nil
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	cp := *n
	s.records[cp.ID] = &cp
	s.keys[cp.Key()] = cp.ID
	return true, nil
}

func (s *MemoryStore) ClaimDue(_ context.Context, now time.Time) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var claimed []Notification
	for _, rec := range s.records {
		if rec.Status == StatusPending && !rec.ScheduledFor.After(now) {
			rec.Status = StatusSending
			claimed = append(claimed, *rec)
		}
	}
	sort.Slice(claimed, func(i, j int) bool {
		return claimed[i].ScheduledFor.Before(claimed[j].ScheduledFor)
	})
	return claimed, nil
}

func (s *MemoryStore) MarkSent(_ context.Context, id uuid.UUID, at time.Time, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Status == StatusSent {
		return nil
	}
	rec.Status = StatusSent
	sentAt := at
	rec.SentAt = &sentAt
	rec.LastError = lastError
	return nil
}

func (s *MemoryStore) CancelForAppointment(_ context.Context, appointmentID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cancelled := 0
	for _, rec := range s.records {
		if rec.AppointmentID == appointmentID && rec.Status == StatusPending {
			rec.Status = StatusCancelled
			cancelled++
		}
	}
	return cancelled, nil
}

func (s *MemoryStore) Upcoming(_ context.Context) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Notification
	for _, rec := range s.records {
		if rec.Status == StatusPending {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledFor.Before(result[j].ScheduledFor)
	})
	return result, nil
}

func (s *MemoryStore) History(_ context.Context) ([]Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []Notification
	for _, rec := range s.records {
		if rec.Status == StatusSent {
			result = append(result, *rec)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SentAt.After(*result[j].SentAt)
	})
	return result, nil
}

func (s *MemoryStore) Purge(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, rec := range s.records {
		if rec.Status != StatusSent && rec.Status != StatusCancelled {
			continue
		}
		stamp := rec.CreatedAt
		if rec.SentAt != nil {
			stamp = *rec.SentAt
		}
		if stamp.Before(before) {
			delete(s.records, id)
			delete(s.keys, rec.Key())
			purged++
		}
	}
	return purged, nil
}
