package notifications

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

var storeNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func pendingRecord(rule, patient, appt string, at time.Time) *Notification {
	return &Notification{
		RuleID:        rule,
		PatientID:     patient,
		AppointmentID: appt,
		ScheduledFor:  at,
		Message:       "m",
		Priority:      PriorityMedium,
		Channel:       ChannelSystem,
		Status:        StatusPending,
		CreatedAt:     at,
	}
}

func TestMemoryStoreDedup(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	first := pendingRecord("r1", "p1", "a1", storeNow)
	inserted, err := s.Insert(ctx, first)
	if err != nil || !inserted {
		t.Fatalf("first Insert = (%v, %v), want (true, nil)", inserted, err)
	}

	dup := pendingRecord("r1", "p1", "a1", storeNow.Add(time.Hour))
	inserted, err = s.Insert(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate Insert errored: %v", err)
	}
	if inserted {
		t.Error("duplicate key was inserted")
	}

	// Different appointment is a different key.
	other := pendingRecord("r1", "p1", "a2", storeNow)
	if inserted, _ := s.Insert(ctx, other); !inserted {
		t.Error("distinct key rejected")
	}
}

func TestMemoryStoreConcurrentInsertSingleWinner(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	const racers = 32
	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inserted, err := s.Insert(ctx, pendingRecord("r1", "p1", "a1", storeNow))
			if err != nil {
				t.Errorf("Insert: %v", err)
				return
			}
			if inserted {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("%d concurrent inserts won, want exactly 1", wins)
	}
}

func TestClaimDueTransitionsAndExcludes(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	due := pendingRecord("r1", "p1", "a1", storeNow.Add(-time.Minute))
	exact := pendingRecord("r2", "p1", "a1", storeNow)
	future := pendingRecord("r3", "p1", "a1", storeNow.Add(time.Minute))
	for _, n := range []*Notification{due, exact, future} {
		if _, err := s.Insert(ctx, n); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	claimed, err := s.ClaimDue(ctx, storeNow)
	if err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if len(claimed) != 2 {
		t.Fatalf("claimed %d records, want 2 (due + exactly-due)", len(claimed))
	}

	// A second claim at the same instant must find nothing: the first one
	// moved the records out of the claimable set.
	claimed, err = s.ClaimDue(ctx, storeNow)
	if err != nil {
		t.Fatalf("second ClaimDue: %v", err)
	}
	if len(claimed) != 0 {
		t.Errorf("second claim returned %d records, want 0", len(claimed))
	}
}

func TestMarkSentIsFinal(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	n := pendingRecord("r1", "p1", "a1", storeNow)
	if _, err := s.Insert(ctx, n); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := s.ClaimDue(ctx, storeNow); err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}

	sentAt := storeNow.Add(time.Second)
	if err := s.MarkSent(ctx, n.ID, sentAt, ""); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	hist, err := s.History(ctx)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 || !hist[0].SentAt.Equal(sentAt) {
		t.Fatalf("History = %+v, want one record sent at %v", hist, sentAt)
	}

	// Re-marking must not move the sent timestamp.
	if err := s.MarkSent(ctx, n.ID, sentAt.Add(time.Hour), "late"); err != nil {
		t.Fatalf("second MarkSent: %v", err)
	}
	hist, _ = s.History(ctx)
	if !hist[0].SentAt.Equal(sentAt) {
		t.Error("sent record was mutated after the fact")
	}
}

func TestCancelLeavesSentUntouched(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	sent := pendingRecord("r1", "p1", "a1", storeNow.Add(-time.Hour))
	pending := pendingRecord("r2", "p1", "a1", storeNow.Add(time.Hour))
	for _, n := range []*Notification{sent, pending} {
		if _, err := s.Insert(ctx, n); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if _, err := s.ClaimDue(ctx, storeNow); err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if err := s.MarkSent(ctx, sent.ID, storeNow, ""); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	cancelled, err := s.CancelForAppointment(ctx, "a1")
	if err != nil {
		t.Fatalf("CancelForAppointment: %v", err)
	}
	if cancelled != 1 {
		t.Errorf("cancelled %d records, want 1 (only the pending one)", cancelled)
	}

	upcoming, _ := s.Upcoming(ctx)
	if len(upcoming) != 0 {
		t.Errorf("Upcoming returned %d records after cancellation", len(upcoming))
	}
	hist, _ := s.History(ctx)
	if len(hist) != 1 {
		t.Errorf("History lost the sent record: %d entries", len(hist))
	}
}

func TestUpcomingSortedAscending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	for i := 5; i >= 1; i-- {
		n := pendingRecord(fmt.Sprintf("r%d", i), "p1", "a1", storeNow.Add(time.Duration(i)*time.Hour))
		if _, err := s.Insert(ctx, n); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	upcoming, err := s.Upcoming(ctx)
	if err != nil {
		t.Fatalf("Upcoming: %v", err)
	}
	for i := 1; i < len(upcoming); i++ {
		if upcoming[i].ScheduledFor.Before(upcoming[i-1].ScheduledFor) {
			t.Fatalf("Upcoming not ascending at index %d", i)
		}
	}
}

func TestPurgeRemovesOnlyOldTerminalRecords(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	old := pendingRecord("r1", "p1", "a1", storeNow.AddDate(0, 0, -60))
	fresh := pendingRecord("r2", "p1", "a1", storeNow.Add(-time.Hour))
	pending := pendingRecord("r3", "p1", "a1", storeNow.Add(time.Hour))
	for _, n := range []*Notification{old, fresh, pending} {
		if _, err := s.Insert(ctx, n); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	if _, err := s.ClaimDue(ctx, storeNow); err != nil {
		t.Fatalf("ClaimDue: %v", err)
	}
	if err := s.MarkSent(ctx, old.ID, storeNow.AddDate(0, 0, -60), ""); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}
	if err := s.MarkSent(ctx, fresh.ID, storeNow, ""); err != nil {
		t.Fatalf("MarkSent: %v", err)
	}

	purged, err := s.Purge(ctx, storeNow.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("purged %d records, want 1", purged)
	}

	hist, _ := s.History(ctx)
	if len(hist) != 1 {
		t.Errorf("History has %d records after purge, want 1", len(hist))
	}
	upcoming, _ := s.Upcoming(ctx)
	if len(upcoming) != 1 {
		t.Errorf("pending record affected by purge: %d upcoming", len(upcoming))
	}
}
