package listener

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/careloop/careminder/internal/directory"
)

type capturingHandler struct {
	mu     sync.Mutex
	events []Event
	errFor map[string]error
}

func (h *capturingHandler) HandleAppointmentEvent(_ context.Context, ev Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	if h.errFor != nil {
		return h.errFor[ev.Appointment.ID]
	}
	return nil
}

func (h *capturingHandler) seen() []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Event, len(h.events))
	copy(out, h.events)
	return out
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func event(kind Kind, id string) Event {
	return Event{Kind: kind, Appointment: directory.Appointment{ID: id, PatientID: "p1"}}
}

func TestRelayForwardsInOrder(t *testing.T) {
	events := make(chan Event, 3)
	events <- event(KindCreated, "a1")
	events <- event(KindUpdated, "a1")
	events <- event(KindCancelled, "a1")
	close(events)

	h := &capturingHandler{}
	done := make(chan struct{})
	go func() {
		Relay(context.Background(), events, h, discard())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Relay did not return after channel close")
	}

	got := h.seen()
	if len(got) != 3 {
		t.Fatalf("handled %d events, want 3", len(got))
	}
	want := []Kind{KindCreated, KindUpdated, KindCancelled}
	for i, kind := range want {
		if got[i].Kind != kind {
			t.Errorf("event %d kind = %s, want %s", i, got[i].Kind, kind)
		}
	}
}

func TestRelaySurvivesHandlerErrors(t *testing.T) {
	events := make(chan Event, 2)
	events <- event(KindCreated, "bad")
	events <- event(KindCreated, "good")
	close(events)

	h := &capturingHandler{errFor: map[string]error{"bad": errors.New("boom")}}
	done := make(chan struct{})
	go func() {
		Relay(context.Background(), events, h, discard())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Relay did not drain the channel")
	}

	if got := h.seen(); len(got) != 2 {
		t.Fatalf("handled %d events, want 2 (error must not stop the loop)", len(got))
	}
}

func TestRelayStopsOnContextCancel(t *testing.T) {
	events := make(chan Event)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Relay(ctx, events, &capturingHandler{}, discard())
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Relay did not stop on context cancellation")
	}
}
