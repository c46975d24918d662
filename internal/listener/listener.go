// Package listener bridges appointment lifecycle events from the external
// scheduling store into the reminder engine. The boundary is a plain Go
// channel of events; Listen feeds it from Postgres LISTEN/NOTIFY on the
// `appointment_changed` channel using a dedicated pgx connection (not from
// the pool), and in-process producers (tests, tooling) can feed it directly.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/careloop/careminder/internal/directory"
)

const (
	channel          = "appointment_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Kind is the appointment lifecycle transition carried by an event.
type Kind string

const (
	KindCreated   Kind = "created"
	KindUpdated   Kind = "updated"
	KindCancelled Kind = "cancelled"
)

// Event carries the full appointment as of the change.
type Event struct {
	Kind        Kind
	Appointment directory.Appointment
}

// Handler reacts to appointment change events. Implemented by the
// notifications engine.
type Handler interface {
	HandleAppointmentEvent(ctx context.Context, ev Event) error
}

// Relay consumes events and forwards each to the handler. A failed handler
// call is logged and never stops the loop. Blocks until ctx is cancelled or
// the channel closes. Intended to be called with `go`.
func Relay(ctx context.Context, events <-chan Event, h Handler, logger *slog.Logger) {
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				logger.Info("Appointment event channel closed")
				return
			}
			if err := h.HandleAppointmentEvent(ctx, ev); err != nil {
				logger.Warn("Appointment event handling failed",
					"kind", ev.Kind, "appointment_id", ev.Appointment.ID, "error", err)
			}
		case <-ctx.Done():
			logger.Info("Appointment event relay stopped")
			return
		}
	}
}

// wireEvent is the JSON payload from pg_notify('appointment_changed', ...).
type wireEvent struct {
	Kind      string `json:"kind"`
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
	Provider  string `json:"provider"`
	VisitDate string `json:"visit_date"`
	VisitTime string `json:"visit_time"`
	Status    string `json:"status"`
}

// Listen opens a dedicated connection and forwards appointment_changed
// notifications onto out. It reconnects automatically on connection loss.
// Blocks until ctx is cancelled. Intended to be called with `go`.
func Listen(ctx context.Context, dbURL string, out chan<- Event, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, out, logger)
		if ctx.Err() != nil {
			logger.Info("Appointment listener stopped (context cancelled)")
			return
		}

		logger.Error("Appointment listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, out chan<- Event, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Appointment listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var wire wireEvent
		if err := json.Unmarshal([]byte(notification.Payload), &wire); err != nil {
			logger.Warn("Failed to parse appointment event",
				"payload", notification.Payload, "error", err)
			continue
		}

		ev := Event{
			Kind: Kind(wire.Kind),
			Appointment: directory.Appointment{
				ID:        wire.ID,
				PatientID: wire.PatientID,
				Provider:  wire.Provider,
				VisitDate: wire.VisitDate,
				VisitTime: wire.VisitTime,
				Status:    directory.AppointmentStatus(wire.Status),
			},
		}

		logger.Info("Appointment event received",
			"kind", ev.Kind, "appointment_id", ev.Appointment.ID, "status", ev.Appointment.Status)

		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
