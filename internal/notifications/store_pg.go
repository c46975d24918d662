package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore is the Postgres-backed Store. The notifications table carries a
// UNIQUE (rule_id, patient_id, appointment_id) constraint, so dedup holds
// across process restarts; ClaimDue relies on FOR UPDATE SKIP LOCKED so a
// slow tick can never race a later one into redelivery.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

func (s *PGStore) Insert(ctx context.Context, n *Notification) (bool, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (
			id, rule_id, patient_id, appointment_id, scheduled_for,
			message, priority, channel, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,'pending',$9)
		ON CONFLICT (rule_id, patient_id, appointment_id) DO NOTHING`,
		n.ID, n.RuleID, n.PatientID, n.AppointmentID, n.ScheduledFor,
		n.Message, n.Priority, n.Channel, n.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert notification: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PGStore) ClaimDue(ctx context.Context, now time.Time) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE notifications
		SET status = 'sending', updated_at = NOW()
		WHERE id IN (
			SELECT id FROM notifications
			WHERE status = 'pending' AND scheduled_for <= $1
			ORDER BY scheduled_for
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, rule_id, patient_id, appointment_id, scheduled_for,
			message, priority, channel, status, sent_at, last_error, created_at`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("claim due notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *PGStore) MarkSent(ctx context.Context, id uuid.UUID, at time.Time, lastError string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'sent', sent_at = $2, last_error = $3, updated_at = NOW()
		WHERE id = $1 AND status <> 'sent'`,
		id, at, lastError)
	if err != nil {
		return fmt.Errorf("mark sent %s: %w", id, err)
	}
	return nil
}

func (s *PGStore) CancelForAppointment(ctx context.Context, appointmentID string) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications
		SET status = 'cancelled', updated_at = NOW()
		WHERE appointment_id = $1 AND status = 'pending'`,
		appointmentID)
	if err != nil {
		return 0, fmt.Errorf("cancel notifications for appointment %s: %w", appointmentID, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PGStore) Upcoming(ctx context.Context) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, "upcoming_notifications")
	if err != nil {
		return nil, fmt.Errorf("upcoming notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *PGStore) History(ctx context.Context) ([]Notification, error) {
	rows, err := s.pool.Query(ctx, "sent_notifications")
	if err != nil {
		return nil, fmt.Errorf("sent notifications: %w", err)
	}
	defer rows.Close()
	return scanNotifications(rows)
}

func (s *PGStore) Purge(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM notifications
		WHERE status IN ('sent', 'cancelled')
		  AND COALESCE(sent_at, created_at) < $1`,
		before)
	if err != nil {
		return 0, fmt.Errorf("purge notifications: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanNotifications(rows pgx.Rows) ([]Notification, error) {
	var result []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(
			&n.ID, &n.RuleID, &n.PatientID, &n.AppointmentID, &n.ScheduledFor,
			&n.Message, &n.Priority, &n.Channel, &n.Status, &n.SentAt,
			&n.LastError, &n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}
