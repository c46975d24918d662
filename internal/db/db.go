// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careloop/careminder/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers all statements the engine and API
// layers use. Prepared statements eliminate parse overhead on every request.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Patient directory
		"get_patients":      "SELECT id, name, age, medical_history, last_visit, emergency_contact FROM patients ORDER BY name",
		"get_patient_by_id": "SELECT id, name, age, medical_history, last_visit, emergency_contact FROM patients WHERE id = $1",

		// Appointment book
		"get_appointments":      "SELECT id, patient_id, provider, visit_date, visit_time, status FROM appointments ORDER BY visit_date, visit_time",
		"get_appointment_by_id": "SELECT id, patient_id, provider, visit_date, visit_time, status FROM appointments WHERE id = $1",

		// Notifications: queries (writes go through inline SQL that needs
		// RETURNING / row-lock clauses, see store_pg.go)
		"upcoming_notifications": "SELECT id, rule_id, patient_id, appointment_id, scheduled_for, message, priority, channel, status, sent_at, last_error, created_at FROM notifications WHERE status = 'pending' ORDER BY scheduled_for",
		"sent_notifications":     "SELECT id, rule_id, patient_id, appointment_id, scheduled_for, message, priority, channel, status, sent_at, last_error, created_at FROM notifications WHERE status = 'sent' ORDER BY sent_at DESC",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
