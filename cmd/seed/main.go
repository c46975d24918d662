// Command seed fills the database with demo patients and appointments for
// local development.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/careloop/careminder/internal/config"
	"github.com/careloop/careminder/internal/db"
	"github.com/careloop/careminder/internal/directory"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

// Condition tags mirroring what real charts carry: a mix of high-risk
// keywords the scorer matches and benign filler.
var conditionTags = []string{
	"Type 2 Diabetes",
	"Hypertension",
	"Coronary Heart Disease",
	"COPD",
	"Breast Cancer (in remission)",
	"Seasonal allergies",
	"Migraine",
	"Mild asthma",
	"Lower back pain",
}

var providers = []string{
	"Dr. Okafor",
	"Dr. Lindqvist",
	"Dr. Sharma",
	"Dr. Reyes",
	"Dr. Chen",
}

func main() {
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	patientIDs, err := seedPatients(ctx, pool, 50)
	if err != nil {
		logger.Error("Failed to seed patients", "error", err)
		os.Exit(1)
	}
	if err := seedAppointments(ctx, pool, patientIDs, 120); err != nil {
		logger.Error("Failed to seed appointments", "error", err)
		os.Exit(1)
	}

	logger.Info("Seed complete", "patients", len(patientIDs))
}

func seedPatients(ctx context.Context, pool *db.Pool, count int) ([]string, error) {
	logger.Info("Seeding patients", "count", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.NewString()
		name := gofakeit.Name()
		age := gofakeit.Number(18, 95)

		var history []string
		for _, tag := range conditionTags {
			if gofakeit.Bool() && len(history) < 4 {
				history = append(history, tag)
			}
		}

		var lastVisit *time.Time
		if gofakeit.Number(0, 9) > 1 {
			v := time.Now().AddDate(0, 0, -gofakeit.Number(5, 400))
			lastVisit = &v
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO patients (id, name, age, medical_history, last_visit, emergency_contact)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, name, age, history, lastVisit, gofakeit.Bool())
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

func seedAppointments(ctx context.Context, pool *db.Pool, patientIDs []string, count int) error {
	logger.Info("Seeding appointments", "count", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	statuses := []directory.AppointmentStatus{
		directory.StatusPending,
		directory.StatusBooked,
		directory.StatusBooked,
		directory.StatusCompleted,
	}

	for i := 0; i < count; i++ {
		patientID := patientIDs[gofakeit.Number(0, len(patientIDs)-1)]
		day := time.Now().AddDate(0, 0, gofakeit.Number(1, 30))
		hour := gofakeit.Number(8, 16)
		minute := []int{0, 15, 30, 45}[gofakeit.Number(0, 3)]
		visit := time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, time.Local)

		_, err := tx.Exec(ctx, `
			INSERT INTO appointments (id, patient_id, provider, visit_date, visit_time, status)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			uuid.NewString(),
			patientID,
			providers[gofakeit.Number(0, len(providers)-1)],
			visit.Format("2006-01-02"),
			visit.Format("3:04 PM"),
			statuses[gofakeit.Number(0, len(statuses)-1)],
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
