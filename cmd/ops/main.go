// Command ops is the CareMinder operations CLI.
//
// Usage:
//
//	careminder-ops schedule-all
//	careminder-ops check-now
//	careminder-ops risks
//	careminder-ops risks --patient p-42
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/careloop/careminder/internal/config"
	"github.com/careloop/careminder/internal/db"
	"github.com/careloop/careminder/internal/directory"
	"github.com/careloop/careminder/internal/notifications"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "careminder-ops",
		Short: "CareMinder reminder-engine operations CLI",
	}

	root.AddCommand(scheduleAllCmd())
	root.AddCommand(checkNowCmd())
	root.AddCommand(risksCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func scheduleAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule-all",
		Short: "Run the idempotent bulk scheduling pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *notifications.Engine) error {
				if err := engine.ScheduleAll(ctx); err != nil {
					return err
				}
				upcoming, err := engine.Upcoming(ctx)
				if err != nil {
					return err
				}
				logger.Info("Scheduling pass complete", "pending", len(upcoming))
				return nil
			})
		},
	}
}

func checkNowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-now",
		Short: "Run one delivery check immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *notifications.Engine) error {
				sent, failed, err := engine.CheckNow(ctx)
				if err != nil {
					return err
				}
				logger.Info("Delivery check complete", "sent", sent, "failed", failed)
				return nil
			})
		},
	}
}

func risksCmd() *cobra.Command {
	var patientID string
	cmd := &cobra.Command{
		Use:   "risks",
		Short: "Print risk analysis for all patients, or one with --patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(ctx context.Context, engine *notifications.Engine) error {
				if patientID != "" {
					a, err := engine.GetRiskAssessment(ctx, patientID)
					if err != nil {
						return err
					}
					fmt.Printf("patient=%s score=%d level=%s overdue=%v follow_up_days=%d\n",
						patientID, a.RiskScore, a.RiskLevel, a.IsFollowUpOverdue, a.RecommendedFollowUpDays)
					return nil
				}

				reports, err := engine.AnalyzeRisks(ctx)
				if err != nil {
					return err
				}
				for _, rep := range reports {
					fmt.Printf("patient=%s name=%q score=%d alerts=%v\n",
						rep.Patient.ID, rep.Patient.Name, rep.RiskScore, rep.Alerts)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "Patient id for a single assessment")
	return cmd
}

// withEngine wires a database-backed engine for one-shot commands. The
// delivery worker is not started; commands drive the engine directly.
func withEngine(fn func(ctx context.Context, engine *notifications.Engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	pool, err := db.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	dispatcher := notifications.NewDispatcher(notifications.NewLogSink(logger), logger)
	engine := notifications.New(notifications.Deps{
		Store:      notifications.NewPGStore(pool.Pool),
		Patients:   directory.NewPGPatientDirectory(pool.Pool),
		Appts:      directory.NewPGAppointmentBook(pool.Pool),
		Dispatcher: dispatcher,
		Location:   loc,
		Logger:     logger,
	})

	return fn(ctx, engine)
}
