package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/careloop/careminder/internal/directory"
	"github.com/careloop/careminder/internal/listener"
	"github.com/careloop/careminder/internal/risk"
)

// Engine is the reminder engine façade: scheduling, delivery, risk queries
// and the appointment change handler behind one explicitly-constructed
// object. No ambient globals; every collaborator is injected.
type Engine struct {
	scheduler *Scheduler
	worker    *Worker
	store     Store
	patients  directory.PatientDirectory
	clock     Clock
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Deps are the engine's injected collaborators. Rules defaults to
// DefaultRules, Clock to the system clock, Location to facility-local time.
type Deps struct {
	Rules      []Rule
	Store      Store
	Patients   directory.PatientDirectory
	Appts      directory.AppointmentBook
	Dispatcher *Dispatcher
	Clock      Clock
	Location   *time.Location
	Worker     WorkerOptions
	Logger     *slog.Logger
}

func New(deps Deps) *Engine {
	if deps.Rules == nil {
		deps.Rules = DefaultRules()
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	scheduler := NewScheduler(deps.Rules, deps.Store, deps.Patients, deps.Appts,
		deps.Clock, deps.Location, deps.Logger)
	worker := NewWorker(deps.Store, deps.Dispatcher, deps.Clock, deps.Worker, deps.Logger)

	return &Engine{
		scheduler: scheduler,
		worker:    worker,
		store:     deps.Store,
		patients:  deps.Patients,
		clock:     deps.Clock,
		logger:    deps.Logger,
	}
}

// Start launches the delivery worker. Safe to call once per engine.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.worker.Run(runCtx)
	}()
}

// Stop halts the delivery worker, letting an in-flight tick finish.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	e.wg.Wait()
}

// ScheduleAll runs the idempotent bulk scheduling pass.
func (e *Engine) ScheduleAll(ctx context.Context) error {
	return e.scheduler.ScheduleAll(ctx)
}

// CheckNow runs one delivery check immediately, outside the ticker cadence.
func (e *Engine) CheckNow(ctx context.Context) (sent, failed int, err error) {
	return e.worker.RunOnce(ctx)
}

// Upcoming returns pending notifications ascending by scheduled-for.
func (e *Engine) Upcoming(ctx context.Context) ([]Notification, error) {
	return e.store.Upcoming(ctx)
}

// History returns sent notifications.
func (e *Engine) History(ctx context.Context) ([]Notification, error) {
	return e.store.History(ctx)
}

// AnalyzeRisks scores every patient and returns reports in directory order;
// callers sort as they see fit.
func (e *Engine) AnalyzeRisks(ctx context.Context) ([]risk.Report, error) {
	patients, err := e.patients.GetPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	return risk.Analyze(patients, e.clock.Now()), nil
}

// GetRiskAssessment returns the score/level/follow-up summary for one
// patient.
func (e *Engine) GetRiskAssessment(ctx context.Context, patientID string) (*risk.Assessment, error) {
	p, err := e.patients.GetPatientByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	a := risk.Assess(*p, e.clock.Now())
	return &a, nil
}

// HandleAppointmentEvent implements listener.Handler. Creates and updates
// re-run scheduling and emit the matching informational notification;
// cancellations drop pending reminders and emit a high-priority notice.
func (e *Engine) HandleAppointmentEvent(ctx context.Context, ev listener.Event) error {
	a := ev.Appointment

	p, err := e.patients.GetPatientByID(ctx, a.PatientID)
	if err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			e.logger.Warn("Appointment event references unknown patient",
				"appointment_id", a.ID, "patient_id", a.PatientID)
			return nil
		}
		return fmt.Errorf("load patient %s: %w", a.PatientID, err)
	}

	switch ev.Kind {
	case listener.KindCreated:
		if err := e.scheduler.ScheduleForAppointment(ctx, *p, a); err != nil {
			return err
		}
		return e.scheduler.ScheduleEvent(ctx, TriggerAppointmentCreated, *p, a)

	case listener.KindUpdated:
		if err := e.scheduler.ScheduleForAppointment(ctx, *p, a); err != nil {
			return err
		}
		return e.scheduler.ScheduleEvent(ctx, TriggerAppointmentUpdated, *p, a)

	case listener.KindCancelled:
		if _, err := e.scheduler.CancelForAppointment(ctx, a.ID); err != nil {
			return err
		}
		return e.scheduler.ScheduleEvent(ctx, TriggerAppointmentCancelled, *p, a)

	default:
		e.logger.Warn("Unknown appointment event kind", "kind", ev.Kind)
		return nil
	}
}
