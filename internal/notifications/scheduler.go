package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/careloop/careminder/internal/directory"
	"github.com/careloop/careminder/internal/risk"
)

// appointmentLayout parses the external store's wall-clock strings. The
// combined value is interpreted in the facility timezone — never UTC.
const appointmentLayout = "2006-01-02 3:04 PM"

// Scheduler expands the rule table against patients and appointments and
// persists pending notifications. All inserts go through the store's atomic
// upsert-if-absent, so every entry point is idempotent.
type Scheduler struct {
	rules    []Rule
	store    Store
	patients directory.PatientDirectory
	appts    directory.AppointmentBook
	clock    Clock
	loc      *time.Location
	logger   *slog.Logger
}

func NewScheduler(
	rules []Rule,
	store Store,
	patients directory.PatientDirectory,
	appts directory.AppointmentBook,
	clock Clock,
	loc *time.Location,
	logger *slog.Logger,
) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		rules:    rules,
		store:    store,
		patients: patients,
		appts:    appts,
		clock:    clock,
		loc:      loc,
		logger:   logger,
	}
}

// AppointmentInstant combines the date and 12-hour time strings into a
// single instant in the facility timezone.
func (s *Scheduler) AppointmentInstant(a directory.Appointment) (time.Time, error) {
	t, err := time.ParseInLocation(appointmentLayout, a.VisitDate+" "+a.VisitTime, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse appointment %s time %q %q: %w", a.ID, a.VisitDate, a.VisitTime, err)
	}
	return t, nil
}

// ScheduleForAppointment inserts a pending reminder for every
// before_appointment rule whose fire instant is still in the future.
// Rules whose window has already passed are skipped — no past-due records
// are ever created. An unparseable date/time skips the appointment with a
// warning and schedules nothing.
func (s *Scheduler) ScheduleForAppointment(ctx context.Context, p directory.Patient, a directory.Appointment) error {
	if a.Status.Terminal() {
		return nil
	}

	instant, err := s.AppointmentInstant(a)
	if err != nil {
		s.logger.Warn("Skipping appointment with unparseable time",
			"appointment_id", a.ID, "date", a.VisitDate, "time", a.VisitTime, "error", err)
		return nil
	}

	now := s.clock.Now()
	for _, rule := range s.rules {
		if rule.Trigger != TriggerBeforeAppointment {
			continue
		}
		offset := time.Duration(rule.OffsetMinutes) * time.Minute
		fireAt := instant.Add(-offset)
		if !fireAt.After(now) {
			continue
		}

		channel := ChannelSystem
		if offset > emailOffsetThreshold {
			channel = ChannelEmail
		}

		n := &Notification{
			RuleID:        rule.ID,
			PatientID:     p.ID,
			AppointmentID: a.ID,
			ScheduledFor:  fireAt,
			Message:       RenderMessage(rule.Template, p, &a),
			Priority:      rule.Priority,
			Channel:       channel,
			Status:        StatusPending,
			CreatedAt:     now,
		}
		inserted, err := s.store.Insert(ctx, n)
		if err != nil {
			return fmt.Errorf("schedule rule %s for appointment %s: %w", rule.ID, a.ID, err)
		}
		if inserted {
			s.logger.Info("Reminder scheduled",
				"rule", rule.ID, "patient_id", p.ID, "appointment_id", a.ID,
				"scheduled_for", fireAt, "channel", channel)
		}
	}
	return nil
}

// ScheduleEvent inserts the immediate informational notification for an
// appointment lifecycle trigger (created/updated/cancelled). Fires now.
func (s *Scheduler) ScheduleEvent(ctx context.Context, trigger Trigger, p directory.Patient, a directory.Appointment) error {
	rule, ok := s.ruleFor(trigger)
	if !ok {
		return nil
	}
	n := &Notification{
		RuleID:        rule.ID,
		PatientID:     p.ID,
		AppointmentID: a.ID,
		ScheduledFor:  s.clock.Now(),
		Message:       RenderMessage(rule.Template, p, &a),
		Priority:      rule.Priority,
		Channel:       ChannelSystem,
		Status:        StatusPending,
		CreatedAt:     s.clock.Now(),
	}
	if _, err := s.store.Insert(ctx, n); err != nil {
		return fmt.Errorf("schedule %s for appointment %s: %w", trigger, a.ID, err)
	}
	return nil
}

// ScheduleAll walks every non-terminal appointment plus current patient
// facts. Safe to call repeatedly: duplicates are silent no-ops in the store.
// A missing patient or bad timestamp skips that entry and continues the
// batch.
func (s *Scheduler) ScheduleAll(ctx context.Context) error {
	appts, err := s.appts.GetAppointments(ctx)
	if err != nil {
		return fmt.Errorf("load appointments: %w", err)
	}

	for _, a := range appts {
		if a.Status.Terminal() {
			continue
		}
		p, err := s.patients.GetPatientByID(ctx, a.PatientID)
		if err != nil {
			if errors.Is(err, directory.ErrPatientNotFound) {
				s.logger.Warn("Appointment references unknown patient",
					"appointment_id", a.ID, "patient_id", a.PatientID)
				continue
			}
			return fmt.Errorf("load patient %s: %w", a.PatientID, err)
		}
		if err := s.ScheduleForAppointment(ctx, *p, a); err != nil {
			return err
		}
	}

	return s.schedulePatientAlerts(ctx)
}

// schedulePatientAlerts evaluates the appointment-independent triggers
// (high_risk_patient, follow_up_due) against current patient facts. These
// records carry an empty appointment id in their dedup key.
func (s *Scheduler) schedulePatientAlerts(ctx context.Context) error {
	patients, err := s.patients.GetPatients(ctx)
	if err != nil {
		return fmt.Errorf("load patients: %w", err)
	}

	now := s.clock.Now()
	for _, p := range patients {
		if risk.Score(p, now) > 7 {
			if err := s.schedulePatientAlert(ctx, TriggerHighRiskPatient, p, now); err != nil {
				return err
			}
		}
		if risk.IsFollowUpOverdue(p, now) {
			if err := s.schedulePatientAlert(ctx, TriggerFollowUpDue, p, now); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Scheduler) schedulePatientAlert(ctx context.Context, trigger Trigger, p directory.Patient, now time.Time) error {
	rule, ok := s.ruleFor(trigger)
	if !ok {
		return nil
	}
	n := &Notification{
		RuleID:       rule.ID,
		PatientID:    p.ID,
		ScheduledFor: now,
		Message:      RenderMessage(rule.Template, p, nil),
		Priority:     rule.Priority,
		Channel:      ChannelSystem,
		Status:       StatusPending,
		CreatedAt:    now,
	}
	if _, err := s.store.Insert(ctx, n); err != nil {
		return fmt.Errorf("schedule %s for patient %s: %w", trigger, p.ID, err)
	}
	return nil
}

// CancelForAppointment drops every pending record for a cancelled
// appointment. Sent records stay in history untouched.
func (s *Scheduler) CancelForAppointment(ctx context.Context, appointmentID string) (int, error) {
	cancelled, err := s.store.CancelForAppointment(ctx, appointmentID)
	if err != nil {
		return 0, err
	}
	if cancelled > 0 {
		s.logger.Info("Pending reminders cancelled",
			"appointment_id", appointmentID, "count", cancelled)
	}
	return cancelled, nil
}

func (s *Scheduler) ruleFor(trigger Trigger) (Rule, bool) {
	for _, r := range s.rules {
		if r.Trigger == trigger {
			return r, true
		}
	}
	return Rule{}, false
}
