package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/careloop/careminder/internal/directory"
	"github.com/careloop/careminder/internal/listener"
	"github.com/careloop/careminder/internal/risk"
)

func TestHandleEventCreatedSchedulesAndNotifies(t *testing.T) {
	f := newFixture(schedNow)
	putPatient(f, "p1", "Ada Obi")
	a := directory.Appointment{
		ID: "a1", PatientID: "p1", Provider: "Dr. Okafor",
		VisitDate: "2026-03-12", VisitTime: "10:00 AM",
		Status: directory.StatusBooked,
	}

	err := f.engine.HandleAppointmentEvent(context.Background(), listener.Event{
		Kind:        listener.KindCreated,
		Appointment: a,
	})
	if err != nil {
		t.Fatalf("HandleAppointmentEvent: %v", err)
	}

	byKey := pendingKeys(t, f)
	if _, ok := byKey[Key{RuleID: "appt-created", PatientID: "p1", AppointmentID: "a1"}]; !ok {
		t.Error("informational created notification missing")
	}
	if _, ok := byKey[Key{RuleID: "reminder-24h", PatientID: "p1", AppointmentID: "a1"}]; !ok {
		t.Error("before-appointment reminder missing")
	}

	// The informational record fires immediately on the next check.
	sent, _, err := f.engine.CheckNow(context.Background())
	if err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1 (only the immediate record is due)", sent)
	}
}

func TestHandleEventUpdatedIsIdempotentPerAppointment(t *testing.T) {
	f := newFixture(schedNow)
	putPatient(f, "p1", "Ada Obi")
	a := directory.Appointment{
		ID: "a1", PatientID: "p1", Provider: "Dr. Okafor",
		VisitDate: "2026-03-12", VisitTime: "10:00 AM",
		Status: directory.StatusBooked,
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ev := listener.Event{Kind: listener.KindUpdated, Appointment: a}
		if err := f.engine.HandleAppointmentEvent(ctx, ev); err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}

	count := 0
	for key := range pendingKeys(t, f) {
		if key.RuleID == "appt-updated" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("%d updated notifications for one appointment, want 1", count)
	}
}

func TestHandleEventCancelledScenario(t *testing.T) {
	// Two pending reminders scheduled, appointment cancelled before either
	// fired: Upcoming drops to zero for that appointment, History keeps
	// whatever was already sent.
	f := newFixture(schedNow)
	p := putPatient(f, "p1", "Ada Obi")
	a := putAppointment(f, "a1", "p1", "2026-03-12", "10:00 AM")

	ctx := context.Background()
	if err := f.engine.scheduler.ScheduleForAppointment(ctx, p, a); err != nil {
		t.Fatalf("ScheduleForAppointment: %v", err)
	}

	// Let the 24h reminder fire first so history has an entry for a1.
	f.clock.Advance(21 * time.Hour)
	if _, _, err := f.engine.CheckNow(ctx); err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	histBefore, _ := f.engine.History(ctx)
	if len(histBefore) != 1 {
		t.Fatalf("history before cancel = %d, want 1", len(histBefore))
	}

	cancelled := a
	cancelled.Status = directory.StatusCancelled
	err := f.engine.HandleAppointmentEvent(ctx, listener.Event{
		Kind:        listener.KindCancelled,
		Appointment: cancelled,
	})
	if err != nil {
		t.Fatalf("HandleAppointmentEvent: %v", err)
	}

	upcoming, _ := f.engine.Upcoming(ctx)
	for _, n := range upcoming {
		if n.AppointmentID == "a1" && n.RuleID != "appt-cancelled" {
			t.Errorf("pending reminder survived cancellation: %s", n.RuleID)
		}
	}

	histAfter, _ := f.engine.History(ctx)
	if len(histAfter) != len(histBefore) {
		t.Errorf("history changed by cancellation: %d -> %d", len(histBefore), len(histAfter))
	}
}

func TestHandleEventUnknownPatientIsSkipped(t *testing.T) {
	f := newFixture(schedNow)
	a := directory.Appointment{
		ID: "a1", PatientID: "ghost", Provider: "Dr. Okafor",
		VisitDate: "2026-03-12", VisitTime: "10:00 AM",
		Status: directory.StatusBooked,
	}

	err := f.engine.HandleAppointmentEvent(context.Background(), listener.Event{
		Kind:        listener.KindCreated,
		Appointment: a,
	})
	if err != nil {
		t.Fatalf("unknown patient should be skipped, got error: %v", err)
	}
	if got := pendingKeys(t, f); len(got) != 0 {
		t.Errorf("records created for unknown patient: %v", got)
	}
}

func TestAnalyzeRisksAndAssessment(t *testing.T) {
	f := newFixture(schedNow)
	age := 82
	lastVisit := schedNow.AddDate(0, 0, -40)
	f.dir.PutPatient(directory.Patient{
		ID: "p1", Name: "Ada Obi", Age: &age,
		MedicalHistory: []string{"diabetes", "heart disease"},
		LastVisit:      &lastVisit,
	})
	putPatient(f, "p2", "Ben Low")

	ctx := context.Background()
	reports, err := f.engine.AnalyzeRisks(ctx)
	if err != nil {
		t.Fatalf("AnalyzeRisks: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("got %d reports, want 2", len(reports))
	}

	assessment, err := f.engine.GetRiskAssessment(ctx, "p1")
	if err != nil {
		t.Fatalf("GetRiskAssessment: %v", err)
	}
	if assessment.RiskLevel != risk.LevelHigh {
		t.Errorf("RiskLevel = %s, want High", assessment.RiskLevel)
	}
	if !assessment.IsFollowUpOverdue {
		t.Error("expected overdue follow-up")
	}
	if assessment.RecommendedFollowUpDays != 14 {
		t.Errorf("RecommendedFollowUpDays = %d, want 14", assessment.RecommendedFollowUpDays)
	}

	if _, err := f.engine.GetRiskAssessment(ctx, "ghost"); err == nil {
		t.Error("expected error for unknown patient")
	}
}
