package notifications

import (
	"testing"

	"github.com/careloop/careminder/internal/directory"
)

func TestRenderMessageFillsAllPlaceholders(t *testing.T) {
	p := directory.Patient{ID: "p1", Name: "Ada Obi"}
	a := &directory.Appointment{
		ID: "a1", PatientID: "p1", Provider: "Dr. Okafor",
		VisitDate: "2026-03-12", VisitTime: "10:00 AM",
	}

	got := RenderMessage("Reminder: {patientName}, {provider} on {date} at {time}.", p, a)
	want := "Reminder: Ada Obi, Dr. Okafor on 2026-03-12 at 10:00 AM."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestRenderMessageNilAppointment(t *testing.T) {
	p := directory.Patient{ID: "p1", Name: "Ada Obi"}

	got := RenderMessage("{patientName} overdue since {date}{time}{provider}", p, nil)
	want := "Ada Obi overdue since "
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestDefaultRulesCoverEveryTrigger(t *testing.T) {
	rules := DefaultRules()

	byID := make(map[string]Rule, len(rules))
	for _, r := range rules {
		if _, dup := byID[r.ID]; dup {
			t.Fatalf("duplicate rule id %q", r.ID)
		}
		byID[r.ID] = r
	}

	seen := make(map[Trigger]bool)
	for _, r := range rules {
		seen[r.Trigger] = true
		if r.Trigger == TriggerBeforeAppointment && r.OffsetMinutes <= 0 {
			t.Errorf("rule %s: before-appointment rule needs a positive offset", r.ID)
		}
		if r.Trigger != TriggerBeforeAppointment && r.OffsetMinutes != 0 {
			t.Errorf("rule %s: offset is meaningless for trigger %s", r.ID, r.Trigger)
		}
	}

	for _, trig := range []Trigger{
		TriggerBeforeAppointment,
		TriggerAppointmentCreated,
		TriggerAppointmentUpdated,
		TriggerAppointmentCancelled,
		TriggerHighRiskPatient,
		TriggerFollowUpDue,
	} {
		if !seen[trig] {
			t.Errorf("no rule for trigger %s", trig)
		}
	}

	if byID["appt-cancelled"].Priority != PriorityHigh {
		t.Error("cancellation notices should be high priority")
	}
	if byID["high-risk"].Priority != PriorityCritical {
		t.Error("high-risk alerts should be critical priority")
	}
}
