package notifications

import (
	"strings"

	"github.com/careloop/careminder/internal/directory"
)

// DefaultRules is the fixed rule table, loaded once at startup. Message
// templates accept {patientName}, {time}, {provider} and {date}.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:            "reminder-24h",
			Trigger:       TriggerBeforeAppointment,
			OffsetMinutes: 24 * 60,
			Template:      "Reminder: {patientName}, you have an appointment with {provider} on {date} at {time}.",
			Priority:      PriorityMedium,
		},
		{
			ID:            "reminder-1h",
			Trigger:       TriggerBeforeAppointment,
			OffsetMinutes: 60,
			Template:      "Your appointment with {provider} starts at {time} today.",
			Priority:      PriorityHigh,
		},
		{
			ID:            "reminder-15m",
			Trigger:       TriggerBeforeAppointment,
			OffsetMinutes: 15,
			Template:      "{patientName}, {provider} will see you at {time}. Please check in.",
			Priority:      PriorityHigh,
		},
		{
			ID:       "appt-created",
			Trigger:  TriggerAppointmentCreated,
			Template: "Your appointment with {provider} on {date} at {time} has been booked.",
			Priority: PriorityLow,
		},
		{
			ID:       "appt-updated",
			Trigger:  TriggerAppointmentUpdated,
			Template: "Your appointment with {provider} has changed: now {date} at {time}.",
			Priority: PriorityMedium,
		},
		{
			ID:       "appt-cancelled",
			Trigger:  TriggerAppointmentCancelled,
			Template: "Your appointment with {provider} on {date} has been cancelled.",
			Priority: PriorityHigh,
		},
		{
			ID:       "high-risk",
			Trigger:  TriggerHighRiskPatient,
			Template: "{patientName} is flagged as a high risk patient and may need attention.",
			Priority: PriorityCritical,
		},
		{
			ID:       "follow-up",
			Trigger:  TriggerFollowUpDue,
			Template: "{patientName} is overdue for a follow-up visit.",
			Priority: PriorityMedium,
		},
	}
}

// RenderMessage fills a rule template from patient and appointment fields.
// Appointment may be nil for patient-level triggers; its placeholders then
// render empty.
func RenderMessage(template string, p directory.Patient, a *directory.Appointment) string {
	date, visitTime, provider := "", "", ""
	if a != nil {
		date, visitTime, provider = a.VisitDate, a.VisitTime, a.Provider
	}
	return strings.NewReplacer(
		"{patientName}", p.Name,
		"{time}", visitTime,
		"{provider}", provider,
		"{date}", date,
	).Replace(template)
}
