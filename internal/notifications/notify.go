// Package notifications schedules and delivers patient reminders.
//
// Pipeline: rules × appointments → compute fire instants → store dedups &
// persists → a ticker worker claims due records and dispatches them through
// a channel-routed sink. Appointment change events re-run scheduling or
// cancel pending records.
package notifications

import (
	"time"

	"github.com/google/uuid"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultTickInterval    = 60 * time.Second
	defaultDispatchTimeout = 10 * time.Second

	// Offsets above this ride the email channel; shorter reminders stay
	// in-app where they can still be seen in time.
	emailOffsetThreshold = 60 * time.Minute
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Trigger is the event/condition that causes a rule to fire.
type Trigger string

const (
	TriggerBeforeAppointment    Trigger = "before_appointment"
	TriggerAppointmentCreated   Trigger = "appointment_created"
	TriggerAppointmentUpdated   Trigger = "appointment_updated"
	TriggerAppointmentCancelled Trigger = "appointment_cancelled"
	TriggerHighRiskPatient      Trigger = "high_risk_patient"
	TriggerFollowUpDue          Trigger = "follow_up_due"
)

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

type Channel string

const (
	ChannelSystem Channel = "system"
	ChannelEmail  Channel = "email"
	ChannelSMS    Channel = "sms"
	ChannelCall   Channel = "call"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
)

// Rule is one row of the fixed notification rule table. OffsetMinutes is
// only meaningful for before_appointment triggers.
type Rule struct {
	ID            string
	Trigger       Trigger
	OffsetMinutes int
	Template      string
	Priority      Priority
}

// Key is the dedup identity: at most one notification ever exists per
// (rule, patient, appointment). AppointmentID is empty for patient-level
// triggers (high risk, follow-up due).
type Key struct {
	RuleID        string
	PatientID     string
	AppointmentID string
}

// Notification is a scheduled or delivered reminder record.
type Notification struct {
	ID            uuid.UUID  `json:"id"`
	RuleID        string     `json:"ruleId"`
	PatientID     string     `json:"patientId"`
	AppointmentID string     `json:"appointmentId,omitempty"`
	ScheduledFor  time.Time  `json:"scheduledFor"`
	Message       string     `json:"message"`
	Priority      Priority   `json:"priority"`
	Channel       Channel    `json:"channel"`
	Status        Status     `json:"status"`
	SentAt        *time.Time `json:"sentAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// Key returns the record's dedup identity.
func (n *Notification) Key() Key {
	return Key{RuleID: n.RuleID, PatientID: n.PatientID, AppointmentID: n.AppointmentID}
}

// Clock abstracts wall-clock reads so tests can advance time
// deterministically.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }
