// Package risk scores patients for follow-up priority. The score is an
// additive heuristic over age, chronic-condition history and time since the
// last visit, clamped to 0–10. It is a triage signal, not a validated
// clinical algorithm.
package risk

import (
	"strings"
	"time"

	"github.com/careloop/careminder/internal/directory"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const maxScore = 10

// Condition keywords that each add 3 points when any history tag contains
// them (case-insensitive substring match).
var highRiskConditions = []string{
	"diabetes",
	"hypertension",
	"heart disease",
	"copd",
	"cancer",
}

// Alert texts. Recommended actions are keyed off these.
const (
	AlertHighRisk           = "High risk patient"
	AlertFollowUpOverdue    = "Follow-up overdue"
	AlertNoEmergencyContact = "missing emergency contact"
)

var recommendedActions = map[string]string{
	AlertHighRisk:           "Schedule a priority follow-up and review the care plan",
	AlertFollowUpOverdue:    "Contact the patient to book a follow-up visit",
	AlertNoEmergencyContact: "Collect an emergency contact at the next visit",
}

// Level buckets a score for the assessment API.
type Level string

const (
	LevelLow    Level = "Low"
	LevelMedium Level = "Medium"
	LevelHigh   Level = "High"
)

// Assessment is the per-patient summary returned to callers.
type Assessment struct {
	RiskScore               int   `json:"riskScore"`
	RiskLevel               Level `json:"riskLevel"`
	IsFollowUpOverdue       bool  `json:"isFollowUpOverdue"`
	RecommendedFollowUpDays int   `json:"recommendedFollowUpDays"`
}

// Report pairs a patient with their score and derived alerts, as returned by
// the risk-analysis query path.
type Report struct {
	Patient            directory.Patient `json:"patient"`
	RiskScore          int               `json:"riskScore"`
	Alerts             []string          `json:"alerts"`
	RecommendedActions []string          `json:"recommendedActions"`
}

// --------------------------------------------------------------------------
// Scoring
// --------------------------------------------------------------------------

// Score computes the clamped 0–10 risk score for a patient as of now.
// Missing age or last-visit facts contribute nothing; they are never errors.
func Score(p directory.Patient, now time.Time) int {
	score := 0

	if p.Age != nil {
		if *p.Age > 65 {
			score += 2
		}
		if *p.Age > 80 {
			score += 2
		}
	}

	for _, cond := range highRiskConditions {
		if historyMatches(p.MedicalHistory, cond) {
			score += 3
		}
	}

	if p.LastVisit != nil {
		days := daysSince(*p.LastVisit, now)
		if days > 90 {
			score += 2
		}
		if days > 180 {
			score += 3
		}
	}

	if score > maxScore {
		score = maxScore
	}
	return score
}

// IsFollowUpOverdue reports whether the patient is past their follow-up
// window. Higher risk shortens the window: >7 → 30 days, >4 → 90 days,
// otherwise 180 days. Without a last-visit baseline nothing is overdue.
func IsFollowUpOverdue(p directory.Patient, now time.Time) bool {
	if p.LastVisit == nil {
		return false
	}
	days := daysSince(*p.LastVisit, now)
	score := Score(p, now)
	switch {
	case score > 7:
		return days > 30
	case score > 4:
		return days > 90
	default:
		return days > 180
	}
}

// Alerts derives the human-readable alert list for a patient. Alerts are
// presentation over the score, never an input to it.
func Alerts(p directory.Patient, now time.Time) []string {
	var alerts []string
	if Score(p, now) > 7 {
		alerts = append(alerts, AlertHighRisk)
	}
	if IsFollowUpOverdue(p, now) {
		alerts = append(alerts, AlertFollowUpOverdue)
	}
	if p.Age != nil && *p.Age > 75 && !p.EmergencyContact {
		alerts = append(alerts, AlertNoEmergencyContact)
	}
	return alerts
}

// Actions returns the fixed recommended action per fired alert.
func Actions(alerts []string) []string {
	actions := make([]string, 0, len(alerts))
	for _, a := range alerts {
		if act, ok := recommendedActions[a]; ok {
			actions = append(actions, act)
		}
	}
	return actions
}

// Assess bundles score, level, overdue flag and the recommended follow-up
// cadence (High → 14 days, Medium → 30, Low → 90).
func Assess(p directory.Patient, now time.Time) Assessment {
	score := Score(p, now)
	level, days := LevelLow, 90
	switch {
	case score > 7:
		level, days = LevelHigh, 14
	case score > 4:
		level, days = LevelMedium, 30
	}
	return Assessment{
		RiskScore:               score,
		RiskLevel:               level,
		IsFollowUpOverdue:       IsFollowUpOverdue(p, now),
		RecommendedFollowUpDays: days,
	}
}

// Analyze builds a report per patient.
func Analyze(patients []directory.Patient, now time.Time) []Report {
	reports := make([]Report, 0, len(patients))
	for _, p := range patients {
		alerts := Alerts(p, now)
		reports = append(reports, Report{
			Patient:            p,
			RiskScore:          Score(p, now),
			Alerts:             alerts,
			RecommendedActions: Actions(alerts),
		})
	}
	return reports
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func historyMatches(history []string, keyword string) bool {
	for _, tag := range history {
		if strings.Contains(strings.ToLower(tag), keyword) {
			return true
		}
	}
	return false
}

func daysSince(t, now time.Time) int {
	return int(now.Sub(t).Hours() / 24)
}
