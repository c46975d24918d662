package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/careloop/careminder/internal/api/respond"
	"github.com/careloop/careminder/internal/cache"
	"github.com/careloop/careminder/internal/directory"
	"github.com/careloop/careminder/internal/notifications"
)

// ScheduleAll runs the idempotent bulk scheduling pass. Re-POSTing is
// harmless; duplicates are no-ops.
func (h *Handler) ScheduleAll(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.ScheduleAll(r.Context()); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "SCHEDULE_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{"status": "scheduled"})
}

// CheckNow triggers one delivery check outside the ticker cadence. Used by
// ops tooling and tests.
func (h *Handler) CheckNow(w http.ResponseWriter, r *http.Request) {
	sent, failed, err := h.engine.CheckNow(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "CHECK_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"sent":   sent,
		"failed": failed,
	})
}

// Upcoming lists pending notifications ascending by scheduled-for.
func (h *Handler) Upcoming(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.Upcoming(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"notifications": emptyIfNil(list),
		"count":         len(list),
	})
}

// History lists sent notifications.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.History(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]interface{}{
		"notifications": emptyIfNil(list),
		"count":         len(list),
	})
}

// AnalyzeRisks scores every patient. Responses are cached briefly with ETag
// revalidation; scores only drift as patient facts change.
func (h *Handler) AnalyzeRisks(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "risks:all"
	ttl := cache.TTLRiskAnalysis

	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if cache.CheckETagMatch(r.Header.Get("If-None-Match"), etag) {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, ttl, true)
		return
	}

	reports, err := h.engine.AnalyzeRisks(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ANALYSIS_FAILED", err.Error())
		return
	}

	raw, err := json.Marshal(map[string]interface{}{
		"reports": reports,
		"count":   len(reports),
	})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "ENCODE_FAILED", err.Error())
		return
	}

	etag := h.cache.Set(cacheKey, raw, ttl)
	respond.WriteJSON(w, raw, etag, ttl, false)
}

// RiskAssessment returns the score/level/follow-up summary for one patient.
func (h *Handler) RiskAssessment(w http.ResponseWriter, r *http.Request) {
	patientID := chi.URLParam(r, "patientID")
	if patientID == "" {
		respond.WriteError(w, http.StatusBadRequest, "MISSING_PATIENT_ID", "patientID path parameter is required")
		return
	}

	assessment, err := h.engine.GetRiskAssessment(r.Context(), patientID)
	if err != nil {
		if errors.Is(err, directory.ErrPatientNotFound) {
			respond.WriteError(w, http.StatusNotFound, "PATIENT_NOT_FOUND", "No patient with id "+patientID)
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, "ASSESSMENT_FAILED", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, assessment)
}

func emptyIfNil(list []notifications.Notification) []notifications.Notification {
	if list == nil {
		return []notifications.Notification{}
	}
	return list
}
