package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"dentsched/internal/booking"
	"dentsched/internal/model"
	"dentsched/internal/schedule"
	"dentsched/internal/store"
)

// CreateAppointmentRequest is the request body for POST /api/v1/appointments.
type CreateAppointmentRequest struct {
	ProviderID      string `json:"provider_id"`
	PatientID       string `json:"patient_id"`
	Branch          string `json:"branch"`
	Date            string `json:"date"` // Format: YYYY-MM-DD
	Time            string `json:"time"` // Format: HH:MM
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Strategy        string `json:"strategy,omitempty"`
}

// CreateAppointmentResponse is the response for POST /api/v1/appointments.
type CreateAppointmentResponse struct {
	Success       bool   `json:"success"`
	AppointmentID string `json:"appointment_id,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// handleCreateAppointment validates the slot and inserts the booking. The
// store re-checks conflicts inside the insert transaction, so a race
// between two concurrent creates surfaces as a conflict, not a double
// booking.
// POST /api/v1/appointments
func (s *HTTPServer) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProviderID == "" || req.Branch == "" || req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "provider_id, branch, date and time are required")
		return
	}

	strategy, err := parseStrategy(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	decision, err := s.availability.ValidateAppointment(r.Context(), booking.Request{
		ProviderID:      req.ProviderID,
		Branch:          req.Branch,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Strategy:        strategy,
	})
	if err != nil {
		var dateErr *schedule.InvalidDateError
		var timeErr *schedule.InvalidTimeError
		switch {
		case errors.As(err, &dateErr), errors.As(err, &timeErr):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, store.ErrProviderNotFound):
			writeError(w, http.StatusNotFound, "provider not found")
		default:
			s.log.Error().Err(err).Str("provider_id", req.ProviderID).Msg("appointment validation failed")
			writeError(w, http.StatusInternalServerError, "validation failed")
		}
		return
	}
	if !decision.Valid {
		writeJSON(w, http.StatusConflict, CreateAppointmentResponse{Success: false, Reason: decision.Reason})
		return
	}

	appointment := &model.Appointment{
		ProviderID: req.ProviderID,
		PatientID:  req.PatientID,
		Branch:     model.BranchKey(req.Branch),
		Date:       req.Date,
		Time:       req.Time,
		Duration:   req.DurationMinutes,
	}
	if err := s.store.CreateAppointment(r.Context(), appointment); err != nil {
		if errors.Is(err, store.ErrSlotTaken) {
			writeJSON(w, http.StatusConflict, CreateAppointmentResponse{
				Success: false,
				Reason:  "Provider already has an appointment at this time",
			})
			return
		}
		s.log.Error().Err(err).Str("provider_id", req.ProviderID).Msg("appointment insert failed")
		writeError(w, http.StatusInternalServerError, "failed to create appointment")
		return
	}

	s.log.Info().
		Str("appointment_id", appointment.ID).
		Str("provider_id", req.ProviderID).
		Str("date", req.Date).
		Str("time", req.Time).
		Msg("appointment created")

	writeJSON(w, http.StatusCreated, CreateAppointmentResponse{Success: true, AppointmentID: appointment.ID})
}

// StatusUpdateRequest is the request body for the status endpoint.
type StatusUpdateRequest struct {
	Status string `json:"status"`
}

var allowedStatuses = map[string]bool{
	model.StatusPending:   true,
	model.StatusConfirmed: true,
	model.StatusCompleted: true,
	model.StatusCancelled: true,
	model.StatusRejected:  true,
}

// handleUpdateAppointmentStatus moves an appointment to a new status.
// PATCH /api/v1/appointments/{id}/status
func (s *HTTPServer) handleUpdateAppointmentStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req StatusUpdateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !allowedStatuses[req.Status] {
		writeError(w, http.StatusBadRequest, "unknown status: "+req.Status)
		return
	}

	if err := s.store.UpdateAppointmentStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "appointment not found")
			return
		}
		s.log.Error().Err(err).Str("appointment_id", id).Msg("status update failed")
		writeError(w, http.StatusInternalServerError, "failed to update status")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}
