package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"dentsched/internal/metrics"
	"dentsched/internal/model"
	"dentsched/internal/schedule"
	"dentsched/internal/store"
)

// WeeklyScheduleRequest is the request body for PUT .../schedule/weekly.
type WeeklyScheduleRequest struct {
	Branch string           `json:"branch"`
	Week   model.BranchWeek `json:"week"`
}

// handleSaveWeekly replaces the weekly hours for one branch.
// PUT /api/v1/providers/{id}/schedule/weekly
func (s *HTTPServer) handleSaveWeekly(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")

	var req WeeklyScheduleRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Branch == "" || len(req.Week) == 0 {
		writeError(w, http.StatusBadRequest, "branch and week are required")
		return
	}
	for weekday, day := range req.Week {
		if !schedule.ValidWeekday(weekday) {
			writeError(w, http.StatusBadRequest, "unknown weekday: "+weekday)
			return
		}
		if day.Enabled {
			if _, err := schedule.ParseClock(day.Start); err != nil {
				writeError(w, http.StatusBadRequest, "invalid start time for "+weekday)
				return
			}
			if _, err := schedule.ParseClock(day.End); err != nil {
				writeError(w, http.StatusBadRequest, "invalid end time for "+weekday)
				return
			}
		}
	}

	provider, ok := s.lookupProvider(w, r, providerID)
	if !ok {
		return
	}

	s.runScheduleWrite(w, r, providerID, func() error {
		return s.store.SaveWeeklySchedule(r.Context(), providerID, provider.Role, req.Branch, req.Week)
	})
}

// OverrideRequest is the request body for POST .../schedule/overrides.
type OverrideRequest struct {
	Date      string           `json:"date"`   // Format: YYYY-MM-DD
	Branch    string           `json:"branch"` // branch key or display name
	TimeSlots []model.TimeSlot `json:"timeSlots"`
}

// handleSaveOverride writes a calendar override. An empty slot list removes
// the override, reverting the date to the weekly schedule.
// POST /api/v1/providers/{id}/schedule/overrides
func (s *HTTPServer) handleSaveOverride(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")

	var req OverrideRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.validDateBranch(w, req.Date, req.Branch) {
		return
	}
	for _, slot := range req.TimeSlots {
		if _, err := schedule.ParseClock(slot.StartTime); err != nil {
			writeError(w, http.StatusBadRequest, "invalid slot start time")
			return
		}
		if _, err := schedule.ParseClock(slot.EndTime); err != nil {
			writeError(w, http.StatusBadRequest, "invalid slot end time")
			return
		}
	}

	provider, ok := s.lookupProvider(w, r, providerID)
	if !ok {
		return
	}

	s.runScheduleWrite(w, r, providerID, func() error {
		return s.store.SaveCalendarSchedule(r.Context(), providerID, provider.Role, req.Date, req.Branch, req.TimeSlots)
	})
}

// UnavailableOverrideRequest is the request body for marking a date
// unavailable via a calendar override.
type UnavailableOverrideRequest struct {
	Date   string `json:"date"`
	Branch string `json:"branch"`
}

// handleMarkUnavailable blocks the whole (date, branch) for the provider.
// Managers get a heads-up when the date still carries active appointments.
// POST /api/v1/providers/{id}/schedule/overrides/unavailable
func (s *HTTPServer) handleMarkUnavailable(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")

	var req UnavailableOverrideRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.validDateBranch(w, req.Date, req.Branch) {
		return
	}

	provider, ok := s.lookupProvider(w, r, providerID)
	if !ok {
		return
	}

	active, err := s.store.CountActiveAppointments(r.Context(), providerID, req.Date)
	if err != nil {
		s.log.Error().Err(err).Str("provider_id", providerID).Msg("active appointment count failed")
		writeError(w, http.StatusInternalServerError, "failed to check existing appointments")
		return
	}

	ok = s.runScheduleWrite(w, r, providerID, func() error {
		return s.store.MarkDateUnavailable(r.Context(), providerID, provider.Role, req.Date, req.Branch)
	})

	if ok && active > 0 && s.notifier != nil {
		s.notifier.NotifyDateBlocked(r.Context(), provider, req.Date, req.Branch, active)
	}
}

// handleRemoveOverride deletes the calendar override for (date, branch).
// DELETE /api/v1/providers/{id}/schedule/overrides?date=&branch=
func (s *HTTPServer) handleRemoveOverride(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")
	date := r.URL.Query().Get("date")
	branch := r.URL.Query().Get("branch")

	if !s.validDateBranch(w, date, branch) {
		return
	}

	provider, ok := s.lookupProvider(w, r, providerID)
	if !ok {
		return
	}

	s.runScheduleWrite(w, r, providerID, func() error {
		return s.store.RemoveCalendarSchedule(r.Context(), providerID, provider.Role, date, branch)
	})
}

// UnavailableDateRequest is the request body for the flat-list endpoint.
type UnavailableDateRequest struct {
	Date      string   `json:"date"`
	Branch    string   `json:"branch"`
	TimeSlots []string `json:"timeSlots,omitempty"` // nil blocks the whole day
}

// handleAddUnavailableDate appends a flat unavailable-dates entry.
// POST /api/v1/providers/{id}/unavailable-dates
func (s *HTTPServer) handleAddUnavailableDate(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")

	var req UnavailableDateRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !s.validDateBranch(w, req.Date, req.Branch) {
		return
	}
	for _, clock := range req.TimeSlots {
		if _, err := schedule.ParseClock(clock); err != nil {
			writeError(w, http.StatusBadRequest, "invalid time in timeSlots: "+clock)
			return
		}
	}

	provider, ok := s.lookupProvider(w, r, providerID)
	if !ok {
		return
	}

	id, err := s.store.AddUnavailableDate(r.Context(), providerID, provider.Role, req.Date, req.Branch, req.TimeSlots)
	if err != nil {
		s.log.Error().Err(err).Str("provider_id", providerID).Msg("add unavailable date failed")
		writeError(w, http.StatusInternalServerError, "failed to save unavailable date")
		return
	}

	s.invalidateProvider(r, providerID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// handleRemoveUnavailableDate removes a flat entry by its id.
// DELETE /api/v1/providers/{id}/unavailable-dates/{entryId}
func (s *HTTPServer) handleRemoveUnavailableDate(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")
	entryID := r.PathValue("entryId")

	if _, ok := s.lookupProvider(w, r, providerID); !ok {
		return
	}

	if err := s.store.RemoveUnavailableDate(r.Context(), providerID, entryID); err != nil {
		s.log.Error().Err(err).Str("provider_id", providerID).Msg("remove unavailable date failed")
		writeError(w, http.StatusInternalServerError, "failed to remove unavailable date")
		return
	}

	s.invalidateProvider(r, providerID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *HTTPServer) lookupProvider(w http.ResponseWriter, r *http.Request, providerID string) (*model.Provider, bool) {
	provider, err := s.store.GetProvider(r.Context(), providerID)
	if err != nil {
		if errors.Is(err, store.ErrProviderNotFound) {
			writeError(w, http.StatusNotFound, "provider not found")
		} else {
			s.log.Error().Err(err).Str("provider_id", providerID).Msg("provider lookup failed")
			writeError(w, http.StatusInternalServerError, "failed to load provider")
		}
		return nil, false
	}
	return provider, true
}

func (s *HTTPServer) validDateBranch(w http.ResponseWriter, date, branch string) bool {
	if date == "" || branch == "" {
		writeError(w, http.StatusBadRequest, "date and branch are required")
		return false
	}
	if _, err := schedule.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return false
	}
	return true
}

// runScheduleWrite executes a schedule mutation with the shared error
// handling: version conflicts map to 409, anything else to 500. Every
// successful write invalidates the provider's cached availability.
func (s *HTTPServer) runScheduleWrite(w http.ResponseWriter, r *http.Request, providerID string, write func() error) bool {
	if err := write(); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			metrics.IncScheduleSave("conflict")
			writeError(w, http.StatusConflict, "schedule was modified concurrently; reload and retry")
			return false
		}
		metrics.IncScheduleSave("error")
		s.log.Error().Err(err).Str("provider_id", providerID).Msg("schedule write failed")
		writeError(w, http.StatusInternalServerError, "failed to save schedule")
		return false
	}

	metrics.IncScheduleSave("ok")
	s.invalidateProvider(r, providerID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
	return true
}

func (s *HTTPServer) invalidateProvider(r *http.Request, providerID string) {
	if s.cache != nil {
		s.cache.InvalidateProvider(r.Context(), providerID)
	}
}
