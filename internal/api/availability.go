package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"dentsched/internal/booking"
	"dentsched/internal/metrics"
	"dentsched/internal/model"
	"dentsched/internal/schedule"
	"dentsched/internal/store"
)

const (
	// MaxAvailabilityDaysRange is the maximum number of days allowed in a
	// range availability request.
	MaxAvailabilityDaysRange = 90
)

// SlotsResponse is the response for GET /api/v1/providers/{id}/availability.
type SlotsResponse struct {
	ProviderID string           `json:"provider_id"`
	Branch     string           `json:"branch"`
	Date       string           `json:"date"`
	Slots      []model.TimeSlot `json:"slots"`
}

// handleProviderAvailability returns the resolved slots for one provider
// on one (branch, date).
// GET /api/v1/providers/{id}/availability?branch=&date=
func (s *HTTPServer) handleProviderAvailability(w http.ResponseWriter, r *http.Request) {
	providerID := r.PathValue("id")
	branch := r.URL.Query().Get("branch")
	date := r.URL.Query().Get("date")

	if branch == "" || date == "" {
		writeError(w, http.StatusBadRequest, "branch and date are required")
		return
	}
	if _, err := schedule.ParseDate(date); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	if s.cache != nil {
		if slots, ok := s.cache.GetSlots(r.Context(), providerID, branch, date); ok {
			writeJSON(w, http.StatusOK, SlotsResponse{ProviderID: providerID, Branch: model.BranchKey(branch), Date: date, Slots: slots})
			return
		}
	}

	slots, err := s.availability.ResolveProviderAvailability(r.Context(), providerID, branch, date)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrProviderNotFound):
			metrics.IncAvailabilityCheck("provider_not_found")
			writeError(w, http.StatusNotFound, "provider not found")
		case errors.Is(err, booking.ErrNoScheduleConfigured):
			metrics.IncAvailabilityCheck("no_schedule")
			writeError(w, http.StatusConflict, booking.ReasonNoSchedule)
		default:
			s.log.Error().Err(err).Str("provider_id", providerID).Msg("availability resolution failed")
			metrics.IncAvailabilityCheck("error")
			writeError(w, http.StatusInternalServerError, "failed to resolve availability")
		}
		return
	}

	if slots == nil {
		slots = []model.TimeSlot{}
	}
	metrics.IncAvailabilityCheck("ok")
	if s.cache != nil {
		s.cache.SetSlots(r.Context(), providerID, branch, date, slots)
	}
	writeJSON(w, http.StatusOK, SlotsResponse{ProviderID: providerID, Branch: model.BranchKey(branch), Date: date, Slots: slots})
}

// RangeRequest is the request body for POST /api/v1/providers/availability/range.
type RangeRequest struct {
	ProviderID string `json:"provider_id"`
	Branch     string `json:"branch"`
	StartDate  string `json:"start_date"` // Format: YYYY-MM-DD
	EndDate    string `json:"end_date"`   // Format: YYYY-MM-DD
}

// DateAvailability represents availability for a single date.
type DateAvailability struct {
	Date      string           `json:"date"`
	Available bool             `json:"available"`
	Slots     []model.TimeSlot `json:"slots,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// RangeResponse is the response for the range endpoint.
type RangeResponse struct {
	ProviderID string             `json:"provider_id"`
	Branch     string             `json:"branch"`
	Dates      []DateAvailability `json:"dates"`
	Period     struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"period"`
}

// handleAvailabilityRange returns per-date availability over a range.
// POST /api/v1/providers/availability/range
func (s *HTTPServer) handleAvailabilityRange(w http.ResponseWriter, r *http.Request) {
	var req RangeRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProviderID == "" || req.Branch == "" {
		writeError(w, http.StatusBadRequest, "provider_id and branch are required")
		return
	}

	start, end, err := validateRange(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	response := RangeResponse{ProviderID: req.ProviderID, Branch: model.BranchKey(req.Branch)}
	response.Period.Start = req.StartDate
	response.Period.End = req.EndDate

	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dateStr := d.Format(schedule.DateLayout)

		slots, err := s.availability.ResolveProviderAvailability(r.Context(), req.ProviderID, req.Branch, dateStr)
		if err != nil {
			if errors.Is(err, store.ErrProviderNotFound) {
				writeError(w, http.StatusNotFound, "provider not found")
				return
			}
			reason := "error"
			if errors.Is(err, booking.ErrNoScheduleConfigured) {
				reason = "no_schedule"
			}
			response.Dates = append(response.Dates, DateAvailability{Date: dateStr, Available: false, Reason: reason})
			continue
		}

		available := false
		for _, slot := range slots {
			if slot.IsAvailable {
				available = true
				break
			}
		}
		entry := DateAvailability{Date: dateStr, Available: available, Slots: slots}
		if !available {
			entry.Reason = "unavailable"
		}
		response.Dates = append(response.Dates, entry)
	}

	writeJSON(w, http.StatusOK, response)
}

func validateRange(startDate, endDate string) (start, end time.Time, err error) {
	if startDate == "" || endDate == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date and end_date are required")
	}
	start, err = time.Parse(schedule.DateLayout, startDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format; expected YYYY-MM-DD")
	}
	end, err = time.Parse(schedule.DateLayout, endDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format; expected YYYY-MM-DD")
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("start_date must be before or equal to end_date")
	}
	if int(end.Sub(start).Hours()/24) > MaxAvailabilityDaysRange {
		return time.Time{}, time.Time{}, fmt.Errorf("date range exceeds maximum of %d days", MaxAvailabilityDaysRange)
	}
	return start, end, nil
}

// ValidateRequest is the request body for POST /api/v1/appointments/validate.
type ValidateRequest struct {
	ProviderID           string `json:"provider_id"`
	Branch               string `json:"branch"`
	Date                 string `json:"date"` // Format: YYYY-MM-DD
	Time                 string `json:"time"` // Format: HH:MM
	DurationMinutes      int    `json:"duration_minutes,omitempty"`
	ExcludeAppointmentID string `json:"exclude_appointment_id,omitempty"`
	Strategy             string `json:"strategy,omitempty"` // "weekly" | "resolved"
}

func parseStrategy(raw string) (booking.Strategy, error) {
	switch raw {
	case "", "resolved":
		return booking.StrategyResolved, nil
	case "weekly":
		return booking.StrategyWeekly, nil
	default:
		return 0, fmt.Errorf("unknown strategy %q; expected weekly or resolved", raw)
	}
}

// handleValidateAppointment runs the booking-time validation.
// POST /api/v1/appointments/validate
func (s *HTTPServer) handleValidateAppointment(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
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
		ProviderID:           req.ProviderID,
		Branch:               req.Branch,
		Date:                 req.Date,
		Time:                 req.Time,
		DurationMinutes:      req.DurationMinutes,
		ExcludeAppointmentID: req.ExcludeAppointmentID,
		Strategy:             strategy,
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
			s.log.Error().Err(err).Str("provider_id", req.ProviderID).Msg("validation failed")
			writeError(w, http.StatusInternalServerError, "validation failed")
		}
		return
	}

	if !decision.Valid {
		cause := "rejected"
		if decision.Reason == booking.ReasonNoSchedule {
			cause = "no_schedule"
		}
		metrics.IncValidationRejection(cause)
	}
	writeJSON(w, http.StatusOK, decision)
}

// AvailableProvidersRequest is the request body for POST /api/v1/providers/available.
type AvailableProvidersRequest struct {
	Branch          string `json:"branch"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Strategy        string `json:"strategy,omitempty"`
}

// handleAvailableProviders returns every provider free at the requested slot.
// POST /api/v1/providers/available
func (s *HTTPServer) handleAvailableProviders(w http.ResponseWriter, r *http.Request) {
	var req AvailableProvidersRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Branch == "" || req.Date == "" || req.Time == "" {
		writeError(w, http.StatusBadRequest, "branch, date and time are required")
		return
	}

	strategy, err := parseStrategy(req.Strategy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	providers, err := s.availability.FindAvailableProviders(r.Context(), booking.QueryRequest{
		Branch:          req.Branch,
		Date:            req.Date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Strategy:        strategy,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("available providers query failed")
		writeError(w, http.StatusInternalServerError, "failed to query providers")
		return
	}

	if providers == nil {
		providers = []model.Provider{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"providers": providers})
}
