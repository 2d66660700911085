package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"dentsched/internal/booking"
	"dentsched/internal/model"
	"dentsched/internal/store"
)

const testAPIKey = "valid-key"

type ErrorResponse struct {
	Error string `json:"error"`
}

// newTestServer builds the API over a fresh in-memory store with one
// doctor working Mondays 08:00-12:00 in Cabugao.
func newTestServer(t *testing.T) *HTTPServer {
	t.Helper()
	ctx := context.Background()

	db, err := store.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	provider := &model.Provider{ID: "dr-1", Role: model.RoleDoctor, FirstName: "Ana", LastName: "Reyes", IsActive: true}
	if err := db.CreateProvider(ctx, provider); err != nil {
		t.Fatalf("failed to seed provider: %v", err)
	}
	week := model.BranchWeek{
		"monday": {Enabled: true, Start: "08:00", End: "12:00"},
	}
	if err := db.SaveWeeklySchedule(ctx, "dr-1", model.RoleDoctor, "cabugao", week); err != nil {
		t.Fatalf("failed to seed schedule: %v", err)
	}

	logger := zerolog.New(io.Discard)
	validator := booking.NewValidator(db, booking.Config{}, &logger)
	return NewHTTPServer(ServerConfig{APIKey: testAPIKey}, validator, db, nil, nil, &logger)
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		if s, ok := body.(string); ok {
			reader = bytes.NewReader([]byte(s))
		} else {
			data, _ := json.Marshal(body)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", testAPIKey)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestProviderAvailability(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	// 2025-09-15 is a Monday.
	w := doJSON(t, handler, http.MethodGet, "/api/v1/providers/dr-1/availability?branch=cabugao&date=2025-09-15", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp SlotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Slots) != 1 {
		t.Fatalf("slots = %d, want 1", len(resp.Slots))
	}
	if resp.Slots[0].StartTime != "08:00" || resp.Slots[0].EndTime != "12:00" {
		t.Errorf("slot = %s-%s, want 08:00-12:00", resp.Slots[0].StartTime, resp.Slots[0].EndTime)
	}
	if !resp.Slots[0].IsDefault {
		t.Error("expected the synthetic default slot")
	}
}

func TestProviderAvailability_DisabledDay(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	// 2025-09-16 is a Tuesday; the seeded schedule only covers Monday.
	w := doJSON(t, handler, http.MethodGet, "/api/v1/providers/dr-1/availability?branch=cabugao&date=2025-09-16", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp SlotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Slots) != 0 {
		t.Errorf("slots = %d, want 0", len(resp.Slots))
	}
}

func TestProviderAvailability_Validation(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing params",
			path:       "/api/v1/providers/dr-1/availability",
			wantStatus: http.StatusBadRequest,
			wantError:  "branch and date are required",
		},
		{
			name:       "bad date",
			path:       "/api/v1/providers/dr-1/availability?branch=cabugao&date=15-09-2025",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid date format; expected YYYY-MM-DD",
		},
		{
			name:       "unknown provider",
			path:       "/api/v1/providers/ghost/availability?branch=cabugao&date=2025-09-15",
			wantStatus: http.StatusNotFound,
			wantError:  "provider not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler, http.MethodGet, tt.path, nil)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err == nil {
				if resp.Error != tt.wantError {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
				}
			}
		})
	}
}

func TestAPIKeyRequired(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/providers/dr-1/availability?branch=cabugao&date=2025-09-15", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestAvailabilityRange_Validation(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantError  string
	}{
		{
			name:       "missing provider",
			body:       map[string]string{"start_date": "2025-09-15", "end_date": "2025-09-16"},
			wantStatus: http.StatusBadRequest,
			wantError:  "provider_id and branch are required",
		},
		{
			name:       "missing dates",
			body:       map[string]string{"provider_id": "dr-1", "branch": "cabugao"},
			wantStatus: http.StatusBadRequest,
			wantError:  "start_date and end_date are required",
		},
		{
			name: "invalid start_date format",
			body: map[string]string{
				"provider_id": "dr-1", "branch": "cabugao",
				"start_date": "15-09-2025", "end_date": "2025-09-20",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid start_date format; expected YYYY-MM-DD",
		},
		{
			name: "start after end",
			body: map[string]string{
				"provider_id": "dr-1", "branch": "cabugao",
				"start_date": "2025-09-20", "end_date": "2025-09-15",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "start_date must be before or equal to end_date",
		},
		{
			name: "range too wide",
			body: map[string]string{
				"provider_id": "dr-1", "branch": "cabugao",
				"start_date": "2025-01-01", "end_date": "2025-06-01",
			},
			wantStatus: http.StatusBadRequest,
			wantError:  "date range exceeds maximum of 90 days",
		},
		{
			name:       "invalid JSON",
			body:       "not json",
			wantStatus: http.StatusBadRequest,
			wantError:  "invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, handler, http.MethodPost, "/api/v1/providers/availability/range", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err == nil {
				if resp.Error != tt.wantError {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantError)
				}
			}
		})
	}
}

func TestAvailabilityRange_Week(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	// Monday through Sunday; only Monday should come back available.
	w := doJSON(t, handler, http.MethodPost, "/api/v1/providers/availability/range", RangeRequest{
		ProviderID: "dr-1",
		Branch:     "cabugao",
		StartDate:  "2025-09-15",
		EndDate:    "2025-09-21",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp RangeResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Dates) != 7 {
		t.Fatalf("dates = %d, want 7", len(resp.Dates))
	}

	availableCount := 0
	for _, d := range resp.Dates {
		if d.Available {
			availableCount++
			if d.Date != "2025-09-15" {
				t.Errorf("available on %s, want only 2025-09-15", d.Date)
			}
		}
	}
	if availableCount != 1 {
		t.Errorf("available days = %d, want 1", availableCount)
	}
}

func TestValidateAndCreateAppointment(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	validate := ValidateRequest{
		ProviderID: "dr-1", Branch: "cabugao", Date: "2025-09-15", Time: "09:00", DurationMinutes: 30,
	}
	w := doJSON(t, handler, http.MethodPost, "/api/v1/appointments/validate", validate)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var decision booking.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("failed to unmarshal decision: %v", err)
	}
	if !decision.Valid {
		t.Fatalf("decision invalid: %s", decision.Reason)
	}

	create := CreateAppointmentRequest{
		ProviderID: "dr-1", PatientID: "pat-1", Branch: "cabugao",
		Date: "2025-09-15", Time: "09:00", DurationMinutes: 30,
	}
	w = doJSON(t, handler, http.MethodPost, "/api/v1/appointments", create)
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var created CreateAppointmentResponse
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal create response: %v", err)
	}
	if created.AppointmentID == "" {
		t.Error("expected a generated appointment id")
	}

	// An overlapping request is now rejected.
	w = doJSON(t, handler, http.MethodPost, "/api/v1/appointments", CreateAppointmentRequest{
		ProviderID: "dr-1", PatientID: "pat-2", Branch: "cabugao",
		Date: "2025-09-15", Time: "09:15", DurationMinutes: 30,
	})
	if w.Code != http.StatusConflict {
		t.Errorf("overlap status = %d, want %d", w.Code, http.StatusConflict)
	}

	// Cancelling frees the slot again.
	w = doJSON(t, handler, http.MethodPatch, "/api/v1/appointments/"+created.AppointmentID+"/status",
		StatusUpdateRequest{Status: model.StatusCancelled})
	if w.Code != http.StatusOK {
		t.Fatalf("cancel status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/appointments/validate", validate)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("failed to unmarshal decision: %v", err)
	}
	if !decision.Valid {
		t.Errorf("slot should be free after cancellation: %s", decision.Reason)
	}
}

func TestMarkUnavailableBlocksDay(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	w := doJSON(t, handler, http.MethodPost, "/api/v1/providers/dr-1/schedule/overrides/unavailable",
		UnavailableOverrideRequest{Date: "2025-09-15", Branch: "cabugao"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/appointments/validate", ValidateRequest{
		ProviderID: "dr-1", Branch: "cabugao", Date: "2025-09-15", Time: "09:00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var decision booking.Decision
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("failed to unmarshal decision: %v", err)
	}
	if decision.Valid {
		t.Error("expected rejection after the day was blocked")
	}

	// Removing the override restores the weekly hours.
	w = doJSON(t, handler, http.MethodDelete, "/api/v1/providers/dr-1/schedule/overrides?date=2025-09-15&branch=cabugao", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/appointments/validate", ValidateRequest{
		ProviderID: "dr-1", Branch: "cabugao", Date: "2025-09-15", Time: "09:00",
	})
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("failed to unmarshal decision: %v", err)
	}
	if !decision.Valid {
		t.Errorf("expected availability back after override removal: %s", decision.Reason)
	}
}

func TestSaveOverrideWithCustomSlots(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	// Custom slots replace the weekly hours for the date.
	w := doJSON(t, handler, http.MethodPost, "/api/v1/providers/dr-1/schedule/overrides", OverrideRequest{
		Date: "2025-09-15", Branch: "cabugao",
		TimeSlots: []model.TimeSlot{
			{ID: "s1", StartTime: "14:00", EndTime: "16:00", IsAvailable: true},
		},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodGet, "/api/v1/providers/dr-1/availability?branch=cabugao&date=2025-09-15", nil)
	var resp SlotsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Slots) != 1 || resp.Slots[0].StartTime != "14:00" {
		t.Errorf("slots = %+v, want single 14:00-16:00 slot", resp.Slots)
	}
}

func TestUnavailableDatesFlatList(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	w := doJSON(t, handler, http.MethodPost, "/api/v1/providers/dr-1/unavailable-dates", UnavailableDateRequest{
		Date: "2025-09-15", Branch: "cabugao", TimeSlots: []string{"09:00"},
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}
	var created map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	entryID := created["id"]
	if entryID == "" {
		t.Fatal("expected a generated entry id")
	}

	// 09:00 is blocked, 10:00 is not.
	var decision booking.Decision
	w = doJSON(t, handler, http.MethodPost, "/api/v1/appointments/validate", ValidateRequest{
		ProviderID: "dr-1", Branch: "cabugao", Date: "2025-09-15", Time: "09:00",
	})
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("failed to unmarshal decision: %v", err)
	}
	if decision.Valid {
		t.Error("expected 09:00 to be blocked by the flat list")
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/appointments/validate", ValidateRequest{
		ProviderID: "dr-1", Branch: "cabugao", Date: "2025-09-15", Time: "10:00",
	})
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("failed to unmarshal decision: %v", err)
	}
	if !decision.Valid {
		t.Errorf("expected 10:00 to stay bookable: %s", decision.Reason)
	}

	// Removing the entry unblocks 09:00.
	w = doJSON(t, handler, http.MethodDelete, "/api/v1/providers/dr-1/unavailable-dates/"+entryID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("remove status = %d, want %d", w.Code, http.StatusOK)
	}

	w = doJSON(t, handler, http.MethodPost, "/api/v1/appointments/validate", ValidateRequest{
		ProviderID: "dr-1", Branch: "cabugao", Date: "2025-09-15", Time: "09:00",
	})
	if err := json.Unmarshal(w.Body.Bytes(), &decision); err != nil {
		t.Fatalf("failed to unmarshal decision: %v", err)
	}
	if !decision.Valid {
		t.Errorf("expected 09:00 back after removal: %s", decision.Reason)
	}
}

func TestAppointmentsReport(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	w := doJSON(t, handler, http.MethodPost, "/api/v1/appointments", CreateAppointmentRequest{
		ProviderID: "dr-1", PatientID: "pat-1", Branch: "cabugao",
		Date: "2025-09-15", Time: "09:00", DurationMinutes: 30,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want %d: %s", w.Code, http.StatusCreated, w.Body.String())
	}

	w = doJSON(t, handler, http.MethodGet, "/api/v1/reports/appointments?start_date=2025-09-15&end_date=2025-09-21", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Errorf("content type = %q, want xlsx", got)
	}
	if w.Body.Len() == 0 {
		t.Error("expected a non-empty workbook")
	}

	w = doJSON(t, handler, http.MethodGet, "/api/v1/reports/appointments?start_date=2025-09-21&end_date=2025-09-15", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestSaveWeekly_Validation(t *testing.T) {
	srv := newTestServer(t)
	handler := srv.Handler()

	w := doJSON(t, handler, http.MethodPut, "/api/v1/providers/dr-1/schedule/weekly", WeeklyScheduleRequest{
		Branch: "cabugao",
		Week:   model.BranchWeek{"funday": {Enabled: true, Start: "08:00", End: "12:00"}},
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}

	w = doJSON(t, handler, http.MethodPut, "/api/v1/providers/dr-1/schedule/weekly", WeeklyScheduleRequest{
		Branch: "cabugao",
		Week:   model.BranchWeek{"tuesday": {Enabled: true, Start: "08:00", End: "12:00"}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", w.Code, http.StatusOK, w.Body.String())
	}

	// The new Tuesday hours are live. 2025-09-16 is a Tuesday.
	var resp SlotsResponse
	w = doJSON(t, handler, http.MethodGet, "/api/v1/providers/dr-1/availability?branch=cabugao&date=2025-09-16", nil)
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Slots) != 1 {
		t.Errorf("slots = %d, want 1", len(resp.Slots))
	}
}
