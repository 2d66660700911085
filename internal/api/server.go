// Package api exposes the availability and schedule operations over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"dentsched/internal/booking"
	"dentsched/internal/cache"
	"dentsched/internal/metrics"
	"dentsched/internal/model"
)

// Availability is the slice of the booking validator the API consumes.
type Availability interface {
	ValidateAppointment(ctx context.Context, req booking.Request) (booking.Decision, error)
	FindAvailableProviders(ctx context.Context, req booking.QueryRequest) ([]model.Provider, error)
	ResolveProviderAvailability(ctx context.Context, providerID, branch, date string) ([]model.TimeSlot, error)
}

// Store is the persistence surface behind the write endpoints.
type Store interface {
	GetProvider(ctx context.Context, id string) (*model.Provider, error)
	SaveWeeklySchedule(ctx context.Context, providerID, role, branch string, week model.BranchWeek) error
	SaveCalendarSchedule(ctx context.Context, providerID, role, date, branch string, slots []model.TimeSlot) error
	MarkDateUnavailable(ctx context.Context, providerID, role, date, branch string) error
	RemoveCalendarSchedule(ctx context.Context, providerID, role, date, branch string) error
	AddUnavailableDate(ctx context.Context, providerID, role, date, branch string, timeSlots []string) (string, error)
	RemoveUnavailableDate(ctx context.Context, providerID, id string) error
	CountActiveAppointments(ctx context.Context, providerID, date string) (int, error)
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	UpdateAppointmentStatus(ctx context.Context, id, status string) error
	ListAppointmentsByDateRange(ctx context.Context, from, to string) ([]model.Appointment, error)
	ListProviders(ctx context.Context, roles []string) ([]model.Provider, error)
}

// Notifier alerts managers about schedule changes that affect existing
// bookings. Optional.
type Notifier interface {
	NotifyDateBlocked(ctx context.Context, provider *model.Provider, date, branch string, activeAppointments int)
}

// ServerConfig tunes the HTTP server.
type ServerConfig struct {
	Port           int
	APIKey         string
	RateLimitRPS   float64
	RateLimitBurst int
}

// HTTPServer serves the availability API.
type HTTPServer struct {
	cfg          ServerConfig
	availability Availability
	store        Store
	cache        *cache.AvailabilityCache
	notifier     Notifier
	limiter      *rate.Limiter
	log          *zerolog.Logger
}

// NewHTTPServer wires the API over the validator and store. cache and
// notifier may be nil.
func NewHTTPServer(cfg ServerConfig, availability Availability, store Store, availCache *cache.AvailabilityCache, notifier Notifier, logger *zerolog.Logger) *HTTPServer {
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 50
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 100
	}
	return &HTTPServer{
		cfg:          cfg,
		availability: availability,
		store:        store,
		cache:        availCache,
		notifier:     notifier,
		limiter:      rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		log:          logger,
	}
}

// Handler builds the route table.
func (s *HTTPServer) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/providers/{id}/availability", s.route("provider_availability", s.handleProviderAvailability))
	mux.HandleFunc("POST /api/v1/providers/availability/range", s.route("availability_range", s.handleAvailabilityRange))
	mux.HandleFunc("POST /api/v1/appointments/validate", s.route("validate_appointment", s.handleValidateAppointment))
	mux.HandleFunc("POST /api/v1/providers/available", s.route("available_providers", s.handleAvailableProviders))

	mux.HandleFunc("PUT /api/v1/providers/{id}/schedule/weekly", s.route("save_weekly", s.handleSaveWeekly))
	mux.HandleFunc("POST /api/v1/providers/{id}/schedule/overrides", s.route("save_override", s.handleSaveOverride))
	mux.HandleFunc("POST /api/v1/providers/{id}/schedule/overrides/unavailable", s.route("mark_unavailable", s.handleMarkUnavailable))
	mux.HandleFunc("DELETE /api/v1/providers/{id}/schedule/overrides", s.route("remove_override", s.handleRemoveOverride))

	mux.HandleFunc("POST /api/v1/providers/{id}/unavailable-dates", s.route("add_unavailable_date", s.handleAddUnavailableDate))
	mux.HandleFunc("DELETE /api/v1/providers/{id}/unavailable-dates/{entryId}", s.route("remove_unavailable_date", s.handleRemoveUnavailableDate))

	mux.HandleFunc("POST /api/v1/appointments", s.route("create_appointment", s.handleCreateAppointment))
	mux.HandleFunc("PATCH /api/v1/appointments/{id}/status", s.route("update_appointment_status", s.handleUpdateAppointmentStatus))

	mux.HandleFunc("GET /api/v1/reports/appointments", s.route("appointments_report", s.handleAppointmentsReport))

	return mux
}

// route wraps a handler with the API key check, rate limiting and request
// metrics.
func (s *HTTPServer) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		if s.cfg.APIKey != "" && r.Header.Get("x-api-key") != s.cfg.APIKey {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			metrics.ObserveHTTPRequest(name, "4xx", time.Since(start))
			return
		}
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "too many requests")
			metrics.ObserveHTTPRequest(name, "4xx", time.Since(start))
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		metrics.ObserveHTTPRequest(name, statusClass(rec.status), time.Since(start))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}

// Start runs the server until the context is cancelled.
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info().Str("addr", srv.Addr).Msg("API server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
