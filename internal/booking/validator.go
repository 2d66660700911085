// Package booking composes the availability core with the schedule store
// into booking-time decisions.
package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"dentsched/internal/model"
	"dentsched/internal/schedule"
)

// ErrNoScheduleConfigured marks a provider whose profile exists but who has
// never saved a schedule document.
var ErrNoScheduleConfigured = errors.New("provider has not configured their working schedule")

// ReasonNoSchedule is the user-facing reason for ErrNoScheduleConfigured.
const ReasonNoSchedule = "Provider has not configured their working schedule"

// Strategy selects how a provider's working hours are resolved. Two
// strategies exist because booking call sites historically diverged: one
// checked raw weekly hours plus the flat unavailable list, the other
// honored keyed calendar overrides. Both run the same resolver; the weekly
// strategy simply ignores overrides.
type Strategy int

const (
	// StrategyWeekly checks the weekly schedule only; keyed calendar
	// overrides are not consulted.
	StrategyWeekly Strategy = iota
	// StrategyResolved applies full override precedence before the check.
	StrategyResolved
)

// ScheduleStore is what the validator needs from persistence.
type ScheduleStore interface {
	LoadProviderRecord(ctx context.Context, providerID string) (*model.ProviderRecord, error)
	ListProviders(ctx context.Context, roles []string) ([]model.Provider, error)
	ListAppointments(ctx context.Context, providerID, date string) ([]model.Appointment, error)
}

// Request describes a proposed appointment.
type Request struct {
	ProviderID           string
	Branch               string
	Date                 string // "2025-09-12"
	Time                 string // "09:30"
	DurationMinutes      int    // 0 means the configured default
	ExcludeAppointmentID string // set on reschedule
	Strategy             Strategy
}

// Decision is the outcome of a validation. Reason is user-facing and shown
// verbatim on rejection.
type Decision struct {
	Valid    bool            `json:"valid"`
	Reason   string          `json:"reason,omitempty"`
	Provider *model.Provider `json:"provider,omitempty"`
}

func reject(reason string) Decision {
	return Decision{Valid: false, Reason: reason}
}

// Config tunes the validator.
type Config struct {
	// Defaults is the clinic-wide weekly schedule merged into provider
	// documents before resolution.
	Defaults model.WeeklySchedule
	// DefaultsFn, when set, supersedes Defaults. It lets the clinic
	// schedule follow a hot-reloaded branch config.
	DefaultsFn func() model.WeeklySchedule
	// DefaultDurationMinutes is used when a request carries no duration.
	DefaultDurationMinutes int
	// MinAdvance/MaxAdvance bound how far ahead bookings may be placed.
	// Zero disables the corresponding bound.
	MinAdvance time.Duration
	MaxAdvance time.Duration
	// MaxConcurrentChecks bounds the multi-provider query worker pool.
	MaxConcurrentChecks int
	// IsHoliday reports clinic-wide closed dates. Optional.
	IsHoliday func(date string) (bool, string)
	// Now is the clock, overridable in tests.
	Now func() time.Time
}

// Validator answers "can this appointment be booked".
type Validator struct {
	store  ScheduleStore
	config Config
	logger *zerolog.Logger
}

// NewValidator creates a validator over the given store.
func NewValidator(store ScheduleStore, cfg Config, logger *zerolog.Logger) *Validator {
	if cfg.DefaultDurationMinutes <= 0 {
		cfg.DefaultDurationMinutes = schedule.DefaultAppointmentDuration
	}
	if cfg.MaxConcurrentChecks <= 0 {
		cfg.MaxConcurrentChecks = 8
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.DefaultsFn == nil {
		defaults := cfg.Defaults
		cfg.DefaultsFn = func() model.WeeklySchedule { return defaults }
	}
	return &Validator{store: store, config: cfg, logger: logger}
}

// ValidateAppointment runs the full booking-time decision: provider load,
// schedule resolution per the requested strategy, the flat unavailable-dates
// veto, and the conflict check against existing appointments. Domain
// rejections come back as an invalid Decision with a reason; errors are
// reserved for malformed input and store failures.
func (v *Validator) ValidateAppointment(ctx context.Context, req Request) (Decision, error) {
	day, err := schedule.ParseDate(req.Date)
	if err != nil {
		return Decision{}, err
	}
	if _, err := schedule.ParseClock(req.Time); err != nil {
		return Decision{}, err
	}
	duration := req.DurationMinutes
	if duration <= 0 {
		duration = v.config.DefaultDurationMinutes
	}

	record, err := v.store.LoadProviderRecord(ctx, req.ProviderID)
	if err != nil {
		return Decision{}, err
	}
	if record.Schedule == nil {
		return reject(ReasonNoSchedule), nil
	}

	if d, ok := v.checkAdvanceWindow(day, req.Time); !ok {
		return d, nil
	}
	if v.config.IsHoliday != nil {
		if holiday, name := v.config.IsHoliday(req.Date); holiday {
			return reject(fmt.Sprintf("Clinic is closed on %s (%s)", req.Date, name)), nil
		}
	}

	doc := record.Schedule
	doc.Normalize(v.config.DefaultsFn())

	branchKey := model.BranchKey(req.Branch)
	weekday := model.WeekdayName(day)

	slots, rejection, err := v.resolveSlots(doc, req, branchKey, weekday)
	if err != nil {
		return Decision{}, err
	}
	if rejection != "" {
		return reject(rejection), nil
	}

	within, err := schedule.WithinAnySlot(slots, req.Time, duration)
	if err != nil {
		return Decision{}, err
	}
	if !within {
		return reject(fmt.Sprintf("Requested time %s does not fit the provider's %s hours on %s", req.Time, req.Branch, weekday)), nil
	}

	// The flat unavailable-dates list can veto even a seemingly available
	// day, so it runs after the positive checks.
	for _, entry := range record.UnavailableDates {
		if entry.Date != req.Date || model.BranchKey(entry.Branch) != branchKey {
			continue
		}
		if entry.BlocksWholeDay() {
			return reject(fmt.Sprintf("Provider is unavailable on %s", req.Date)), nil
		}
		if entry.BlocksTime(req.Time) {
			return reject(fmt.Sprintf("Provider is unavailable at %s on %s", req.Time, req.Date)), nil
		}
	}

	existing, err := v.store.ListAppointments(ctx, req.ProviderID, req.Date)
	if err != nil {
		return Decision{}, err
	}
	conflict, err := schedule.HasConflict(existing, req.Time, duration, schedule.ConflictOptions{
		ExcludeAppointmentID: req.ExcludeAppointmentID,
	})
	if err != nil {
		return Decision{}, err
	}
	if conflict {
		return reject("Provider already has an appointment at this time"), nil
	}

	return Decision{Valid: true, Provider: &record.Provider}, nil
}

// ResolveProviderAvailability loads a provider's schedule and resolves the
// effective slots for (branch, date), override precedence included. Used by
// the availability read endpoints.
func (v *Validator) ResolveProviderAvailability(ctx context.Context, providerID, branch, date string) ([]model.TimeSlot, error) {
	record, err := v.store.LoadProviderRecord(ctx, providerID)
	if err != nil {
		return nil, err
	}
	if record.Schedule == nil {
		return nil, ErrNoScheduleConfigured
	}
	record.Schedule.Normalize(v.config.DefaultsFn())
	return schedule.ResolveAvailability(record.Schedule, branch, date)
}

// resolveSlots returns the candidate slots for the request, or a rejection
// reason when the day has none.
func (v *Validator) resolveSlots(doc *model.ScheduleDocument, req Request, branchKey, weekday string) ([]model.TimeSlot, string, error) {
	switch req.Strategy {
	case StrategyWeekly:
		daySched, ok := doc.Day(branchKey, weekday)
		if !ok || !daySched.Enabled {
			return nil, fmt.Sprintf("Provider does not work on %s at %s", weekday, req.Branch), nil
		}
		if daySched.Start == "" || daySched.End == "" {
			return nil, fmt.Sprintf("Provider does not work on %s at %s", weekday, req.Branch), nil
		}
		return []model.TimeSlot{{
			ID:          "default_" + weekday,
			StartTime:   daySched.Start,
			EndTime:     daySched.End,
			IsAvailable: true,
			IsDefault:   true,
		}}, "", nil

	default: // StrategyResolved
		slots, err := schedule.ResolveAvailability(doc, req.Branch, req.Date)
		if err != nil {
			return nil, "", err
		}
		if len(slots) == 0 {
			return nil, fmt.Sprintf("Provider is not available on %s at %s", req.Date, req.Branch), nil
		}
		return slots, "", nil
	}
}

func (v *Validator) checkAdvanceWindow(day time.Time, clock string) (Decision, bool) {
	if v.config.MinAdvance <= 0 && v.config.MaxAdvance <= 0 {
		return Decision{}, true
	}

	minutes, err := schedule.ParseClock(clock)
	if err != nil {
		return Decision{}, true // already validated by the caller
	}
	at := day.Add(time.Duration(minutes) * time.Minute)
	now := v.config.Now()

	if v.config.MinAdvance > 0 && at.Before(now.Add(v.config.MinAdvance)) {
		return reject(fmt.Sprintf("Appointments must be booked at least %s in advance", v.config.MinAdvance)), false
	}
	if v.config.MaxAdvance > 0 && at.After(now.Add(v.config.MaxAdvance)) {
		return reject(fmt.Sprintf("Appointments cannot be booked more than %d days ahead", int(v.config.MaxAdvance.Hours()/24))), false
	}
	return Decision{}, true
}
