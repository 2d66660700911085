package schedule

import (
	"fmt"

	"dentsched/internal/model"
)

// DefaultAppointmentDuration is assumed for existing appointments that do
// not carry a duration of their own. Upstream booking data does not
// reliably record one.
const DefaultAppointmentDuration = 30

// ConflictOptions tunes HasConflict.
type ConflictOptions struct {
	// ExistingDuration overrides the assumed duration of existing
	// appointments, in minutes. Zero means DefaultAppointmentDuration.
	ExistingDuration int
	// ExcludeAppointmentID skips one appointment, so a reschedule does not
	// conflict with its own prior booking.
	ExcludeAppointmentID string
}

// HasConflict reports whether a request at clock ("HH:MM") for
// durationMinutes overlaps any active appointment in existing. Cancelled
// and rejected appointments never conflict. Returns on the first hit.
func HasConflict(existing []model.Appointment, clock string, durationMinutes int, opts ConflictOptions) (bool, error) {
	reqStart, err := ParseClock(clock)
	if err != nil {
		return false, err
	}
	if durationMinutes <= 0 {
		return false, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	reqEnd := reqStart + durationMinutes

	assumed := opts.ExistingDuration
	if assumed <= 0 {
		assumed = DefaultAppointmentDuration
	}

	for _, apt := range existing {
		if !apt.Active() {
			continue
		}
		if opts.ExcludeAppointmentID != "" && apt.ID == opts.ExcludeAppointmentID {
			continue
		}
		aptStart, err := ParseClock(apt.Time)
		if err != nil {
			continue // unparseable time cannot be placed on the day
		}
		duration := apt.Duration
		if duration <= 0 {
			duration = assumed
		}
		aptEnd := aptStart + duration

		// Half-open interval overlap.
		if reqStart < aptEnd && reqEnd > aptStart {
			return true, nil
		}
	}
	return false, nil
}
