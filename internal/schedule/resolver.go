package schedule

import (
	"fmt"

	"dentsched/internal/model"
)

// ResolveAvailability computes the effective available slots for one
// provider schedule document at (branch, date).
//
// Precedence, highest first:
//  1. override marked unavailable — no availability at all;
//  2. override with custom slots — those slots (filtered to available),
//     the weekly schedule is ignored entirely;
//  3. override present but with no slots — weekly fallback, same as no
//     override (this is what saving an override with all slots removed
//     produces);
//  4. weekly schedule for (branch, weekday): disabled or missing day means
//     no availability, otherwise a single synthetic default slot spanning
//     the day's working hours.
func ResolveAvailability(doc *model.ScheduleDocument, branch, date string) ([]model.TimeSlot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}

	branchKey := model.BranchKey(branch)

	if override, ok := doc.Override(date, branchKey); ok {
		if override.Unavailable {
			return nil, nil
		}
		if len(override.TimeSlots) > 0 {
			slots := make([]model.TimeSlot, 0, len(override.TimeSlots))
			for _, s := range override.TimeSlots {
				if s.IsAvailable {
					slots = append(slots, s)
				}
			}
			return slots, nil
		}
		// No custom slots and not unavailable: weekly fallback.
	}

	weekday := model.WeekdayName(day)
	daySched, ok := doc.Day(branchKey, weekday)
	if !ok || !daySched.Enabled {
		return nil, nil
	}
	// An enabled day without hours is malformed; resolve to no availability
	// rather than producing an unbounded slot.
	if daySched.Start == "" || daySched.End == "" {
		return nil, nil
	}

	return []model.TimeSlot{{
		ID:          "default_" + weekday,
		StartTime:   daySched.Start,
		EndTime:     daySched.End,
		IsAvailable: true,
		IsDefault:   true,
	}}, nil
}

// WithinAnySlot reports whether a request starting at clock ("HH:MM") and
// running durationMinutes fits fully inside at least one slot. Containment
// is strict: partial overlap with a slot does not count. Slot boundaries
// are half-open, so a request ending exactly at a slot's end is accepted.
func WithinAnySlot(slots []model.TimeSlot, clock string, durationMinutes int) (bool, error) {
	start, err := ParseClock(clock)
	if err != nil {
		return false, err
	}
	if durationMinutes <= 0 {
		return false, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	end := start + durationMinutes
	if end > minutesPerDay {
		return false, fmt.Errorf("window %s+%dmin crosses midnight", clock, durationMinutes)
	}

	for _, slot := range slots {
		slotStart, err := ParseClock(slot.StartTime)
		if err != nil {
			continue // malformed slot never accepts
		}
		slotEnd, err := ParseClock(slot.EndTime)
		if err != nil {
			continue
		}
		if start >= slotStart && end <= slotEnd {
			return true, nil
		}
	}
	return false, nil
}
