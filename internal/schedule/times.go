// Package schedule implements the availability resolution core: weekly
// schedules, per-date overrides, time-window containment and appointment
// conflict checks. All functions here are pure; callers load the data.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DateLayout is the wire format for dates.
	DateLayout = "2006-01-02"
	// minutesPerDay bounds a clock window; no wraparound past midnight.
	minutesPerDay = 24 * 60
)

// InvalidDateError reports a date string that is not YYYY-MM-DD.
type InvalidDateError struct {
	Value string
}

func (e *InvalidDateError) Error() string {
	return fmt.Sprintf("invalid date %q; expected YYYY-MM-DD", e.Value)
}

// InvalidTimeError reports a clock string that is not HH:MM.
type InvalidTimeError struct {
	Value string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("invalid time %q; expected HH:MM", e.Value)
}

// ParseDate parses a YYYY-MM-DD date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, &InvalidDateError{Value: s}
	}
	return t, nil
}

// ParseClock converts "HH:MM" to minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, &InvalidTimeError{Value: s}
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, &InvalidTimeError{Value: s}
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, &InvalidTimeError{Value: s}
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, &InvalidTimeError{Value: s}
	}
	return hour*60 + minute, nil
}

// FormatClock converts minutes since midnight back to "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

var weekdays = map[string]bool{
	"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
	"friday": true, "saturday": true, "sunday": true,
}

// ValidWeekday reports whether s is a lowercase English weekday name.
func ValidWeekday(s string) bool {
	return weekdays[s]
}
