package model

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// overrideKeyRe matches date-stamped override keys like "2025-09-12_cabugao".
var overrideKeyRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}_`)

// DaySchedule holds working hours for one weekday at one branch.
// Start/End are kept even when Enabled is false so the day can be
// re-enabled with its previous hours.
type DaySchedule struct {
	Enabled bool   `json:"enabled"`
	Start   string `json:"start"` // "08:00"
	End     string `json:"end"`   // "12:00"
}

// BranchWeek maps lowercase English weekday names to day schedules.
type BranchWeek map[string]DaySchedule

// WeeklySchedule maps branch keys to their recurring weekly hours.
type WeeklySchedule map[string]BranchWeek

// TimeSlot is a contiguous bookable interval within a day.
type TimeSlot struct {
	ID          string `json:"id"`
	StartTime   string `json:"startTime"` // "13:00"
	EndTime     string `json:"endTime"`   // "17:00"
	IsAvailable bool   `json:"isAvailable"`
	IsDefault   bool   `json:"isDefault,omitempty"`
}

// DateOverride replaces the weekly schedule for a single (date, branch).
// Unavailable blocks the whole day regardless of TimeSlots. An override
// with no slots and Unavailable false falls back to the weekly schedule.
type DateOverride struct {
	Date        string     `json:"date"`   // "2025-09-12"
	Branch      string     `json:"branch"` // branch key
	TimeSlots   []TimeSlot `json:"timeSlots"`
	Unavailable bool       `json:"unavailable,omitempty"`
	LastUpdated time.Time  `json:"lastUpdated,omitempty"`
}

// UnavailableDate is the flat-list unavailability record. A nil TimeSlots
// blocks the entire day; a non-nil list blocks the listed "HH:MM" times.
type UnavailableDate struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Branch    string   `json:"branch"`
	TimeSlots []string `json:"timeSlots"`
}

// BlocksWholeDay reports whether the entry blocks the entire day.
func (u UnavailableDate) BlocksWholeDay() bool {
	return u.TimeSlots == nil
}

// BlocksTime reports whether the entry blocks the given "HH:MM" time.
func (u UnavailableDate) BlocksTime(clock string) bool {
	if u.TimeSlots == nil {
		return true
	}
	for _, t := range u.TimeSlots {
		if t == clock {
			return true
		}
	}
	return false
}

// ScheduleDocument is one provider's full schedule: recurring weekly hours
// plus per-date overrides keyed by "{YYYY-MM-DD}_{branchKey}". The persisted
// form is a single flat JSON object mixing both kinds of key; the tagged
// representation here is built at the decode boundary.
type ScheduleDocument struct {
	Weekly    WeeklySchedule
	Overrides map[string]DateOverride
}

// NewScheduleDocument returns an empty document with allocated maps.
func NewScheduleDocument() *ScheduleDocument {
	return &ScheduleDocument{
		Weekly:    make(WeeklySchedule),
		Overrides: make(map[string]DateOverride),
	}
}

// Override returns the override for (date, branch), if any.
func (d *ScheduleDocument) Override(date, branch string) (DateOverride, bool) {
	o, ok := d.Overrides[OverrideKey(date, branch)]
	return o, ok
}

// SetOverride stores an override under its canonical key.
func (d *ScheduleDocument) SetOverride(o DateOverride) {
	if d.Overrides == nil {
		d.Overrides = make(map[string]DateOverride)
	}
	d.Overrides[OverrideKey(o.Date, o.Branch)] = o
}

// RemoveOverride deletes the override for (date, branch).
func (d *ScheduleDocument) RemoveOverride(date, branch string) {
	delete(d.Overrides, OverrideKey(date, branch))
}

// Day returns the weekly entry for (branchKey, weekday).
func (d *ScheduleDocument) Day(branchKey, weekday string) (DaySchedule, bool) {
	week, ok := d.Weekly[branchKey]
	if !ok {
		return DaySchedule{}, false
	}
	day, ok := week[weekday]
	return day, ok
}

// MarshalJSON flattens the document back into the persisted single-map form.
func (d *ScheduleDocument) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Weekly)+len(d.Overrides))
	for branch, week := range d.Weekly {
		flat[branch] = week
	}
	for key, override := range d.Overrides {
		flat[key] = override
	}
	return json.Marshal(flat)
}

// UnmarshalJSON splits the flat persisted map into weekly entries and
// date-stamped overrides, discriminated by key pattern.
func (d *ScheduleDocument) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return err
	}

	d.Weekly = make(WeeklySchedule)
	d.Overrides = make(map[string]DateOverride)

	for key, raw := range flat {
		if overrideKeyRe.MatchString(key) {
			var o DateOverride
			if err := json.Unmarshal(raw, &o); err != nil {
				return fmt.Errorf("decode override %q: %w", key, err)
			}
			d.Overrides[key] = o
			continue
		}
		var week BranchWeek
		if err := json.Unmarshal(raw, &week); err != nil {
			return fmt.Errorf("decode weekly entry %q: %w", key, err)
		}
		d.Weekly[key] = week
	}
	return nil
}

// Normalize fills in missing branches and weekdays from the clinic defaults
// so a freshly created or partially saved document always resolves. The
// defaults value is supplied by configuration, never ambient state.
func (d *ScheduleDocument) Normalize(defaults WeeklySchedule) {
	if d.Weekly == nil {
		d.Weekly = make(WeeklySchedule)
	}
	if d.Overrides == nil {
		d.Overrides = make(map[string]DateOverride)
	}
	for branch, defWeek := range defaults {
		week, ok := d.Weekly[branch]
		if !ok {
			week = make(BranchWeek, len(defWeek))
			d.Weekly[branch] = week
		}
		for weekday, day := range defWeek {
			if _, ok := week[weekday]; !ok {
				week[weekday] = day
			}
		}
	}
}

// BranchKey canonicalizes a branch identifier: lowercase, spaces stripped
// ("San Juan" -> "sanjuan").
func BranchKey(branch string) string {
	return strings.ReplaceAll(strings.ToLower(branch), " ", "")
}

// WeekdayName returns the lowercase English weekday name for a date.
func WeekdayName(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}

// OverrideKey builds the canonical override key for (date, branch).
func OverrideKey(date, branch string) string {
	return date + "_" + BranchKey(branch)
}
