package schedule

import (
	"errors"
	"testing"

	"dentsched/internal/model"
)

// testDoc builds a document with cabugao open Monday mornings and sanjuan
// open Friday afternoons, matching the clinic defaults.
func testDoc() *model.ScheduleDocument {
	doc := model.NewScheduleDocument()
	doc.Weekly["cabugao"] = model.BranchWeek{
		"monday": {Enabled: true, Start: "08:00", End: "12:00"},
		"friday": {Enabled: true, Start: "08:00", End: "12:00"},
		"sunday": {Enabled: false, Start: "08:00", End: "12:00"},
	}
	doc.Weekly["sanjuan"] = model.BranchWeek{
		"monday": {Enabled: true, Start: "13:00", End: "17:00"},
		"friday": {Enabled: false, Start: "13:00", End: "17:00"},
	}
	return doc
}

func TestResolveAvailability(t *testing.T) {
	const (
		monday = "2025-09-15"
		friday = "2025-09-12"
	)

	tests := []struct {
		name      string
		mutate    func(*model.ScheduleDocument)
		branch    string
		date      string
		wantSlots []model.TimeSlot
	}{
		{
			name:   "weekly default slot",
			branch: "cabugao",
			date:   monday,
			wantSlots: []model.TimeSlot{
				{ID: "default_monday", StartTime: "08:00", EndTime: "12:00", IsAvailable: true, IsDefault: true},
			},
		},
		{
			name:      "disabled weekday",
			branch:    "sanjuan",
			date:      friday,
			wantSlots: nil,
		},
		{
			name:      "unknown branch",
			branch:    "vigan",
			date:      monday,
			wantSlots: nil,
		},
		{
			name: "unavailable override beats enabled weekly day",
			mutate: func(doc *model.ScheduleDocument) {
				doc.SetOverride(model.DateOverride{Date: monday, Branch: "cabugao", Unavailable: true, TimeSlots: []model.TimeSlot{}})
			},
			branch:    "cabugao",
			date:      monday,
			wantSlots: nil,
		},
		{
			name: "custom slots replace weekly, never merge",
			mutate: func(doc *model.ScheduleDocument) {
				doc.SetOverride(model.DateOverride{Date: monday, Branch: "cabugao", TimeSlots: []model.TimeSlot{
					{ID: "s1", StartTime: "09:00", EndTime: "10:30", IsAvailable: true},
					{ID: "s2", StartTime: "10:30", EndTime: "11:00", IsAvailable: false},
				}})
			},
			branch: "cabugao",
			date:   monday,
			wantSlots: []model.TimeSlot{
				{ID: "s1", StartTime: "09:00", EndTime: "10:30", IsAvailable: true},
			},
		},
		{
			name: "override supersedes disabled weekly day",
			mutate: func(doc *model.ScheduleDocument) {
				doc.SetOverride(model.DateOverride{Date: friday, Branch: "sanjuan", TimeSlots: []model.TimeSlot{
					{ID: "s1", StartTime: "13:00", EndTime: "17:00", IsAvailable: true},
				}})
			},
			branch: "sanjuan",
			date:   friday,
			wantSlots: []model.TimeSlot{
				{ID: "s1", StartTime: "13:00", EndTime: "17:00", IsAvailable: true},
			},
		},
		{
			name: "empty override falls back to weekly",
			mutate: func(doc *model.ScheduleDocument) {
				doc.SetOverride(model.DateOverride{Date: monday, Branch: "cabugao", TimeSlots: []model.TimeSlot{}})
			},
			branch: "cabugao",
			date:   monday,
			wantSlots: []model.TimeSlot{
				{ID: "default_monday", StartTime: "08:00", EndTime: "12:00", IsAvailable: true, IsDefault: true},
			},
		},
		{
			name: "enabled day without hours resolves to nothing",
			mutate: func(doc *model.ScheduleDocument) {
				doc.Weekly["cabugao"]["monday"] = model.DaySchedule{Enabled: true}
			},
			branch:    "cabugao",
			date:      monday,
			wantSlots: nil,
		},
		{
			name:      "branch key is lowercased and space-stripped",
			branch:    "San Juan",
			date:      monday,
			wantSlots: []model.TimeSlot{{ID: "default_monday", StartTime: "13:00", EndTime: "17:00", IsAvailable: true, IsDefault: true}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := testDoc()
			if tt.mutate != nil {
				tt.mutate(doc)
			}

			slots, err := ResolveAvailability(doc, tt.branch, tt.date)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(slots) != len(tt.wantSlots) {
				t.Fatalf("expected %d slots, got %d: %v", len(tt.wantSlots), len(slots), slots)
			}
			for i, want := range tt.wantSlots {
				if slots[i] != want {
					t.Errorf("slot %d: expected %+v, got %+v", i, want, slots[i])
				}
			}
		})
	}
}

func TestResolveAvailabilityInvalidDate(t *testing.T) {
	_, err := ResolveAvailability(testDoc(), "cabugao", "12-09-2025")
	var dateErr *InvalidDateError
	if !errors.As(err, &dateErr) {
		t.Fatalf("expected InvalidDateError, got %v", err)
	}
}

func TestResolveAvailabilityNilDocument(t *testing.T) {
	slots, err := ResolveAvailability(nil, "cabugao", "2025-09-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("expected no slots for nil document, got %v", slots)
	}
}

func TestWithinAnySlot(t *testing.T) {
	slots := []model.TimeSlot{
		{ID: "s1", StartTime: "08:00", EndTime: "12:00", IsAvailable: true},
	}

	tests := []struct {
		name     string
		clock    string
		duration int
		want     bool
	}{
		{"fits in the middle", "09:00", 30, true},
		{"boundary end is inclusive", "11:30", 30, true},
		{"overhang past slot end rejected", "11:45", 30, false},
		{"starts before slot", "07:45", 30, false},
		{"exact full slot", "08:00", 240, true},
		{"longer than slot", "08:00", 241, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WithinAnySlot(slots, tt.clock, tt.duration)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("WithinAnySlot(%s, %d): expected %v, got %v", tt.clock, tt.duration, tt.want, got)
			}
		})
	}
}

func TestWithinAnySlotErrors(t *testing.T) {
	slots := []model.TimeSlot{{StartTime: "08:00", EndTime: "12:00"}}

	if _, err := WithinAnySlot(slots, "9am", 30); err == nil {
		t.Error("expected error for malformed time")
	}
	var timeErr *InvalidTimeError
	_, err := WithinAnySlot(slots, "25:00", 30)
	if !errors.As(err, &timeErr) {
		t.Errorf("expected InvalidTimeError for out-of-range hour, got %v", err)
	}
	if _, err := WithinAnySlot(slots, "23:45", 30); err == nil {
		t.Error("expected error for window crossing midnight")
	}
	if _, err := WithinAnySlot(slots, "09:00", 0); err == nil {
		t.Error("expected error for zero duration")
	}
}

func TestWithinAnySlotSkipsMalformedSlots(t *testing.T) {
	slots := []model.TimeSlot{
		{StartTime: "bad", EndTime: "12:00"},
		{StartTime: "13:00", EndTime: "17:00"},
	}
	got, err := WithinAnySlot(slots, "14:00", 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got {
		t.Error("expected request to fit the well-formed slot")
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:30", 510, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"12", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseClock(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q): expected %d, got %d", tt.input, tt.want, got)
			}
		})
	}
}

func TestFormatClock(t *testing.T) {
	if got := FormatClock(510); got != "08:30" {
		t.Errorf("expected 08:30, got %s", got)
	}
	if got := FormatClock(0); got != "00:00" {
		t.Errorf("expected 00:00, got %s", got)
	}
}
