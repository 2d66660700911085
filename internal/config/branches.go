package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dentsched/internal/model"
)

// BranchHoursConfig is the default working-hours block for a branch.
type BranchHoursConfig struct {
	Start string   `yaml:"start"` // "08:00"
	End   string   `yaml:"end"`   // "12:00"
	Days  []string `yaml:"days"`  // lowercase weekday names
}

// BranchConfig represents a single clinic branch.
type BranchConfig struct {
	Key          string             `yaml:"key"` // canonical key, e.g. "cabugao"
	Name         string             `yaml:"name"`
	Address      string             `yaml:"address"`
	IsActive     bool               `yaml:"is_active"`
	DefaultHours *BranchHoursConfig `yaml:"default_hours,omitempty"`
}

// HolidayConfig marks a clinic-wide closed date.
type HolidayConfig struct {
	Date string `yaml:"date"` // "2026-01-01"
	Name string `yaml:"name"`
}

// BranchesConfig is the root configuration for branches.yaml.
type BranchesConfig struct {
	Branches []BranchConfig  `yaml:"branches"`
	Defaults struct {
		Hours *BranchHoursConfig `yaml:"hours"`
	} `yaml:"defaults"`
	Holidays []HolidayConfig `yaml:"holidays"`
}

// DefaultBranches returns the built-in clinic configuration used when no
// branches.yaml is present: Cabugao mornings, San Juan afternoons, Mon-Fri.
func DefaultBranches() *BranchesConfig {
	weekdays := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	return &BranchesConfig{
		Branches: []BranchConfig{
			{
				Key:          "cabugao",
				Name:         "Cabugao",
				IsActive:     true,
				DefaultHours: &BranchHoursConfig{Start: "08:00", End: "12:00", Days: weekdays},
			},
			{
				Key:          "sanjuan",
				Name:         "San Juan",
				IsActive:     true,
				DefaultHours: &BranchHoursConfig{Start: "13:00", End: "17:00", Days: weekdays},
			},
		},
	}
}

// LoadBranches loads and validates the branches configuration. A missing
// file yields the built-in clinic defaults.
func LoadBranches(path string) (*BranchesConfig, error) {
	if path == "" {
		path = "configs/branches.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultBranches(), nil
		}
		return nil, fmt.Errorf("read branches config: %w", err)
	}

	var cfg BranchesConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse branches config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate branches config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *BranchesConfig) Validate() error {
	if len(c.Branches) == 0 {
		return fmt.Errorf("no branches defined")
	}

	keys := make(map[string]bool)
	for i, b := range c.Branches {
		if b.Key == "" {
			return fmt.Errorf("branch[%d]: key is required", i)
		}
		if b.Key != model.BranchKey(b.Key) {
			return fmt.Errorf("branch[%d]: key %q must be lowercase without spaces", i, b.Key)
		}
		if keys[b.Key] {
			return fmt.Errorf("branch[%d]: duplicate key %q", i, b.Key)
		}
		keys[b.Key] = true

		if b.Name == "" {
			return fmt.Errorf("branch[%d]: name is required", i)
		}
		if b.DefaultHours != nil {
			if err := validateHours(b.DefaultHours, fmt.Sprintf("branch[%d].default_hours", i)); err != nil {
				return err
			}
		}
	}

	if c.Defaults.Hours != nil {
		if err := validateHours(c.Defaults.Hours, "defaults.hours"); err != nil {
			return err
		}
	}

	for i, h := range c.Holidays {
		if h.Date == "" {
			return fmt.Errorf("holiday[%d]: date is required", i)
		}
		if _, err := time.Parse("2006-01-02", h.Date); err != nil {
			return fmt.Errorf("holiday[%d]: invalid date %q, expected YYYY-MM-DD", i, h.Date)
		}
	}

	return nil
}

func validateHours(h *BranchHoursConfig, prefix string) error {
	if h.Start == "" {
		return fmt.Errorf("%s.start is required", prefix)
	}
	if h.End == "" {
		return fmt.Errorf("%s.end is required", prefix)
	}

	start, err := time.Parse("15:04", h.Start)
	if err != nil {
		return fmt.Errorf("%s.start: invalid format %q, expected HH:MM", prefix, h.Start)
	}
	end, err := time.Parse("15:04", h.End)
	if err != nil {
		return fmt.Errorf("%s.end: invalid format %q, expected HH:MM", prefix, h.End)
	}
	if !end.After(start) {
		return fmt.Errorf("%s: end must be after start", prefix)
	}

	valid := map[string]bool{
		"monday": true, "tuesday": true, "wednesday": true, "thursday": true,
		"friday": true, "saturday": true, "sunday": true,
	}
	for _, d := range h.Days {
		if !valid[d] {
			return fmt.Errorf("%s.days: unknown weekday %q", prefix, d)
		}
	}

	return nil
}

func (c *BranchesConfig) applyDefaults() {
	for i := range c.Branches {
		if c.Branches[i].DefaultHours == nil && c.Defaults.Hours != nil {
			c.Branches[i].DefaultHours = c.Defaults.Hours
		}
	}
}

// BranchByKey returns the branch config for a canonical key.
func (c *BranchesConfig) BranchByKey(key string) *BranchConfig {
	for i := range c.Branches {
		if c.Branches[i].Key == key {
			return &c.Branches[i]
		}
	}
	return nil
}

// ActiveBranches returns only active branches.
func (c *BranchesConfig) ActiveBranches() []BranchConfig {
	result := make([]BranchConfig, 0, len(c.Branches))
	for _, b := range c.Branches {
		if b.IsActive {
			result = append(result, b)
		}
	}
	return result
}

// IsHoliday checks whether a YYYY-MM-DD date is a clinic-wide holiday.
func (c *BranchesConfig) IsHoliday(date string) (bool, string) {
	for _, h := range c.Holidays {
		if h.Date == date {
			return true, h.Name
		}
	}
	return false, ""
}

// DefaultWeekly builds the weekly-schedule defaults handed to document
// normalization. Days not listed for a branch are present but disabled so
// providers can re-enable them with sensible hours.
func (c *BranchesConfig) DefaultWeekly() model.WeeklySchedule {
	allDays := []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

	weekly := make(model.WeeklySchedule, len(c.Branches))
	for _, b := range c.Branches {
		if !b.IsActive || b.DefaultHours == nil {
			continue
		}
		enabled := make(map[string]bool, len(b.DefaultHours.Days))
		for _, d := range b.DefaultHours.Days {
			enabled[d] = true
		}
		week := make(model.BranchWeek, len(allDays))
		for _, d := range allDays {
			week[d] = model.DaySchedule{
				Enabled: enabled[d],
				Start:   b.DefaultHours.Start,
				End:     b.DefaultHours.End,
			}
		}
		weekly[b.Key] = week
	}
	return weekly
}

// String returns a summary of the configuration.
func (c *BranchesConfig) String() string {
	active := 0
	for _, b := range c.Branches {
		if b.IsActive {
			active++
		}
	}
	return fmt.Sprintf("BranchesConfig: %d branches (%d active), %d holidays",
		len(c.Branches), active, len(c.Holidays))
}
