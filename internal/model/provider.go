package model

import "time"

// Provider roles that can be booked.
const (
	RoleDoctor = "doctor"
	RoleStaff  = "staff"
)

// Provider is a bookable doctor or staff member.
type Provider struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FullName returns "First Last" for display in rejection reasons and reports.
func (p Provider) FullName() string {
	if p.FirstName == "" {
		return p.LastName
	}
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// ProviderRecord bundles a provider with their loaded schedule state, as
// returned by the store in one read.
type ProviderRecord struct {
	Provider         Provider
	Schedule         *ScheduleDocument // nil when never configured
	UnavailableDates []UnavailableDate
	Version          int64 // schedule document version for optimistic saves
}
