package model

import "time"

// Appointment statuses. Anything not cancelled or rejected counts as booked
// for conflict checking.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
)

// Appointment is a booked visit. The availability core reads these; it never
// mutates them outside of the create path.
type Appointment struct {
	ID         string    `json:"id"`
	ProviderID string    `json:"doctor_id"`
	PatientID  string    `json:"patient_id,omitempty"`
	Branch     string    `json:"branch,omitempty"`
	Date       string    `json:"appointment_date"` // "2025-09-12"
	Time       string    `json:"appointment_time"` // "09:30"
	Duration   int       `json:"duration_minutes,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// Active reports whether the appointment still occupies its slot.
func (a Appointment) Active() bool {
	return a.Status != StatusCancelled && a.Status != StatusRejected
}
