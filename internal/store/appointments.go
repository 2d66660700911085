package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"dentsched/internal/model"
	"dentsched/internal/schedule"
)

// ErrSlotTaken is returned by CreateAppointment when the conflict re-check
// inside the insert transaction finds an overlapping booking.
var ErrSlotTaken = errors.New("appointment slot already taken")

// ListAppointments returns all appointments for (provider, date), any
// status. Conflict filtering on status happens in the core.
func (db *DB) ListAppointments(ctx context.Context, providerID, date string) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, provider_id, patient_id, branch, date, time, duration_minutes, status, created_at, updated_at
		FROM appointments
		WHERE provider_id = ? AND date = ?
		ORDER BY time`, providerID, date)
	if err != nil {
		return nil, wrapStore("list appointments", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}

func scanAppointments(rows *sql.Rows) ([]model.Appointment, error) {
	var appointments []model.Appointment
	for rows.Next() {
		var a model.Appointment
		var patientID, branch sql.NullString
		if err := rows.Scan(&a.ID, &a.ProviderID, &patientID, &branch, &a.Date, &a.Time,
			&a.Duration, &a.Status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, wrapStore("scan appointment", err)
		}
		if patientID.Valid {
			a.PatientID = patientID.String
		}
		if branch.Valid {
			a.Branch = branch.String
		}
		appointments = append(appointments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("list appointments", err)
	}
	return appointments, nil
}

// CountActiveAppointments counts non-cancelled, non-rejected appointments
// for (provider, date). Used to warn managers before a date is blocked.
func (db *DB) CountActiveAppointments(ctx context.Context, providerID, date string) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE provider_id = ? AND date = ?
		AND status NOT IN ('cancelled', 'rejected')`,
		providerID, date).Scan(&count)
	if err != nil {
		return 0, wrapStore("count active appointments", err)
	}
	return count, nil
}

// CreateAppointment inserts a booking after re-checking conflicts inside
// the same transaction. The booking validator runs first, outside; the
// re-check here closes the window between validation read and insert.
func (db *DB) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Duration <= 0 {
		a.Duration = schedule.DefaultAppointmentDuration
	}
	if a.Status == "" {
		a.Status = model.StatusPending
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapStore("begin create appointment", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, provider_id, patient_id, branch, date, time, duration_minutes, status, created_at, updated_at
		FROM appointments
		WHERE provider_id = ? AND date = ?
		AND status NOT IN ('cancelled', 'rejected')`,
		a.ProviderID, a.Date)
	if err != nil {
		return wrapStore("create appointment conflict check", err)
	}
	existing, err := scanAppointments(rows)
	rows.Close()
	if err != nil {
		return err
	}

	conflict, err := schedule.HasConflict(existing, a.Time, a.Duration, schedule.ConflictOptions{})
	if err != nil {
		return err
	}
	if conflict {
		return ErrSlotTaken
	}

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments (id, provider_id, patient_id, branch, date, time, duration_minutes, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.ProviderID, a.PatientID, a.Branch, a.Date, a.Time, a.Duration, a.Status, now, now)
	if err != nil {
		return wrapStore("insert appointment", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapStore("commit appointment", err)
	}
	a.CreatedAt = now
	a.UpdatedAt = now
	return nil
}

// UpdateAppointmentStatus sets a new status on an appointment.
func (db *DB) UpdateAppointmentStatus(ctx context.Context, id, status string) error {
	res, err := db.ExecContext(ctx, `
		UPDATE appointments SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id)
	if err != nil {
		return wrapStore("update appointment status", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrapStore("update appointment status", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListAppointmentsByDateRange returns appointments across all providers
// within [from, to], for reporting.
func (db *DB) ListAppointmentsByDateRange(ctx context.Context, from, to string) ([]model.Appointment, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, provider_id, patient_id, branch, date, time, duration_minutes, status, created_at, updated_at
		FROM appointments
		WHERE date >= ? AND date <= ?
		ORDER BY date, time`, from, to)
	if err != nil {
		return nil, wrapStore("list appointments by range", err)
	}
	defer rows.Close()

	return scanAppointments(rows)
}
