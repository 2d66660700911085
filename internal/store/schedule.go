package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dentsched/internal/model"
)

// LoadScheduleDocument returns the schedule document and its version for
// (provider, role). A provider that has never saved a schedule yields
// (nil, 0, nil).
func (db *DB) LoadScheduleDocument(ctx context.Context, providerID, role string) (*model.ScheduleDocument, int64, error) {
	var raw string
	var version int64
	err := db.QueryRowContext(ctx, `
		SELECT document, version FROM schedule_documents
		WHERE provider_id = ? AND role = ?`, providerID, role,
	).Scan(&raw, &version)
	if err == sql.ErrNoRows {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, wrapStore("load schedule document", err)
	}

	doc := model.NewScheduleDocument()
	if err := json.Unmarshal([]byte(raw), doc); err != nil {
		return nil, 0, fmt.Errorf("decode schedule document: %w", err)
	}
	return doc, version, nil
}

// SaveScheduleDocument persists the whole document, guarded by an optimistic
// version check. Pass expectedVersion 0 for a first save. Returns the new
// version, or ErrVersionConflict when a concurrent writer got there first.
func (db *DB) SaveScheduleDocument(ctx context.Context, providerID, role string, doc *model.ScheduleDocument, expectedVersion int64) (int64, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return 0, fmt.Errorf("encode schedule document: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		INSERT INTO schedule_documents (provider_id, role, document, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(provider_id, role) DO UPDATE SET
			document = excluded.document,
			version = schedule_documents.version + 1,
			updated_at = excluded.updated_at
		WHERE schedule_documents.version = ?`,
		providerID, role, string(data), time.Now(), expectedVersion)
	if err != nil {
		return 0, wrapStore("save schedule document", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, wrapStore("save schedule document", err)
	}
	if affected == 0 {
		return 0, ErrVersionConflict
	}
	return expectedVersion + 1, nil
}

// LoadProviderRecord reads everything the booking validator needs for one
// provider in a single call: profile, schedule document, and the flat
// unavailable-dates list.
func (db *DB) LoadProviderRecord(ctx context.Context, providerID string) (*model.ProviderRecord, error) {
	provider, err := db.GetProvider(ctx, providerID)
	if err != nil {
		return nil, err
	}

	doc, version, err := db.LoadScheduleDocument(ctx, providerID, provider.Role)
	if err != nil {
		return nil, err
	}

	unavailable, err := db.ListUnavailableDates(ctx, providerID)
	if err != nil {
		return nil, err
	}

	return &model.ProviderRecord{
		Provider:         *provider,
		Schedule:         doc,
		UnavailableDates: unavailable,
		Version:          version,
	}, nil
}

// SaveCalendarSchedule writes or replaces the keyed override for
// (date, branch). Saving an empty slot list deletes the key instead, which
// reverts the date to the weekly default.
func (db *DB) SaveCalendarSchedule(ctx context.Context, providerID, role, date, branch string, slots []model.TimeSlot) error {
	return db.mutateDocument(ctx, providerID, role, func(doc *model.ScheduleDocument) {
		if len(slots) == 0 {
			doc.RemoveOverride(date, branch)
			return
		}
		doc.SetOverride(model.DateOverride{
			Date:        date,
			Branch:      model.BranchKey(branch),
			TimeSlots:   slots,
			LastUpdated: time.Now(),
		})
	})
}

// MarkDateUnavailable blocks the whole (date, branch) via a keyed override.
func (db *DB) MarkDateUnavailable(ctx context.Context, providerID, role, date, branch string) error {
	return db.mutateDocument(ctx, providerID, role, func(doc *model.ScheduleDocument) {
		doc.SetOverride(model.DateOverride{
			Date:        date,
			Branch:      model.BranchKey(branch),
			TimeSlots:   []model.TimeSlot{},
			Unavailable: true,
			LastUpdated: time.Now(),
		})
	})
}

// RemoveCalendarSchedule deletes the keyed override for (date, branch).
func (db *DB) RemoveCalendarSchedule(ctx context.Context, providerID, role, date, branch string) error {
	return db.mutateDocument(ctx, providerID, role, func(doc *model.ScheduleDocument) {
		doc.RemoveOverride(date, branch)
	})
}

// SaveWeeklySchedule replaces the weekly hours for one branch.
func (db *DB) SaveWeeklySchedule(ctx context.Context, providerID, role, branch string, week model.BranchWeek) error {
	return db.mutateDocument(ctx, providerID, role, func(doc *model.ScheduleDocument) {
		doc.Weekly[model.BranchKey(branch)] = week
	})
}

// mutateDocument implements the load-modify-persist cycle every calendar
// write uses. The optimistic version check turns a lost race into
// ErrVersionConflict instead of silently overwriting the other writer.
func (db *DB) mutateDocument(ctx context.Context, providerID, role string, mutate func(*model.ScheduleDocument)) error {
	doc, version, err := db.LoadScheduleDocument(ctx, providerID, role)
	if err != nil {
		return err
	}
	if doc == nil {
		doc = model.NewScheduleDocument()
	}

	mutate(doc)

	_, err = db.SaveScheduleDocument(ctx, providerID, role, doc, version)
	return err
}

// ListUnavailableDates returns the provider's flat unavailable-dates list,
// oldest first.
func (db *DB) ListUnavailableDates(ctx context.Context, providerID string) ([]model.UnavailableDate, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, date, branch, time_slots FROM unavailable_dates
		WHERE provider_id = ?
		ORDER BY created_at`, providerID)
	if err != nil {
		return nil, wrapStore("list unavailable dates", err)
	}
	defer rows.Close()

	var entries []model.UnavailableDate
	for rows.Next() {
		var e model.UnavailableDate
		var slots sql.NullString
		if err := rows.Scan(&e.ID, &e.Date, &e.Branch, &slots); err != nil {
			return nil, wrapStore("scan unavailable date", err)
		}
		if slots.Valid {
			if err := json.Unmarshal([]byte(slots.String), &e.TimeSlots); err != nil {
				return nil, fmt.Errorf("decode unavailable times for %s: %w", e.ID, err)
			}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("list unavailable dates", err)
	}
	return entries, nil
}

// AddUnavailableDate appends a flat unavailable-dates entry and returns its
// generated id. A nil timeSlots blocks the whole day.
func (db *DB) AddUnavailableDate(ctx context.Context, providerID, role, date, branch string, timeSlots []string) (string, error) {
	id := uuid.NewString()

	var slots any
	if timeSlots != nil {
		data, err := json.Marshal(timeSlots)
		if err != nil {
			return "", fmt.Errorf("encode unavailable times: %w", err)
		}
		slots = string(data)
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO unavailable_dates (id, provider_id, role, date, branch, time_slots, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, providerID, role, date, model.BranchKey(branch), slots, time.Now())
	if err != nil {
		return "", wrapStore("add unavailable date", err)
	}
	return id, nil
}

// RemoveUnavailableDate removes a flat entry by id.
func (db *DB) RemoveUnavailableDate(ctx context.Context, providerID, id string) error {
	_, err := db.ExecContext(ctx, `
		DELETE FROM unavailable_dates WHERE provider_id = ? AND id = ?`,
		providerID, id)
	if err != nil {
		return wrapStore("remove unavailable date", err)
	}
	return nil
}
