package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"dentsched/internal/model"
)

// GetProvider returns a provider profile by id.
func (db *DB) GetProvider(ctx context.Context, id string) (*model.Provider, error) {
	var p model.Provider
	err := db.QueryRowContext(ctx, `
		SELECT id, role, first_name, last_name, email, is_active, created_at, updated_at
		FROM providers WHERE id = ?`, id,
	).Scan(&p.ID, &p.Role, &p.FirstName, &p.LastName, &p.Email, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrProviderNotFound
	}
	if err != nil {
		return nil, wrapStore("get provider", err)
	}
	return &p, nil
}

// ListProviders returns active providers with one of the given roles.
func (db *DB) ListProviders(ctx context.Context, roles []string) ([]model.Provider, error) {
	if len(roles) == 0 {
		roles = []string{model.RoleDoctor, model.RoleStaff}
	}

	placeholders := strings.Repeat("?,", len(roles))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(roles))
	for i, r := range roles {
		args[i] = r
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, role, first_name, last_name, email, is_active, created_at, updated_at
		FROM providers
		WHERE role IN (`+placeholders+`) AND is_active = 1
		ORDER BY id`, args...)
	if err != nil {
		return nil, wrapStore("list providers", err)
	}
	defer rows.Close()

	var providers []model.Provider
	for rows.Next() {
		var p model.Provider
		if err := rows.Scan(&p.ID, &p.Role, &p.FirstName, &p.LastName, &p.Email,
			&p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, wrapStore("scan provider", err)
		}
		providers = append(providers, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapStore("list providers", err)
	}
	return providers, nil
}

// CreateProvider inserts a provider profile.
func (db *DB) CreateProvider(ctx context.Context, p *model.Provider) error {
	now := time.Now()
	_, err := db.ExecContext(ctx, `
		INSERT INTO providers (id, role, first_name, last_name, email, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Role, p.FirstName, p.LastName, p.Email, p.IsActive, now, now)
	if err != nil {
		return wrapStore("create provider", err)
	}
	return nil
}
