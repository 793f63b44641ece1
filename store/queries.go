package store

import (
	"context"
	"database/sql"
	"time"
)

// Sandbox is the persisted row shape for one sandbox registration.
type Sandbox struct {
	ID           string
	ContainerID  sql.NullString
	ImageName    string
	ExecutorAddr sql.NullString
	ResourceAddr sql.NullString
	EnvFile      sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UpsertSandboxParams is the parameter set for UpsertSandbox.
type UpsertSandboxParams struct {
	ID           string
	ContainerID  sql.NullString
	ImageName    string
	ExecutorAddr sql.NullString
	ResourceAddr sql.NullString
	EnvFile      sql.NullString
}

// UpsertSandbox inserts a new sandbox row or replaces an existing one with
// the same ID.
func (s *Store) UpsertSandbox(ctx context.Context, p UpsertSandboxParams) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sandboxes (id, container_id, image_name, executor_addr, resource_addr, env_file, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			container_id  = excluded.container_id,
			image_name    = excluded.image_name,
			executor_addr = excluded.executor_addr,
			resource_addr = excluded.resource_addr,
			env_file      = excluded.env_file,
			updated_at    = CURRENT_TIMESTAMP
	`, p.ID, p.ContainerID, p.ImageName, p.ExecutorAddr, p.ResourceAddr, p.EnvFile)
	return err
}

// UpdateContainerIDParams is the parameter set for UpdateContainerID.
type UpdateContainerIDParams struct {
	ID          string
	ContainerID sql.NullString
}

// UpdateContainerID updates the container ID of an existing sandbox row.
func (s *Store) UpdateContainerID(ctx context.Context, p UpdateContainerIDParams) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sandboxes SET container_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, p.ContainerID, p.ID)
	return err
}

// GetSandbox fetches one sandbox row by ID, returning sql.ErrNoRows when
// absent.
func (s *Store) GetSandbox(ctx context.Context, id string) (Sandbox, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, container_id, image_name, executor_addr, resource_addr, env_file, created_at, updated_at
		FROM sandboxes WHERE id = ?
	`, id)
	var sb Sandbox
	err := row.Scan(&sb.ID, &sb.ContainerID, &sb.ImageName, &sb.ExecutorAddr, &sb.ResourceAddr, &sb.EnvFile, &sb.CreatedAt, &sb.UpdatedAt)
	return sb, err
}

// ListSandboxes returns every registered sandbox row, ordered by ID.
func (s *Store) ListSandboxes(ctx context.Context) ([]Sandbox, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, container_id, image_name, executor_addr, resource_addr, env_file, created_at, updated_at
		FROM sandboxes ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Sandbox
	for rows.Next() {
		var sb Sandbox
		if err := rows.Scan(&sb.ID, &sb.ContainerID, &sb.ImageName, &sb.ExecutorAddr, &sb.ResourceAddr, &sb.EnvFile, &sb.CreatedAt, &sb.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, sb)
	}
	return out, rows.Err()
}

// DeleteSandbox removes a sandbox row by ID. Deleting an absent ID is not
// an error.
func (s *Store) DeleteSandbox(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sandboxes WHERE id = ?`, id)
	return err
}
