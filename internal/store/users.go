// ABOUTME: User and role entities with their SQLite store methods
// ABOUTME: Users carry a role set that feeds authorization decisions

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateUser inserts a new user, generating the ID if unset.
// Returns ErrNameExists when the login name is taken.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO users (id, name, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.Name,
		user.DisplayName,
		user.CreatedAt.Format(time.RFC3339),
		user.UpdatedAt.Format(time.RFC3339),
	)
	if isUniqueViolation(err) {
		return ErrNameExists
	}
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Debug("created user", "id", user.ID, "name", user.Name)
	return nil
}

// GetUser retrieves a user by id, including the assigned roles.
// Returns ErrNotFound if the user doesn't exist.
func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.getUser(ctx, "id = ?", id)
}

// GetUserByName retrieves a user by unique login name, including roles.
func (s *SQLiteStore) GetUserByName(ctx context.Context, name string) (*User, error) {
	return s.getUser(ctx, "name = ?", name)
}

func (s *SQLiteStore) getUser(ctx context.Context, where string, arg any) (*User, error) {
	query := `
		SELECT id, name, display_name, created_at, updated_at
		FROM users
		WHERE ` + where

	var user User
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.DisplayName,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	user.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	user.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	roles, err := s.userRoles(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	user.Roles = roles

	return &user, nil
}

func (s *SQLiteStore) userRoles(ctx context.Context, userID string) ([]Role, error) {
	query := `
		SELECT r.value, r.display
		FROM roles r
		JOIN user_roles ur ON ur.role_value = r.value
		WHERE ur.user_id = ?
		ORDER BY r.value
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying user roles: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var r Role
		if err := rows.Scan(&r.Value, &r.Display); err != nil {
			return nil, fmt.Errorf("scanning role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// CreateRole inserts a role. Idempotent: re-creating an existing role
// updates its display label.
func (s *SQLiteStore) CreateRole(ctx context.Context, role *Role) error {
	query := `
		INSERT INTO roles (value, display) VALUES (?, ?)
		ON CONFLICT(value) DO UPDATE SET display = excluded.display
	`

	if _, err := s.db.ExecContext(ctx, query, role.Value, role.Display); err != nil {
		return fmt.Errorf("inserting role: %w", err)
	}
	return nil
}

// AssignRole grants a role to a user. Assigning an already-held role
// succeeds silently.
func (s *SQLiteStore) AssignRole(ctx context.Context, userID, roleValue string) error {
	query := `INSERT OR IGNORE INTO user_roles (user_id, role_value) VALUES (?, ?)`

	if _, err := s.db.ExecContext(ctx, query, userID, roleValue); err != nil {
		return fmt.Errorf("assigning role: %w", err)
	}

	s.logger.Debug("assigned role", "user_id", userID, "role", roleValue)
	return nil
}
