// ABOUTME: Invitation entity store methods and the atomic registration write
// ABOUTME: Credential insert and invitation delete commit as one transaction

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateInvitation inserts a new single-use registration invitation.
// Generates the ID and CreatedAt if unset.
func (s *SQLiteStore) CreateInvitation(ctx context.Context, inv *Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	if inv.DurationSecs <= 0 {
		inv.DurationSecs = 600
	}

	query := `
		INSERT INTO invitations (id, user_id, created_at, duration_secs, challenge)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inv.ID,
		inv.UserID,
		inv.CreatedAt.Format(time.RFC3339),
		inv.DurationSecs,
		inv.Challenge,
	)
	if err != nil {
		return fmt.Errorf("inserting invitation: %w", err)
	}

	s.logger.Debug("created invitation", "id", inv.ID, "user_id", inv.UserID)
	return nil
}

// GetInvitation retrieves an invitation by id.
// Returns ErrNotFound if it doesn't exist. Expiry is the caller's check;
// the store returns expired invitations as-is.
func (s *SQLiteStore) GetInvitation(ctx context.Context, id string) (*Invitation, error) {
	query := `
		SELECT id, user_id, created_at, duration_secs, challenge
		FROM invitations
		WHERE id = ?
	`

	var inv Invitation
	var createdAt string
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&inv.ID,
		&inv.UserID,
		&createdAt,
		&inv.DurationSecs,
		&inv.Challenge,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying invitation: %w", err)
	}

	inv.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &inv, nil
}

// RegisterCredential inserts the credential and consumes the invitation as a
// single transaction. A duplicate credential id rolls the whole write back,
// returns ErrDuplicateCredential, and leaves the invitation usable. A missing
// invitation (consumed concurrently) rolls back with ErrNotFound.
func (s *SQLiteStore) RegisterCredential(ctx context.Context, invitationID string, cred *Credential) error {
	if cred.LastUseAt.IsZero() {
		cred.LastUseAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.insertCredential(ctx, tx, cred); err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE id = ?`, invitationID)
	if err != nil {
		return fmt.Errorf("deleting invitation: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing registration: %w", err)
	}

	s.logger.Info("registered credential",
		"user_id", cred.UserID,
		"display_name", cred.DisplayName,
		"invitation_id", invitationID,
	)
	return nil
}
