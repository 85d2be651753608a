// ABOUTME: Credential entity store methods keyed by authenticator credential id
// ABOUTME: The use counter moves forward on every successful authentication

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// CreateCredential inserts a new credential.
// Returns ErrDuplicateCredential when the credential id already exists.
func (s *SQLiteStore) CreateCredential(ctx context.Context, cred *Credential) error {
	if cred.LastUseAt.IsZero() {
		cred.LastUseAt = time.Now().UTC()
	}

	return s.insertCredential(ctx, s.db, cred)
}

// execer covers both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *SQLiteStore) insertCredential(ctx context.Context, db execer, cred *Credential) error {
	transports, err := json.Marshal(cred.Transports)
	if err != nil {
		return fmt.Errorf("marshaling transports: %w", err)
	}

	query := `
		INSERT INTO credentials (credential_id, user_id, display_name, public_key, counter, last_use_at, transports)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		cred.CredentialID,
		cred.UserID,
		cred.DisplayName,
		cred.PublicKey,
		cred.Counter,
		cred.LastUseAt.UTC().Format(time.RFC3339),
		string(transports),
	)
	if isUniqueViolation(err) {
		return ErrDuplicateCredential
	}
	if err != nil {
		return fmt.Errorf("inserting credential: %w", err)
	}

	s.logger.Debug("created credential", "user_id", cred.UserID, "display_name", cred.DisplayName)
	return nil
}

// GetCredential retrieves a credential by its authenticator-assigned id.
// Returns ErrNotFound if no such credential exists.
func (s *SQLiteStore) GetCredential(ctx context.Context, credentialID []byte) (*Credential, error) {
	query := `
		SELECT credential_id, user_id, display_name, public_key, counter, last_use_at, transports
		FROM credentials
		WHERE credential_id = ?
	`

	cred, err := scanCredential(s.db.QueryRowContext(ctx, query, credentialID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}
	return cred, nil
}

// ListUserCredentials returns all credentials registered to a user, used to
// exclude already-registered authenticators from new ceremonies.
func (s *SQLiteStore) ListUserCredentials(ctx context.Context, userID string) ([]*Credential, error) {
	query := `
		SELECT credential_id, user_id, display_name, public_key, counter, last_use_at, transports
		FROM credentials
		WHERE user_id = ?
		ORDER BY last_use_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	defer rows.Close()

	var creds []*Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning credential: %w", err)
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// UpdateCredentialCounter persists the authenticator-reported counter and
// stamps the last use time. Returns ErrNotFound if the credential is gone.
func (s *SQLiteStore) UpdateCredentialCounter(ctx context.Context, credentialID []byte, counter uint32) error {
	query := `
		UPDATE credentials
		SET counter = ?, last_use_at = ?
		WHERE credential_id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		counter,
		time.Now().UTC().Format(time.RFC3339),
		credentialID,
	)
	if err != nil {
		return fmt.Errorf("updating credential counter: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	s.logger.Debug("updated credential counter", "counter", counter)
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (*Credential, error) {
	var cred Credential
	var lastUse, transports string
	err := row.Scan(
		&cred.CredentialID,
		&cred.UserID,
		&cred.DisplayName,
		&cred.PublicKey,
		&cred.Counter,
		&lastUse,
		&transports,
	)
	if err != nil {
		return nil, err
	}

	cred.LastUseAt, _ = time.Parse(time.RFC3339, lastUse)
	if err := json.Unmarshal([]byte(transports), &cred.Transports); err != nil {
		return nil, fmt.Errorf("unmarshaling transports: %w", err)
	}
	return &cred, nil
}
