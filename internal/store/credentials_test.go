// ABOUTME: Tests for credential store operations
// ABOUTME: Covers create, lookup by binary id, listing, and counter updates

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	cred := &Credential{
		CredentialID: []byte{0x01, 0x02, 0x03},
		UserID:       user.ID,
		DisplayName:  "yubikey",
		PublicKey:    []byte("public-key-bytes"),
		Counter:      0,
		Transports:   []string{"usb", "nfc"},
	}
	require.NoError(t, s.CreateCredential(ctx, cred))

	got, err := s.GetCredential(ctx, []byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "yubikey", got.DisplayName)
	assert.Equal(t, []byte("public-key-bytes"), got.PublicKey)
	assert.Equal(t, uint32(0), got.Counter)
	assert.Equal(t, []string{"usb", "nfc"}, got.Transports)
	assert.False(t, got.LastUseAt.IsZero())
}

func TestCredentialStore_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetCredential(context.Background(), []byte{0xff})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCredentialStore_Duplicate(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	cred := &Credential{CredentialID: []byte{0xaa}, UserID: user.ID, DisplayName: "key", PublicKey: []byte("pk")}
	require.NoError(t, s.CreateCredential(ctx, cred))

	dup := &Credential{CredentialID: []byte{0xaa}, UserID: user.ID, DisplayName: "other", PublicKey: []byte("pk2")}
	err := s.CreateCredential(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateCredential)
}

func TestCredentialStore_ListByUser(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	alice := createTestUser(t, s, "alice")
	bob := createTestUser(t, s, "bob")

	require.NoError(t, s.CreateCredential(ctx, &Credential{CredentialID: []byte{0x01}, UserID: alice.ID, DisplayName: "a1", PublicKey: []byte("pk")}))
	require.NoError(t, s.CreateCredential(ctx, &Credential{CredentialID: []byte{0x02}, UserID: alice.ID, DisplayName: "a2", PublicKey: []byte("pk")}))
	require.NoError(t, s.CreateCredential(ctx, &Credential{CredentialID: []byte{0x03}, UserID: bob.ID, DisplayName: "b1", PublicKey: []byte("pk")}))

	creds, err := s.ListUserCredentials(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, creds, 2)

	creds, err = s.ListUserCredentials(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestCredentialStore_UpdateCounter(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	cred := &Credential{CredentialID: []byte{0x10}, UserID: user.ID, DisplayName: "key", PublicKey: []byte("pk")}
	require.NoError(t, s.CreateCredential(ctx, cred))
	before, err := s.GetCredential(ctx, cred.CredentialID)
	require.NoError(t, err)

	require.NoError(t, s.UpdateCredentialCounter(ctx, cred.CredentialID, 7))

	got, err := s.GetCredential(ctx, cred.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, uint32(7), got.Counter)
	assert.False(t, got.LastUseAt.Before(before.LastUseAt), "last use must not move backwards")
}

func TestCredentialStore_UpdateCounterMissing(t *testing.T) {
	s := setupTestStore(t)

	err := s.UpdateCredentialCounter(context.Background(), []byte{0xee}, 1)
	assert.ErrorIs(t, err, ErrNotFound)
}
