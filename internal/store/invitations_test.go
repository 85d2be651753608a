// ABOUTME: Tests for invitation store operations and atomic registration
// ABOUTME: A conflicting credential insert must leave the invitation intact

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvitationStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	inv := &Invitation{UserID: user.ID, Challenge: []byte("challenge-bytes")}
	require.NoError(t, s.CreateInvitation(ctx, inv))
	assert.NotEmpty(t, inv.ID, "id is generated")
	assert.Equal(t, 600, inv.DurationSecs, "default window is 600s")

	got, err := s.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, []byte("challenge-bytes"), got.Challenge)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestInvitationStore_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetInvitation(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterCredential_ConsumesInvitation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	inv := &Invitation{UserID: user.ID, Challenge: []byte("c")}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	cred := &Credential{CredentialID: []byte{0x01}, UserID: user.ID, DisplayName: "key", PublicKey: []byte("pk")}
	require.NoError(t, s.RegisterCredential(ctx, inv.ID, cred))

	// Credential landed
	got, err := s.GetCredential(ctx, cred.CredentialID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.UserID)

	// Invitation is gone
	_, err = s.GetInvitation(ctx, inv.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterCredential_ConflictKeepsInvitation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	existing := &Credential{CredentialID: []byte{0x01}, UserID: user.ID, DisplayName: "key", PublicKey: []byte("pk")}
	require.NoError(t, s.CreateCredential(ctx, existing))

	inv := &Invitation{UserID: user.ID, Challenge: []byte("c")}
	require.NoError(t, s.CreateInvitation(ctx, inv))

	dup := &Credential{CredentialID: []byte{0x01}, UserID: user.ID, DisplayName: "dup", PublicKey: []byte("pk")}
	err := s.RegisterCredential(ctx, inv.ID, dup)
	assert.ErrorIs(t, err, ErrDuplicateCredential)

	// The invitation must survive the rolled-back write
	got, err := s.GetInvitation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, inv.ID, got.ID)
}

func TestRegisterCredential_MissingInvitation(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	user := createTestUser(t, s, "alice")

	cred := &Credential{CredentialID: []byte{0x02}, UserID: user.ID, DisplayName: "key", PublicKey: []byte("pk")}
	err := s.RegisterCredential(ctx, "missing", cred)
	assert.ErrorIs(t, err, ErrNotFound)

	// The rolled-back credential must not exist
	_, err = s.GetCredential(ctx, cred.CredentialID)
	assert.ErrorIs(t, err, ErrNotFound)
}
