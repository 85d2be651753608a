// ABOUTME: Shared test fixture and user/role store tests
// ABOUTME: Uses a temp-dir SQLite database per test

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func createTestUser(t *testing.T, s *SQLiteStore, name string, roles ...string) *User {
	t.Helper()
	ctx := context.Background()

	user := &User{
		ID:          uuid.New().String(),
		Name:        name,
		DisplayName: "Test " + name,
	}
	require.NoError(t, s.CreateUser(ctx, user))

	for _, r := range roles {
		require.NoError(t, s.CreateRole(ctx, &Role{Value: r, Display: r}))
		require.NoError(t, s.AssignRole(ctx, user.ID, r))
	}

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	return got
}

func TestUserStore_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := &User{ID: uuid.New().String(), Name: "alice", DisplayName: "Alice"}
	require.NoError(t, s.CreateUser(ctx, user))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Name)
	assert.Equal(t, "Alice", got.DisplayName)
	assert.Empty(t, got.Roles)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestUserStore_GetByName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := &User{ID: uuid.New().String(), Name: "bob", DisplayName: "Bob"}
	require.NoError(t, s.CreateUser(ctx, user))

	got, err := s.GetUserByName(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestUserStore_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetUser(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetUserByName(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStore_DuplicateName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateUser(ctx, &User{ID: uuid.New().String(), Name: "carol", DisplayName: "C"}))
	err := s.CreateUser(ctx, &User{ID: uuid.New().String(), Name: "carol", DisplayName: "C2"})
	assert.ErrorIs(t, err, ErrNameExists)
}

func TestUserStore_Roles(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	user := createTestUser(t, s, "dave", "admin", "user")

	assert.Equal(t, []string{"admin", "user"}, user.RoleValues())

	// Assigning an already-held role is silent
	require.NoError(t, s.AssignRole(ctx, user.ID, "admin"))

	got, err := s.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Len(t, got.Roles, 2)
}

func TestInvitation_ValidAt(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inv := &Invitation{CreatedAt: created, DurationSecs: 600}

	assert.True(t, inv.ValidAt(created), "window opens at creation")
	assert.True(t, inv.ValidAt(created.Add(599*time.Second)))
	assert.False(t, inv.ValidAt(created.Add(600*time.Second)), "upper bound is excluded")
	assert.False(t, inv.ValidAt(created.Add(-time.Second)), "before creation is invalid")
}
