// ABOUTME: Tests for rule store operations
// ABOUTME: Rules come back sorted by position with nil roles preserved

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleStore_CreateAndList(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRule(ctx, &Rule{
		Name:        "default-deny-admin",
		Position:    10,
		PathPattern: `^/admin/`,
		Action:      ActionDeny,
	}))
	require.NoError(t, s.CreateRule(ctx, &Rule{
		Name:        "admin-area",
		Position:    0,
		Description: "admins may reach the admin area",
		PathPattern: `^/admin/`,
		Roles:       []string{"admin"},
		Action:      ActionAllow,
	}))
	require.NoError(t, s.CreateRule(ctx, &Rule{
		Name:     "catch-all-admin",
		Position: 40,
		Roles:    []string{"admin"},
		Action:   ActionAllow,
	}))

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 3)

	// Ascending position order
	assert.Equal(t, []int{0, 10, 40}, []int{rules[0].Position, rules[1].Position, rules[2].Position})
	assert.Equal(t, "admin-area", rules[0].Name)
	assert.Equal(t, []string{"admin"}, rules[0].Roles)
	assert.Nil(t, rules[1].Roles, "absent role set stays nil, not empty")
	assert.Equal(t, ActionDeny, rules[1].Action)
	assert.Empty(t, rules[1].HostPattern)
}

func TestRuleStore_DuplicateName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateRule(ctx, &Rule{Name: "r", Position: 0, Action: ActionAllow}))
	err := s.CreateRule(ctx, &Rule{Name: "r", Position: 1, Action: ActionDeny})
	assert.ErrorIs(t, err, ErrNameExists)
}

func TestRuleStore_EmptyTable(t *testing.T) {
	s := setupTestStore(t)

	rules, err := s.ListRules(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rules)
}
