// ABOUTME: Store interface and entity types for keyward persistence
// ABOUTME: Users, roles, credentials, invitations, and authorization rules

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateCredential is returned when inserting a credential whose id
// already exists.
var ErrDuplicateCredential = errors.New("credential already exists")

// ErrNameExists is returned when creating a user or rule with a taken name.
var ErrNameExists = errors.New("name already exists")

// Role is a grantable role, a subset of the RFC 7643 role definition.
type Role struct {
	Value   string // identifier used on the wire and in rules
	Display string // label for UIs
}

// User is an account that can hold credentials and roles.
type User struct {
	ID          string
	Name        string // unique login name
	DisplayName string
	Roles       []Role
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleValues returns the wire identifiers of the user's roles.
func (u *User) RoleValues() []string {
	values := make([]string, len(u.Roles))
	for i, r := range u.Roles {
		values[i] = r.Value
	}
	return values
}

// Credential is a registered WebAuthn authenticator. The counter is reported
// by the authenticator on every use and only ever moves forward; a reported
// value below the stored one indicates a cloned authenticator.
type Credential struct {
	CredentialID []byte // authenticator-assigned id, primary key
	UserID       string
	DisplayName  string
	PublicKey    []byte
	Counter      uint32
	LastUseAt    time.Time
	Transports   []string
}

// Invitation is a single-use registration grant with a pre-committed
// ceremony challenge. It is deleted when the registration succeeds.
type Invitation struct {
	ID           string
	UserID       string
	CreatedAt    time.Time
	DurationSecs int
	Challenge    []byte
}

// ValidAt reports whether the invitation window covers t. The window is
// [CreatedAt, CreatedAt+DurationSecs); the upper bound is excluded.
func (i *Invitation) ValidAt(t time.Time) bool {
	if t.Before(i.CreatedAt) {
		return false
	}
	return t.Before(i.CreatedAt.Add(time.Duration(i.DurationSecs) * time.Second))
}

// Action is the outcome of a matching authorization rule.
type Action string

const (
	ActionAllow Action = "allow"
	ActionDeny  Action = "deny"
)

// Rule is one entry of the ordered authorization table. Empty patterns match
// everything; a nil role list matches any caller including anonymous ones.
type Rule struct {
	ID          string
	Name        string // unique
	Position    int    // evaluation order, ascending
	Description string
	HostPattern string   // regular expression, empty matches any host
	PathPattern string   // regular expression, empty matches any path
	Roles       []string // nil matches any caller
	Action      Action
}

// Store defines persistence for keyward entities.
type Store interface {
	// Users and roles
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByName(ctx context.Context, name string) (*User, error)
	CreateRole(ctx context.Context, role *Role) error
	AssignRole(ctx context.Context, userID, roleValue string) error

	// Credentials
	CreateCredential(ctx context.Context, cred *Credential) error
	GetCredential(ctx context.Context, credentialID []byte) (*Credential, error)
	ListUserCredentials(ctx context.Context, userID string) ([]*Credential, error)
	UpdateCredentialCounter(ctx context.Context, credentialID []byte, counter uint32) error

	// Invitations
	CreateInvitation(ctx context.Context, inv *Invitation) error
	GetInvitation(ctx context.Context, id string) (*Invitation, error)
	// RegisterCredential inserts the credential and deletes the invitation as
	// one atomic unit. A duplicate credential id fails with
	// ErrDuplicateCredential and leaves the invitation in place.
	RegisterCredential(ctx context.Context, invitationID string, cred *Credential) error

	// Rules
	CreateRule(ctx context.Context, rule *Rule) error
	ListRules(ctx context.Context) ([]*Rule, error)

	Close() error
}
