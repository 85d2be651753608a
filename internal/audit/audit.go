// ABOUTME: Structured audit trail for authorization decisions and ceremonies
// ABOUTME: JSON events appended to a dedicated file, mirrored to the process log

package audit

import (
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/keyward/keyward/internal/authz"
	"github.com/keyward/keyward/internal/store"
)

// Event names emitted to the audit trail.
const (
	EventAllow         = "allow"
	EventDeny          = "deny"
	EventAuthenticated = "authenticated"
	EventRegistered    = "registered"
)

// defaultDenyRule names the implicit maximal-position rule reported when no
// configured rule matched.
const defaultDenyRule = "default-deny"

// Recorder appends audit events to a file as JSON lines. Every decision on
// the forward-auth path and every completed ceremony produces one event.
type Recorder struct {
	audit  *slog.Logger
	logger *slog.Logger
	closer io.Closer
}

// NewRecorder opens (or creates) the audit file at path in append mode.
// Parent directories are created if needed.
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating audit directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}

	return &Recorder{
		audit:  slog.New(slog.NewJSONHandler(f, nil)),
		logger: slog.Default().With("component", "audit"),
		closer: f,
	}, nil
}

// Close flushes and closes the audit file.
func (r *Recorder) Close() error {
	return r.closer.Close()
}

// Decision records the outcome of one forward-auth evaluation.
func (r *Recorder) Decision(userName, host, path string, d authz.Decision) {
	event := EventDeny
	if d.Allowed {
		event = EventAllow
	}

	rule := defaultDenyRule
	ruleID := ""
	if d.Rule != nil {
		rule = d.Rule.Name
		ruleID = d.Rule.ID
	}

	r.audit.Info(event,
		"user", userName,
		"host", host,
		"path", path,
		"rule", rule,
		"rule_id", ruleID,
	)
	r.logger.Debug("authorization decided", "event", event, "user", userName, "host", host, "path", path, "rule", rule)
}

// Authenticated records a completed authentication ceremony.
func (r *Recorder) Authenticated(user *store.User, cred *store.Credential) {
	r.audit.Info(EventAuthenticated,
		"user", user.Name,
		"credential", cred.DisplayName,
		"credential_id", encodeID(cred.CredentialID),
	)
	r.logger.Info("user authenticated", "user", user.Name, "credential", cred.DisplayName)
}

// Registered records a completed registration ceremony.
func (r *Recorder) Registered(invitationID string, user *store.User, cred *store.Credential) {
	r.audit.Info(EventRegistered,
		"user", user.Name,
		"credential", cred.DisplayName,
		"credential_id", encodeID(cred.CredentialID),
		"invitation_id", invitationID,
	)
	r.logger.Info("credential registered", "user", user.Name, "credential", cred.DisplayName, "invitation_id", invitationID)
}

func encodeID(id []byte) string {
	return base64.RawURLEncoding.EncodeToString(id)
}
