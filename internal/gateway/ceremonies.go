// ABOUTME: HTTP handlers for the registration and authentication ceremonies
// ABOUTME: Collapses ceremony-stage failures to generic messages at the edge

package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-webauthn/webauthn/protocol"

	"github.com/keyward/keyward/internal/challenge"
	"github.com/keyward/keyward/internal/store"
)

// Generic boundary messages. Ceremony failures deliberately do not reveal
// whether the cause was a missing record, an expired window, or a forged
// signature; the detail goes to the logs instead.
const (
	msgCredentialNotFound = "credential not found"
	msgCredentialNotValid = "credential not valid"
	msgUserNotFound       = "user not found"
	msgInvitationNotValid = "invitation not found or expired"
	msgCredentialConflict = "credential already registered"
	msgCounterConflict    = "credential counter update failed"
)

type authOptionsResponse struct {
	*protocol.CredentialAssertion
	ChallengeValidator challenge.Token `json:"challengeValidator"`
}

type authVerifyRequest struct {
	Response           json.RawMessage `json:"response"`
	ChallengeValidator challenge.Token `json:"challengeValidator"`
}

type registerVerifyRequest struct {
	Response    json.RawMessage `json:"response"`
	DisplayName string          `json:"displayName"`
}

// tokenPolicy approves a challenge iff the submitted validator token vouches
// for it. It is the stateless stand-in for server-held ceremony state.
type tokenPolicy struct {
	validator *challenge.Validator
	token     challenge.Token
}

func (p tokenPolicy) Approve(ch string) bool {
	return p.validator.Validate(ch, p.token)
}

func (s *Server) handleAuthOptions(w http.ResponseWriter, r *http.Request) {
	assertion, ch, err := s.verifier.AuthenticationOptions()
	if err != nil {
		s.logger.Error("generating authentication options", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, authOptionsResponse{
		CredentialAssertion: assertion,
		ChallengeValidator:  s.challenges.Build(ch),
	})
}

func (s *Server) handleAuthVerify(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { observeCeremony("authentication", ok) }()

	var req authVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, msgCredentialNotValid)
		return
	}

	parsed, err := s.verifier.ParseAuthentication(req.Response)
	if err != nil {
		s.logger.Info("authentication response rejected", "error", err)
		s.writeError(w, http.StatusBadRequest, msgCredentialNotValid)
		return
	}

	cred, err := s.store.GetCredential(r.Context(), parsed.RawID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Info("authentication with unknown credential")
			s.writeError(w, http.StatusNotFound, msgCredentialNotFound)
			return
		}
		s.logger.Error("loading credential", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	policy := tokenPolicy{validator: s.challenges, token: req.ChallengeValidator}
	newCounter, err := s.verifier.VerifyAuthentication(cred, parsed, policy)
	if err != nil {
		s.logger.Info("authentication verification failed", "error", err)
		s.writeError(w, http.StatusBadRequest, msgCredentialNotValid)
		return
	}

	// The counter must be durable before a session exists: replay defense
	// outranks everything downstream.
	if err := s.store.UpdateCredentialCounter(r.Context(), cred.CredentialID, newCounter); err != nil {
		s.logger.Error("updating credential counter", "error", err)
		s.writeError(w, http.StatusConflict, msgCounterConflict)
		return
	}

	user, err := s.store.GetUser(r.Context(), cred.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("credential references deleted user", "user_id", cred.UserID)
			s.writeError(w, http.StatusNotFound, msgUserNotFound)
			return
		}
		s.logger.Error("loading user", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.audit.Authenticated(user, cred)

	token, err := s.sessions.Issue(user)
	if err != nil {
		s.logger.Error("issuing session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	ok = true
	s.sessions.Deliver(w, token)
}

func (s *Server) handleRegisterOptions(w http.ResponseWriter, r *http.Request) {
	inv, user, ok := s.validInvitation(w, r)
	if !ok {
		return
	}

	existing, err := s.store.ListUserCredentials(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("listing credentials", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	creation, err := s.verifier.RegistrationOptions(user, existing, inv.Challenge)
	if err != nil {
		s.logger.Error("generating registration options", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.writeJSON(w, http.StatusOK, creation)
}

func (s *Server) handleRegisterVerify(w http.ResponseWriter, r *http.Request) {
	registered := false
	defer func() { observeCeremony("registration", registered) }()

	inv, user, ok := s.validInvitation(w, r)
	if !ok {
		return
	}

	var req registerVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, msgInvitationNotValid)
		return
	}

	existing, err := s.store.ListUserCredentials(r.Context(), user.ID)
	if err != nil {
		s.logger.Error("listing credentials", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	cred, err := s.verifier.VerifyRegistration(user, existing, inv.Challenge, req.Response)
	if err != nil {
		s.logger.Info("registration verification failed", "invitation", inv.ID, "error", err)
		s.writeError(w, http.StatusBadRequest, msgInvitationNotValid)
		return
	}
	cred.DisplayName = req.DisplayName

	switch err := s.store.RegisterCredential(r.Context(), inv.ID, cred); {
	case errors.Is(err, store.ErrDuplicateCredential):
		s.logger.Warn("registration hit duplicate credential", "invitation", inv.ID)
		s.writeError(w, http.StatusConflict, msgCredentialConflict)
		return
	case errors.Is(err, store.ErrNotFound):
		// Invitation vanished between the window check and the write.
		s.writeError(w, http.StatusBadRequest, msgInvitationNotValid)
		return
	case err != nil:
		s.logger.Error("persisting credential", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.audit.Registered(inv.ID, user, cred)

	token, err := s.sessions.Issue(user)
	if err != nil {
		s.logger.Error("issuing session", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	registered = true
	s.sessions.Deliver(w, token)
}

// validInvitation resolves the invitation from the request path and checks
// its validity window and owner. Every failure yields the same generic 400.
func (s *Server) validInvitation(w http.ResponseWriter, r *http.Request) (*store.Invitation, *store.User, bool) {
	id := r.PathValue("invitation")

	inv, err := s.store.GetInvitation(r.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("loading invitation", "error", err)
		}
		s.writeError(w, http.StatusBadRequest, msgInvitationNotValid)
		return nil, nil, false
	}
	if !inv.ValidAt(time.Now()) {
		s.logger.Info("invitation outside validity window", "invitation", inv.ID)
		s.writeError(w, http.StatusBadRequest, msgInvitationNotValid)
		return nil, nil, false
	}

	user, err := s.store.GetUser(r.Context(), inv.UserID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Error("loading invitation owner", "error", err)
		}
		s.writeError(w, http.StatusBadRequest, msgInvitationNotValid)
		return nil, nil, false
	}

	return inv, user, true
}
