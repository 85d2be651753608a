// ABOUTME: Wrapper around go-webauthn exposing keyward's two ceremonies
// ABOUTME: Expected challenges are supplied by value or by a policy predicate

package ceremony

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/keyward/keyward/internal/config"
	"github.com/keyward/keyward/internal/store"
)

// ErrNotVerified is returned when the ceremony library rejects a response or
// the challenge policy withholds approval. Callers collapse it to a generic
// message; the cause is logged, never surfaced.
var ErrNotVerified = errors.New("ceremony not verified")

// ChallengePolicy decides whether a challenge echoed by the client is one
// this server committed to. The authentication flow implements it with a
// stateless HMAC token check instead of server-held ceremony state.
type ChallengePolicy interface {
	Approve(challenge string) bool
}

// Verifier runs WebAuthn ceremonies bound to the configured relying party.
type Verifier struct {
	wa     *webauthn.WebAuthn
	logger *slog.Logger
}

// New creates a Verifier bound to the deployment origin and relying party id.
func New(cfg *config.Settings) (*Verifier, error) {
	wa, err := webauthn.New(&webauthn.Config{
		RPDisplayName: cfg.RPName,
		RPID:          cfg.RPID,
		RPOrigins:     []string{cfg.Origin()},
	})
	if err != nil {
		return nil, fmt.Errorf("configuring webauthn: %w", err)
	}

	return &Verifier{
		wa:     wa,
		logger: slog.Default().With("component", "ceremony"),
	}, nil
}

// RegistrationOptions produces creation options for the user, excluding the
// already-registered credentials, with the invitation's pre-committed
// challenge in place of a freshly minted one.
func (v *Verifier) RegistrationOptions(user *store.User, existing []*store.Credential, challenge []byte) (*protocol.CredentialCreation, error) {
	waUser := newCeremonyUser(user, existing)

	opts := []webauthn.RegistrationOption{
		webauthn.WithAuthenticatorSelection(protocol.AuthenticatorSelection{
			UserVerification: protocol.VerificationRequired,
		}),
		webauthn.WithResidentKeyRequirement(protocol.ResidentKeyRequirementRequired),
	}
	if len(waUser.creds) > 0 {
		opts = append(opts, webauthn.WithExclusions(webauthn.Credentials(waUser.creds).CredentialDescriptors()))
	}

	creation, _, err := v.wa.BeginRegistration(waUser, opts...)
	if err != nil {
		return nil, fmt.Errorf("beginning registration: %w", err)
	}

	// The library always mints its own random challenge; the invitation
	// pre-committed this one, so it replaces the generated value. Validity is
	// anchored to the invitation window, no validator token needed.
	creation.Response.Challenge = protocol.URLEncodedBase64(challenge)

	return creation, nil
}

// VerifyRegistration checks a registration response against the invitation's
// challenge and the relying party binding. On success it returns the new
// credential with counter, public key, and transports filled in.
func (v *Verifier) VerifyRegistration(user *store.User, existing []*store.Credential, challenge []byte, response []byte) (*store.Credential, error) {
	parsed, err := protocol.ParseCredentialCreationResponseBytes(response)
	if err != nil {
		v.logger.Debug("parsing registration response failed", "error", err)
		return nil, ErrNotVerified
	}

	waUser := newCeremonyUser(user, existing)
	session := webauthn.SessionData{
		Challenge:        base64.RawURLEncoding.EncodeToString(challenge),
		UserID:           waUser.WebAuthnID(),
		UserVerification: protocol.VerificationRequired,
	}

	credential, err := v.wa.CreateCredential(waUser, session, parsed)
	if err != nil {
		v.logger.Debug("registration verification failed", "error", err)
		return nil, ErrNotVerified
	}

	return &store.Credential{
		CredentialID: credential.ID,
		UserID:       user.ID,
		PublicKey:    credential.PublicKey,
		Counter:      credential.Authenticator.SignCount,
		Transports:   transportStrings(credential.Transport),
	}, nil
}

// AuthenticationOptions produces fresh assertion options for a discoverable
// login and returns the minted challenge so the caller can wrap it in a
// validator token.
func (v *Verifier) AuthenticationOptions() (*protocol.CredentialAssertion, string, error) {
	assertion, session, err := v.wa.BeginDiscoverableLogin(
		webauthn.WithUserVerification(protocol.VerificationRequired),
	)
	if err != nil {
		return nil, "", fmt.Errorf("beginning authentication: %w", err)
	}
	return assertion, session.Challenge, nil
}

// ParseAuthentication parses an assertion response far enough to expose the
// credential id the caller must resolve before verification.
func (v *Verifier) ParseAuthentication(response []byte) (*protocol.ParsedCredentialAssertionData, error) {
	parsed, err := protocol.ParseCredentialRequestResponseBytes(response)
	if err != nil {
		v.logger.Debug("parsing authentication response failed", "error", err)
		return nil, ErrNotVerified
	}
	return parsed, nil
}

// VerifyAuthentication checks an assertion response against the stored
// credential. The expected challenge is whatever the response echoes,
// provided the policy approves it; the policy is the stateless stand-in for
// per-ceremony server state. A counter regression (cloned authenticator)
// fails verification. Returns the authenticator-reported new counter.
//
// Only the credential is needed: the user handle the authenticator returns is
// the owning user's store id, so a stand-in user built from cred.UserID
// satisfies the handle comparison. The full user record is resolved by the
// caller after the counter update is durable.
func (v *Verifier) VerifyAuthentication(cred *store.Credential, parsed *protocol.ParsedCredentialAssertionData, policy ChallengePolicy) (uint32, error) {
	echoed := parsed.Response.CollectedClientData.Challenge
	if !policy.Approve(echoed) {
		v.logger.Debug("challenge policy rejected authentication")
		return 0, ErrNotVerified
	}

	waUser := newCeremonyUser(&store.User{ID: cred.UserID}, []*store.Credential{cred})
	session := webauthn.SessionData{
		Challenge:        echoed,
		UserID:           waUser.WebAuthnID(),
		UserVerification: protocol.VerificationRequired,
	}

	validated, err := v.wa.ValidateLogin(waUser, session, parsed)
	if err != nil {
		v.logger.Debug("authentication verification failed", "error", err)
		return 0, ErrNotVerified
	}
	if validated.Authenticator.CloneWarning {
		v.logger.Warn("authenticator counter regressed, possible clone",
			"user_id", cred.UserID,
			"credential", cred.DisplayName,
		)
		return 0, ErrNotVerified
	}

	return validated.Authenticator.SignCount, nil
}

func transportStrings(transports []protocol.AuthenticatorTransport) []string {
	out := make([]string, len(transports))
	for i, t := range transports {
		out[i] = string(t)
	}
	return out
}
