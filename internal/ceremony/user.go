// ABOUTME: Adapter presenting a stored user and credentials to go-webauthn
// ABOUTME: Implements the webauthn.User interface over store types

package ceremony

import (
	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/keyward/keyward/internal/store"
)

// ceremonyUser bridges store.User to the webauthn.User interface. The user
// handle is the stable store id, so discoverable credentials resolve back to
// the same account across renames.
type ceremonyUser struct {
	user  *store.User
	creds []webauthn.Credential
}

func newCeremonyUser(user *store.User, creds []*store.Credential) *ceremonyUser {
	converted := make([]webauthn.Credential, len(creds))
	for i, c := range creds {
		converted[i] = webauthn.Credential{
			ID:        c.CredentialID,
			PublicKey: c.PublicKey,
			Transport: transportValues(c.Transports),
			Authenticator: webauthn.Authenticator{
				SignCount: c.Counter,
			},
		}
	}
	return &ceremonyUser{user: user, creds: converted}
}

func (u *ceremonyUser) WebAuthnID() []byte {
	return []byte(u.user.ID)
}

func (u *ceremonyUser) WebAuthnName() string {
	return u.user.Name
}

func (u *ceremonyUser) WebAuthnDisplayName() string {
	return u.user.DisplayName
}

func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential {
	return u.creds
}

func transportValues(transports []string) []protocol.AuthenticatorTransport {
	out := make([]protocol.AuthenticatorTransport, len(transports))
	for i, t := range transports {
		out[i] = protocol.AuthenticatorTransport(t)
	}
	return out
}
