// ABOUTME: Package documentation for the WebAuthn ceremony wrapper
// ABOUTME: Explains the stateless challenge handling both flows rely on

// Package ceremony wraps go-webauthn with the two flows keyward runs:
// passkey registration against an invitation and passkey authentication
// against a stored credential.
//
// # Stateless challenges
//
// The library normally expects the server to hold per-ceremony session state
// between the options call and the verification call. keyward holds none.
// Registration pins the challenge to the invitation record, so RegistrationOptions
// overwrites the library-minted challenge with the invitation's and
// VerifyRegistration rebuilds the session from the same value. Authentication
// accepts whatever challenge the client echoes as long as a ChallengePolicy
// approves it; the gateway backs the policy with an HMAC validator token, so
// approval proves the server minted the challenge recently.
//
// # Clone detection
//
// A sign counter that fails to advance marks a possibly cloned authenticator.
// VerifyAuthentication treats that the same as any other verification
// failure: the caller sees ErrNotVerified and the detail stays in the logs.
package ceremony
