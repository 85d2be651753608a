// Package challenge makes the expected-challenge check of a WebAuthn ceremony
// a pure function of a signed token instead of server-held session state.
//
// Build returns {timestamp, hmac} for a challenge; Validate recomputes the
// signature and enforces a max age. Nothing persists between the two calls,
// so any instance sharing the secret can complete a ceremony another instance
// started.
package challenge
