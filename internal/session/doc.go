// Package session implements the stateless session model: a signed JWT
// carrying name, display name, and roles, delivered in an HttpOnly cookie.
//
// No server-side session store exists. A token is valid iff its signature,
// issuer, audience, and expiry claim verify; decoding collapses every failure
// mode to the anonymous identity so callers cannot probe why a token was
// rejected.
package session
