// ABOUTME: Package documentation for the keyward HTTP gateway
// ABOUTME: Maps the component layer onto the forward-auth HTTP surface

// Package gateway is the HTTP surface of keyward.
//
// # Routes
//
// Under the configured path prefix:
//
//	GET  auth/options                     assertion options plus validator token
//	POST auth/verify                      authentication ceremony, issues session
//	GET  register/{invitation}/options    creation options for an invitation
//	POST register/{invitation}/verify     registration ceremony, issues session
//	GET  authz                            forward-auth decision endpoint
//	GET  authz/reload                     authorized rule reload
//
// At the root, for infrastructure probes:
//
//	GET /healthz
//	GET /metrics
//
// # Forward auth
//
// The reverse proxy calls GET authz once per proxied request, carrying the
// original target in the forwarded header set. An allow decision answers 204
// with identity headers for the proxy to copy upstream; a deny answers 403,
// or 302 to the auth entry point when the caller is anonymous.
//
// # Error shape
//
// Ceremony failures collapse to generic messages so the boundary never
// reveals which verification step failed. Conflicts keep a distinct status
// because they signal operational trouble rather than attacker probing.
package gateway
