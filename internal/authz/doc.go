// Package authz implements the ordered rule-matching authorization engine.
//
// Rules are evaluated strictly by ascending position; the first rule whose
// host pattern, path pattern, and role set all hold decides the request, and
// no rule matching means deny. The active rule table is an immutable snapshot
// behind an atomic pointer: Evaluate is lock-free and Reload swaps the whole
// table at once, so in-flight evaluations never see a partial update.
//
// The engine is deliberately HTTP-free. It takes a host, a path, and a role
// list and returns a Decision; redirects, headers, and status codes live in
// the gateway adapter.
package authz
