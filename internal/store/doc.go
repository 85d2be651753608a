// Package store provides persistent storage for keyward using SQLite.
//
// # Entities
//
//   - User: account with a unique name, display name, and a role set
//   - Role: grantable role with a wire value and display label
//   - Credential: registered WebAuthn authenticator, keyed by credential id,
//     carrying the monotonic use counter
//   - Invitation: single-use registration grant with a pre-committed challenge
//     and a validity window
//   - Rule: one entry of the ordered authorization table
//
// # SQLite Configuration
//
// The store uses SQLite via modernc.org/sqlite with WAL mode so rule reloads
// and audit-heavy request bursts don't block each other:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// The schema is created automatically on open.
//
// # Error Handling
//
//   - ErrNotFound: requested entity does not exist
//   - ErrDuplicateCredential: credential id already registered
//   - ErrNameExists: user or rule name taken
//
// # Registration Atomicity
//
// RegisterCredential inserts the new credential and deletes its invitation in
// one transaction. Either both land or neither does; a conflict keeps the
// invitation usable for a retry with a different authenticator.
package store
