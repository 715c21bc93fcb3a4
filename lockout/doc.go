// Package lockout implements the account-lockout state machine applied to
// password logins.
//
// # Architecture boundaries
//
// The package is pure: it computes the next (attempts, lockUntil) pair from
// the current one and a timestamp. Persisting that pair is the caller's job.
//
// # What this package must NOT do
//
//   - Perform I/O or read the wall clock.
//   - Know about tenants, roles, or principal kinds.
package lockout
