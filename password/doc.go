// Package password is the credential vault: it hashes and verifies
// passwords and generates temporary first-login passwords.
//
// # Output format
//
// New digests are bcrypt. Digests in argon2id PHC format
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// still verify, and [Vault.NeedsUpgrade] reports true for them (and for
// bcrypt digests below the configured cost) so the caller can re-hash on
// the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, reuse) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Know about tenants, roles, or principal kinds.
//   - Log plaintext passwords or hash parameters at runtime.
package password
