// Package principal defines the tenant, administrator and staff records the
// engine authenticates, the Principal tagged union resolved per request, and
// the store contracts persistence adapters implement.
//
// # Store contract
//
//   - Uniqueness violations are reported as [*ConflictError] naming the
//     offending field; they match [ErrConflict].
//   - Missing records are reported as [ErrNotFound].
//   - Deletes are idempotent: deleting a missing record is not an error.
//   - Staff reads and writes are always filtered by tenant id.
package principal
