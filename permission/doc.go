// Package permission evaluates (module, action) authorization requests
// against permission sets, and holds the registry of known modules and the
// default per-role permission templates.
//
// # Decision rules
//
//   - A super admin is always allowed.
//   - A tenant admin is allowed for any request inside its own tenant.
//   - Anyone else needs an [Entry] for the module whose actions contain
//     the requested action or [ActionManage].
//
// # Architecture boundaries
//
// This package is a pure in-memory data structure with no I/O beyond
// parsing template documents handed to it.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import hmsAuth, jwt, or principal.
package permission
