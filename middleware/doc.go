// Package middleware adapts hmsAuth.Engine to net/http.
//
// [Guard] reads the bearer token, calls Engine.Authenticate, and stores the
// session in the request context. [RequirePermission] and [RequireAdmin]
// run behind it and answer 403 on denial. Every decision is delegated to
// the engine.
package middleware
