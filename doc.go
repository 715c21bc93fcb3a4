// Package hmsAuth is the authentication and authorization core of a
// multi-tenant hospital management platform.
//
// A tenant (hospital) registers with one administrator, verifies the
// administrator's email with a six-digit code, and then creates staff
// accounts whose temporary passwords are delivered by email. Both kinds of
// principal sign in with email and password and receive a signed session
// token. Every request re-resolves the principal from the token and checks
// that it and its tenant are still active before a (module, action)
// permission decision is made.
//
// # Architecture boundaries
//
// The root package exposes [Engine], [Builder] and [Config] and orchestrates
// the flows. Domain types and store contracts live in principal; password
// hashing in password; lockout transitions in lockout; verification codes
// in verification; session tokens in jwt; permission decisions in
// permission. Persistence and email transport are supplied by the caller
// through [Builder].
//
// Engine methods are safe for concurrent use after [Builder.Build].
package hmsAuth
