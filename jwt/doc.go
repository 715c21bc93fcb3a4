// Package jwt issues and validates signed session tokens for administrators
// and staff, with an optional deny-list for revoking individual tokens
// before they expire.
package jwt
