// Package rate throttles requests by key at the HTTP edge.
//
// # Window semantics
//
// Redis uses fixed-window counters: INCR + conditional EXPIRE on first hit,
// keyed as <prefix>:rl:<key>. Local uses an in-process token bucket per key
// and is suitable for a single replica.
//
// Both complement, and never replace, the per-account lockout the engine
// applies on failed logins.
package rate
