// Package audit relays authentication events (logins, lockouts, registration,
// staff lifecycle) from the engine to a sink on a background goroutine.
//
// The engine decides which events to emit; this package only buffers and
// delivers them. Sinks provided here write to a channel, a JSON line
// writer, or a zap logger.
package audit
