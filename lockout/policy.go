package lockout

import (
	"errors"
	"time"
)

const (
	// DefaultMaxAttempts is the number of consecutive failures that locks an account.
	DefaultMaxAttempts = 5
	// DefaultDuration is how long a lock lasts once triggered.
	DefaultDuration = 2 * time.Hour
)

// Policy holds the lockout thresholds.
type Policy struct {
	MaxAttempts int
	Duration    time.Duration
}

// State is the lockout state stored on a principal record.
type State struct {
	Attempts  int        `json:"loginAttempts"`
	LockUntil *time.Time `json:"lockUntil,omitempty"`
}

// DefaultPolicy returns a Policy with the package defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: DefaultMaxAttempts,
		Duration:    DefaultDuration,
	}
}

// Validate reports whether p is usable.
func (p Policy) Validate() error {
	if p.MaxAttempts <= 0 {
		return errors.New("lockout MaxAttempts must be > 0")
	}
	if p.Duration <= 0 {
		return errors.New("lockout Duration must be > 0")
	}
	return nil
}

// IsLocked reports whether the lock is still in force at now.
func (s State) IsLocked(now time.Time) bool {
	return s.LockUntil != nil && s.LockUntil.After(now)
}

// RemainingMinutes returns the whole minutes left on the lock, rounded up.
// It returns 0 when the state is not locked.
func (s State) RemainingMinutes(now time.Time) int {
	if !s.IsLocked(now) {
		return 0
	}
	remaining := s.LockUntil.Sub(now)
	minutes := remaining / time.Minute
	if remaining%time.Minute != 0 {
		minutes++
	}
	return int(minutes)
}

// RegisterFailure returns the state after a failed password match at now.
//
// A locked state is returned unchanged. A lapsed lock restarts counting so
// that the first failure after expiry does not immediately relock.
func (p Policy) RegisterFailure(s State, now time.Time) State {
	if s.IsLocked(now) {
		return s
	}

	next := State{Attempts: s.Attempts}
	if s.LockUntil != nil {
		next.Attempts = 0
	}
	next.Attempts++

	if next.Attempts >= p.MaxAttempts {
		until := now.Add(p.Duration)
		next.LockUntil = &until
	}
	return next
}

// RegisterSuccess returns the state after a successful authentication.
func (p Policy) RegisterSuccess() State {
	return State{}
}
