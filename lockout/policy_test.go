package lockout

import (
	"testing"
	"time"
)

func TestRegisterFailureLocksAtMaxAttempts(t *testing.T) {
	p := DefaultPolicy()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	var s State
	for i := 1; i < p.MaxAttempts; i++ {
		s = p.RegisterFailure(s, now)
		if s.IsLocked(now) {
			t.Fatalf("locked after %d failures", i)
		}
		if s.Attempts != i {
			t.Fatalf("expected %d attempts, got %d", i, s.Attempts)
		}
	}

	s = p.RegisterFailure(s, now)
	if !s.IsLocked(now) {
		t.Fatal("expected lock after max attempts")
	}
	if !s.LockUntil.Equal(now.Add(2 * time.Hour)) {
		t.Fatalf("unexpected lockUntil %v", s.LockUntil)
	}
}

func TestRegisterFailureWhileLockedIsNoop(t *testing.T) {
	p := DefaultPolicy()
	now := time.Now()
	until := now.Add(time.Hour)
	s := State{Attempts: 5, LockUntil: &until}

	next := p.RegisterFailure(s, now.Add(time.Minute))
	if next.Attempts != 5 || !next.LockUntil.Equal(until) {
		t.Fatalf("expected unchanged state, got %+v", next)
	}
}

func TestRegisterFailureAfterLapsedLockRestartsCount(t *testing.T) {
	p := DefaultPolicy()
	now := time.Now()
	past := now.Add(-time.Minute)
	s := State{Attempts: 5, LockUntil: &past}

	next := p.RegisterFailure(s, now)
	if next.Attempts != 1 {
		t.Fatalf("expected attempts 1, got %d", next.Attempts)
	}
	if next.LockUntil != nil {
		t.Fatal("expected lapsed lock to be cleared")
	}
}

func TestRemainingMinutesRoundsUp(t *testing.T) {
	now := time.Now()
	until := now.Add(61 * time.Second)
	s := State{LockUntil: &until}

	if got := s.RemainingMinutes(now); got != 2 {
		t.Fatalf("expected 2 minutes, got %d", got)
	}

	exact := now.Add(3 * time.Minute)
	s.LockUntil = &exact
	if got := s.RemainingMinutes(now); got != 3 {
		t.Fatalf("expected 3 minutes, got %d", got)
	}

	if got := (State{}).RemainingMinutes(now); got != 0 {
		t.Fatalf("expected 0 for unlocked state, got %d", got)
	}
}

func TestRegisterSuccessResets(t *testing.T) {
	p := DefaultPolicy()
	if s := p.RegisterSuccess(); s.Attempts != 0 || s.LockUntil != nil {
		t.Fatalf("expected zero state, got %+v", s)
	}
}

func TestPolicyValidate(t *testing.T) {
	if err := (Policy{MaxAttempts: 0, Duration: time.Hour}).Validate(); err == nil {
		t.Fatal("expected error for zero attempts")
	}
	if err := (Policy{MaxAttempts: 5}).Validate(); err == nil {
		t.Fatal("expected error for zero duration")
	}
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}
