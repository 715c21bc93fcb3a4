package verification

import (
	"crypto/subtle"
	"errors"
	"time"
)

// Kind scopes a code to the flow that issued it.
type Kind string

const (
	KindHospitalRegistration Kind = "hospital_registration"
	KindPasswordReset        Kind = "password_reset"
	KindEmailChange          Kind = "email_change"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindHospitalRegistration, KindPasswordReset, KindEmailChange:
		return true
	}
	return false
}

var (
	ErrNotFound        = errors.New("verification record not found")
	ErrInvalidToken    = errors.New("verification code invalid")
	ErrExpired         = errors.New("verification code expired")
	ErrAlreadyUsed     = errors.New("verification code already used")
	ErrTooManyAttempts = errors.New("verification attempts exceeded")
	ErrUnavailable     = errors.New("verification backend unavailable")
)

// Subject links a record back to the records it verifies.
type Subject struct {
	TenantID string `json:"tenantId,omitempty"`
	AdminID  string `json:"adminId,omitempty"`
}

// Record is one issued code.
type Record struct {
	ID          string     `json:"id"`
	Email       string     `json:"email"`
	Token       string     `json:"token"`
	Kind        Kind       `json:"kind"`
	ExpiresAt   time.Time  `json:"expiresAt"`
	IsUsed      bool       `json:"isUsed"`
	UsedAt      *time.Time `json:"usedAt,omitempty"`
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"maxAttempts"`
	IsBlocked   bool       `json:"isBlocked"`
	Subject     Subject    `json:"subject"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// Exhausted reports whether the record refuses further redemption attempts.
func (r *Record) Exhausted() bool {
	return r.IsBlocked || r.Attempts >= r.MaxAttempts
}

// Redeemable reports whether token would redeem r at now.
func (r *Record) Redeemable(token string, now time.Time) bool {
	return !r.IsUsed && r.ExpiresAt.After(now) && tokenEqual(r.Token, token)
}

func tokenEqual(stored, given string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(given)) == 1
}

// consume marks r used if token redeems it at now. Checks run in the same
// order as the redis script in redis_store.go.
func (r *Record) consume(token string, now time.Time) error {
	switch {
	case r.IsUsed:
		return ErrAlreadyUsed
	case !r.ExpiresAt.After(now):
		return ErrExpired
	case !tokenEqual(r.Token, token):
		return ErrInvalidToken
	case r.Exhausted():
		return ErrTooManyAttempts
	}
	usedAt := now
	r.IsUsed = true
	r.UsedAt = &usedAt
	return nil
}

// fail counts one failed attempt, blocking r once the cap is reached.
func (r *Record) fail() error {
	if r.Exhausted() {
		return ErrTooManyAttempts
	}
	r.Attempts++
	if r.Attempts >= r.MaxAttempts {
		r.IsBlocked = true
	}
	return nil
}

func (r *Record) clone() *Record {
	cp := *r
	if r.UsedAt != nil {
		v := *r.UsedAt
		cp.UsedAt = &v
	}
	return &cp
}
