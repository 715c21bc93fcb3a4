package password

import (
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt cost used when none is configured.
const DefaultCost = 12

const maxBcryptBytes = 72

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong is returned for passwords bcrypt cannot represent.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

// Vault hashes new passwords with bcrypt and verifies both bcrypt and
// legacy argon2id digests.
type Vault struct {
	cost int
}

// NewVault returns a Vault hashing at the given bcrypt cost.
func NewVault(cost int) (*Vault, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Vault{cost: cost}, nil
}

// Cost returns the configured bcrypt cost.
func (v *Vault) Cost() int {
	return v.cost
}

// Hash returns a salted bcrypt digest of plaintext.
func (v *Vault) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > maxBcryptBytes {
		return "", ErrPasswordTooLong
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), v.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", ErrPasswordTooLong
		}
		return "", err
	}
	return string(digest), nil
}

// Verify reports whether plaintext matches digest. Malformed digests never
// match.
func (v *Vault) Verify(plaintext, digest string) bool {
	if plaintext == "" || digest == "" {
		return false
	}
	if IsLegacy(digest) {
		return verifyLegacy(plaintext, digest)
	}
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}

// NeedsUpgrade reports whether digest should be replaced after the next
// successful verification.
func (v *Vault) NeedsUpgrade(digest string) bool {
	if IsLegacy(digest) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false
	}
	return cost < v.cost
}

// Equal compares two secrets in constant time.
func Equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
