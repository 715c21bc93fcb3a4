package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const legacyPrefix = "$argon2id$"

// Lower bounds a legacy digest must meet before it is evaluated. Anything
// weaker is treated as malformed.
const (
	legacyMinMemory  = 8 * 1024
	legacyMinSalt    = 16
	legacyMinKey     = 16
	legacyMaxThreads = 64
)

var errMalformedLegacy = errors.New("malformed argon2id digest")

// LegacyParams are the argon2id costs recorded in a legacy digest.
type LegacyParams struct {
	Memory  uint32 // KiB
	Time    uint32
	Threads uint8
	KeyLen  uint32
}

// DefaultLegacyParams returns the costs the previous system wrote digests
// with.
func DefaultLegacyParams() LegacyParams {
	return LegacyParams{Memory: 64 * 1024, Time: 3, Threads: 2, KeyLen: 32}
}

// HashLegacy encodes plaintext as an argon2id PHC digest. New passwords are
// never stored this way; it exists to import accounts from the previous
// system and to exercise the upgrade path.
func HashLegacy(plaintext string, p LegacyParams) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if p.Memory < legacyMinMemory || p.Time == 0 || p.Threads == 0 || p.KeyLen < legacyMinKey {
		return "", errors.New("argon2id parameters below minimum")
	}
	salt := make([]byte, legacyMinSalt)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plaintext), salt, p.Time, p.Memory, p.Threads, p.KeyLen)
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		legacyPrefix, argon2.Version, p.Memory, p.Time, p.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// IsLegacy reports whether digest is in argon2id PHC format.
func IsLegacy(digest string) bool {
	return strings.HasPrefix(digest, legacyPrefix)
}

type legacyDigest struct {
	params LegacyParams
	salt   []byte
	key    []byte
}

// parseLegacy splits $argon2id$v=19$m=..,t=..,p=..$salt$key.
func parseLegacy(digest string) (*legacyDigest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return nil, errMalformedLegacy
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, errMalformedLegacy
	}

	var (
		d       legacyDigest
		threads uint32
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &d.params.Memory, &d.params.Time, &threads); err != nil {
		return nil, errMalformedLegacy
	}
	if d.params.Memory < legacyMinMemory || d.params.Time == 0 || threads == 0 || threads > legacyMaxThreads {
		return nil, errMalformedLegacy
	}
	d.params.Threads = uint8(threads)

	var err error
	if d.salt, err = decodeSegment(parts[4]); err != nil || len(d.salt) < legacyMinSalt {
		return nil, errMalformedLegacy
	}
	if d.key, err = decodeSegment(parts[5]); err != nil || len(d.key) < legacyMinKey {
		return nil, errMalformedLegacy
	}
	d.params.KeyLen = uint32(len(d.key))
	return &d, nil
}

// decodeSegment accepts both padded and unpadded base64; older writers
// padded.
func decodeSegment(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "="))
}

// verifyLegacy recomputes the argon2id key with the digest's own costs.
func verifyLegacy(plaintext, digest string) bool {
	d, err := parseLegacy(digest)
	if err != nil {
		return false
	}
	key := argon2.IDKey([]byte(plaintext), d.salt, d.params.Time, d.params.Memory, d.params.Threads, d.params.KeyLen)
	return subtle.ConstantTimeCompare(key, d.key) == 1
}
