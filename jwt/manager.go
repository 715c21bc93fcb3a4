package jwt

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/segmentio/ksuid"
)

// SigningMethod selects the token signature algorithm.
type SigningMethod string

const (
	// MethodEd25519 signs with EdDSA over an ed25519 key pair.
	MethodEd25519 SigningMethod = "ed25519"
	// MethodHS256 signs with HMAC-SHA256 over a shared secret.
	MethodHS256 SigningMethod = "hs256"
)

const (
	// DefaultTTL is the session token lifetime.
	DefaultTTL = 7 * 24 * time.Hour
	// DefaultIssuer is placed in the iss claim when none is configured.
	DefaultIssuer = "hmsauth"

	minHS256SecretBytes = 32
)

var (
	// ErrMalformed is returned for tokens that cannot be parsed or carry
	// invalid claims.
	ErrMalformed = errors.New("session token malformed")
	// ErrExpired is returned for tokens past their exp claim.
	ErrExpired = errors.New("session token expired")
	// ErrSignatureInvalid is returned when the signature or key id does not verify.
	ErrSignatureInvalid = errors.New("session token signature invalid")
	// ErrRevoked is returned for tokens present in the deny-list.
	ErrRevoked = errors.New("session token revoked")
	// ErrRevocationDisabled is returned by Revoke when no deny-list is configured.
	ErrRevocationDisabled = errors.New("session revocation disabled")
	// ErrDenylistUnavailable wraps deny-list backend failures.
	ErrDenylistUnavailable = errors.New("session deny-list unavailable")
)

// Config describes how tokens are signed and validated.
type Config struct {
	TTL           time.Duration
	SigningMethod SigningMethod
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// KeyID is written to the kid header. VerifyKeys, when set, selects the
	// verification key by kid so old keys keep validating during rotation.
	KeyID      string
	VerifyKeys map[string][]byte
}

// Identity is the subject of a new session token.
type Identity struct {
	Kind        string
	TenantID    string
	PrincipalID string
	Email       string
	Role        string
}

// Claims is the session token payload.
type Claims struct {
	Kind        string `json:"kind"`
	TenantID    string `json:"tid"`
	PrincipalID string `json:"pid"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	jwt.RegisteredClaims
}

// Option customizes a Manager.
type Option func(*Manager)

// WithDenylist enables revocation checks against d.
func WithDenylist(d Denylist) Option {
	return func(m *Manager) {
		m.denylist = d
	}
}

// WithClock overrides the time source used for issuing and validating.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager signs and validates session tokens. It is safe for concurrent use.
type Manager struct {
	config   Config
	denylist Denylist
	now      func() time.Time
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Issuer == "" {
		cfg.Issuer = DefaultIssuer
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < minHS256SecretBytes {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", minHS256SecretBytes)
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) > 0 {
			if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.VerifyKeys) == 0 && len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key or verify key set")
		}
		for kid, key := range cfg.VerifyKeys {
			if strings.TrimSpace(kid) == "" {
				return nil, errors.New("verify key map contains empty kid")
			}
			if _, err := parseEdPublicKey(key); err != nil {
				return nil, fmt.Errorf("invalid ed25519 verify key for kid %q: %w", kid, err)
			}
		}
	default:
		return nil, errors.New("unsupported signing method")
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}

	m := &Manager{config: cfg, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the configured token lifetime.
func (m *Manager) TTL() time.Duration {
	return m.config.TTL
}

// RevocationEnabled reports whether a deny-list is configured.
func (m *Manager) RevocationEnabled() bool {
	return m.denylist != nil
}

// Issue signs a token for id and returns it with its claims.
func (m *Manager) Issue(id Identity) (string, *Claims, error) {
	if id.Kind == "" || id.PrincipalID == "" {
		return "", nil, errors.New("session identity requires kind and principal id")
	}

	now := m.now()
	jti, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return "", nil, err
	}

	claims := &Claims{
		Kind:        id.Kind,
		TenantID:    id.TenantID,
		PrincipalID: id.PrincipalID,
		Email:       id.Email,
		Role:        id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   id.PrincipalID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.TTL)),
		},
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	token := jwt.NewWithClaims(m.getMethod(), claims)
	if m.config.KeyID != "" {
		token.Header["kid"] = m.config.KeyID
	}

	signKey, err := m.getSignKey()
	if err != nil {
		return "", nil, err
	}
	signed, err := token.SignedString(signKey)
	if err != nil {
		return "", nil, err
	}
	return signed, claims, nil
}

// Validate verifies tokenStr and returns its claims.
//
// Failures match ErrMalformed, ErrExpired, ErrSignatureInvalid or
// ErrRevoked. Deny-list backend failures match ErrDenylistUnavailable.
func (m *Manager) Validate(ctx context.Context, tokenStr string) (*Claims, error) {
	claims, err := m.parse(tokenStr)
	if err != nil {
		return nil, err
	}

	if m.denylist != nil {
		denied, err := m.denylist.IsDenied(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDenylistUnavailable, err)
		}
		if denied {
			return nil, ErrRevoked
		}
	}
	return claims, nil
}

// Revoke deny-lists claims until the token would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, claims *Claims) error {
	if m.denylist == nil {
		return ErrRevocationDisabled
	}
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return ErrMalformed
	}

	ttl := claims.ExpiresAt.Time.Sub(m.now())
	if ttl <= 0 {
		return nil
	}
	if err := m.denylist.Deny(ctx, claims.ID, ttl+m.config.Leeway); err != nil {
		return fmt.Errorf("%w: %v", ErrDenylistUnavailable, err)
	}
	return nil
}

func (m *Manager) parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(m.config.Issuer),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, m.keyFunc)
	if err != nil {
		return nil, classify(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrMalformed
	}
	if claims.ID == "" || claims.Kind == "" || claims.PrincipalID == "" {
		return nil, fmt.Errorf("%w: missing required claims", ErrMalformed)
	}
	return claims, nil
}

func (m *Manager) keyFunc(t *jwt.Token) (interface{}, error) {
	if t.Method.Alg() != m.getMethod().Alg() {
		return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
	}

	if len(m.config.VerifyKeys) > 0 {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		key, ok := m.config.VerifyKeys[kid]
		if !ok {
			return nil, errors.New("unknown kid")
		}
		return m.keyBytesToVerifyKey(key)
	}

	if m.config.KeyID != "" {
		kid, _ := t.Header["kid"].(string)
		if kid != m.config.KeyID {
			return nil, errors.New("unknown kid")
		}
	}
	return m.getVerifyKey()
}

// classify maps parser failures onto the package sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func (m *Manager) keyBytesToVerifyKey(key []byte) (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return key, nil
	default:
		return parseEdPublicKey(key)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
