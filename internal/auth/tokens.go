package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
)

// ErrInvalidToken normalizes every token verification failure — bad
// signature, expiry, malformed input — to a single Unauthorized error.
var ErrInvalidToken = fmt.Errorf("%w: invalid token", apperr.ErrUnauthorized)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour
	defaultResetTTL   = time.Hour
	defaultVerifyTTL  = 72 * time.Hour

	tokenTypeAccess = "access"
)

// AccessClaims is the signed claim set of an access token: identity and org
// only. Verification is stateless by design — an access token cannot be
// revoked before its own short expiry; only refresh tokens are revocable.
type AccessClaims struct {
	OrganizationID string `json:"org"`
	TokenType      string `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies access tokens (HS256) and generates the
// opaque secrets behind refresh/reset/verify tokens.
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	resetTTL   time.Duration
	verifyTTL  time.Duration
	now        func() time.Time
}

// TokenOption configures TokenManager.
type TokenOption func(*TokenManager) error

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) TokenOption {
	return func(m *TokenManager) error {
		m.issuer = strings.TrimSpace(issuer)
		return nil
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(m *TokenManager) error {
		if ttl > 0 {
			m.accessTTL = ttl
		}
		return nil
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(m *TokenManager) error {
		if ttl > 0 {
			m.refreshTTL = ttl
		}
		return nil
	}
}

// WithResetTTL configures password-reset token lifetime.
func WithResetTTL(ttl time.Duration) TokenOption {
	return func(m *TokenManager) error {
		if ttl > 0 {
			m.resetTTL = ttl
		}
		return nil
	}
}

// WithVerifyTTL configures email-verify token lifetime.
func WithVerifyTTL(ttl time.Duration) TokenOption {
	return func(m *TokenManager) error {
		if ttl > 0 {
			m.verifyTTL = ttl
		}
		return nil
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) TokenOption {
	return func(m *TokenManager) error {
		if fn != nil {
			m.now = fn
		}
		return nil
	}
}

// NewTokenManager constructs a TokenManager with the given signing secret.
func NewTokenManager(secret string, opts ...TokenOption) (*TokenManager, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: signing secret is required")
	}
	m := &TokenManager{
		secret:     []byte(secret),
		issuer:     "mini-crm",
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		resetTTL:   defaultResetTTL,
		verifyTTL:  defaultVerifyTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// SignAccess signs an access token carrying identity claims only.
func (m *TokenManager) SignAccess(id Identity) (string, time.Time, error) {
	if strings.TrimSpace(id.UserID) == "" || strings.TrimSpace(id.OrganizationID) == "" {
		return "", time.Time{}, errors.New("auth: user and organization are required")
	}
	now := m.now().UTC()
	exp := now.Add(m.accessTTL)
	claims := AccessClaims{
		OrganizationID: id.OrganizationID,
		TokenType:      tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// VerifyAccess checks signature, expiry, issuer and token type, returning the
// embedded identity. No storage lookup happens here.
func (m *TokenManager) VerifyAccess(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now), jwt.WithIssuer(m.issuer))
	if err != nil {
		return Identity{}, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	if claims.TokenType != tokenTypeAccess {
		return Identity{}, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || strings.TrimSpace(claims.OrganizationID) == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: claims.Subject, OrganizationID: claims.OrganizationID}, nil
}

// NewOpaqueSecret generates the plaintext of a refresh/reset/verify token and
// the digest under which it is stored. The plaintext leaves the process once
// and is never persisted.
func (m *TokenManager) NewOpaqueSecret() (plaintext, digest string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	plaintext = base64.RawURLEncoding.EncodeToString(buf)
	return plaintext, HashTokenSecret(plaintext), nil
}

// TTLFor returns the configured lifetime for a token kind.
func (m *TokenManager) TTLFor(kind TokenKind) time.Duration {
	switch kind {
	case TokenKindReset:
		return m.resetTTL
	case TokenKindVerify:
		return m.verifyTTL
	default:
		return m.refreshTTL
	}
}

// Now exposes the manager's clock so the service layer shares it.
func (m *TokenManager) Now() time.Time {
	return m.now()
}

// HashTokenSecret derives the fixed-length hex digest a token is stored and
// looked up under.
func HashTokenSecret(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// ConstantTimeEqual compares two digests without leaking timing.
func ConstantTimeEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
