package auth

import "time"

// Organization statuses.
const (
	OrgStatusActive    = "active"
	OrgStatusInactive  = "inactive"
	OrgStatusSuspended = "suspended"
)

// User statuses. Deletion is a transition to inactive, never a row removal.
const (
	UserStatusActive    = "active"
	UserStatusInactive  = "inactive"
	UserStatusPending   = "pending"
	UserStatusSuspended = "suspended"
)

// Organization is the tenant boundary; every other entity carries its ID.
type Organization struct {
	ID        string         `json:"id"`
	Domain    string         `json:"domain"`
	Name      string         `json:"name"`
	Status    string         `json:"status"`
	Settings  map[string]any `json:"settings,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// User is a human principal within exactly one organization. Email uniqueness
// is scoped to (organization, email), not global.
type User struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	PasswordHash   string     `json:"-"`
	Status         string     `json:"status"`
	RoleIDs        []string   `json:"role_ids"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Role is a named permission bundle scoped to one organization. System roles
// are seeded at org bootstrap and are immutable.
type Role struct {
	ID             string       `json:"id"`
	OrganizationID string       `json:"organization_id"`
	Name           string       `json:"name"`
	Description    string       `json:"description,omitempty"`
	Permissions    []Permission `json:"permissions"`
	System         bool         `json:"system"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// RoleWithUsage is a role enriched with the live count of assigned users.
type RoleWithUsage struct {
	Role
	UserCount int `json:"user_count"`
}

// TokenKind discriminates persisted one-time tokens.
type TokenKind string

const (
	TokenKindRefresh TokenKind = "refresh"
	TokenKindReset   TokenKind = "password_reset"
	TokenKindVerify  TokenKind = "email_verify"
)

// Token is a persisted single-use capability. Only the sha256 hex digest of
// the secret is stored; revocation is recorded, rows are never deleted.
type Token struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Kind      TokenKind  `json:"kind"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expires_at"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Usable reports whether the token is unrevoked and unexpired at now.
func (t *Token) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}

// TokenPair is the result of login or refresh. Plaintexts are returned to the
// caller exactly once and never persisted.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// Identity is the claim set carried by an access token: who, and in which
// tenant. Permissions are never embedded so role edits apply immediately.
type Identity struct {
	UserID         string
	OrganizationID string
}
