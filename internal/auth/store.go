package auth

import (
	"context"
	"time"

	"github.com/TaherBala2507/mini-crm/internal/audit"
)

// Store describes persistence required by the identity subsystem. InTx runs
// fn against a transaction-scoped Store; every multi-step mutation and its
// audit entry commit or abort together.
type Store interface {
	InTx(ctx context.Context, fn func(Store) error) error

	Organizations() OrganizationStore
	Users() UserStore
	Roles() RoleStore
	Tokens() TokenStore
	Audit() audit.Store
}

// OrganizationStore manages tenants.
type OrganizationStore interface {
	Create(ctx context.Context, org *Organization) error
	Find(ctx context.Context, id string) (*Organization, error)
	FindByDomain(ctx context.Context, domain string) (*Organization, error)
	Update(ctx context.Context, org *Organization) error
}

// UserFilter narrows and pages user listings.
type UserFilter struct {
	Search string // substring match on name/email
	Status string
	RoleID string
	Page   int
	Limit  int
}

// UserStore manages users. Org-scoped lookups return ErrNotFound for rows
// outside the given organization.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	Find(ctx context.Context, orgID, id string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, orgID, email string) (*User, error)
	Update(ctx context.Context, u *User) error
	List(ctx context.Context, orgID string, f UserFilter) ([]*User, int, error)
	CountWithRole(ctx context.Context, orgID, roleID string) (int, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

// RoleFilter narrows, sorts and pages role listings.
type RoleFilter struct {
	Search        string // substring match on name/description
	ExcludeSystem bool
	SortBy        string // "name" | "system"
	SortDesc      bool
	Page          int
	Limit         int
}

// RoleStore manages roles.
type RoleStore interface {
	Create(ctx context.Context, role *Role) error
	Find(ctx context.Context, orgID, id string) (*Role, error)
	FindByName(ctx context.Context, orgID, name string) (*Role, error)
	FindByIDs(ctx context.Context, orgID string, ids []string) ([]*Role, error)
	Update(ctx context.Context, role *Role) error
	Delete(ctx context.Context, orgID, id string) error
	List(ctx context.Context, orgID string, f RoleFilter) ([]*RoleWithUsage, int, error)
}

// TokenStore manages the persisted token lifecycle. Tokens are looked up by
// the digest of their plaintext and revoked, never deleted.
type TokenStore interface {
	Create(ctx context.Context, tok *Token) error
	FindByHash(ctx context.Context, kind TokenKind, hash string) (*Token, error)
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, kind TokenKind, at time.Time) error
}
