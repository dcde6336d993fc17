package auth

import (
	"fmt"
	"sort"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
)

// PermissionSet is the effective permission set resolved for a user.
type PermissionSet map[Permission]struct{}

// NewPermissionSet unions the permission lists of the given roles.
func NewPermissionSet(roles []*Role) PermissionSet {
	set := make(PermissionSet)
	for _, role := range roles {
		for _, p := range role.Permissions {
			set[p] = struct{}{}
		}
	}
	return set
}

// Has reports whether the set contains p.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Any reports whether the set intersects perms (logical OR).
func (s PermissionSet) Any(perms ...Permission) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// All reports whether every permission in perms is present (logical AND).
func (s PermissionSet) All(perms ...Permission) bool {
	for _, p := range perms {
		if !s.Has(p) {
			return false
		}
	}
	return true
}

// Sorted returns the set as a sorted slice for stable serialization.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Principal is an authenticated user with freshly resolved permissions.
// Permissions are recomputed per request so role edits take effect
// immediately for already-issued access tokens.
type Principal struct {
	User        *User
	Permissions PermissionSet
}

// RequireAny passes when the principal holds at least one of perms.
func (p Principal) RequireAny(perms ...Permission) error {
	if p.User == nil {
		return fmt.Errorf("%w: authentication required", apperr.ErrUnauthorized)
	}
	if !p.Permissions.Any(perms...) {
		return fmt.Errorf("%w: insufficient permissions", apperr.ErrForbidden)
	}
	return nil
}

// RequireAll passes only when the principal holds every one of perms.
func (p Principal) RequireAll(perms ...Permission) error {
	if p.User == nil {
		return fmt.Errorf("%w: authentication required", apperr.ErrUnauthorized)
	}
	if !p.Permissions.All(perms...) {
		return fmt.Errorf("%w: insufficient permissions", apperr.ErrForbidden)
	}
	return nil
}
