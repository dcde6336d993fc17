package auth

import (
	"errors"
	"testing"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
)

func TestNewPermissionSetUnionsRoles(t *testing.T) {
	set := NewPermissionSet([]*Role{
		{Permissions: []Permission{PermLeadViewAll, PermLeadCreate}},
		{Permissions: []Permission{PermLeadCreate, PermProjectView}},
		{},
	})
	if len(set) != 3 {
		t.Fatalf("expected 3 distinct permissions, got %d", len(set))
	}
	for _, p := range []Permission{PermLeadViewAll, PermLeadCreate, PermProjectView} {
		if !set.Has(p) {
			t.Fatalf("missing %s", p)
		}
	}
	if set.Has(PermUserDelete) {
		t.Fatalf("unexpected permission")
	}
}

func TestPermissionSetAnyAll(t *testing.T) {
	set := NewPermissionSet([]*Role{{Permissions: []Permission{PermLeadViewAll, PermLeadEditAll}}})

	if !set.Any(PermUserDelete, PermLeadViewAll) {
		t.Fatalf("Any should pass with one match")
	}
	if set.Any(PermUserDelete, PermRoleManage) {
		t.Fatalf("Any should fail with no match")
	}
	if !set.All(PermLeadViewAll, PermLeadEditAll) {
		t.Fatalf("All should pass with every match")
	}
	if set.All(PermLeadViewAll, PermUserDelete) {
		t.Fatalf("All should fail with a missing permission")
	}
}

func TestPermissionSetSortedIsStable(t *testing.T) {
	set := NewPermissionSet([]*Role{{Permissions: []Permission{PermUserView, PermLeadViewAll, PermRoleView}}})
	sorted := set.Sorted()
	if len(sorted) != 3 {
		t.Fatalf("expected 3 permissions, got %d", len(sorted))
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i-1] >= sorted[i] {
			t.Fatalf("output not sorted: %v", sorted)
		}
	}
}

func TestRequireDistinguishesUnauthorizedFromForbidden(t *testing.T) {
	anon := Principal{}
	if err := anon.RequireAny(PermLeadViewAll); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("anonymous principal should be unauthorized, got %v", err)
	}
	if err := anon.RequireAll(PermLeadViewAll); !errors.Is(err, apperr.ErrUnauthorized) {
		t.Fatalf("anonymous principal should be unauthorized, got %v", err)
	}

	viewer := Principal{
		User:        &User{ID: "u-1"},
		Permissions: NewPermissionSet([]*Role{{Permissions: []Permission{PermLeadViewAll}}}),
	}
	if err := viewer.RequireAny(PermLeadViewAll, PermLeadEditAll); err != nil {
		t.Fatalf("RequireAny: %v", err)
	}
	if err := viewer.RequireAll(PermLeadViewAll, PermLeadEditAll); !errors.Is(err, apperr.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCatalogHasNoDuplicates(t *testing.T) {
	seen := make(map[Permission]struct{}, len(Catalog))
	for _, p := range Catalog {
		if _, dup := seen[p]; dup {
			t.Fatalf("duplicate permission %s in catalog", p)
		}
		seen[p] = struct{}{}
	}

	grouped := PermissionCatalog()
	total := 0
	for _, perms := range grouped {
		total += len(perms)
	}
	if total != len(Catalog) {
		t.Fatalf("grouped catalog holds %d permissions, want %d", total, len(Catalog))
	}
}
