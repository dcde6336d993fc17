package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/ids"
)

// Names of the system roles seeded at organization bootstrap.
const (
	RoleNameAdmin   = "Admin"
	RoleNameManager = "Manager"
	RoleNameAgent   = "Agent"
	RoleNameViewer  = "Viewer"
)

// DefaultRoles returns the system role set for a new organization. Admin
// holds the full catalog; Agent works own-scoped leads; Viewer is read-only.
func DefaultRoles(orgID string) []*Role {
	admin := make([]Permission, len(Catalog))
	copy(admin, Catalog)

	manager := []Permission{
		PermOrgView,
		PermUserView, PermUserInvite, PermUserEdit,
		PermRoleView,
		PermLeadViewAll, PermLeadCreate, PermLeadEditAll, PermLeadDeleteAll,
		PermProjectView, PermProjectCreate, PermProjectEdit, PermProjectMembers,
		PermTaskView, PermTaskCreate, PermTaskEdit, PermTaskDelete,
		PermNoteView, PermNoteCreate, PermNoteEdit, PermNoteDelete,
		PermAttachmentView, PermAttachmentUpload, PermAttachmentDelete,
		PermAnalyticsView,
	}
	agent := []Permission{
		PermOrgView,
		PermLeadViewOwn, PermLeadCreate, PermLeadEditOwn, PermLeadDeleteOwn,
		PermProjectView,
		PermTaskView, PermTaskCreate, PermTaskEdit,
		PermNoteView, PermNoteCreate,
		PermAttachmentView, PermAttachmentUpload,
	}
	viewer := []Permission{
		PermOrgView,
		PermLeadViewAll, PermProjectView, PermTaskView, PermNoteView, PermAttachmentView,
	}

	build := func(name, desc string, perms []Permission) *Role {
		return &Role{
			ID:             ids.New(),
			OrganizationID: orgID,
			Name:           name,
			Description:    desc,
			Permissions:    perms,
			System:         true,
		}
	}
	return []*Role{
		build(RoleNameAdmin, "Full access to the organization", admin),
		build(RoleNameManager, "Manages leads, projects and the team", manager),
		build(RoleNameAgent, "Works own leads and tasks", agent),
		build(RoleNameViewer, "Read-only access", viewer),
	}
}

// RoleService is the role registry: org-scoped permission bundles plus the
// permission catalog.
type RoleService struct {
	store Store
	now   func() time.Time
}

// NewRoleService constructs a RoleService.
func NewRoleService(store Store) (*RoleService, error) {
	if store == nil {
		return nil, fmt.Errorf("role store is required")
	}
	return &RoleService{store: store, now: time.Now}, nil
}

// CreateRoleInput is the parsed input for CreateRole.
type CreateRoleInput struct {
	Name        string
	Description string
	Permissions []string
}

// UpdateRoleInput is a partial patch; nil fields are left unchanged.
type UpdateRoleInput struct {
	Name        *string
	Description *string
	Permissions []string // nil means unchanged; empty is rejected
}

func validatePermissions(perms []string) ([]Permission, error) {
	if len(perms) == 0 {
		return nil, fmt.Errorf("%w: at least one permission is required", apperr.ErrValidation)
	}
	seen := make(map[Permission]struct{}, len(perms))
	out := make([]Permission, 0, len(perms))
	for _, raw := range perms {
		raw = strings.TrimSpace(raw)
		if !ValidPermission(raw) {
			return nil, fmt.Errorf("%w: unknown permission %q", apperr.ErrValidation, raw)
		}
		p := Permission(raw)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}

// CreateRole adds a custom (never system) role to the actor's organization.
func (s *RoleService) CreateRole(ctx context.Context, actor Principal, in CreateRoleInput) (*Role, error) {
	if err := actor.RequireAll(PermRoleManage); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: role name is required", apperr.ErrValidation)
	}
	perms, err := validatePermissions(in.Permissions)
	if err != nil {
		return nil, err
	}
	orgID := actor.User.OrganizationID

	now := s.now().UTC()
	role := &Role{
		ID:             ids.New(),
		OrganizationID: orgID,
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		Permissions:    perms,
		System:         false,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if existing, err := tx.Roles().FindByName(ctx, orgID, name); err == nil && existing != nil {
			return fmt.Errorf("%w: role %q already exists", apperr.ErrConflict, name)
		}
		if err := tx.Roles().Create(ctx, role); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "role.create",
			EntityType:     "role",
			EntityID:       role.ID,
			After:          audit.Snapshot(role),
		})
	})
	if err != nil {
		return nil, err
	}
	return role, nil
}

// UpdateRole applies a partial patch. System roles are immutable.
func (s *RoleService) UpdateRole(ctx context.Context, actor Principal, roleID string, in UpdateRoleInput) (*Role, error) {
	if err := actor.RequireAll(PermRoleManage); err != nil {
		return nil, err
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	var updated *Role
	err := s.store.InTx(ctx, func(tx Store) error {
		role, err := tx.Roles().Find(ctx, orgID, roleID)
		if err != nil {
			return err
		}
		if role.System {
			return fmt.Errorf("%w: system roles cannot be modified", apperr.ErrForbidden)
		}
		before := audit.Snapshot(role)

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: role name is required", apperr.ErrValidation)
			}
			if name != role.Name {
				if other, err := tx.Roles().FindByName(ctx, orgID, name); err == nil && other != nil && other.ID != role.ID {
					return fmt.Errorf("%w: role %q already exists", apperr.ErrConflict, name)
				}
				role.Name = name
			}
		}
		if in.Description != nil {
			role.Description = strings.TrimSpace(*in.Description)
		}
		if in.Permissions != nil {
			perms, err := validatePermissions(in.Permissions)
			if err != nil {
				return err
			}
			role.Permissions = perms
		}
		role.UpdatedAt = s.now().UTC()
		if err := tx.Roles().Update(ctx, role); err != nil {
			return err
		}
		updated = role
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "role.update",
			EntityType:     "role",
			EntityID:       role.ID,
			Before:         before,
			After:          audit.Snapshot(role),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteRole removes an unused, non-system role. A role still assigned to
// users is protected; the error reports the blocking count.
func (s *RoleService) DeleteRole(ctx context.Context, actor Principal, roleID string) error {
	if err := actor.RequireAll(PermRoleManage); err != nil {
		return err
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return fmt.Errorf("%w: role id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	return s.store.InTx(ctx, func(tx Store) error {
		role, err := tx.Roles().Find(ctx, orgID, roleID)
		if err != nil {
			return err
		}
		if role.System {
			return fmt.Errorf("%w: system roles cannot be deleted", apperr.ErrForbidden)
		}
		count, err := tx.Users().CountWithRole(ctx, orgID, roleID)
		if err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: role is assigned to %d user(s)", apperr.ErrForbidden, count)
		}
		if err := tx.Roles().Delete(ctx, orgID, roleID); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "role.delete",
			EntityType:     "role",
			EntityID:       roleID,
			Before:         audit.Snapshot(role),
		})
	})
}

// GetRole fetches one role within the actor's organization.
func (s *RoleService) GetRole(ctx context.Context, actor Principal, roleID string) (*Role, error) {
	if err := actor.RequireAny(PermRoleView, PermRoleManage); err != nil {
		return nil, err
	}
	roleID = strings.TrimSpace(roleID)
	if roleID == "" {
		return nil, fmt.Errorf("%w: role id is required", apperr.ErrValidation)
	}
	return s.store.Roles().Find(ctx, actor.User.OrganizationID, roleID)
}

// ListRoles lists org roles with search, pagination, sorting and live user
// counts.
func (s *RoleService) ListRoles(ctx context.Context, actor Principal, f RoleFilter) ([]*RoleWithUsage, int, error) {
	if err := actor.RequireAny(PermRoleView, PermRoleManage); err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	switch f.SortBy {
	case "", "name":
		f.SortBy = "name"
	case "system":
	default:
		return nil, 0, fmt.Errorf("%w: unsupported sort field %q", apperr.ErrValidation, f.SortBy)
	}
	return s.store.Roles().List(ctx, actor.User.OrganizationID, f)
}

// AllPermissions returns the permission catalog grouped by category. The
// catalog is fixed at compile time, so repeated calls are identical.
func (s *RoleService) AllPermissions() map[string][]Permission {
	return PermissionCatalog()
}
