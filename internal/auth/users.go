package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/ids"
)

// InviteUserInput is the parsed invitation payload.
type InviteUserInput struct {
	Name    string
	Email   string
	RoleIDs []string
}

// InviteUser creates a pending user and an email-verify token in one
// transaction. The verify plaintext is returned once for delivery.
func (s *Service) InviteUser(ctx context.Context, actor Principal, in InviteUserInput) (*User, string, error) {
	if err := actor.RequireAll(PermUserInvite); err != nil {
		return nil, "", err
	}
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" {
		return nil, "", fmt.Errorf("%w: name is required", apperr.ErrValidation)
	}
	if !validEmail(email) {
		return nil, "", fmt.Errorf("%w: valid email is required", apperr.ErrValidation)
	}
	if len(in.RoleIDs) == 0 {
		return nil, "", fmt.Errorf("%w: at least one role is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	roles, err := s.store.Roles().FindByIDs(ctx, orgID, in.RoleIDs)
	if err != nil {
		return nil, "", err
	}
	if len(roles) != len(dedupe(in.RoleIDs)) {
		return nil, "", fmt.Errorf("%w: unknown role reference", apperr.ErrValidation)
	}

	plaintext, digest, err := s.tokens.NewOpaqueSecret()
	if err != nil {
		return nil, "", err
	}
	now := s.tokens.Now().UTC()
	user := &User{
		ID:             ids.New(),
		OrganizationID: orgID,
		Name:           name,
		Email:          email,
		Status:         UserStatusPending,
		RoleIDs:        dedupe(in.RoleIDs),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	rec := &Token{
		ID:        ids.New(),
		UserID:    user.ID,
		Kind:      TokenKindVerify,
		TokenHash: digest,
		ExpiresAt: now.Add(s.tokens.TTLFor(TokenKindVerify)),
		CreatedAt: now,
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if existing, err := tx.Users().FindByEmail(ctx, orgID, email); err == nil && existing != nil {
			return fmt.Errorf("%w: email %s is already registered", apperr.ErrConflict, email)
		}
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		if err := tx.Tokens().Create(ctx, rec); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "user.invite",
			EntityType:     "user",
			EntityID:       user.ID,
			After:          audit.Snapshot(user),
		})
	})
	if err != nil {
		return nil, "", err
	}
	return user, plaintext, nil
}

// GetUser fetches one user within the actor's organization.
func (s *Service) GetUser(ctx context.Context, actor Principal, userID string) (*User, error) {
	if err := actor.RequireAny(PermUserView, PermUserEdit); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", apperr.ErrValidation)
	}
	return s.store.Users().Find(ctx, actor.User.OrganizationID, userID)
}

// ListUsers lists org users with search and pagination.
func (s *Service) ListUsers(ctx context.Context, actor Principal, f UserFilter) ([]*User, int, error) {
	if err := actor.RequireAny(PermUserView, PermUserEdit); err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.store.Users().List(ctx, actor.User.OrganizationID, f)
}

// UpdateUserInput is a partial patch; nil fields are left unchanged.
type UpdateUserInput struct {
	Name    *string
	Status  *string
	RoleIDs []string // nil means unchanged
}

// UpdateUser patches profile, status, or role assignment.
func (s *Service) UpdateUser(ctx context.Context, actor Principal, userID string, in UpdateUserInput) (*User, error) {
	if err := actor.RequireAll(PermUserEdit); err != nil {
		return nil, err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	var updated *User
	err := s.store.InTx(ctx, func(tx Store) error {
		user, err := tx.Users().Find(ctx, orgID, userID)
		if err != nil {
			return err
		}
		before := audit.Snapshot(user)

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: name is required", apperr.ErrValidation)
			}
			user.Name = name
		}
		if in.Status != nil {
			status := strings.TrimSpace(strings.ToLower(*in.Status))
			switch status {
			case UserStatusActive, UserStatusInactive, UserStatusSuspended:
			default:
				return fmt.Errorf("%w: unsupported status %q", apperr.ErrValidation, status)
			}
			user.Status = status
		}
		if in.RoleIDs != nil {
			roleIDs := dedupe(in.RoleIDs)
			if len(roleIDs) == 0 {
				return fmt.Errorf("%w: at least one role is required", apperr.ErrValidation)
			}
			roles, err := tx.Roles().FindByIDs(ctx, orgID, roleIDs)
			if err != nil {
				return err
			}
			if len(roles) != len(roleIDs) {
				return fmt.Errorf("%w: unknown role reference", apperr.ErrValidation)
			}
			user.RoleIDs = roleIDs
		}
		user.UpdatedAt = s.tokens.Now().UTC()
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		updated = user
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "user.update",
			EntityType:     "user",
			EntityID:       user.ID,
			Before:         before,
			After:          audit.Snapshot(user),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeactivateUser soft-deletes an account: status becomes inactive and every
// refresh token is revoked. Users cannot deactivate themselves.
func (s *Service) DeactivateUser(ctx context.Context, actor Principal, userID string) error {
	if err := actor.RequireAll(PermUserDelete); err != nil {
		return err
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", apperr.ErrValidation)
	}
	if userID == actor.User.ID {
		return fmt.Errorf("%w: you cannot delete your own account", apperr.ErrBadRequest)
	}
	orgID := actor.User.OrganizationID

	return s.store.InTx(ctx, func(tx Store) error {
		user, err := tx.Users().Find(ctx, orgID, userID)
		if err != nil {
			return err
		}
		before := audit.Snapshot(user)
		now := s.tokens.Now().UTC()
		user.Status = UserStatusInactive
		user.UpdatedAt = now
		if err := tx.Users().Update(ctx, user); err != nil {
			return err
		}
		if err := tx.Tokens().RevokeAllForUser(ctx, user.ID, TokenKindRefresh, now); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "user.deactivate",
			EntityType:     "user",
			EntityID:       user.ID,
			Before:         before,
			After:          audit.Snapshot(user),
		})
	})
}

// GetOrganization returns the actor's own organization.
func (s *Service) GetOrganization(ctx context.Context, actor Principal) (*Organization, error) {
	if err := actor.RequireAny(PermOrgView, PermOrgEdit); err != nil {
		return nil, err
	}
	return s.store.Organizations().Find(ctx, actor.User.OrganizationID)
}

// UpdateOrganizationInput is a partial patch for the tenant record.
type UpdateOrganizationInput struct {
	Name     *string
	Settings map[string]any // nil means unchanged
}

// UpdateOrganization patches the actor's organization. Organizations are
// never hard-deleted.
func (s *Service) UpdateOrganization(ctx context.Context, actor Principal, in UpdateOrganizationInput) (*Organization, error) {
	if err := actor.RequireAll(PermOrgEdit); err != nil {
		return nil, err
	}
	var updated *Organization
	err := s.store.InTx(ctx, func(tx Store) error {
		org, err := tx.Organizations().Find(ctx, actor.User.OrganizationID)
		if err != nil {
			return err
		}
		before := audit.Snapshot(org)
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: organization name is required", apperr.ErrValidation)
			}
			org.Name = name
		}
		if in.Settings != nil {
			org.Settings = in.Settings
		}
		org.UpdatedAt = s.tokens.Now().UTC()
		if err := tx.Organizations().Update(ctx, org); err != nil {
			return err
		}
		updated = org
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: org.ID,
			ActorUserID:    actor.User.ID,
			Action:         "org.update",
			EntityType:     "organization",
			EntityID:       org.ID,
			Before:         before,
			After:          audit.Snapshot(org),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func dedupe(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
