package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/auth"
	"github.com/TaherBala2507/mini-crm/internal/ids"
)

// ProjectService manages projects and their membership.
type ProjectService struct {
	store Store
}

// NewProjectService constructs a ProjectService.
func NewProjectService(store Store) (*ProjectService, error) {
	if store == nil {
		return nil, fmt.Errorf("crm store is required")
	}
	return &ProjectService{store: store}, nil
}

// CreateProjectInput is the parsed payload for CreateProject.
type CreateProjectInput struct {
	Name        string
	Description string
	MemberIDs   []string
}

// CreateProject creates an active project; the actor is always a member.
func (s *ProjectService) CreateProject(ctx context.Context, actor auth.Principal, in CreateProjectInput) (*Project, error) {
	if err := actor.RequireAll(auth.PermProjectCreate); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: project name is required", apperr.ErrValidation)
	}
	members := dedupeIDs(append(in.MemberIDs, actor.User.ID))

	now := timeNow().UTC()
	project := &Project{
		ID:             ids.New(),
		OrganizationID: actor.User.OrganizationID,
		Name:           name,
		Description:    strings.TrimSpace(in.Description),
		Status:         ProjectStatusActive,
		MemberIDs:      members,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Projects().Create(ctx, project); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: project.OrganizationID,
			ActorUserID:    actor.User.ID,
			Action:         "project.create",
			EntityType:     EntityProject,
			EntityID:       project.ID,
			After:          audit.Snapshot(project),
		})
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// GetProject fetches one project in the actor's organization.
func (s *ProjectService) GetProject(ctx context.Context, actor auth.Principal, projectID string) (*Project, error) {
	if err := actor.RequireAll(auth.PermProjectView); err != nil {
		return nil, err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", apperr.ErrValidation)
	}
	return s.store.Projects().Find(ctx, actor.User.OrganizationID, projectID)
}

// ListProjects lists org projects.
func (s *ProjectService) ListProjects(ctx context.Context, actor auth.Principal, f ProjectFilter) ([]*Project, int, error) {
	if err := actor.RequireAll(auth.PermProjectView); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !validProjectStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: unknown project status %q", apperr.ErrValidation, f.Status)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.store.Projects().List(ctx, actor.User.OrganizationID, f)
}

// UpdateProjectInput is a partial patch; nil fields are left unchanged.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Status      *string
	MemberIDs   []string // nil means unchanged
}

// UpdateProject patches a project. Member changes require the membership
// permission on top of edit.
func (s *ProjectService) UpdateProject(ctx context.Context, actor auth.Principal, projectID string, in UpdateProjectInput) (*Project, error) {
	if err := actor.RequireAll(auth.PermProjectEdit); err != nil {
		return nil, err
	}
	if in.MemberIDs != nil {
		if err := actor.RequireAll(auth.PermProjectMembers); err != nil {
			return nil, err
		}
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, fmt.Errorf("%w: project id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	var updated *Project
	err := s.store.InTx(ctx, func(tx Store) error {
		project, err := tx.Projects().Find(ctx, orgID, projectID)
		if err != nil {
			return err
		}
		before := audit.Snapshot(project)

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: project name is required", apperr.ErrValidation)
			}
			project.Name = name
		}
		if in.Description != nil {
			project.Description = strings.TrimSpace(*in.Description)
		}
		if in.Status != nil {
			status := strings.TrimSpace(strings.ToLower(*in.Status))
			if !validProjectStatus(status) {
				return fmt.Errorf("%w: unknown project status %q", apperr.ErrValidation, status)
			}
			project.Status = status
		}
		if in.MemberIDs != nil {
			members := dedupeIDs(in.MemberIDs)
			if len(members) == 0 {
				return fmt.Errorf("%w: a project needs at least one member", apperr.ErrValidation)
			}
			project.MemberIDs = members
		}
		project.UpdatedAt = timeNow().UTC()
		if err := tx.Projects().Update(ctx, project); err != nil {
			return err
		}
		updated = project
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "project.update",
			EntityType:     EntityProject,
			EntityID:       project.ID,
			Before:         before,
			After:          audit.Snapshot(project),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteProject removes a project.
func (s *ProjectService) DeleteProject(ctx context.Context, actor auth.Principal, projectID string) error {
	if err := actor.RequireAll(auth.PermProjectDelete); err != nil {
		return err
	}
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return fmt.Errorf("%w: project id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	return s.store.InTx(ctx, func(tx Store) error {
		project, err := tx.Projects().Find(ctx, orgID, projectID)
		if err != nil {
			return err
		}
		if err := tx.Projects().Delete(ctx, orgID, projectID); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "project.delete",
			EntityType:     EntityProject,
			EntityID:       projectID,
			Before:         audit.Snapshot(project),
		})
	})
}

func dedupeIDs(values []string) []string {
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
