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

// LeadService applies ownership-scoped access on top of the lead store:
// callers holding only the *.own permission variant are constrained to rows
// they own; *.all holders are not.
type LeadService struct {
	store Store
}

// NewLeadService constructs a LeadService.
func NewLeadService(store Store) (*LeadService, error) {
	if store == nil {
		return nil, fmt.Errorf("crm store is required")
	}
	return &LeadService{store: store}, nil
}

// CreateLeadInput is the parsed payload for CreateLead.
type CreateLeadInput struct {
	Name           string
	Company        string
	Email          string
	Phone          string
	Source         string
	OwnerUserID    string // empty means the actor owns the lead
	EstimatedValue int64
}

// CreateLead records a new prospect. The actor becomes the owner unless
// another owner is named.
func (s *LeadService) CreateLead(ctx context.Context, actor auth.Principal, in CreateLeadInput) (*Lead, error) {
	if err := actor.RequireAll(auth.PermLeadCreate); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: lead name is required", apperr.ErrValidation)
	}
	source := strings.TrimSpace(strings.ToLower(in.Source))
	if source == "" {
		source = LeadSourceOther
	}
	if !validLeadSource(source) {
		return nil, fmt.Errorf("%w: unknown lead source %q", apperr.ErrValidation, source)
	}
	if in.EstimatedValue < 0 {
		return nil, fmt.Errorf("%w: estimated value cannot be negative", apperr.ErrValidation)
	}
	owner := strings.TrimSpace(in.OwnerUserID)
	if owner == "" {
		owner = actor.User.ID
	}

	now := timeNow().UTC()
	lead := &Lead{
		ID:             ids.New(),
		OrganizationID: actor.User.OrganizationID,
		OwnerUserID:    owner,
		Name:           name,
		Company:        strings.TrimSpace(in.Company),
		Email:          strings.TrimSpace(strings.ToLower(in.Email)),
		Phone:          strings.TrimSpace(in.Phone),
		Source:         source,
		Status:         LeadStatusNew,
		EstimatedValue: in.EstimatedValue,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := tx.Leads().Create(ctx, lead); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: lead.OrganizationID,
			ActorUserID:    actor.User.ID,
			Action:         "lead.create",
			EntityType:     EntityLead,
			EntityID:       lead.ID,
			After:          audit.Snapshot(lead),
		})
	})
	if err != nil {
		return nil, err
	}
	return lead, nil
}

// GetLead fetches one lead, applying the ownership constraint for own-scoped
// callers. Leads outside the constraint surface as NotFound.
func (s *LeadService) GetLead(ctx context.Context, actor auth.Principal, leadID string) (*Lead, error) {
	if err := actor.RequireAny(auth.PermLeadViewAll, auth.PermLeadViewOwn); err != nil {
		return nil, err
	}
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return nil, fmt.Errorf("%w: lead id is required", apperr.ErrValidation)
	}
	lead, err := s.store.Leads().Find(ctx, actor.User.OrganizationID, leadID)
	if err != nil {
		return nil, err
	}
	if !actor.Permissions.Has(auth.PermLeadViewAll) && lead.OwnerUserID != actor.User.ID {
		return nil, fmt.Errorf("%w: lead not found", apperr.ErrNotFound)
	}
	return lead, nil
}

// ListLeads lists org leads. Own-scoped callers see only rows they own.
func (s *LeadService) ListLeads(ctx context.Context, actor auth.Principal, f LeadFilter) ([]*Lead, int, error) {
	if err := actor.RequireAny(auth.PermLeadViewAll, auth.PermLeadViewOwn); err != nil {
		return nil, 0, err
	}
	if !actor.Permissions.Has(auth.PermLeadViewAll) {
		f.OwnerUserID = actor.User.ID
	}
	if f.Status != "" && !validLeadStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: unknown lead status %q", apperr.ErrValidation, f.Status)
	}
	if f.Source != "" && !validLeadSource(f.Source) {
		return nil, 0, fmt.Errorf("%w: unknown lead source %q", apperr.ErrValidation, f.Source)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.store.Leads().List(ctx, actor.User.OrganizationID, f)
}

// UpdateLeadInput is a partial patch; nil fields are left unchanged.
type UpdateLeadInput struct {
	Name           *string
	Company        *string
	Email          *string
	Phone          *string
	Source         *string
	Status         *string
	OwnerUserID    *string
	EstimatedValue *int64
}

// editableBy reports whether the actor may mutate the lead under the given
// all/own permission pair.
func editableBy(actor auth.Principal, lead *Lead, all, own auth.Permission) bool {
	if actor.Permissions.Has(all) {
		return true
	}
	return actor.Permissions.Has(own) && lead.OwnerUserID == actor.User.ID
}

// UpdateLead patches a lead, honoring the edit.own/edit.all split.
func (s *LeadService) UpdateLead(ctx context.Context, actor auth.Principal, leadID string, in UpdateLeadInput) (*Lead, error) {
	if err := actor.RequireAny(auth.PermLeadEditAll, auth.PermLeadEditOwn); err != nil {
		return nil, err
	}
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return nil, fmt.Errorf("%w: lead id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	var updated *Lead
	err := s.store.InTx(ctx, func(tx Store) error {
		lead, err := tx.Leads().Find(ctx, orgID, leadID)
		if err != nil {
			return err
		}
		if !editableBy(actor, lead, auth.PermLeadEditAll, auth.PermLeadEditOwn) {
			return fmt.Errorf("%w: lead not found", apperr.ErrNotFound)
		}
		before := audit.Snapshot(lead)

		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return fmt.Errorf("%w: lead name is required", apperr.ErrValidation)
			}
			lead.Name = name
		}
		if in.Company != nil {
			lead.Company = strings.TrimSpace(*in.Company)
		}
		if in.Email != nil {
			lead.Email = strings.TrimSpace(strings.ToLower(*in.Email))
		}
		if in.Phone != nil {
			lead.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.Source != nil {
			source := strings.TrimSpace(strings.ToLower(*in.Source))
			if !validLeadSource(source) {
				return fmt.Errorf("%w: unknown lead source %q", apperr.ErrValidation, source)
			}
			lead.Source = source
		}
		if in.Status != nil {
			status := strings.TrimSpace(strings.ToLower(*in.Status))
			if !validLeadStatus(status) {
				return fmt.Errorf("%w: unknown lead status %q", apperr.ErrValidation, status)
			}
			lead.Status = status
		}
		if in.OwnerUserID != nil {
			owner := strings.TrimSpace(*in.OwnerUserID)
			if owner == "" {
				return fmt.Errorf("%w: owner is required", apperr.ErrValidation)
			}
			// Reassignment is an all-scope operation.
			if !actor.Permissions.Has(auth.PermLeadEditAll) {
				return fmt.Errorf("%w: insufficient permissions", apperr.ErrForbidden)
			}
			lead.OwnerUserID = owner
		}
		if in.EstimatedValue != nil {
			if *in.EstimatedValue < 0 {
				return fmt.Errorf("%w: estimated value cannot be negative", apperr.ErrValidation)
			}
			lead.EstimatedValue = *in.EstimatedValue
		}
		lead.UpdatedAt = timeNow().UTC()
		if err := tx.Leads().Update(ctx, lead); err != nil {
			return err
		}
		updated = lead
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "lead.update",
			EntityType:     EntityLead,
			EntityID:       lead.ID,
			Before:         before,
			After:          audit.Snapshot(lead),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteLead removes a lead, honoring the delete.own/delete.all split.
func (s *LeadService) DeleteLead(ctx context.Context, actor auth.Principal, leadID string) error {
	if err := actor.RequireAny(auth.PermLeadDeleteAll, auth.PermLeadDeleteOwn); err != nil {
		return err
	}
	leadID = strings.TrimSpace(leadID)
	if leadID == "" {
		return fmt.Errorf("%w: lead id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	return s.store.InTx(ctx, func(tx Store) error {
		lead, err := tx.Leads().Find(ctx, orgID, leadID)
		if err != nil {
			return err
		}
		if !editableBy(actor, lead, auth.PermLeadDeleteAll, auth.PermLeadDeleteOwn) {
			return fmt.Errorf("%w: lead not found", apperr.ErrNotFound)
		}
		if err := tx.Leads().Delete(ctx, orgID, leadID); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "lead.delete",
			EntityType:     EntityLead,
			EntityID:       leadID,
			Before:         audit.Snapshot(lead),
		})
	})
}
