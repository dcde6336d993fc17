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

// NoteService manages free-form notes on leads, projects, and tasks.
type NoteService struct {
	store Store
}

// NewNoteService constructs a NoteService.
func NewNoteService(store Store) (*NoteService, error) {
	if store == nil {
		return nil, fmt.Errorf("crm store is required")
	}
	return &NoteService{store: store}, nil
}

// findTarget verifies the note target exists within the organization.
func findTarget(ctx context.Context, tx Store, orgID, entityType, entityID string) error {
	switch entityType {
	case EntityLead:
		_, err := tx.Leads().Find(ctx, orgID, entityID)
		return err
	case EntityProject:
		_, err := tx.Projects().Find(ctx, orgID, entityID)
		return err
	case EntityTask:
		_, err := tx.Tasks().Find(ctx, orgID, entityID)
		return err
	default:
		return fmt.Errorf("%w: unknown entity type %q", apperr.ErrValidation, entityType)
	}
}

// CreateNote attaches a note to an existing entity.
func (s *NoteService) CreateNote(ctx context.Context, actor auth.Principal, entityType, entityID, body string) (*Note, error) {
	if err := actor.RequireAll(auth.PermNoteCreate); err != nil {
		return nil, err
	}
	entityType = strings.TrimSpace(strings.ToLower(entityType))
	entityID = strings.TrimSpace(entityID)
	body = strings.TrimSpace(body)
	if !validEntityType(entityType) {
		return nil, fmt.Errorf("%w: unknown entity type %q", apperr.ErrValidation, entityType)
	}
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", apperr.ErrValidation)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: note body is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	now := timeNow().UTC()
	note := &Note{
		ID:             ids.New(),
		OrganizationID: orgID,
		AuthorUserID:   actor.User.ID,
		EntityType:     entityType,
		EntityID:       entityID,
		Body:           body,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.InTx(ctx, func(tx Store) error {
		if err := findTarget(ctx, tx, orgID, entityType, entityID); err != nil {
			return err
		}
		if err := tx.Notes().Create(ctx, note); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "note.create",
			EntityType:     "note",
			EntityID:       note.ID,
			After:          audit.Snapshot(note),
		})
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

// ListNotes lists notes, usually filtered to one entity.
func (s *NoteService) ListNotes(ctx context.Context, actor auth.Principal, f NoteFilter) ([]*Note, int, error) {
	if err := actor.RequireAll(auth.PermNoteView); err != nil {
		return nil, 0, err
	}
	if f.EntityType != "" && !validEntityType(f.EntityType) {
		return nil, 0, fmt.Errorf("%w: unknown entity type %q", apperr.ErrValidation, f.EntityType)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.store.Notes().List(ctx, actor.User.OrganizationID, f)
}

// UpdateNote replaces a note's body. Only the author or a note.edit holder
// may change it; others see NotFound.
func (s *NoteService) UpdateNote(ctx context.Context, actor auth.Principal, noteID, body string) (*Note, error) {
	if err := actor.RequireAny(auth.PermNoteEdit, auth.PermNoteCreate); err != nil {
		return nil, err
	}
	noteID = strings.TrimSpace(noteID)
	body = strings.TrimSpace(body)
	if noteID == "" {
		return nil, fmt.Errorf("%w: note id is required", apperr.ErrValidation)
	}
	if body == "" {
		return nil, fmt.Errorf("%w: note body is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	var updated *Note
	err := s.store.InTx(ctx, func(tx Store) error {
		note, err := tx.Notes().Find(ctx, orgID, noteID)
		if err != nil {
			return err
		}
		if note.AuthorUserID != actor.User.ID && !actor.Permissions.Has(auth.PermNoteEdit) {
			return fmt.Errorf("%w: note not found", apperr.ErrNotFound)
		}
		before := audit.Snapshot(note)
		note.Body = body
		note.UpdatedAt = timeNow().UTC()
		if err := tx.Notes().Update(ctx, note); err != nil {
			return err
		}
		updated = note
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "note.update",
			EntityType:     "note",
			EntityID:       note.ID,
			Before:         before,
			After:          audit.Snapshot(note),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteNote removes a note under the same author-or-editor rule.
func (s *NoteService) DeleteNote(ctx context.Context, actor auth.Principal, noteID string) error {
	if err := actor.RequireAny(auth.PermNoteDelete, auth.PermNoteCreate); err != nil {
		return err
	}
	noteID = strings.TrimSpace(noteID)
	if noteID == "" {
		return fmt.Errorf("%w: note id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	return s.store.InTx(ctx, func(tx Store) error {
		note, err := tx.Notes().Find(ctx, orgID, noteID)
		if err != nil {
			return err
		}
		if note.AuthorUserID != actor.User.ID && !actor.Permissions.Has(auth.PermNoteDelete) {
			return fmt.Errorf("%w: note not found", apperr.ErrNotFound)
		}
		if err := tx.Notes().Delete(ctx, orgID, noteID); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "note.delete",
			EntityType:     "note",
			EntityID:       noteID,
			Before:         audit.Snapshot(note),
		})
	})
}
