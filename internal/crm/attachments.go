package crm

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/auth"
	"github.com/TaherBala2507/mini-crm/internal/ids"
)

// AttachmentService stores file bytes through FileStorage and their metadata
// through the store, keeping the two consistent: a metadata transaction that
// aborts after the file landed on disk compensates by deleting the file.
type AttachmentService struct {
	store   Store
	files   FileStorage
	maxSize int64
	log     *logrus.Logger
}

// NewAttachmentService constructs an AttachmentService.
func NewAttachmentService(store Store, files FileStorage, maxSize int64, log *logrus.Logger) (*AttachmentService, error) {
	if store == nil {
		return nil, fmt.Errorf("crm store is required")
	}
	if files == nil {
		return nil, fmt.Errorf("file storage is required")
	}
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AttachmentService{store: store, files: files, maxSize: maxSize, log: log}, nil
}

// UploadInput is the parsed upload payload.
type UploadInput struct {
	EntityType  string
	EntityID    string
	FileName    string
	ContentType string
	Data        []byte
}

// Upload saves the bytes, then records metadata in a transaction. The file
// write happens first because it is the side effect we know how to undo.
func (s *AttachmentService) Upload(ctx context.Context, actor auth.Principal, in UploadInput) (*Attachment, error) {
	if err := actor.RequireAll(auth.PermAttachmentUpload); err != nil {
		return nil, err
	}
	entityType := strings.TrimSpace(strings.ToLower(in.EntityType))
	entityID := strings.TrimSpace(in.EntityID)
	fileName := strings.TrimSpace(in.FileName)
	if !validEntityType(entityType) {
		return nil, fmt.Errorf("%w: unknown entity type %q", apperr.ErrValidation, entityType)
	}
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", apperr.ErrValidation)
	}
	if fileName == "" {
		return nil, fmt.Errorf("%w: file name is required", apperr.ErrValidation)
	}
	if len(in.Data) == 0 {
		return nil, fmt.Errorf("%w: file is empty", apperr.ErrValidation)
	}
	if int64(len(in.Data)) > s.maxSize {
		return nil, fmt.Errorf("%w: file exceeds the %d byte limit", apperr.ErrValidation, s.maxSize)
	}
	orgID := actor.User.OrganizationID

	locator, err := s.files.Save(in.Data, fileName)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	att := &Attachment{
		ID:             ids.New(),
		OrganizationID: orgID,
		UploaderUserID: actor.User.ID,
		EntityType:     entityType,
		EntityID:       entityID,
		FileName:       fileName,
		ContentType:    strings.TrimSpace(in.ContentType),
		SizeBytes:      int64(len(in.Data)),
		Locator:        locator,
		CreatedAt:      timeNow().UTC(),
	}
	err = s.store.InTx(ctx, func(tx Store) error {
		if err := findTarget(ctx, tx, orgID, entityType, entityID); err != nil {
			return err
		}
		if err := tx.Attachments().Create(ctx, att); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "attachment.upload",
			EntityType:     "attachment",
			EntityID:       att.ID,
			After:          audit.Snapshot(att),
			Metadata:       map[string]any{"file_name": fileName, "size_bytes": att.SizeBytes},
		})
	})
	if err != nil {
		// The metadata write aborted; the on-disk file must not linger.
		if delErr := s.files.Delete(locator); delErr != nil {
			s.log.WithError(delErr).WithField("locator", locator).
				Error("orphaned attachment file after aborted upload")
		}
		return nil, err
	}
	return att, nil
}

// GetAttachment returns metadata for one attachment.
func (s *AttachmentService) GetAttachment(ctx context.Context, actor auth.Principal, id string) (*Attachment, error) {
	if err := actor.RequireAll(auth.PermAttachmentView); err != nil {
		return nil, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: attachment id is required", apperr.ErrValidation)
	}
	return s.store.Attachments().Find(ctx, actor.User.OrganizationID, id)
}

// OpenAttachment returns metadata plus the stored bytes.
func (s *AttachmentService) OpenAttachment(ctx context.Context, actor auth.Principal, id string) (*Attachment, []byte, error) {
	att, err := s.GetAttachment(ctx, actor, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.files.Open(att.Locator)
	if err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}
	return att, data, nil
}

// ListForEntity lists attachments on one entity.
func (s *AttachmentService) ListForEntity(ctx context.Context, actor auth.Principal, entityType, entityID string) ([]*Attachment, error) {
	if err := actor.RequireAll(auth.PermAttachmentView); err != nil {
		return nil, err
	}
	entityType = strings.TrimSpace(strings.ToLower(entityType))
	entityID = strings.TrimSpace(entityID)
	if !validEntityType(entityType) {
		return nil, fmt.Errorf("%w: unknown entity type %q", apperr.ErrValidation, entityType)
	}
	if entityID == "" {
		return nil, fmt.Errorf("%w: entity id is required", apperr.ErrValidation)
	}
	return s.store.Attachments().ListForEntity(ctx, actor.User.OrganizationID, entityType, entityID)
}

// DeleteAttachment removes the metadata row, then the file. A file deletion
// failure after commit is logged, not surfaced: the row is gone and the
// orphan is an operational cleanup concern.
func (s *AttachmentService) DeleteAttachment(ctx context.Context, actor auth.Principal, id string) error {
	if err := actor.RequireAll(auth.PermAttachmentDelete); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("%w: attachment id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	var locator string
	err := s.store.InTx(ctx, func(tx Store) error {
		att, err := tx.Attachments().Find(ctx, orgID, id)
		if err != nil {
			return err
		}
		locator = att.Locator
		if err := tx.Attachments().Delete(ctx, orgID, id); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "attachment.delete",
			EntityType:     "attachment",
			EntityID:       id,
			Before:         audit.Snapshot(att),
		})
	})
	if err != nil {
		return err
	}
	if err := s.files.Delete(locator); err != nil {
		s.log.WithError(err).WithField("locator", locator).
			Error("attachment file deletion failed after metadata removal")
	}
	return nil
}
