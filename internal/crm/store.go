package crm

import (
	"context"

	"github.com/TaherBala2507/mini-crm/internal/audit"
)

// Store describes persistence required by the CRM services. InTx runs fn
// against a transaction-scoped Store, the same unit-of-work contract the
// identity subsystem uses.
type Store interface {
	InTx(ctx context.Context, fn func(Store) error) error

	Leads() LeadStore
	Projects() ProjectStore
	Tasks() TaskStore
	Notes() NoteStore
	Attachments() AttachmentStore
	Analytics() AnalyticsStore
	Audit() audit.Store
}

// LeadFilter narrows and pages lead listings. OwnerUserID is set by the
// service when the caller holds only the own-scoped view permission.
type LeadFilter struct {
	Search      string
	Status      string
	Source      string
	OwnerUserID string
	Page        int
	Limit       int
}

// LeadStore persists leads.
type LeadStore interface {
	Create(ctx context.Context, l *Lead) error
	Find(ctx context.Context, orgID, id string) (*Lead, error)
	Update(ctx context.Context, l *Lead) error
	Delete(ctx context.Context, orgID, id string) error
	List(ctx context.Context, orgID string, f LeadFilter) ([]*Lead, int, error)
}

// ProjectFilter narrows and pages project listings.
type ProjectFilter struct {
	Search   string
	Status   string
	MemberID string
	Page     int
	Limit    int
}

// ProjectStore persists projects.
type ProjectStore interface {
	Create(ctx context.Context, p *Project) error
	Find(ctx context.Context, orgID, id string) (*Project, error)
	Update(ctx context.Context, p *Project) error
	Delete(ctx context.Context, orgID, id string) error
	List(ctx context.Context, orgID string, f ProjectFilter) ([]*Project, int, error)
}

// TaskFilter narrows and pages task listings.
type TaskFilter struct {
	ProjectID  string
	LeadID     string
	Status     string
	Priority   string
	AssigneeID string
	Page       int
	Limit      int
}

// TaskStore persists tasks.
type TaskStore interface {
	Create(ctx context.Context, t *Task) error
	Find(ctx context.Context, orgID, id string) (*Task, error)
	Update(ctx context.Context, t *Task) error
	Delete(ctx context.Context, orgID, id string) error
	List(ctx context.Context, orgID string, f TaskFilter) ([]*Task, int, error)
}

// NoteFilter narrows and pages note listings.
type NoteFilter struct {
	EntityType string
	EntityID   string
	AuthorID   string
	Page       int
	Limit      int
}

// NoteStore persists notes.
type NoteStore interface {
	Create(ctx context.Context, n *Note) error
	Find(ctx context.Context, orgID, id string) (*Note, error)
	Update(ctx context.Context, n *Note) error
	Delete(ctx context.Context, orgID, id string) error
	List(ctx context.Context, orgID string, f NoteFilter) ([]*Note, int, error)
}

// AttachmentStore persists attachment metadata; file bytes live elsewhere.
type AttachmentStore interface {
	Create(ctx context.Context, a *Attachment) error
	Find(ctx context.Context, orgID, id string) (*Attachment, error)
	Delete(ctx context.Context, orgID, id string) error
	ListForEntity(ctx context.Context, orgID, entityType, entityID string) ([]*Attachment, error)
}

// AnalyticsStore runs the aggregation queries behind the overview snapshot.
type AnalyticsStore interface {
	Overview(ctx context.Context, orgID string) (*Overview, error)
}

// FileStorage is the boundary to attachment byte storage.
type FileStorage interface {
	Save(data []byte, name string) (locator string, err error)
	Delete(locator string) error
	Open(locator string) ([]byte, error)
}
