package crm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/auth"
)

// memCRM is an in-memory Store for service tests.
type memCRM struct {
	leads       map[string]*Lead
	projects    map[string]*Project
	tasks       map[string]*Task
	notes       map[string]*Note
	attachments map[string]*Attachment
	entries     []*audit.Entry

	failNext error // returned by the next mutating call, then cleared
}

func newMemCRM() *memCRM {
	return &memCRM{
		leads:       make(map[string]*Lead),
		projects:    make(map[string]*Project),
		tasks:       make(map[string]*Task),
		notes:       make(map[string]*Note),
		attachments: make(map[string]*Attachment),
	}
}

func (m *memCRM) InTx(ctx context.Context, fn func(Store) error) error { return fn(m) }

func (m *memCRM) Leads() LeadStore             { return (*memLeads)(m) }
func (m *memCRM) Projects() ProjectStore       { return (*memProjects)(m) }
func (m *memCRM) Tasks() TaskStore             { return (*memTasks)(m) }
func (m *memCRM) Notes() NoteStore             { return (*memNotes)(m) }
func (m *memCRM) Attachments() AttachmentStore { return (*memAttachments)(m) }
func (m *memCRM) Analytics() AnalyticsStore    { return (*memAnalytics)(m) }
func (m *memCRM) Audit() audit.Store           { return (*memCRMAudit)(m) }

func (m *memCRM) consumeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

func (m *memCRM) lastAudit() *audit.Entry {
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}

type memLeads memCRM

func (m *memLeads) Create(_ context.Context, l *Lead) error {
	if err := (*memCRM)(m).consumeFailure(); err != nil {
		return err
	}
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *memLeads) Find(_ context.Context, orgID, id string) (*Lead, error) {
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: lead not found", apperr.ErrNotFound)
	}
	cp := *l
	return &cp, nil
}

func (m *memLeads) Update(_ context.Context, l *Lead) error {
	if err := (*memCRM)(m).consumeFailure(); err != nil {
		return err
	}
	if _, ok := m.leads[l.ID]; !ok {
		return fmt.Errorf("%w: lead not found", apperr.ErrNotFound)
	}
	cp := *l
	m.leads[l.ID] = &cp
	return nil
}

func (m *memLeads) Delete(_ context.Context, orgID, id string) error {
	l, ok := m.leads[id]
	if !ok || l.OrganizationID != orgID {
		return fmt.Errorf("%w: lead not found", apperr.ErrNotFound)
	}
	delete(m.leads, id)
	return nil
}

func (m *memLeads) List(_ context.Context, orgID string, f LeadFilter) ([]*Lead, int, error) {
	var out []*Lead
	for _, l := range m.leads {
		if l.OrganizationID != orgID {
			continue
		}
		if f.OwnerUserID != "" && l.OwnerUserID != f.OwnerUserID {
			continue
		}
		if f.Status != "" && l.Status != f.Status {
			continue
		}
		if f.Source != "" && l.Source != f.Source {
			continue
		}
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(l.Name), q) &&
				!strings.Contains(strings.ToLower(l.Company), q) &&
				!strings.Contains(strings.ToLower(l.Email), q) {
				continue
			}
		}
		cp := *l
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return pageSlice(out, f.Page, f.Limit)
}

type memProjects memCRM

func (m *memProjects) Create(_ context.Context, p *Project) error {
	if err := (*memCRM)(m).consumeFailure(); err != nil {
		return err
	}
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjects) Find(_ context.Context, orgID, id string) (*Project, error) {
	p, ok := m.projects[id]
	if !ok || p.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: project not found", apperr.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *memProjects) Update(_ context.Context, p *Project) error {
	if _, ok := m.projects[p.ID]; !ok {
		return fmt.Errorf("%w: project not found", apperr.ErrNotFound)
	}
	cp := *p
	m.projects[p.ID] = &cp
	return nil
}

func (m *memProjects) Delete(_ context.Context, orgID, id string) error {
	p, ok := m.projects[id]
	if !ok || p.OrganizationID != orgID {
		return fmt.Errorf("%w: project not found", apperr.ErrNotFound)
	}
	delete(m.projects, id)
	return nil
}

func (m *memProjects) List(_ context.Context, orgID string, f ProjectFilter) ([]*Project, int, error) {
	var out []*Project
	for _, p := range m.projects {
		if p.OrganizationID != orgID {
			continue
		}
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.MemberID != "" && !containsID(p.MemberIDs, f.MemberID) {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return pageSlice(out, f.Page, f.Limit)
}

type memTasks memCRM

func (m *memTasks) Create(_ context.Context, t *Task) error {
	if err := (*memCRM)(m).consumeFailure(); err != nil {
		return err
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) Find(_ context.Context, orgID, id string) (*Task, error) {
	t, ok := m.tasks[id]
	if !ok || t.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: task not found", apperr.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *memTasks) Update(_ context.Context, t *Task) error {
	if _, ok := m.tasks[t.ID]; !ok {
		return fmt.Errorf("%w: task not found", apperr.ErrNotFound)
	}
	cp := *t
	m.tasks[t.ID] = &cp
	return nil
}

func (m *memTasks) Delete(_ context.Context, orgID, id string) error {
	t, ok := m.tasks[id]
	if !ok || t.OrganizationID != orgID {
		return fmt.Errorf("%w: task not found", apperr.ErrNotFound)
	}
	delete(m.tasks, id)
	return nil
}

func (m *memTasks) List(_ context.Context, orgID string, f TaskFilter) ([]*Task, int, error) {
	var out []*Task
	for _, t := range m.tasks {
		if t.OrganizationID != orgID {
			continue
		}
		if f.ProjectID != "" && t.ProjectID != f.ProjectID {
			continue
		}
		if f.LeadID != "" && t.LeadID != f.LeadID {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.Priority != "" && t.Priority != f.Priority {
			continue
		}
		if f.AssigneeID != "" && t.AssigneeUserID != f.AssigneeID {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return pageSlice(out, f.Page, f.Limit)
}

type memNotes memCRM

func (m *memNotes) Create(_ context.Context, n *Note) error {
	if err := (*memCRM)(m).consumeFailure(); err != nil {
		return err
	}
	cp := *n
	m.notes[n.ID] = &cp
	return nil
}

func (m *memNotes) Find(_ context.Context, orgID, id string) (*Note, error) {
	n, ok := m.notes[id]
	if !ok || n.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: note not found", apperr.ErrNotFound)
	}
	cp := *n
	return &cp, nil
}

func (m *memNotes) Update(_ context.Context, n *Note) error {
	if _, ok := m.notes[n.ID]; !ok {
		return fmt.Errorf("%w: note not found", apperr.ErrNotFound)
	}
	cp := *n
	m.notes[n.ID] = &cp
	return nil
}

func (m *memNotes) Delete(_ context.Context, orgID, id string) error {
	n, ok := m.notes[id]
	if !ok || n.OrganizationID != orgID {
		return fmt.Errorf("%w: note not found", apperr.ErrNotFound)
	}
	delete(m.notes, id)
	return nil
}

func (m *memNotes) List(_ context.Context, orgID string, f NoteFilter) ([]*Note, int, error) {
	var out []*Note
	for _, n := range m.notes {
		if n.OrganizationID != orgID {
			continue
		}
		if f.EntityType != "" && n.EntityType != f.EntityType {
			continue
		}
		if f.EntityID != "" && n.EntityID != f.EntityID {
			continue
		}
		if f.AuthorID != "" && n.AuthorUserID != f.AuthorID {
			continue
		}
		cp := *n
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return pageSlice(out, f.Page, f.Limit)
}

type memAttachments memCRM

func (m *memAttachments) Create(_ context.Context, a *Attachment) error {
	if err := (*memCRM)(m).consumeFailure(); err != nil {
		return err
	}
	cp := *a
	m.attachments[a.ID] = &cp
	return nil
}

func (m *memAttachments) Find(_ context.Context, orgID, id string) (*Attachment, error) {
	a, ok := m.attachments[id]
	if !ok || a.OrganizationID != orgID {
		return nil, fmt.Errorf("%w: attachment not found", apperr.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}

func (m *memAttachments) Delete(_ context.Context, orgID, id string) error {
	a, ok := m.attachments[id]
	if !ok || a.OrganizationID != orgID {
		return fmt.Errorf("%w: attachment not found", apperr.ErrNotFound)
	}
	delete(m.attachments, id)
	return nil
}

func (m *memAttachments) ListForEntity(_ context.Context, orgID, entityType, entityID string) ([]*Attachment, error) {
	var out []*Attachment
	for _, a := range m.attachments {
		if a.OrganizationID != orgID || a.EntityType != entityType || a.EntityID != entityID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memAnalytics memCRM

func (m *memAnalytics) Overview(_ context.Context, orgID string) (*Overview, error) {
	ov := &Overview{
		LeadsByStatus: make(map[string]int),
		LeadsBySource: make(map[string]int),
		TasksByStatus: make(map[string]int),
	}
	for _, l := range m.leads {
		if l.OrganizationID != orgID {
			continue
		}
		ov.TotalLeads++
		ov.LeadsByStatus[l.Status]++
		ov.LeadsBySource[l.Source]++
	}
	open := make(map[string]int)
	for _, t := range m.tasks {
		if t.OrganizationID != orgID {
			continue
		}
		ov.TotalTasks++
		ov.TasksByStatus[t.Status]++
		if t.ProjectID != "" && (t.Status == TaskStatusTodo || t.Status == TaskStatusInProgress) {
			open[t.ProjectID]++
		}
	}
	for _, p := range m.projects {
		if p.OrganizationID != orgID {
			continue
		}
		ov.TotalProjects++
		ov.OpenTasksByProject = append(ov.OpenTasksByProject, ProjectTaskCount{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			OpenTasks:   open[p.ID],
		})
	}
	sort.Slice(ov.OpenTasksByProject, func(i, j int) bool {
		return ov.OpenTasksByProject[i].OpenTasks > ov.OpenTasksByProject[j].OpenTasks
	})
	return ov, nil
}

type memCRMAudit memCRM

func (m *memCRMAudit) Append(_ context.Context, e *audit.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func (m *memCRMAudit) List(_ context.Context, orgID string, f audit.Filter) ([]*audit.Entry, int, error) {
	var out []*audit.Entry
	for _, e := range m.entries {
		if e.OrganizationID == orgID {
			out = append(out, e)
		}
	}
	return pageSlice(out, f.Page, f.Limit)
}

func pageSlice[T any](items []*T, page, limit int) ([]*T, int, error) {
	total := len(items)
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return items[start:end], total, nil
}

func containsID(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

// principalWith builds an authenticated actor holding exactly perms.
func principalWith(userID, orgID string, perms ...auth.Permission) auth.Principal {
	set := make(auth.PermissionSet, len(perms))
	for _, p := range perms {
		set[p] = struct{}{}
	}
	return auth.Principal{
		User:        &auth.User{ID: userID, OrganizationID: orgID},
		Permissions: set,
	}
}
