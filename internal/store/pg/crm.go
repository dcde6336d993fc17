package pg

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/crm"
)

// CRMStore backs the CRM services over the same pool as AuthStore.
type CRMStore struct {
	db *sql.DB
	q  querier
}

var _ crm.Store = (*CRMStore)(nil)

// CRM returns the CRM-facing store over the pool.
func (d *DB) CRM() *CRMStore { return &CRMStore{db: d.db, q: d.db} }

// InTx runs fn against a transaction-scoped store. Nested calls join the
// ongoing transaction instead of opening another.
func (s *CRMStore) InTx(ctx context.Context, fn func(crm.Store) error) error {
	return inTx(ctx, s.db, s.q, func(q querier) error {
		return fn(&CRMStore{db: s.db, q: q})
	})
}

func (s *CRMStore) Leads() crm.LeadStore             { return &leadStore{q: s.q} }
func (s *CRMStore) Projects() crm.ProjectStore       { return &projectStore{q: s.q} }
func (s *CRMStore) Tasks() crm.TaskStore             { return &taskStore{q: s.q} }
func (s *CRMStore) Notes() crm.NoteStore             { return &noteStore{q: s.q} }
func (s *CRMStore) Attachments() crm.AttachmentStore { return &attachmentStore{q: s.q} }
func (s *CRMStore) Analytics() crm.AnalyticsStore    { return &analyticsStore{q: s.q} }
func (s *CRMStore) Audit() audit.Store               { return &auditStore{q: s.q} }

type leadStore struct {
	q querier
}

const leadColumns = `id, organization_id, owner_user_id, name, company, email, phone, source, status, estimated_value, created_at, updated_at`

func (s *leadStore) Create(ctx context.Context, l *crm.Lead) error {
	_, err := s.q.ExecContext(ctx, `
		insert into leads (id, organization_id, owner_user_id, name, company, email, phone, source, status, estimated_value, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, l.ID, l.OrganizationID, l.OwnerUserID, l.Name, nullString(l.Company), nullString(l.Email),
		nullString(l.Phone), l.Source, l.Status, l.EstimatedValue, l.CreatedAt, l.UpdatedAt)
	return translateErr(err)
}

func (s *leadStore) Find(ctx context.Context, orgID, id string) (*crm.Lead, error) {
	row := s.q.QueryRowContext(ctx, `
		select `+leadColumns+`
		from leads
		where organization_id = $1 and id = $2
	`, orgID, id)
	var (
		l                     crm.Lead
		company, email, phone sql.NullString
	)
	err := row.Scan(&l.ID, &l.OrganizationID, &l.OwnerUserID, &l.Name, &company, &email, &phone,
		&l.Source, &l.Status, &l.EstimatedValue, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	l.Company, l.Email, l.Phone = company.String, email.String, phone.String
	return &l, nil
}

func (s *leadStore) Update(ctx context.Context, l *crm.Lead) error {
	res, err := s.q.ExecContext(ctx, `
		update leads
		set owner_user_id = $2, name = $3, company = $4, email = $5, phone = $6,
			source = $7, status = $8, estimated_value = $9, updated_at = $10
		where id = $1
	`, l.ID, l.OwnerUserID, l.Name, nullString(l.Company), nullString(l.Email), nullString(l.Phone),
		l.Source, l.Status, l.EstimatedValue, l.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *leadStore) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.q.ExecContext(ctx, `
		delete from leads where organization_id = $1 and id = $2
	`, orgID, id)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *leadStore) List(ctx context.Context, orgID string, f crm.LeadFilter) ([]*crm.Lead, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}
	idx := 2
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(name ilike $%d or company ilike $%d or email ilike $%d)", idx, idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.Source != "" {
		where = append(where, fmt.Sprintf("source = $%d", idx))
		args = append(args, f.Source)
		idx++
	}
	if f.OwnerUserID != "" {
		where = append(where, fmt.Sprintf("owner_user_id = $%d", idx))
		args = append(args, f.OwnerUserID)
		idx++
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.q.QueryRowContext(ctx, `select count(*) from leads where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, translateErr(err)
	}

	limit, offset := pageWindow(f.Page, f.Limit)
	query := fmt.Sprintf(`
		select `+leadColumns+`
		from leads
		where %s
		order by created_at desc, id desc
		limit $%d offset $%d
	`, cond, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateErr(err)
	}
	defer rows.Close()

	var leads []*crm.Lead
	for rows.Next() {
		var (
			l                     crm.Lead
			company, email, phone sql.NullString
		)
		err := rows.Scan(&l.ID, &l.OrganizationID, &l.OwnerUserID, &l.Name, &company, &email, &phone,
			&l.Source, &l.Status, &l.EstimatedValue, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return nil, 0, translateErr(err)
		}
		l.Company, l.Email, l.Phone = company.String, email.String, phone.String
		leads = append(leads, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

type projectStore struct {
	q querier
}

const projectColumns = `id, organization_id, name, description, status, member_ids, created_at, updated_at`

func (s *projectStore) Create(ctx context.Context, p *crm.Project) error {
	members, err := marshalStrings(p.MemberIDs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		insert into projects (id, organization_id, name, description, status, member_ids, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, p.ID, p.OrganizationID, p.Name, nullString(p.Description), p.Status, members, p.CreatedAt, p.UpdatedAt)
	return translateErr(err)
}

func (s *projectStore) Find(ctx context.Context, orgID, id string) (*crm.Project, error) {
	row := s.q.QueryRowContext(ctx, `
		select `+projectColumns+`
		from projects
		where organization_id = $1 and id = $2
	`, orgID, id)
	var (
		p       crm.Project
		desc    sql.NullString
		members []byte
	)
	err := row.Scan(&p.ID, &p.OrganizationID, &p.Name, &desc, &p.Status, &members, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	p.Description = desc.String
	if err := unmarshalStrings(members, &p.MemberIDs); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *projectStore) Update(ctx context.Context, p *crm.Project) error {
	members, err := marshalStrings(p.MemberIDs)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		update projects
		set name = $2, description = $3, status = $4, member_ids = $5, updated_at = $6
		where id = $1
	`, p.ID, p.Name, nullString(p.Description), p.Status, members, p.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *projectStore) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.q.ExecContext(ctx, `
		delete from projects where organization_id = $1 and id = $2
	`, orgID, id)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *projectStore) List(ctx context.Context, orgID string, f crm.ProjectFilter) ([]*crm.Project, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}
	idx := 2
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(name ilike $%d or description ilike $%d)", idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.MemberID != "" {
		memberJSON, err := marshalStrings([]string{f.MemberID})
		if err != nil {
			return nil, 0, err
		}
		where = append(where, fmt.Sprintf("member_ids @> $%d", idx))
		args = append(args, memberJSON)
		idx++
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.q.QueryRowContext(ctx, `select count(*) from projects where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, translateErr(err)
	}

	limit, offset := pageWindow(f.Page, f.Limit)
	query := fmt.Sprintf(`
		select `+projectColumns+`
		from projects
		where %s
		order by created_at desc, id desc
		limit $%d offset $%d
	`, cond, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateErr(err)
	}
	defer rows.Close()

	var projects []*crm.Project
	for rows.Next() {
		var (
			p       crm.Project
			desc    sql.NullString
			members []byte
		)
		err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &desc, &p.Status, &members, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, 0, translateErr(err)
		}
		p.Description = desc.String
		if err := unmarshalStrings(members, &p.MemberIDs); err != nil {
			return nil, 0, err
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return projects, total, nil
}

type taskStore struct {
	q querier
}

const taskColumns = `id, organization_id, project_id, lead_id, title, description, status, priority, assignee_user_id, due_at, created_at, updated_at`

func (s *taskStore) Create(ctx context.Context, t *crm.Task) error {
	_, err := s.q.ExecContext(ctx, `
		insert into tasks (id, organization_id, project_id, lead_id, title, description, status, priority, assignee_user_id, due_at, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, t.ID, t.OrganizationID, nullString(t.ProjectID), nullString(t.LeadID), t.Title, nullString(t.Description),
		t.Status, t.Priority, nullString(t.AssigneeUserID), t.DueAt, t.CreatedAt, t.UpdatedAt)
	return translateErr(err)
}

func (s *taskStore) Find(ctx context.Context, orgID, id string) (*crm.Task, error) {
	row := s.q.QueryRowContext(ctx, `
		select `+taskColumns+`
		from tasks
		where organization_id = $1 and id = $2
	`, orgID, id)
	return scanTask(row.Scan)
}

func (s *taskStore) Update(ctx context.Context, t *crm.Task) error {
	res, err := s.q.ExecContext(ctx, `
		update tasks
		set project_id = $2, lead_id = $3, title = $4, description = $5, status = $6,
			priority = $7, assignee_user_id = $8, due_at = $9, updated_at = $10
		where id = $1
	`, t.ID, nullString(t.ProjectID), nullString(t.LeadID), t.Title, nullString(t.Description),
		t.Status, t.Priority, nullString(t.AssigneeUserID), t.DueAt, t.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *taskStore) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.q.ExecContext(ctx, `
		delete from tasks where organization_id = $1 and id = $2
	`, orgID, id)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *taskStore) List(ctx context.Context, orgID string, f crm.TaskFilter) ([]*crm.Task, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}
	idx := 2
	if f.ProjectID != "" {
		where = append(where, fmt.Sprintf("project_id = $%d", idx))
		args = append(args, f.ProjectID)
		idx++
	}
	if f.LeadID != "" {
		where = append(where, fmt.Sprintf("lead_id = $%d", idx))
		args = append(args, f.LeadID)
		idx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.Priority != "" {
		where = append(where, fmt.Sprintf("priority = $%d", idx))
		args = append(args, f.Priority)
		idx++
	}
	if f.AssigneeID != "" {
		where = append(where, fmt.Sprintf("assignee_user_id = $%d", idx))
		args = append(args, f.AssigneeID)
		idx++
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.q.QueryRowContext(ctx, `select count(*) from tasks where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, translateErr(err)
	}

	limit, offset := pageWindow(f.Page, f.Limit)
	query := fmt.Sprintf(`
		select `+taskColumns+`
		from tasks
		where %s
		order by created_at desc, id desc
		limit $%d offset $%d
	`, cond, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateErr(err)
	}
	defer rows.Close()

	var tasks []*crm.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return tasks, total, nil
}

func scanTask(scan func(...any) error) (*crm.Task, error) {
	var (
		t                             crm.Task
		projectID, leadID, desc, asgn sql.NullString
		due                           sql.NullTime
	)
	err := scan(&t.ID, &t.OrganizationID, &projectID, &leadID, &t.Title, &desc,
		&t.Status, &t.Priority, &asgn, &due, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	t.ProjectID = projectID.String
	t.LeadID = leadID.String
	t.Description = desc.String
	t.AssigneeUserID = asgn.String
	t.DueAt = nullTime(due)
	return &t, nil
}

type noteStore struct {
	q querier
}

const noteColumns = `id, organization_id, author_user_id, entity_type, entity_id, body, created_at, updated_at`

func (s *noteStore) Create(ctx context.Context, n *crm.Note) error {
	_, err := s.q.ExecContext(ctx, `
		insert into notes (id, organization_id, author_user_id, entity_type, entity_id, body, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, n.ID, n.OrganizationID, n.AuthorUserID, n.EntityType, n.EntityID, n.Body, n.CreatedAt, n.UpdatedAt)
	return translateErr(err)
}

func (s *noteStore) Find(ctx context.Context, orgID, id string) (*crm.Note, error) {
	var n crm.Note
	err := s.q.QueryRowContext(ctx, `
		select `+noteColumns+`
		from notes
		where organization_id = $1 and id = $2
	`, orgID, id).Scan(&n.ID, &n.OrganizationID, &n.AuthorUserID, &n.EntityType, &n.EntityID, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &n, nil
}

func (s *noteStore) Update(ctx context.Context, n *crm.Note) error {
	res, err := s.q.ExecContext(ctx, `
		update notes set body = $2, updated_at = $3 where id = $1
	`, n.ID, n.Body, n.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *noteStore) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.q.ExecContext(ctx, `
		delete from notes where organization_id = $1 and id = $2
	`, orgID, id)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *noteStore) List(ctx context.Context, orgID string, f crm.NoteFilter) ([]*crm.Note, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}
	idx := 2
	if f.EntityType != "" {
		where = append(where, fmt.Sprintf("entity_type = $%d", idx))
		args = append(args, f.EntityType)
		idx++
	}
	if f.EntityID != "" {
		where = append(where, fmt.Sprintf("entity_id = $%d", idx))
		args = append(args, f.EntityID)
		idx++
	}
	if f.AuthorID != "" {
		where = append(where, fmt.Sprintf("author_user_id = $%d", idx))
		args = append(args, f.AuthorID)
		idx++
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.q.QueryRowContext(ctx, `select count(*) from notes where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, translateErr(err)
	}

	limit, offset := pageWindow(f.Page, f.Limit)
	query := fmt.Sprintf(`
		select `+noteColumns+`
		from notes
		where %s
		order by created_at desc, id desc
		limit $%d offset $%d
	`, cond, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateErr(err)
	}
	defer rows.Close()

	var notes []*crm.Note
	for rows.Next() {
		var n crm.Note
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.AuthorUserID, &n.EntityType, &n.EntityID, &n.Body, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, 0, translateErr(err)
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return notes, total, nil
}

type attachmentStore struct {
	q querier
}

const attachmentColumns = `id, organization_id, uploader_user_id, entity_type, entity_id, file_name, content_type, size_bytes, locator, created_at`

func (s *attachmentStore) Create(ctx context.Context, a *crm.Attachment) error {
	_, err := s.q.ExecContext(ctx, `
		insert into attachments (id, organization_id, uploader_user_id, entity_type, entity_id, file_name, content_type, size_bytes, locator, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, a.ID, a.OrganizationID, a.UploaderUserID, a.EntityType, a.EntityID, a.FileName, a.ContentType, a.SizeBytes, a.Locator, a.CreatedAt)
	return translateErr(err)
}

func (s *attachmentStore) Find(ctx context.Context, orgID, id string) (*crm.Attachment, error) {
	var a crm.Attachment
	err := s.q.QueryRowContext(ctx, `
		select `+attachmentColumns+`
		from attachments
		where organization_id = $1 and id = $2
	`, orgID, id).Scan(&a.ID, &a.OrganizationID, &a.UploaderUserID, &a.EntityType, &a.EntityID,
		&a.FileName, &a.ContentType, &a.SizeBytes, &a.Locator, &a.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &a, nil
}

func (s *attachmentStore) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.q.ExecContext(ctx, `
		delete from attachments where organization_id = $1 and id = $2
	`, orgID, id)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *attachmentStore) ListForEntity(ctx context.Context, orgID, entityType, entityID string) ([]*crm.Attachment, error) {
	rows, err := s.q.QueryContext(ctx, `
		select `+attachmentColumns+`
		from attachments
		where organization_id = $1 and entity_type = $2 and entity_id = $3
		order by created_at desc, id desc
	`, orgID, entityType, entityID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var attachments []*crm.Attachment
	for rows.Next() {
		var a crm.Attachment
		err := rows.Scan(&a.ID, &a.OrganizationID, &a.UploaderUserID, &a.EntityType, &a.EntityID,
			&a.FileName, &a.ContentType, &a.SizeBytes, &a.Locator, &a.CreatedAt)
		if err != nil {
			return nil, translateErr(err)
		}
		attachments = append(attachments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return attachments, nil
}
