package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TaherBala2507/mini-crm/internal/auth"
)

type roleStore struct {
	q querier
}

const roleColumns = `id, organization_id, name, description, permissions, is_system, created_at, updated_at`

func (s *roleStore) Create(ctx context.Context, role *auth.Role) error {
	perms, err := marshalPermissions(role.Permissions)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		insert into roles (id, organization_id, name, description, permissions, is_system, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, role.ID, role.OrganizationID, role.Name, nullString(role.Description), perms, role.System, role.CreatedAt, role.UpdatedAt)
	return translateErr(err)
}

func (s *roleStore) Find(ctx context.Context, orgID, id string) (*auth.Role, error) {
	return scanRole(s.q.QueryRowContext(ctx, `
		select `+roleColumns+`
		from roles
		where organization_id = $1 and id = $2
	`, orgID, id))
}

func (s *roleStore) FindByName(ctx context.Context, orgID, name string) (*auth.Role, error) {
	return scanRole(s.q.QueryRowContext(ctx, `
		select `+roleColumns+`
		from roles
		where organization_id = $1 and lower(name) = lower($2)
	`, orgID, name))
}

func (s *roleStore) FindByIDs(ctx context.Context, orgID string, ids []string) ([]*auth.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, orgID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}
	rows, err := s.q.QueryContext(ctx, `
		select `+roleColumns+`
		from roles
		where organization_id = $1 and id in (`+strings.Join(placeholders, ", ")+`)
	`, args...)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var roles []*auth.Role
	for rows.Next() {
		role, err := scanRoleRows(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return roles, nil
}

func (s *roleStore) Update(ctx context.Context, role *auth.Role) error {
	perms, err := marshalPermissions(role.Permissions)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		update roles
		set name = $2, description = $3, permissions = $4, updated_at = $5
		where id = $1
	`, role.ID, role.Name, nullString(role.Description), perms, role.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *roleStore) Delete(ctx context.Context, orgID, id string) error {
	res, err := s.q.ExecContext(ctx, `
		delete from roles where organization_id = $1 and id = $2
	`, orgID, id)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *roleStore) List(ctx context.Context, orgID string, f auth.RoleFilter) ([]*auth.RoleWithUsage, int, error) {
	where := []string{"r.organization_id = $1"}
	args := []any{orgID}
	idx := 2
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(r.name ilike $%d or r.description ilike $%d)", idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.ExcludeSystem {
		where = append(where, "not r.is_system")
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.q.QueryRowContext(ctx, `select count(*) from roles r where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, translateErr(err)
	}

	order := "r.name asc"
	switch f.SortBy {
	case "system":
		order = "r.is_system"
		if f.SortDesc {
			order += " desc"
		}
		order += ", r.name asc"
	case "", "name":
		if f.SortDesc {
			order = "r.name desc"
		}
	}

	limit, offset := pageWindow(f.Page, f.Limit)
	query := fmt.Sprintf(`
		select r.id, r.organization_id, r.name, r.description, r.permissions, r.is_system,
			r.created_at, r.updated_at,
			(select count(*) from users u
				where u.organization_id = r.organization_id
				and u.role_ids @> jsonb_build_array(r.id)) as user_count
		from roles r
		where %s
		order by %s
		limit $%d offset $%d
	`, cond, order, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateErr(err)
	}
	defer rows.Close()

	var roles []*auth.RoleWithUsage
	for rows.Next() {
		var (
			rw    auth.RoleWithUsage
			desc  sql.NullString
			perms []byte
		)
		err := rows.Scan(&rw.ID, &rw.OrganizationID, &rw.Name, &desc, &perms, &rw.System,
			&rw.CreatedAt, &rw.UpdatedAt, &rw.UserCount)
		if err != nil {
			return nil, 0, translateErr(err)
		}
		rw.Description = desc.String
		if err := unmarshalPermissions(perms, &rw.Permissions); err != nil {
			return nil, 0, err
		}
		roles = append(roles, &rw)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return roles, total, nil
}

func scanRole(row *sql.Row) (*auth.Role, error) {
	var (
		role  auth.Role
		desc  sql.NullString
		perms []byte
	)
	err := row.Scan(&role.ID, &role.OrganizationID, &role.Name, &desc, &perms, &role.System, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	role.Description = desc.String
	if err := unmarshalPermissions(perms, &role.Permissions); err != nil {
		return nil, err
	}
	return &role, nil
}

func scanRoleRows(rows *sql.Rows) (*auth.Role, error) {
	var (
		role  auth.Role
		desc  sql.NullString
		perms []byte
	)
	err := rows.Scan(&role.ID, &role.OrganizationID, &role.Name, &desc, &perms, &role.System, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	role.Description = desc.String
	if err := unmarshalPermissions(perms, &role.Permissions); err != nil {
		return nil, err
	}
	return &role, nil
}

func marshalPermissions(perms []auth.Permission) ([]byte, error) {
	if len(perms) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(perms)
}

func unmarshalPermissions(raw []byte, dst *[]auth.Permission) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
