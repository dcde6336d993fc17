package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/auth"
)

// AuthStore backs the identity subsystem. The zero value is not usable; get
// one from DB.Auth().
type AuthStore struct {
	db *sql.DB
	q  querier
}

var _ auth.Store = (*AuthStore)(nil)

// Auth returns the identity-facing store over the pool.
func (d *DB) Auth() *AuthStore { return &AuthStore{db: d.db, q: d.db} }

// InTx runs fn against a transaction-scoped store. Nested calls join the
// ongoing transaction instead of opening another.
func (s *AuthStore) InTx(ctx context.Context, fn func(auth.Store) error) error {
	return inTx(ctx, s.db, s.q, func(q querier) error {
		return fn(&AuthStore{db: s.db, q: q})
	})
}

func (s *AuthStore) Organizations() auth.OrganizationStore { return &orgStore{q: s.q} }
func (s *AuthStore) Users() auth.UserStore                 { return &userStore{q: s.q} }
func (s *AuthStore) Roles() auth.RoleStore                 { return &roleStore{q: s.q} }
func (s *AuthStore) Tokens() auth.TokenStore               { return &tokenStore{q: s.q} }
func (s *AuthStore) Audit() audit.Store                    { return &auditStore{q: s.q} }

type orgStore struct {
	q querier
}

const orgColumns = `id, domain, name, status, settings, created_at, updated_at`

func (s *orgStore) Create(ctx context.Context, org *auth.Organization) error {
	settings, err := marshalMap(org.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		insert into organizations (id, domain, name, status, settings, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7)
	`, org.ID, org.Domain, org.Name, org.Status, settings, org.CreatedAt, org.UpdatedAt)
	return translateErr(err)
}

func (s *orgStore) Find(ctx context.Context, id string) (*auth.Organization, error) {
	return s.scanOne(s.q.QueryRowContext(ctx, `
		select `+orgColumns+`
		from organizations
		where id = $1
	`, id))
}

func (s *orgStore) FindByDomain(ctx context.Context, domain string) (*auth.Organization, error) {
	return s.scanOne(s.q.QueryRowContext(ctx, `
		select `+orgColumns+`
		from organizations
		where domain = $1
	`, domain))
}

func (s *orgStore) Update(ctx context.Context, org *auth.Organization) error {
	settings, err := marshalMap(org.Settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	res, err := s.q.ExecContext(ctx, `
		update organizations
		set domain = $2, name = $3, status = $4, settings = $5, updated_at = $6
		where id = $1
	`, org.ID, org.Domain, org.Name, org.Status, settings, org.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *orgStore) scanOne(row *sql.Row) (*auth.Organization, error) {
	var (
		org auth.Organization
		raw []byte
	)
	err := row.Scan(&org.ID, &org.Domain, &org.Name, &org.Status, &raw, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &org.Settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
	}
	return &org, nil
}

type userStore struct {
	q querier
}

const userColumns = `id, organization_id, name, email, password_hash, status, role_ids, last_login_at, created_at, updated_at`

func (s *userStore) Create(ctx context.Context, u *auth.User) error {
	roleIDs, err := marshalStrings(u.RoleIDs)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, `
		insert into users (id, organization_id, name, email, password_hash, status, role_ids, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.OrganizationID, u.Name, u.Email, u.PasswordHash, u.Status, roleIDs, u.CreatedAt, u.UpdatedAt)
	return translateErr(err)
}

func (s *userStore) Find(ctx context.Context, orgID, id string) (*auth.User, error) {
	return scanUser(s.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where organization_id = $1 and id = $2
	`, orgID, id))
}

func (s *userStore) FindByID(ctx context.Context, id string) (*auth.User, error) {
	return scanUser(s.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where id = $1
	`, id))
}

func (s *userStore) FindByEmail(ctx context.Context, orgID, email string) (*auth.User, error) {
	return scanUser(s.q.QueryRowContext(ctx, `
		select `+userColumns+`
		from users
		where organization_id = $1 and lower(email) = lower($2)
	`, orgID, email))
}

func (s *userStore) Update(ctx context.Context, u *auth.User) error {
	roleIDs, err := marshalStrings(u.RoleIDs)
	if err != nil {
		return err
	}
	res, err := s.q.ExecContext(ctx, `
		update users
		set name = $2, email = $3, password_hash = $4, status = $5, role_ids = $6, updated_at = $7
		where id = $1
	`, u.ID, u.Name, u.Email, u.PasswordHash, u.Status, roleIDs, u.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *userStore) List(ctx context.Context, orgID string, f auth.UserFilter) ([]*auth.User, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}
	idx := 2
	if f.Search != "" {
		where = append(where, fmt.Sprintf("(name ilike $%d or email ilike $%d)", idx, idx))
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.Status != "" {
		where = append(where, fmt.Sprintf("status = $%d", idx))
		args = append(args, f.Status)
		idx++
	}
	if f.RoleID != "" {
		roleJSON, err := marshalStrings([]string{f.RoleID})
		if err != nil {
			return nil, 0, err
		}
		where = append(where, fmt.Sprintf("role_ids @> $%d", idx))
		args = append(args, roleJSON)
		idx++
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.q.QueryRowContext(ctx, `select count(*) from users where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, translateErr(err)
	}

	limit, offset := pageWindow(f.Page, f.Limit)
	query := fmt.Sprintf(`
		select `+userColumns+`
		from users
		where %s
		order by name, id
		limit $%d offset $%d
	`, cond, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateErr(err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		u, err := scanUserRows(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

func (s *userStore) CountWithRole(ctx context.Context, orgID, roleID string) (int, error) {
	roleJSON, err := marshalStrings([]string{roleID})
	if err != nil {
		return 0, err
	}
	var count int
	err = s.q.QueryRowContext(ctx, `
		select count(*)
		from users
		where organization_id = $1 and role_ids @> $2
	`, orgID, roleJSON).Scan(&count)
	return count, translateErr(err)
}

func (s *userStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		update users set last_login_at = $2 where id = $1
	`, userID, at)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func scanUser(row *sql.Row) (*auth.User, error) {
	var (
		u     auth.User
		roles []byte
		last  sql.NullTime
	)
	err := row.Scan(&u.ID, &u.OrganizationID, &u.Name, &u.Email, &u.PasswordHash, &u.Status, &roles, &last, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	if err := unmarshalStrings(roles, &u.RoleIDs); err != nil {
		return nil, err
	}
	u.LastLoginAt = nullTime(last)
	return &u, nil
}

func scanUserRows(rows *sql.Rows) (*auth.User, error) {
	var (
		u     auth.User
		roles []byte
		last  sql.NullTime
	)
	err := rows.Scan(&u.ID, &u.OrganizationID, &u.Name, &u.Email, &u.PasswordHash, &u.Status, &roles, &last, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	if err := unmarshalStrings(roles, &u.RoleIDs); err != nil {
		return nil, err
	}
	u.LastLoginAt = nullTime(last)
	return &u, nil
}

type tokenStore struct {
	q querier
}

func (s *tokenStore) Create(ctx context.Context, tok *auth.Token) error {
	_, err := s.q.ExecContext(ctx, `
		insert into tokens (id, user_id, kind, token_hash, expires_at, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, tok.ID, tok.UserID, tok.Kind, tok.TokenHash, tok.ExpiresAt, tok.CreatedAt)
	return translateErr(err)
}

func (s *tokenStore) FindByHash(ctx context.Context, kind auth.TokenKind, hash string) (*auth.Token, error) {
	var (
		tok     auth.Token
		revoked sql.NullTime
	)
	err := s.q.QueryRowContext(ctx, `
		select id, user_id, kind, token_hash, expires_at, revoked_at, created_at
		from tokens
		where kind = $1 and token_hash = $2
	`, kind, hash).Scan(&tok.ID, &tok.UserID, &tok.Kind, &tok.TokenHash, &tok.ExpiresAt, &revoked, &tok.CreatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	tok.RevokedAt = nullTime(revoked)
	return &tok, nil
}

func (s *tokenStore) Revoke(ctx context.Context, id string, at time.Time) error {
	res, err := s.q.ExecContext(ctx, `
		update tokens set revoked_at = $2 where id = $1 and revoked_at is null
	`, id, at)
	if err != nil {
		return translateErr(err)
	}
	return requireAffected(res)
}

func (s *tokenStore) RevokeAllForUser(ctx context.Context, userID string, kind auth.TokenKind, at time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		update tokens set revoked_at = $3
		where user_id = $1 and kind = $2 and revoked_at is null
	`, userID, kind, at)
	return translateErr(err)
}

// pageWindow converts 1-based page/limit into a bounded limit/offset pair.
func pageWindow(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func requireAffected(res sql.Result) error {
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func marshalMap(m map[string]any) ([]byte, error) {
	if len(m) == 0 {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func marshalStrings(s []string) ([]byte, error) {
	if len(s) == 0 {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func unmarshalStrings(raw []byte, dst *[]string) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
