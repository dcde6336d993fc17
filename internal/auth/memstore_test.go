package auth

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
)

// memStore is an in-memory Store for service tests. InTx runs the closure
// against the same store; transactional rollback is not simulated.
type memStore struct {
	orgs    map[string]*Organization
	users   map[string]*User
	roles   map[string]*Role
	tokens  map[string]*Token
	entries []*audit.Entry
}

func newMemStore() *memStore {
	return &memStore{
		orgs:   map[string]*Organization{},
		users:  map[string]*User{},
		roles:  map[string]*Role{},
		tokens: map[string]*Token{},
	}
}

func (m *memStore) InTx(ctx context.Context, fn func(Store) error) error { return fn(m) }

func (m *memStore) Organizations() OrganizationStore { return (*memOrgs)(m) }
func (m *memStore) Users() UserStore                 { return (*memUsers)(m) }
func (m *memStore) Roles() RoleStore                 { return (*memRoles)(m) }
func (m *memStore) Tokens() TokenStore               { return (*memTokens)(m) }
func (m *memStore) Audit() audit.Store               { return (*memAudit)(m) }

type memOrgs memStore

func (m *memOrgs) Create(_ context.Context, org *Organization) error {
	for _, existing := range m.orgs {
		if strings.EqualFold(existing.Domain, org.Domain) {
			return apperr.ErrConflict
		}
	}
	cp := *org
	m.orgs[org.ID] = &cp
	return nil
}

func (m *memOrgs) Find(_ context.Context, id string) (*Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *org
	return &cp, nil
}

func (m *memOrgs) FindByDomain(_ context.Context, domain string) (*Organization, error) {
	for _, org := range m.orgs {
		if strings.EqualFold(org.Domain, domain) {
			cp := *org
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memOrgs) Update(_ context.Context, org *Organization) error {
	if _, ok := m.orgs[org.ID]; !ok {
		return apperr.ErrNotFound
	}
	cp := *org
	m.orgs[org.ID] = &cp
	return nil
}

type memUsers memStore

func (m *memUsers) Create(_ context.Context, u *User) error {
	for _, existing := range m.users {
		if existing.OrganizationID == u.OrganizationID && strings.EqualFold(existing.Email, u.Email) {
			return apperr.ErrConflict
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) Find(_ context.Context, orgID, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok || u.OrganizationID != orgID {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByID(_ context.Context, id string) (*User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUsers) FindByEmail(_ context.Context, orgID, email string) (*User, error) {
	for _, u := range m.users {
		if u.OrganizationID == orgID && strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memUsers) Update(_ context.Context, u *User) error {
	if _, ok := m.users[u.ID]; !ok {
		return apperr.ErrNotFound
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) List(_ context.Context, orgID string, f UserFilter) ([]*User, int, error) {
	var matched []*User
	for _, u := range m.users {
		if u.OrganizationID != orgID {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(u.Name), needle) &&
				!strings.Contains(strings.ToLower(u.Email), needle) {
				continue
			}
		}
		if f.RoleID != "" && !containsString(u.RoleIDs, f.RoleID) {
			continue
		}
		cp := *u
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return paginate(matched, f.Page, f.Limit)
}

func (m *memUsers) CountWithRole(_ context.Context, orgID, roleID string) (int, error) {
	count := 0
	for _, u := range m.users {
		if u.OrganizationID == orgID && containsString(u.RoleIDs, roleID) {
			count++
		}
	}
	return count, nil
}

func (m *memUsers) RecordLogin(_ context.Context, userID string, at time.Time) error {
	u, ok := m.users[userID]
	if !ok {
		return apperr.ErrNotFound
	}
	u.LastLoginAt = &at
	return nil
}

type memRoles memStore

func (m *memRoles) Create(_ context.Context, role *Role) error {
	for _, existing := range m.roles {
		if existing.OrganizationID == role.OrganizationID && strings.EqualFold(existing.Name, role.Name) {
			return apperr.ErrConflict
		}
	}
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Find(_ context.Context, orgID, id string) (*Role, error) {
	role, ok := m.roles[id]
	if !ok || role.OrganizationID != orgID {
		return nil, apperr.ErrNotFound
	}
	cp := *role
	return &cp, nil
}

func (m *memRoles) FindByName(_ context.Context, orgID, name string) (*Role, error) {
	for _, role := range m.roles {
		if role.OrganizationID == orgID && strings.EqualFold(role.Name, name) {
			cp := *role
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memRoles) FindByIDs(_ context.Context, orgID string, ids []string) ([]*Role, error) {
	var out []*Role
	for _, id := range ids {
		if role, ok := m.roles[id]; ok && role.OrganizationID == orgID {
			cp := *role
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRoles) Update(_ context.Context, role *Role) error {
	if _, ok := m.roles[role.ID]; !ok {
		return apperr.ErrNotFound
	}
	cp := *role
	m.roles[role.ID] = &cp
	return nil
}

func (m *memRoles) Delete(_ context.Context, orgID, id string) error {
	role, ok := m.roles[id]
	if !ok || role.OrganizationID != orgID {
		return apperr.ErrNotFound
	}
	delete(m.roles, id)
	return nil
}

func (m *memRoles) List(_ context.Context, orgID string, f RoleFilter) ([]*RoleWithUsage, int, error) {
	var matched []*RoleWithUsage
	for _, role := range m.roles {
		if role.OrganizationID != orgID {
			continue
		}
		if f.ExcludeSystem && role.System {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(role.Name), needle) &&
				!strings.Contains(strings.ToLower(role.Description), needle) {
				continue
			}
		}
		count, _ := (*memUsers)(m).CountWithRole(context.Background(), orgID, role.ID)
		matched = append(matched, &RoleWithUsage{Role: *role, UserCount: count})
	}
	sort.Slice(matched, func(i, j int) bool {
		if f.SortDesc {
			return matched[i].Name > matched[j].Name
		}
		return matched[i].Name < matched[j].Name
	})
	return paginate(matched, f.Page, f.Limit)
}

type memTokens memStore

func (m *memTokens) Create(_ context.Context, tok *Token) error {
	cp := *tok
	m.tokens[tok.ID] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, kind TokenKind, hash string) (*Token, error) {
	for _, tok := range m.tokens {
		if tok.Kind == kind && tok.TokenHash == hash {
			cp := *tok
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotFound
}

func (m *memTokens) Revoke(_ context.Context, id string, at time.Time) error {
	tok, ok := m.tokens[id]
	if !ok || tok.RevokedAt != nil {
		return apperr.ErrNotFound
	}
	tok.RevokedAt = &at
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string, kind TokenKind, at time.Time) error {
	for _, tok := range m.tokens {
		if tok.UserID == userID && tok.Kind == kind && tok.RevokedAt == nil {
			t := at
			tok.RevokedAt = &t
		}
	}
	return nil
}

type memAudit memStore

func (m *memAudit) Append(_ context.Context, e *audit.Entry) error {
	cp := *e
	m.entries = append(m.entries, &cp)
	return nil
}

func (m *memAudit) List(_ context.Context, orgID string, f audit.Filter) ([]*audit.Entry, int, error) {
	var matched []*audit.Entry
	for _, e := range m.entries {
		if e.OrganizationID != orgID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		if f.EntityType != "" && e.EntityType != f.EntityType {
			continue
		}
		matched = append(matched, e)
	}
	return paginate(matched, f.Page, f.Limit)
}

func containsString(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

func paginate[T any](items []*T, page, limit int) ([]*T, int, error) {
	total := len(items)
	if limit <= 0 {
		limit = 20
	}
	if page < 1 {
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

// lastAudit returns the most recent entry or nil.
func (m *memStore) lastAudit() *audit.Entry {
	if len(m.entries) == 0 {
		return nil
	}
	return m.entries[len(m.entries)-1]
}
