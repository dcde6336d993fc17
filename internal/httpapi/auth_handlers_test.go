package httpapi

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/auth"
)

// forgotStore backs the forgot-password flow with one org and one account.
// Unused store methods come from the embedded interfaces and are never hit.
type forgotStore struct {
	org    *auth.Organization
	user   *auth.User
	minted []*auth.Token
}

func (s *forgotStore) InTx(ctx context.Context, fn func(auth.Store) error) error { return fn(s) }

func (s *forgotStore) Organizations() auth.OrganizationStore { return &forgotOrgs{parent: s} }
func (s *forgotStore) Users() auth.UserStore                 { return &forgotUsers{parent: s} }
func (s *forgotStore) Roles() auth.RoleStore                 { return nil }
func (s *forgotStore) Tokens() auth.TokenStore               { return &forgotTokens{parent: s} }
func (s *forgotStore) Audit() audit.Store                    { return forgotAudit{} }

type forgotOrgs struct {
	auth.OrganizationStore
	parent *forgotStore
}

func (s *forgotOrgs) FindByDomain(_ context.Context, domain string) (*auth.Organization, error) {
	if s.parent.org != nil && s.parent.org.Domain == domain {
		return s.parent.org, nil
	}
	return nil, apperr.ErrNotFound
}

type forgotUsers struct {
	auth.UserStore
	parent *forgotStore
}

func (s *forgotUsers) FindByEmail(_ context.Context, orgID, email string) (*auth.User, error) {
	u := s.parent.user
	if u != nil && u.OrganizationID == orgID && u.Email == email {
		return u, nil
	}
	return nil, apperr.ErrNotFound
}

type forgotTokens struct {
	auth.TokenStore
	parent *forgotStore
}

func (s *forgotTokens) Create(_ context.Context, tok *auth.Token) error {
	s.parent.minted = append(s.parent.minted, tok)
	return nil
}

type forgotAudit struct{}

func (forgotAudit) Append(context.Context, *audit.Entry) error { return nil }
func (forgotAudit) List(context.Context, string, audit.Filter) ([]*audit.Entry, int, error) {
	return nil, 0, nil
}

func TestForgotPasswordDoesNotLeakToken(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	tokens, err := auth.NewTokenManager("test-secret-0123456789")
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	store := &forgotStore{
		org: &auth.Organization{ID: "o-1", Domain: "acme.example.com", Name: "Acme", Status: auth.OrgStatusActive},
		user: &auth.User{
			ID:             "u-1",
			OrganizationID: "o-1",
			Email:          "ada@acme.example.com",
			Status:         auth.UserStatusActive,
		},
	}
	svc, err := auth.NewService(store, tokens, log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	h := New(Options{Auth: svc, Log: log, Version: "test"}).Handler()

	post := func(email string) *httptest.ResponseRecorder {
		body := `{"domain":"acme.example.com","email":"` + email + `"}`
		req := httptest.NewRequest(http.MethodPost, "/v1/auth/password/forgot", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr
	}

	known := post("ada@acme.example.com")
	unknown := post("nobody@acme.example.com")

	if known.Code != http.StatusAccepted {
		t.Fatalf("known account: status = %d, want 202", known.Code)
	}
	if unknown.Code != http.StatusAccepted {
		t.Fatalf("unknown account: status = %d, want 202", unknown.Code)
	}
	if !bytes.Equal(known.Body.Bytes(), unknown.Body.Bytes()) {
		t.Fatalf("responses differ: known=%q unknown=%q", known.Body.String(), unknown.Body.String())
	}
	if strings.Contains(known.Body.String(), "token") {
		t.Fatalf("response carries token material: %q", known.Body.String())
	}
	if len(store.minted) != 1 {
		t.Fatalf("minted %d reset tokens for the known account, want 1", len(store.minted))
	}
	if strings.Contains(known.Body.String(), store.minted[0].TokenHash) {
		t.Fatalf("response leaks token digest")
	}
}
