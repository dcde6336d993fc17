package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
)

func newTestAPI() *API {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return New(Options{Log: log, Version: "test"})
}

func TestServiceErrorMapping(t *testing.T) {
	a := newTestAPI()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"unauthorized", fmt.Errorf("%w: bad credentials", apperr.ErrUnauthorized), http.StatusUnauthorized, "unauthorized"},
		{"forbidden", fmt.Errorf("%w: nope", apperr.ErrForbidden), http.StatusForbidden, "forbidden"},
		{"not found", fmt.Errorf("%w: lead not found", apperr.ErrNotFound), http.StatusNotFound, "not_found"},
		{"conflict", fmt.Errorf("%w: duplicate", apperr.ErrConflict), http.StatusConflict, "conflict"},
		{"validation", fmt.Errorf("%w: name is required", apperr.ErrValidation), http.StatusUnprocessableEntity, "validation_error"},
		{"bad request", fmt.Errorf("%w: malformed", apperr.ErrBadRequest), http.StatusBadRequest, "bad_request"},
		{"internal", fmt.Errorf("pg: connection refused"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			a.serviceError(rec, httptest.NewRequest(http.MethodGet, "/v1/leads", nil), tc.err)

			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}
			var body errorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.Code != tc.code {
				t.Fatalf("code = %q, want %q", body.Code, tc.code)
			}
		})
	}
}

func TestServiceErrorHidesInternals(t *testing.T) {
	a := newTestAPI()
	rec := httptest.NewRecorder()
	a.serviceError(rec, httptest.NewRequest(http.MethodGet, "/v1/leads", nil),
		fmt.Errorf("dial tcp 10.0.0.5:5432: connect: connection refused"))

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Error != "internal error" {
		t.Fatalf("internal detail leaked: %q", body.Error)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	decode := func(body, contentType string) error {
		req := httptest.NewRequest(http.MethodPost, "/v1/leads", strings.NewReader(body))
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		var p payload
		return decodeJSON(httptest.NewRecorder(), req, &p)
	}

	if err := decode(`{"name":"Globex"}`, "application/json"); err != nil {
		t.Fatalf("valid body: %v", err)
	}
	if err := decode(`{"name":"Globex"}`, ""); err != nil {
		t.Fatalf("missing content type should be tolerated: %v", err)
	}
	if err := decode(`{"name":"Globex"}`, "text/plain"); err == nil {
		t.Fatalf("wrong content type should be rejected")
	}
	if err := decode(`{"name":"Globex","bogus":1}`, "application/json"); err == nil {
		t.Fatalf("unknown fields should be rejected")
	}
	if err := decode(`{"name":"Globex"}{"name":"Again"}`, "application/json"); err == nil {
		t.Fatalf("trailing data should be rejected")
	}
	if err := decode(`{`, "application/json"); err == nil {
		t.Fatalf("truncated body should be rejected")
	}
}

func TestHealthAndInfoEndpoints(t *testing.T) {
	a := newTestAPI()
	h := a.Handler()

	for _, path := range []string{"/healthz", "/readyz", "/v1/info"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d, want 200", path, rec.Code)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["service"] != "mini-crm" || body["version"] != "test" {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestProtectedRoutesRejectAnonymous(t *testing.T) {
	a := newTestAPI()
	h := a.Handler()

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/v1/leads"},
		{http.MethodGet, "/v1/users"},
		{http.MethodGet, "/v1/analytics/overview"},
		{http.MethodPost, "/v1/auth/logout"},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s = %d, want 401", tc.method, tc.path, rec.Code)
		}
	}
}

func TestQueryHelpers(t *testing.T) {
	if got := pageOr1(0); got != 1 {
		t.Fatalf("pageOr1(0) = %d", got)
	}
	if got := pageOr1(7); got != 7 {
		t.Fatalf("pageOr1(7) = %d", got)
	}
	if got := limitOr20(0); got != 20 {
		t.Fatalf("limitOr20(0) = %d", got)
	}
	if got := limitOr20(101); got != 20 {
		t.Fatalf("limitOr20(101) = %d", got)
	}
	if got := limitOr20(50); got != 50 {
		t.Fatalf("limitOr20(50) = %d", got)
	}
}
