package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/auth"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		db.Close()
	})
	return NewWithDB(db), mock
}

func TestTranslateErr(t *testing.T) {
	if translateErr(nil) != nil {
		t.Fatalf("nil must stay nil")
	}
	if err := translateErr(fmt.Errorf("wrap: %w", sql.ErrNoRows)); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("no rows should map to not found, got %v", err)
	}
	if err := translateErr(&pgconn.PgError{Code: pgErrUniqueViolation}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("23505 should map to conflict, got %v", err)
	}
	if err := translateErr(&pgconn.PgError{Code: pgErrForeignKeyViolation}); !errors.Is(err, apperr.ErrBadRequest) {
		t.Fatalf("23503 should map to bad request, got %v", err)
	}
	opaque := errors.New("connection reset")
	if err := translateErr(opaque); err != opaque {
		t.Fatalf("unknown errors must pass through, got %v", err)
	}
}

func TestPageWindow(t *testing.T) {
	cases := []struct {
		page, limit int
		wantLimit   int
		wantOffset  int
	}{
		{0, 0, 20, 0},
		{1, 20, 20, 0},
		{3, 10, 10, 20},
		{1, 500, 100, 0},
		{-5, -5, 20, 0},
	}
	for _, tc := range cases {
		limit, offset := pageWindow(tc.page, tc.limit)
		if limit != tc.wantLimit || offset != tc.wantOffset {
			t.Fatalf("pageWindow(%d, %d) = (%d, %d), want (%d, %d)",
				tc.page, tc.limit, limit, offset, tc.wantLimit, tc.wantOffset)
		}
	}
}

func TestFindByEmailScansUser(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectQuery(`select .+ from users\s+where organization_id = \$1 and lower\(email\) = lower\(\$2\)`).
		WithArgs("o-1", "ada@acme.test").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "name", "email", "password_hash",
			"status", "role_ids", "last_login_at", "created_at", "updated_at",
		}).AddRow("u-1", "o-1", "Ada", "ada@acme.test", "hash",
			"active", []byte(`["r-1","r-2"]`), nil, now, now))

	user, err := db.Auth().Users().FindByEmail(context.Background(), "o-1", "ada@acme.test")
	if err != nil {
		t.Fatalf("FindByEmail: %v", err)
	}
	if user.ID != "u-1" || len(user.RoleIDs) != 2 || user.RoleIDs[0] != "r-1" {
		t.Fatalf("unexpected user: %+v", user)
	}
	if user.LastLoginAt != nil {
		t.Fatalf("null last_login_at should stay nil")
	}
}

func TestFindByEmailMissingUser(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`select .+ from users`).
		WithArgs("o-1", "nobody@acme.test").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "organization_id", "name", "email", "password_hash",
			"status", "role_ids", "last_login_at", "created_at", "updated_at",
		}))

	_, err := db.Auth().Users().FindByEmail(context.Background(), "o-1", "nobody@acme.test")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`insert into users`).
		WillReturnError(&pgconn.PgError{Code: pgErrUniqueViolation})

	err := db.Auth().Users().Create(context.Background(), &auth.User{
		ID: "u-1", OrganizationID: "o-1", Name: "Ada", Email: "ada@acme.test",
	})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestRevokeSpentTokenIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	// revoked_at is already set, so the guarded update touches no rows
	mock.ExpectExec(`update tokens set revoked_at = \$2 where id = \$1 and revoked_at is null`).
		WithArgs("t-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.Auth().Tokens().Revoke(context.Background(), "t-1", time.Now())
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found for an already revoked token, got %v", err)
	}
}

func TestInTxCommitsAndRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec(`update users set last_login_at`).
		WithArgs("u-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.Auth().InTx(context.Background(), func(tx auth.Store) error {
		return tx.Users().RecordLogin(context.Background(), "u-1", time.Now())
	})
	if err != nil {
		t.Fatalf("InTx: %v", err)
	}

	mock.ExpectBegin()
	mock.ExpectRollback()

	boom := errors.New("boom")
	err = db.Auth().InTx(context.Background(), func(auth.Store) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error to surface, got %v", err)
	}
}

func TestNestedInTxJoins(t *testing.T) {
	db, mock := newMockDB(t)

	// one begin/commit pair even though InTx nests
	mock.ExpectBegin()
	mock.ExpectExec(`update users set last_login_at`).
		WithArgs("u-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.Auth().InTx(context.Background(), func(outer auth.Store) error {
		return outer.InTx(context.Background(), func(inner auth.Store) error {
			return inner.Users().RecordLogin(context.Background(), "u-1", time.Now())
		})
	})
	if err != nil {
		t.Fatalf("nested InTx: %v", err)
	}
}

func TestCountWithRoleUsesContainment(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery(`select count\(\*\)\s+from users\s+where organization_id = \$1 and role_ids @> \$2`).
		WithArgs("o-1", []byte(`["r-1"]`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	count, err := db.Auth().Users().CountWithRole(context.Background(), "o-1", "r-1")
	if err != nil {
		t.Fatalf("CountWithRole: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}
}

func TestMarshalStrings(t *testing.T) {
	empty, err := marshalStrings(nil)
	if err != nil || string(empty) != "[]" {
		t.Fatalf("nil slice should marshal to [], got %s (%v)", empty, err)
	}
	full, err := marshalStrings([]string{"a", "b"})
	if err != nil || string(full) != `["a","b"]` {
		t.Fatalf("unexpected encoding %s (%v)", full, err)
	}

	var out []string
	if err := unmarshalStrings(nil, &out); err != nil || out != nil {
		t.Fatalf("empty raw should leave dst untouched")
	}
	if err := unmarshalStrings([]byte(`["x"]`), &out); err != nil || len(out) != 1 {
		t.Fatalf("round trip failed: %v %v", out, err)
	}
}
