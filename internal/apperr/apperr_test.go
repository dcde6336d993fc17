package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrUnauthorized, "unauthorized"},
		{ErrForbidden, "forbidden"},
		{ErrNotFound, "not_found"},
		{ErrConflict, "conflict"},
		{ErrValidation, "validation_error"},
		{ErrBadRequest, "bad_request"},
		{errors.New("anything else"), "internal"},
	}
	for _, tc := range cases {
		if got := Code(tc.err); got != tc.want {
			t.Fatalf("Code(%v) = %q, want %q", tc.err, got, tc.want)
		}
		wrapped := fmt.Errorf("context: %w", tc.err)
		if got := Code(wrapped); got != tc.want {
			t.Fatalf("Code(wrapped %v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
