package auth

import (
	"context"

	"github.com/TaherBala2507/mini-crm/internal/audit"
)

// ListAuditLog pages through the organization's audit trail, newest first.
func (s *Service) ListAuditLog(ctx context.Context, actor Principal, f audit.Filter) ([]*audit.Entry, int, error) {
	if err := actor.RequireAll(PermAuditView); err != nil {
		return nil, 0, err
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.store.Audit().List(ctx, actor.User.OrganizationID, f)
}
