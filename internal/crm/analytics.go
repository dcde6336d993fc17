package crm

import (
	"context"
	"fmt"

	"github.com/TaherBala2507/mini-crm/internal/auth"
)

// AnalyticsService exposes the aggregation snapshot. The heavy lifting is a
// handful of GROUP BY queries delegated to the store.
type AnalyticsService struct {
	store Store
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(store Store) (*AnalyticsService, error) {
	if store == nil {
		return nil, fmt.Errorf("crm store is required")
	}
	return &AnalyticsService{store: store}, nil
}

// Overview returns the org-wide aggregation snapshot.
func (s *AnalyticsService) Overview(ctx context.Context, actor auth.Principal) (*Overview, error) {
	if err := actor.RequireAll(auth.PermAnalyticsView); err != nil {
		return nil, err
	}
	return s.store.Analytics().Overview(ctx, actor.User.OrganizationID)
}
