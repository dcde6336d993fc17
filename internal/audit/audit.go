// Package audit appends immutable who-did-what-when records for every
// state-changing operation. Entries participate in the same transaction as
// the mutation they document.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/TaherBala2507/mini-crm/internal/ids"
	"github.com/TaherBala2507/mini-crm/internal/obs"
)

// Entry is one immutable audit record. Before/After hold optional entity
// snapshots; Metadata is free-form.
type Entry struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organization_id"`
	ActorUserID    string          `json:"actor_user_id,omitempty"`
	Action         string          `json:"action"`
	EntityType     string          `json:"entity_type"`
	EntityID       string          `json:"entity_id"`
	Before         json.RawMessage `json:"before,omitempty"`
	After          json.RawMessage `json:"after,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
	IP             string          `json:"ip,omitempty"`
	UserAgent      string          `json:"user_agent,omitempty"`
	RequestID      string          `json:"request_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// Filter narrows and pages audit listings.
type Filter struct {
	Action     string
	EntityType string
	EntityID   string
	ActorID    string
	Page       int
	Limit      int
}

// Store persists entries. Append-only: no update or delete exists.
type Store interface {
	Append(ctx context.Context, e *Entry) error
	List(ctx context.Context, orgID string, f Filter) ([]*Entry, int, error)
}

type requestInfoKey struct{}

// RequestInfo carries HTTP request attribution into audit entries.
type RequestInfo struct {
	IP        string
	UserAgent string
	RequestID string
}

// WithRequestInfo attaches request attribution to the context.
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext extracts request attribution if present.
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	if ctx == nil {
		return RequestInfo{}, false
	}
	v, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return v, ok
}

// Record fills identifiers, timestamps and request attribution, then appends
// the entry through the given store. Callers inside a transaction pass the
// tx-scoped store so the entry commits with the mutation.
func Record(ctx context.Context, store Store, e Entry) error {
	if store == nil {
		return errors.New("audit: store is required")
	}
	e.Action = strings.TrimSpace(e.Action)
	if e.Action == "" {
		return errors.New("audit: action is required")
	}
	if e.OrganizationID == "" {
		return errors.New("audit: organization id is required")
	}
	if e.ID == "" {
		e.ID = ids.New()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	if info, ok := RequestInfoFromContext(ctx); ok {
		if e.IP == "" {
			e.IP = info.IP
		}
		if e.UserAgent == "" {
			e.UserAgent = info.UserAgent
		}
		if e.RequestID == "" {
			e.RequestID = info.RequestID
		}
	}
	if err := store.Append(ctx, &e); err != nil {
		obs.CountAuditFailure()
		return err
	}
	return nil
}

// Snapshot marshals an entity for the Before/After fields. A marshal failure
// yields nil rather than blocking the audit write.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return data
}
