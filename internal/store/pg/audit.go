package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/TaherBala2507/mini-crm/internal/audit"
)

// auditStore is append-only; no update or delete statements exist here on
// purpose.
type auditStore struct {
	q querier
}

var _ audit.Store = (*auditStore)(nil)

func (s *auditStore) Append(ctx context.Context, e *audit.Entry) error {
	metadata, err := marshalMap(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.q.ExecContext(ctx, `
		insert into audit_logs (id, organization_id, actor_user_id, action, entity_type, entity_id,
			before_state, after_state, metadata, ip, user_agent, request_id, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, e.ID, e.OrganizationID, nullString(e.ActorUserID), e.Action, e.EntityType, e.EntityID,
		nullRaw(e.Before), nullRaw(e.After), metadata,
		nullString(e.IP), nullString(e.UserAgent), nullString(e.RequestID), e.CreatedAt)
	return translateErr(err)
}

func (s *auditStore) List(ctx context.Context, orgID string, f audit.Filter) ([]*audit.Entry, int, error) {
	where := []string{"organization_id = $1"}
	args := []any{orgID}
	idx := 2
	if f.Action != "" {
		where = append(where, fmt.Sprintf("action = $%d", idx))
		args = append(args, f.Action)
		idx++
	}
	if f.EntityType != "" {
		where = append(where, fmt.Sprintf("entity_type = $%d", idx))
		args = append(args, f.EntityType)
		idx++
	}
	if f.EntityID != "" {
		where = append(where, fmt.Sprintf("entity_id = $%d", idx))
		args = append(args, f.EntityID)
		idx++
	}
	if f.ActorID != "" {
		where = append(where, fmt.Sprintf("actor_user_id = $%d", idx))
		args = append(args, f.ActorID)
		idx++
	}
	cond := strings.Join(where, " and ")

	var total int
	if err := s.q.QueryRowContext(ctx, `select count(*) from audit_logs where `+cond, args...).Scan(&total); err != nil {
		return nil, 0, translateErr(err)
	}

	limit, offset := pageWindow(f.Page, f.Limit)
	query := fmt.Sprintf(`
		select id, organization_id, actor_user_id, action, entity_type, entity_id,
			before_state, after_state, metadata, ip, user_agent, request_id, created_at
		from audit_logs
		where %s
		order by created_at desc, id desc
		limit $%d offset $%d
	`, cond, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, translateErr(err)
	}
	defer rows.Close()

	var entries []*audit.Entry
	for rows.Next() {
		var (
			e                       audit.Entry
			actor, ip, ua, reqID    sql.NullString
			before, after, metadata []byte
		)
		err := rows.Scan(&e.ID, &e.OrganizationID, &actor, &e.Action, &e.EntityType, &e.EntityID,
			&before, &after, &metadata, &ip, &ua, &reqID, &e.CreatedAt)
		if err != nil {
			return nil, 0, translateErr(err)
		}
		e.ActorUserID = actor.String
		e.IP = ip.String
		e.UserAgent = ua.String
		e.RequestID = reqID.String
		e.Before = json.RawMessage(before)
		e.After = json.RawMessage(after)
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, 0, fmt.Errorf("decode metadata: %w", err)
			}
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

func nullRaw(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
