package pg

import (
	"context"

	"github.com/TaherBala2507/mini-crm/internal/crm"
)

// analyticsStore runs the aggregation queries behind the overview snapshot.
// Counts are computed live; nothing is materialized.
type analyticsStore struct {
	q querier
}

var _ crm.AnalyticsStore = (*analyticsStore)(nil)

func (s *analyticsStore) Overview(ctx context.Context, orgID string) (*crm.Overview, error) {
	ov := &crm.Overview{
		LeadsByStatus: map[string]int{},
		LeadsBySource: map[string]int{},
		TasksByStatus: map[string]int{},
	}

	leadsTotal, byStatus, bySource, err := s.leadBreakdown(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ov.TotalLeads = leadsTotal
	ov.LeadsByStatus = byStatus
	ov.LeadsBySource = bySource

	if err := s.q.QueryRowContext(ctx, `
		select count(*) from projects where organization_id = $1
	`, orgID).Scan(&ov.TotalProjects); err != nil {
		return nil, translateErr(err)
	}

	tasksTotal, taskStatus, err := s.taskBreakdown(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ov.TotalTasks = tasksTotal
	ov.TasksByStatus = taskStatus

	openByProject, err := s.openTasksByProject(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ov.OpenTasksByProject = openByProject

	return ov, nil
}

func (s *analyticsStore) leadBreakdown(ctx context.Context, orgID string) (int, map[string]int, map[string]int, error) {
	rows, err := s.q.QueryContext(ctx, `
		select status, source, count(*)
		from leads
		where organization_id = $1
		group by status, source
	`, orgID)
	if err != nil {
		return 0, nil, nil, translateErr(err)
	}
	defer rows.Close()

	total := 0
	byStatus := map[string]int{}
	bySource := map[string]int{}
	for rows.Next() {
		var (
			status, source string
			count          int
		)
		if err := rows.Scan(&status, &source, &count); err != nil {
			return 0, nil, nil, translateErr(err)
		}
		total += count
		byStatus[status] += count
		bySource[source] += count
	}
	if err := rows.Err(); err != nil {
		return 0, nil, nil, err
	}
	return total, byStatus, bySource, nil
}

func (s *analyticsStore) taskBreakdown(ctx context.Context, orgID string) (int, map[string]int, error) {
	rows, err := s.q.QueryContext(ctx, `
		select status, count(*)
		from tasks
		where organization_id = $1
		group by status
	`, orgID)
	if err != nil {
		return 0, nil, translateErr(err)
	}
	defer rows.Close()

	total := 0
	byStatus := map[string]int{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return 0, nil, translateErr(err)
		}
		total += count
		byStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return 0, nil, err
	}
	return total, byStatus, nil
}

// openTasksByProject counts tasks not yet done or cancelled, grouped by the
// project they belong to. Unattached tasks are excluded.
func (s *analyticsStore) openTasksByProject(ctx context.Context, orgID string) ([]crm.ProjectTaskCount, error) {
	rows, err := s.q.QueryContext(ctx, `
		select p.id, p.name, count(t.id)
		from projects p
		left join tasks t on t.project_id = p.id and t.status in ('todo', 'in_progress')
		where p.organization_id = $1
		group by p.id, p.name
		order by count(t.id) desc, p.name
	`, orgID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var counts []crm.ProjectTaskCount
	for rows.Next() {
		var c crm.ProjectTaskCount
		if err := rows.Scan(&c.ProjectID, &c.ProjectName, &c.OpenTasks); err != nil {
			return nil, translateErr(err)
		}
		counts = append(counts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, nil
}
