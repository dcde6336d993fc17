package crm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/TaherBala2507/mini-crm/internal/apperr"
	"github.com/TaherBala2507/mini-crm/internal/audit"
	"github.com/TaherBala2507/mini-crm/internal/auth"
	"github.com/TaherBala2507/mini-crm/internal/ids"
)

// TaskService manages tasks.
type TaskService struct {
	store Store
}

// NewTaskService constructs a TaskService.
func NewTaskService(store Store) (*TaskService, error) {
	if store == nil {
		return nil, fmt.Errorf("crm store is required")
	}
	return &TaskService{store: store}, nil
}

// CreateTaskInput is the parsed payload for CreateTask.
type CreateTaskInput struct {
	ProjectID      string
	LeadID         string
	Title          string
	Description    string
	Priority       string
	AssigneeUserID string
	DueAt          *time.Time
}

// CreateTask records a task, optionally bound to a project or lead in the
// same organization.
func (s *TaskService) CreateTask(ctx context.Context, actor auth.Principal, in CreateTaskInput) (*Task, error) {
	if err := actor.RequireAll(auth.PermTaskCreate); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, fmt.Errorf("%w: task title is required", apperr.ErrValidation)
	}
	priority := strings.TrimSpace(strings.ToLower(in.Priority))
	if priority == "" {
		priority = TaskPriorityMedium
	}
	if !validTaskPriority(priority) {
		return nil, fmt.Errorf("%w: unknown task priority %q", apperr.ErrValidation, priority)
	}
	orgID := actor.User.OrganizationID

	now := timeNow().UTC()
	task := &Task{
		ID:             ids.New(),
		OrganizationID: orgID,
		ProjectID:      strings.TrimSpace(in.ProjectID),
		LeadID:         strings.TrimSpace(in.LeadID),
		Title:          title,
		Description:    strings.TrimSpace(in.Description),
		Status:         TaskStatusTodo,
		Priority:       priority,
		AssigneeUserID: strings.TrimSpace(in.AssigneeUserID),
		DueAt:          in.DueAt,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	err := s.store.InTx(ctx, func(tx Store) error {
		// Cross-tenant project/lead references die here as NotFound.
		if task.ProjectID != "" {
			if _, err := tx.Projects().Find(ctx, orgID, task.ProjectID); err != nil {
				return err
			}
		}
		if task.LeadID != "" {
			if _, err := tx.Leads().Find(ctx, orgID, task.LeadID); err != nil {
				return err
			}
		}
		if err := tx.Tasks().Create(ctx, task); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "task.create",
			EntityType:     EntityTask,
			EntityID:       task.ID,
			After:          audit.Snapshot(task),
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// GetTask fetches one task in the actor's organization.
func (s *TaskService) GetTask(ctx context.Context, actor auth.Principal, taskID string) (*Task, error) {
	if err := actor.RequireAll(auth.PermTaskView); err != nil {
		return nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id is required", apperr.ErrValidation)
	}
	return s.store.Tasks().Find(ctx, actor.User.OrganizationID, taskID)
}

// ListTasks lists org tasks.
func (s *TaskService) ListTasks(ctx context.Context, actor auth.Principal, f TaskFilter) ([]*Task, int, error) {
	if err := actor.RequireAll(auth.PermTaskView); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !validTaskStatus(f.Status) {
		return nil, 0, fmt.Errorf("%w: unknown task status %q", apperr.ErrValidation, f.Status)
	}
	if f.Priority != "" && !validTaskPriority(f.Priority) {
		return nil, 0, fmt.Errorf("%w: unknown task priority %q", apperr.ErrValidation, f.Priority)
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	return s.store.Tasks().List(ctx, actor.User.OrganizationID, f)
}

// UpdateTaskInput is a partial patch; nil fields are left unchanged.
type UpdateTaskInput struct {
	Title          *string
	Description    *string
	Status         *string
	Priority       *string
	AssigneeUserID *string
	DueAt          *time.Time
	ClearDueAt     bool
}

// UpdateTask patches a task.
func (s *TaskService) UpdateTask(ctx context.Context, actor auth.Principal, taskID string, in UpdateTaskInput) (*Task, error) {
	if err := actor.RequireAll(auth.PermTaskEdit); err != nil {
		return nil, err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return nil, fmt.Errorf("%w: task id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	var updated *Task
	err := s.store.InTx(ctx, func(tx Store) error {
		task, err := tx.Tasks().Find(ctx, orgID, taskID)
		if err != nil {
			return err
		}
		before := audit.Snapshot(task)

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return fmt.Errorf("%w: task title is required", apperr.ErrValidation)
			}
			task.Title = title
		}
		if in.Description != nil {
			task.Description = strings.TrimSpace(*in.Description)
		}
		if in.Status != nil {
			status := strings.TrimSpace(strings.ToLower(*in.Status))
			if !validTaskStatus(status) {
				return fmt.Errorf("%w: unknown task status %q", apperr.ErrValidation, status)
			}
			task.Status = status
		}
		if in.Priority != nil {
			priority := strings.TrimSpace(strings.ToLower(*in.Priority))
			if !validTaskPriority(priority) {
				return fmt.Errorf("%w: unknown task priority %q", apperr.ErrValidation, priority)
			}
			task.Priority = priority
		}
		if in.AssigneeUserID != nil {
			task.AssigneeUserID = strings.TrimSpace(*in.AssigneeUserID)
		}
		if in.ClearDueAt {
			task.DueAt = nil
		} else if in.DueAt != nil {
			task.DueAt = in.DueAt
		}
		task.UpdatedAt = timeNow().UTC()
		if err := tx.Tasks().Update(ctx, task); err != nil {
			return err
		}
		updated = task
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "task.update",
			EntityType:     EntityTask,
			EntityID:       task.ID,
			Before:         before,
			After:          audit.Snapshot(task),
		})
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTask removes a task.
func (s *TaskService) DeleteTask(ctx context.Context, actor auth.Principal, taskID string) error {
	if err := actor.RequireAll(auth.PermTaskDelete); err != nil {
		return err
	}
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return fmt.Errorf("%w: task id is required", apperr.ErrValidation)
	}
	orgID := actor.User.OrganizationID

	return s.store.InTx(ctx, func(tx Store) error {
		task, err := tx.Tasks().Find(ctx, orgID, taskID)
		if err != nil {
			return err
		}
		if err := tx.Tasks().Delete(ctx, orgID, taskID); err != nil {
			return err
		}
		return audit.Record(ctx, tx.Audit(), audit.Entry{
			OrganizationID: orgID,
			ActorUserID:    actor.User.ID,
			Action:         "task.delete",
			EntityType:     EntityTask,
			EntityID:       taskID,
			Before:         audit.Snapshot(task),
		})
	})
}
