// Package crm holds the business entities of the CRM — leads, projects,
// tasks, notes, attachments — and the services that operate on them. Every
// entity is scoped to one organization and every query filters by it.
package crm

import "time"

// timeNow is the clock used to stamp entities; tests may swap it.
var timeNow = time.Now

// Lead statuses.
const (
	LeadStatusNew       = "new"
	LeadStatusContacted = "contacted"
	LeadStatusQualified = "qualified"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
)

// Lead sources.
const (
	LeadSourceWebsite  = "website"
	LeadSourceReferral = "referral"
	LeadSourceCampaign = "campaign"
	LeadSourceColdCall = "cold_call"
	LeadSourceOther    = "other"
)

// Project statuses.
const (
	ProjectStatusActive    = "active"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// Task statuses.
const (
	TaskStatusTodo       = "todo"
	TaskStatusInProgress = "in_progress"
	TaskStatusDone       = "done"
	TaskStatusCancelled  = "cancelled"
)

// Task priorities.
const (
	TaskPriorityLow    = "low"
	TaskPriorityMedium = "medium"
	TaskPriorityHigh   = "high"
	TaskPriorityUrgent = "urgent"
)

// Entity types notes and attachments can point at.
const (
	EntityLead    = "lead"
	EntityProject = "project"
	EntityTask    = "task"
)

// Lead is a sales prospect owned by one user.
type Lead struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	OwnerUserID    string    `json:"owner_user_id"`
	Name           string    `json:"name"`
	Company        string    `json:"company,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Source         string    `json:"source"`
	Status         string    `json:"status"`
	EstimatedValue int64     `json:"estimated_value,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Project groups work and members.
type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Status         string    `json:"status"`
	MemberIDs      []string  `json:"member_ids"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Task is a unit of work, optionally attached to a project or lead.
type Task struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ProjectID      string     `json:"project_id,omitempty"`
	LeadID         string     `json:"lead_id,omitempty"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	AssigneeUserID string     `json:"assignee_user_id,omitempty"`
	DueAt          *time.Time `json:"due_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Note is free-form text attached to a lead, project, or task.
type Note struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	AuthorUserID   string    `json:"author_user_id"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Attachment is file metadata; bytes live in file storage under Locator.
type Attachment struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	UploaderUserID string    `json:"uploader_user_id"`
	EntityType     string    `json:"entity_type"`
	EntityID       string    `json:"entity_id"`
	FileName       string    `json:"file_name"`
	ContentType    string    `json:"content_type"`
	SizeBytes      int64     `json:"size_bytes"`
	Locator        string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}

// ProjectTaskCount is one row of the open-tasks-per-project aggregation.
type ProjectTaskCount struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	OpenTasks   int    `json:"open_tasks"`
}

// Overview is the analytics snapshot for an organization.
type Overview struct {
	TotalLeads         int                `json:"total_leads"`
	TotalProjects      int                `json:"total_projects"`
	TotalTasks         int                `json:"total_tasks"`
	LeadsByStatus      map[string]int     `json:"leads_by_status"`
	LeadsBySource      map[string]int     `json:"leads_by_source"`
	TasksByStatus      map[string]int     `json:"tasks_by_status"`
	OpenTasksByProject []ProjectTaskCount `json:"open_tasks_by_project"`
}

func validLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusWon, LeadStatusLost:
		return true
	}
	return false
}

func validLeadSource(s string) bool {
	switch s {
	case LeadSourceWebsite, LeadSourceReferral, LeadSourceCampaign, LeadSourceColdCall, LeadSourceOther:
		return true
	}
	return false
}

func validTaskStatus(s string) bool {
	switch s {
	case TaskStatusTodo, TaskStatusInProgress, TaskStatusDone, TaskStatusCancelled:
		return true
	}
	return false
}

func validTaskPriority(s string) bool {
	switch s {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityUrgent:
		return true
	}
	return false
}

func validProjectStatus(s string) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}

func validEntityType(s string) bool {
	switch s {
	case EntityLead, EntityProject, EntityTask:
		return true
	}
	return false
}
