package model

import "time"

// Normalized task status values.
const (
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusReview     = "review"
	StatusDone       = "done"
)

// Task is a unit of work inside a project.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"projectId"`
	FacilityID  string     `json:"facilityId,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Priority    string     `json:"priority,omitempty"`
	AssigneeIDs []string   `json:"assigneeIds,omitempty"`
	CreatorID   string     `json:"creatorId,omitempty"`
	Pinned      bool       `json:"pinned"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// Attachment is a file stored externally and linked to a task.
type Attachment struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"taskId"`
	FileName   string    `json:"fileName"`
	URL        string    `json:"url"`
	Size       int64     `json:"size"`
	MimeType   string    `json:"mimeType,omitempty"`
	UploadedBy string    `json:"uploadedBy"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Dependency links a task to another task it waits on.
type Dependency struct {
	ID              string    `json:"id"`
	TaskID          string    `json:"taskId"`
	DependsOnTaskID string    `json:"dependsOnTaskId"`
	Type            string    `json:"type,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// Subtask is a checklist entry bound to a parent task.
type Subtask struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	SortOrder int       `json:"sortOrder"`
	CreatedAt time.Time `json:"createdAt"`
}

// TimeLog records time spent on a task.
type TimeLog struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"taskId"`
	UserID      string    `json:"userId"`
	Minutes     int       `json:"minutes"`
	Description string    `json:"description,omitempty"`
	LoggedAt    time.Time `json:"loggedAt"`
}

// ActivityLog is an audit entry describing a change to a task.
type ActivityLog struct {
	ID        string         `json:"id"`
	TaskID    string         `json:"taskId"`
	UserID    string         `json:"userId"`
	Action    string         `json:"action"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TaskDetails aggregates a task with all of its related sub-resources.
type TaskDetails struct {
	Task         Task          `json:"task"`
	Comments     []TaskComment `json:"comments"`
	Attachments  []Attachment  `json:"attachments"`
	Dependencies []Dependency  `json:"dependencies"`
	Subtasks     []Subtask     `json:"subtasks"`
	TimeLogs     []TimeLog     `json:"timeLogs"`
	ActivityLogs []ActivityLog `json:"activityLogs"`
}

// TotalMinutes sums the logged time across all time logs.
func (d TaskDetails) TotalMinutes() int {
	total := 0
	for _, l := range d.TimeLogs {
		total += l.Minutes
	}
	return total
}
