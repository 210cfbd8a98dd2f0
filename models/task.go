package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TaskStatus string

const (
	StatusBacklog    TaskStatus = "backlog"
	StatusTodo       TaskStatus = "todo"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusArchived   TaskStatus = "archived"
)

// TaskStatuses is the column order of the Kanban board.
var TaskStatuses = []TaskStatus{StatusBacklog, StatusTodo, StatusInProgress, StatusCompleted, StatusArchived}

func (s TaskStatus) Valid() bool {
	for _, status := range TaskStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// Finished reports whether the task no longer needs work. Archived tasks
// count as finished.
func (s TaskStatus) Finished() bool {
	return s == StatusCompleted || s == StatusArchived
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type Task struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Title       string               `bson:"title" json:"title"`
	Description string               `bson:"description" json:"description"`
	Status      TaskStatus           `bson:"status" json:"status"`
	Priority    Priority             `bson:"priority" json:"priority"`
	DueDate     *time.Time           `bson:"dueDate,omitempty" json:"dueDate,omitempty"`
	ProjectID   *primitive.ObjectID  `bson:"projectId,omitempty" json:"projectId,omitempty"`
	Assignees   []primitive.ObjectID `bson:"assignees" json:"assignees"`
	UserID      primitive.ObjectID   `bson:"userId" json:"userId"`
	CompletedAt *time.Time           `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
	CreatedAt   time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt" json:"updatedAt"`
}

func (t *Task) IsAssigned(userID primitive.ObjectID) bool {
	for _, id := range t.Assignees {
		if id == userID {
			return true
		}
	}
	return false
}

// BoardColumn groups the tasks of a single status.
type BoardColumn struct {
	Status TaskStatus `json:"status"`
	Tasks  []Task     `json:"tasks"`
}

type Board struct {
	ProjectID primitive.ObjectID `json:"projectId"`
	Columns   []BoardColumn      `json:"columns"`
}
