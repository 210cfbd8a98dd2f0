package models

import "time"

const (
	EventTaskCreated      = "task:created"
	EventTaskUpdated      = "task:updated"
	EventTaskMoved        = "task:moved"
	EventTaskDeleted      = "task:deleted"
	EventProjectUpdated   = "project:updated"
	EventMessageNew       = "message:new"
	EventDirectMessageNew = "direct-message:new"
	EventNotificationNew  = "notification:new"
)

// Event is pushed to the sockets of every recipient.
type Event struct {
	Type       string    `json:"type"`
	Recipients []string  `json:"recipients"`
	Payload    any       `json:"payload"`
	CreatedAt  time.Time `json:"createdAt"`
}
