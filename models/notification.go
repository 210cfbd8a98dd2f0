package models

import "time"

type NotificationType string

const (
	NotificationTaskAssigned  NotificationType = "task_assigned"
	NotificationTaskUpdated   NotificationType = "task_updated"
	NotificationCommentAdded  NotificationType = "comment_added"
	NotificationMessage       NotificationType = "message"
	NotificationProjectInvite NotificationType = "project_invite"
	NotificationSystem        NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationTaskAssigned, NotificationTaskUpdated, NotificationCommentAdded,
		NotificationMessage, NotificationProjectInvite, NotificationSystem:
		return true
	}
	return false
}

type NotificationPriority string

const (
	NotificationLow    NotificationPriority = "low"
	NotificationNormal NotificationPriority = "normal"
	NotificationHigh   NotificationPriority = "high"
)

func (p NotificationPriority) Valid() bool {
	switch p {
	case NotificationLow, NotificationNormal, NotificationHigh:
		return true
	}
	return false
}

// Notification rows live in Cassandra, partitioned by recipient.
type Notification struct {
	ID          string               `cassandra:"id" json:"id"`
	RecipientID string               `cassandra:"recipient_id" json:"recipientId"`
	Type        NotificationType     `cassandra:"type" json:"type"`
	Title       string               `cassandra:"title" json:"title"`
	Message     string               `cassandra:"message" json:"message"`
	Read        bool                 `cassandra:"is_read" json:"read"`
	Priority    NotificationPriority `cassandra:"priority" json:"priority"`
	ActionURL   string               `cassandra:"action_url" json:"actionUrl"`
	CreatedAt   time.Time            `cassandra:"created_at" json:"createdAt"`
}
