package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/models"
)

// Repositories return ErrNotFound for missing documents and ErrConflict for
// unique-key violations, wrapped or bare.

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
	Search(ctx context.Context, query string, limit int64) ([]models.User, error)
	Update(ctx context.Context, user *models.User) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error)
	FindForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error)
	FindOwnedBy(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	IncrementTaskCounters(ctx context.Context, id primitive.ObjectID, total, completed int) error
	RemoveCollaboratorEverywhere(ctx context.Context, userID primitive.ObjectID) error
}

type TaskFilter struct {
	ProjectID  *primitive.ObjectID
	Status     models.TaskStatus
	AssigneeID *primitive.ObjectID
	// InvolvedUserID matches tasks the user created or is assigned to.
	InvolvedUserID *primitive.ObjectID
}

type TaskRepository interface {
	Create(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	Find(ctx context.Context, filter TaskFilter) ([]models.Task, error)
	// Update fails with ErrConflict when the stored status is no longer
	// expected.
	Update(ctx context.Context, task *models.Task, expected models.TaskStatus) error
	Delete(ctx context.Context, id primitive.ObjectID) (*models.Task, error)
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error)
	RemoveAssigneeEverywhere(ctx context.Context, userID primitive.ObjectID) error
	RemoveAssigneeFromProject(ctx context.Context, projectID, userID primitive.ObjectID) error
}

type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error)
	FindByProject(ctx context.Context, projectID primitive.ObjectID, limit int64, before *time.Time) ([]models.Message, error)
	MarkRead(ctx context.Context, id, userID primitive.ObjectID) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error)
}

type DirectMessageRepository interface {
	Create(ctx context.Context, msg *models.DirectMessage) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.DirectMessage, error)
	FindConversation(ctx context.Context, userID, partnerID primitive.ObjectID, limit int64) ([]models.DirectMessage, error)
	// Conversations returns one summary per partner without Partner set,
	// most recent first.
	Conversations(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error)
	MarkRead(ctx context.Context, id primitive.ObjectID) error
	MarkConversationRead(ctx context.Context, recipientID, senderID primitive.ObjectID) (int64, error)
	CountUnread(ctx context.Context, recipientID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type CommentFilter struct {
	TaskID    *primitive.ObjectID
	ProjectID *primitive.ObjectID
}

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error)
	Find(ctx context.Context, filter CommentFilter) ([]models.Comment, error)
	Update(ctx context.Context, comment *models.Comment) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	DeleteByTask(ctx context.Context, taskID primitive.ObjectID) (int64, error)
	DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	// FindUnreadByRecipient walks the whole partition; limit <= 0 returns
	// every unread notification.
	FindUnreadByRecipient(ctx context.Context, recipientID string, limit int) ([]models.Notification, error)
	FindByID(ctx context.Context, recipientID, id string) (*models.Notification, error)
	MarkRead(ctx context.Context, recipientID, id string) error
	Delete(ctx context.Context, recipientID, id string) error
}

// DependencyGraph stores task dependencies. A task depends on another when
// it cannot start before the other is completed.
type DependencyGraph interface {
	EnsureTaskNode(ctx context.Context, node models.TaskNode) error
	DeleteTaskNode(ctx context.Context, taskID string) error
	AddDependency(ctx context.Context, rel models.TaskDependencyRelation) error
	RemoveDependency(ctx context.Context, rel models.TaskDependencyRelation) error
	GetDependencies(ctx context.Context, taskID string) ([]models.TaskNode, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
