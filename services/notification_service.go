package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
)

const (
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

type NotificationInput struct {
	RecipientID primitive.ObjectID
	Type        models.NotificationType
	Title       string
	Message     string
	Priority    models.NotificationPriority
	ActionURL   string
}

type NotificationService struct {
	repo      NotificationRepository
	users     UserRepository
	publisher EventPublisher
}

func NewNotificationService(repo NotificationRepository, users UserRepository, publisher EventPublisher) *NotificationService {
	return &NotificationService{repo: repo, users: users, publisher: publisher}
}

// Create stores a notification for an existing recipient and pushes it.
func (s *NotificationService) Create(ctx context.Context, in NotificationInput) (*models.Notification, error) {
	if in.Type == "" {
		in.Type = models.NotificationSystem
	}
	if in.Priority == "" {
		in.Priority = models.NotificationNormal
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)

	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown notification type %q", ErrValidation, in.Type)
	}
	if !in.Priority.Valid() {
		return nil, fmt.Errorf("%w: unknown notification priority %q", ErrValidation, in.Priority)
	}
	if in.Title == "" || in.Message == "" {
		return nil, fmt.Errorf("%w: title and message are required", ErrValidation)
	}
	if _, err := s.users.FindByID(ctx, in.RecipientID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("recipient: %w", ErrNotFound)
		}
		return nil, err
	}

	n := &models.Notification{
		RecipientID: in.RecipientID.Hex(),
		Type:        in.Type,
		Title:       in.Title,
		Message:     in.Message,
		Priority:    in.Priority,
		ActionURL:   in.ActionURL,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	publishEvent(ctx, s.publisher, models.EventNotificationNew, []primitive.ObjectID{in.RecipientID}, n)
	return n, nil
}

// NotifyQuietly creates a notification for each recipient; failures are
// only logged.
func (s *NotificationService) NotifyQuietly(ctx context.Context, recipients []primitive.ObjectID, in NotificationInput) {
	if s == nil {
		return
	}
	for _, recipient := range recipients {
		in.RecipientID = recipient
		if _, err := s.Create(ctx, in); err != nil {
			logging.Logger.Warnf("Event ID: NOTIFICATION_CREATE_FAILED, Description: Failed to notify user %s (%s): %v", recipient.Hex(), in.Type, err)
		}
	}
}

func (s *NotificationService) List(ctx context.Context, userID primitive.ObjectID, limit int, unreadOnly bool) ([]models.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}

	if unreadOnly {
		unread, err := s.repo.FindUnreadByRecipient(ctx, userID.Hex(), limit)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch notifications: %w", err)
		}
		return unread, nil
	}
	notifications, err := s.repo.FindByRecipient(ctx, userID.Hex(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int, error) {
	unread, err := s.repo.FindUnreadByRecipient(ctx, userID.Hex(), 0)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return len(unread), nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID primitive.ObjectID, id string) error {
	if _, err := s.repo.FindByID(ctx, userID.Hex(), id); err != nil {
		return err
	}
	return s.repo.MarkRead(ctx, userID.Hex(), id)
}

// MarkAllRead marks every unread notification of the user and reports how
// many were changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID primitive.ObjectID) (int, error) {
	unread, err := s.repo.FindUnreadByRecipient(ctx, userID.Hex(), 0)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	marked := 0
	for _, n := range unread {
		if err := s.repo.MarkRead(ctx, userID.Hex(), n.ID); err != nil {
			return marked, fmt.Errorf("failed to mark notification %s as read: %w", n.ID, err)
		}
		marked++
	}
	return marked, nil
}

// Delete removes a notification. Notifications are partitioned by recipient,
// so another user's id resolves to not found.
func (s *NotificationService) Delete(ctx context.Context, userID primitive.ObjectID, id string) error {
	if _, err := s.repo.FindByID(ctx, userID.Hex(), id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, userID.Hex(), id)
}
