package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
	maxMessageLength    = 5000
)

type MessageService struct {
	messages  MessageRepository
	projects  ProjectRepository
	publisher EventPublisher
	now       func() time.Time
}

func NewMessageService(messages MessageRepository, projects ProjectRepository, publisher EventPublisher) *MessageService {
	return &MessageService{messages: messages, projects: projects, publisher: publisher, now: time.Now}
}

func (s *MessageService) memberProject(ctx context.Context, userID, projectID primitive.ObjectID) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canViewProject(project, userID) {
		return nil, fmt.Errorf("%w: you are not a member of this project", ErrForbidden)
	}
	return project, nil
}

// ListProjectMessages returns up to limit messages older than before, oldest
// first.
func (s *MessageService) ListProjectMessages(ctx context.Context, userID, projectID primitive.ObjectID, limit int64, before *time.Time) ([]models.Message, error) {
	if _, err := s.memberProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	messages, err := s.messages.FindByProject(ctx, projectID, limit, before)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	// Stored newest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func validateContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: message content is required", ErrValidation)
	}
	if utf8.RuneCountInString(content) > maxMessageLength {
		return "", fmt.Errorf("%w: message exceeds %d characters", ErrValidation, maxMessageLength)
	}
	return content, nil
}

func (s *MessageService) SendMessage(ctx context.Context, userID, projectID primitive.ObjectID, content string) (*models.Message, error) {
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	project, err := s.memberProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}

	msg := &models.Message{
		ProjectID: projectID,
		SenderID:  userID,
		Content:   content,
		ReadBy:    []primitive.ObjectID{userID},
		CreatedAt: s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	publishEvent(ctx, s.publisher, models.EventMessageNew, without(project.MemberIDs(), userID), msg)
	return msg, nil
}

func (s *MessageService) MarkRead(ctx context.Context, userID, messageID primitive.ObjectID) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if _, err := s.memberProject(ctx, userID, msg.ProjectID); err != nil {
		return err
	}
	return s.messages.MarkRead(ctx, messageID, userID)
}

// DeleteMessage is restricted to the sender.
func (s *MessageService) DeleteMessage(ctx context.Context, userID, messageID primitive.ObjectID) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return fmt.Errorf("%w: you can only delete your own messages", ErrForbidden)
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	logging.Logger.Infof("Event ID: MESSAGE_DELETED, Description: Message %s deleted by %s", messageID.Hex(), userID.Hex())
	return nil
}
