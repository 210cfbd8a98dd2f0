package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
)

type DirectMessageService struct {
	messages      DirectMessageRepository
	users         UserRepository
	notifications *NotificationService
	publisher     EventPublisher
	now           func() time.Time
}

func NewDirectMessageService(messages DirectMessageRepository, users UserRepository, notifications *NotificationService, publisher EventPublisher) *DirectMessageService {
	return &DirectMessageService{
		messages:      messages,
		users:         users,
		notifications: notifications,
		publisher:     publisher,
		now:           time.Now,
	}
}

func (s *DirectMessageService) Send(ctx context.Context, senderID, recipientID primitive.ObjectID, content string) (*models.DirectMessage, error) {
	if senderID == recipientID {
		return nil, fmt.Errorf("%w: you cannot message yourself", ErrValidation)
	}
	content, err := validateContent(content)
	if err != nil {
		return nil, err
	}
	sender, err := s.users.FindByID(ctx, senderID)
	if err != nil {
		return nil, err
	}
	if _, err := s.users.FindByID(ctx, recipientID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("recipient: %w", ErrNotFound)
		}
		return nil, err
	}

	msg := &models.DirectMessage{
		SenderID:    senderID,
		RecipientID: recipientID,
		Content:     content,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.notifications.NotifyQuietly(ctx, []primitive.ObjectID{recipientID}, NotificationInput{
		Type:      models.NotificationMessage,
		Title:     "New message",
		Message:   fmt.Sprintf("%s sent you a message", sender.Name),
		Priority:  models.NotificationNormal,
		ActionURL: "/messages/" + senderID.Hex(),
	})
	publishEvent(ctx, s.publisher, models.EventDirectMessageNew, []primitive.ObjectID{recipientID}, msg)
	return msg, nil
}

// Thread returns the messages exchanged with partnerID, oldest first.
func (s *DirectMessageService) Thread(ctx context.Context, userID, partnerID primitive.ObjectID, limit int64) ([]models.DirectMessage, error) {
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}
	messages, err := s.messages.FindConversation(ctx, userID, partnerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}
	// Stored newest first.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// Conversations summarises every thread of the user, most recent first.
func (s *DirectMessageService) Conversations(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	conversations, err := s.messages.Conversations(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}
	if len(conversations) == 0 {
		return conversations, nil
	}

	partners := make([]primitive.ObjectID, 0, len(conversations))
	for _, conv := range conversations {
		partners = append(partners, conv.PartnerID)
	}
	users, err := s.users.FindByIDs(ctx, partners)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch conversation partners: %w", err)
	}
	summaries := make(map[primitive.ObjectID]models.UserSummary, len(users))
	for _, u := range users {
		summaries[u.ID] = u.Summary()
	}
	for i := range conversations {
		if summary, ok := summaries[conversations[i].PartnerID]; ok {
			conversations[i].Partner = &summary
		}
	}
	return conversations, nil
}

func (s *DirectMessageService) UnreadCount(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	count, err := s.messages.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// MarkRead is restricted to the recipient.
func (s *DirectMessageService) MarkRead(ctx context.Context, userID, messageID primitive.ObjectID) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RecipientID != userID {
		return fmt.Errorf("%w: only the recipient can mark a message as read", ErrForbidden)
	}
	if msg.Read {
		return nil
	}
	return s.messages.MarkRead(ctx, messageID)
}

func (s *DirectMessageService) MarkConversationRead(ctx context.Context, userID, partnerID primitive.ObjectID) (int64, error) {
	n, err := s.messages.MarkConversationRead(ctx, userID, partnerID)
	if err != nil {
		return 0, fmt.Errorf("failed to mark conversation as read: %w", err)
	}
	return n, nil
}

// Delete is restricted to the sender.
func (s *DirectMessageService) Delete(ctx context.Context, userID, messageID primitive.ObjectID) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != userID {
		return fmt.Errorf("%w: you can only delete messages you sent", ErrForbidden)
	}
	if err := s.messages.Delete(ctx, messageID); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	logging.Logger.Infof("Event ID: DIRECT_MESSAGE_DELETED, Description: Direct message %s deleted by %s", messageID.Hex(), userID.Hex())
	return nil
}
