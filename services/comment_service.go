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

const maxCommentLength = 2000

// CommentTarget names what a comment is attached to; exactly one id is set.
type CommentTarget struct {
	TaskID    *primitive.ObjectID
	ProjectID *primitive.ObjectID
}

func (t CommentTarget) validate() error {
	if (t.TaskID == nil) == (t.ProjectID == nil) {
		return fmt.Errorf("%w: exactly one of taskId or projectId is required", ErrValidation)
	}
	return nil
}

type CommentService struct {
	comments      CommentRepository
	tasks         *TaskService
	projects      *ProjectService
	notifications *NotificationService
	now           func() time.Time
}

func NewCommentService(comments CommentRepository, tasks *TaskService, projects *ProjectService, notifications *NotificationService) *CommentService {
	return &CommentService{
		comments:      comments,
		tasks:         tasks,
		projects:      projects,
		notifications: notifications,
		now:           time.Now,
	}
}

// checkTarget verifies the user can see the target and returns the task when
// the target is one.
func (s *CommentService) checkTarget(ctx context.Context, userID primitive.ObjectID, target CommentTarget) (*models.Task, error) {
	if target.TaskID != nil {
		return s.tasks.GetTask(ctx, userID, *target.TaskID)
	}
	_, err := s.projects.GetProject(ctx, userID, *target.ProjectID)
	return nil, err
}

func (s *CommentService) ListComments(ctx context.Context, userID primitive.ObjectID, target CommentTarget) ([]models.Comment, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	if _, err := s.checkTarget(ctx, userID, target); err != nil {
		return nil, err
	}
	comments, err := s.comments.Find(ctx, CommentFilter{TaskID: target.TaskID, ProjectID: target.ProjectID})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch comments: %w", err)
	}
	return comments, nil
}

func validateCommentText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: comment text is required", ErrValidation)
	}
	if utf8.RuneCountInString(text) > maxCommentLength {
		return "", fmt.Errorf("%w: comment exceeds %d characters", ErrValidation, maxCommentLength)
	}
	return text, nil
}

func (s *CommentService) AddComment(ctx context.Context, userID primitive.ObjectID, target CommentTarget, text string) (*models.Comment, error) {
	if err := target.validate(); err != nil {
		return nil, err
	}
	text, err := validateCommentText(text)
	if err != nil {
		return nil, err
	}
	task, err := s.checkTarget(ctx, userID, target)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	comment := &models.Comment{
		UserID:    userID,
		TaskID:    target.TaskID,
		ProjectID: target.ProjectID,
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to add comment: %w", err)
	}

	if task != nil {
		recipients := append([]primitive.ObjectID{task.UserID}, task.Assignees...)
		s.notifications.NotifyQuietly(ctx, dedupe(without(recipients, userID)), NotificationInput{
			Type:      models.NotificationCommentAdded,
			Title:     "New comment",
			Message:   fmt.Sprintf("New comment on task '%s'", task.Title),
			Priority:  models.NotificationLow,
			ActionURL: "/tasks/" + task.ID.Hex(),
		})
	}
	return comment, nil
}

// UpdateComment is restricted to the author.
func (s *CommentService) UpdateComment(ctx context.Context, userID, commentID primitive.ObjectID, text string) (*models.Comment, error) {
	text, err := validateCommentText(text)
	if err != nil {
		return nil, err
	}
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, fmt.Errorf("%w: you can only edit your own comments", ErrForbidden)
	}

	comment.Text = text
	comment.Edited = true
	comment.UpdatedAt = s.now().UTC()
	if err := s.comments.Update(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to update comment: %w", err)
	}
	return comment, nil
}

// DeleteComment is restricted to the author.
func (s *CommentService) DeleteComment(ctx context.Context, userID, commentID primitive.ObjectID) error {
	comment, err := s.comments.FindByID(ctx, commentID)
	if err != nil {
		return err
	}
	if comment.UserID != userID {
		return fmt.Errorf("%w: you can only delete your own comments", ErrForbidden)
	}
	if err := s.comments.Delete(ctx, commentID); err != nil {
		return fmt.Errorf("failed to delete comment: %w", err)
	}
	logging.Logger.Infof("Event ID: COMMENT_DELETED, Description: Comment %s deleted by %s", commentID.Hex(), userID.Hex())
	return nil
}
