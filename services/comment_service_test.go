package services_test

import (
	"context"
	"errors"
	"testing"

	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
	"taskflow-project/backend/testutil"
)

func TestComments(t *testing.T) {
	st := testutil.NewStack(t)
	ctx := context.Background()
	owner, _ := st.CreateUser(t, "Owner", "owner@example.com")
	member, _ := st.CreateUser(t, "Member", "member@example.com")
	stranger, _ := st.CreateUser(t, "Stranger", "stranger@example.com")
	project := st.CreateProject(t, owner.ID, "Apollo")
	st.AddCollaborator(t, owner.ID, project.ID, member.ID, models.CollaboratorEditor)

	task, err := st.TaskService.CreateTask(ctx, owner.ID, services.TaskInput{Title: "Design", ProjectID: &project.ID})
	if err != nil {
		t.Fatalf("create task: %v", err)
	}

	if _, err := st.CommentService.AddComment(ctx, member.ID, services.CommentTarget{}, "x"); !errors.Is(err, services.ErrValidation) {
		t.Errorf("no target: got %v, want ErrValidation", err)
	}
	if _, err := st.CommentService.AddComment(ctx, member.ID, services.CommentTarget{TaskID: &task.ID, ProjectID: &project.ID}, "x"); !errors.Is(err, services.ErrValidation) {
		t.Errorf("two targets: got %v, want ErrValidation", err)
	}
	if _, err := st.CommentService.AddComment(ctx, stranger.ID, services.CommentTarget{TaskID: &task.ID}, "x"); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("stranger: got %v, want ErrForbidden", err)
	}

	comment, err := st.CommentService.AddComment(ctx, member.ID, services.CommentTarget{TaskID: &task.ID}, "Looks good")
	if err != nil {
		t.Fatalf("add comment: %v", err)
	}
	if _, err := st.CommentService.AddComment(ctx, owner.ID, services.CommentTarget{ProjectID: &project.ID}, "Kickoff on Monday"); err != nil {
		t.Fatalf("project comment: %v", err)
	}

	notes, _ := st.NotificationService.List(ctx, owner.ID, 0, false)
	if len(notes) != 1 || notes[0].Type != models.NotificationCommentAdded {
		t.Errorf("creator notifications = %+v", notes)
	}

	listed, err := st.CommentService.ListComments(ctx, owner.ID, services.CommentTarget{TaskID: &task.ID})
	if err != nil || len(listed) != 1 {
		t.Fatalf("task comments: %d, %v", len(listed), err)
	}

	if _, err := st.CommentService.UpdateComment(ctx, owner.ID, comment.ID, "hijack"); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("non-author edit: got %v, want ErrForbidden", err)
	}
	edited, err := st.CommentService.UpdateComment(ctx, member.ID, comment.ID, "Looks great")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Edited || edited.Text != "Looks great" {
		t.Errorf("edit not applied: %+v", edited)
	}

	if err := st.CommentService.DeleteComment(ctx, owner.ID, comment.ID); !errors.Is(err, services.ErrForbidden) {
		t.Errorf("non-author delete: got %v, want ErrForbidden", err)
	}
	if err := st.CommentService.DeleteComment(ctx, member.ID, comment.ID); err != nil {
		t.Fatalf("author delete: %v", err)
	}
}
