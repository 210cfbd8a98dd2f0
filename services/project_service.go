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

type ProjectInput struct {
	Name        string
	Description string
	Status      models.ProjectStatus
	Priority    models.Priority
	StartDate   *time.Time
	EndDate     *time.Time
}

type ProjectUpdate struct {
	Name        *string
	Description *string
	Status      *models.ProjectStatus
	Priority    *models.Priority
	StartDate   *time.Time
	EndDate     *time.Time
}

type ProjectService struct {
	projects      ProjectRepository
	tasks         TaskRepository
	users         UserRepository
	comments      CommentRepository
	messages      MessageRepository
	graph         DependencyGraph
	notifications *NotificationService
	publisher     EventPublisher
	now           func() time.Time
}

func NewProjectService(
	projects ProjectRepository,
	tasks TaskRepository,
	users UserRepository,
	comments CommentRepository,
	messages MessageRepository,
	graph DependencyGraph,
	notifications *NotificationService,
	publisher EventPublisher,
) *ProjectService {
	return &ProjectService{
		projects:      projects,
		tasks:         tasks,
		users:         users,
		comments:      comments,
		messages:      messages,
		graph:         graph,
		notifications: notifications,
		publisher:     publisher,
		now:           time.Now,
	}
}

func (s *ProjectService) CreateProject(ctx context.Context, ownerID primitive.ObjectID, in ProjectInput) (*models.Project, error) {
	if in.Status == "" {
		in.Status = models.ProjectPlanning
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := validateProject(in.Name, in.Status, in.Priority, in.StartDate, in.EndDate); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	project := &models.Project{
		Name:          in.Name,
		Description:   strings.TrimSpace(in.Description),
		Status:        in.Status,
		Priority:      in.Priority,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		UserID:        ownerID,
		Collaborators: []models.Collaborator{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	logging.Logger.Infof("Event ID: PROJECT_CREATED, Description: Project %s created by %s", project.ID.Hex(), ownerID.Hex())
	return project, nil
}

func validateProject(name string, status models.ProjectStatus, priority models.Priority, start, end *time.Time) error {
	if name == "" {
		return fmt.Errorf("%w: project name is required", ErrValidation)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown project status %q", ErrValidation, status)
	}
	if !priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}
	if start != nil && end != nil && end.Before(*start) {
		return fmt.Errorf("%w: end date must not be before start date", ErrValidation)
	}
	return nil
}

// ListProjects returns projects the user owns or collaborates on.
func (s *ProjectService) ListProjects(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	projects, err := s.projects.FindForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("unsuccessful procurement of projects: %w", err)
	}
	return projects, nil
}

// GetProject loads a project the user may view.
func (s *ProjectService) GetProject(ctx context.Context, userID, projectID primitive.ObjectID) (*models.Project, error) {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !canViewProject(project, userID) {
		return nil, fmt.Errorf("%w: you are not a member of this project", ErrForbidden)
	}
	return project, nil
}

func (s *ProjectService) UpdateProject(ctx context.Context, userID, projectID primitive.ObjectID, in ProjectUpdate) (*models.Project, error) {
	project, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !canEditProject(project, userID) {
		return nil, fmt.Errorf("%w: you cannot edit this project", ErrForbidden)
	}

	if in.Name != nil {
		project.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		project.Status = *in.Status
	}
	if in.Priority != nil {
		project.Priority = *in.Priority
	}
	if in.StartDate != nil {
		project.StartDate = in.StartDate
	}
	if in.EndDate != nil {
		project.EndDate = in.EndDate
	}
	if err := validateProject(project.Name, project.Status, project.Priority, project.StartDate, project.EndDate); err != nil {
		return nil, err
	}
	project.UpdatedAt = s.now().UTC()

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	publishEvent(ctx, s.publisher, models.EventProjectUpdated, without(project.MemberIDs(), userID), project)
	return project, nil
}

// DeleteProject is restricted to the owner. Tasks, comments and messages of
// the project are removed afterwards; failures there are logged only.
func (s *ProjectService) DeleteProject(ctx context.Context, userID, projectID primitive.ObjectID) error {
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return err
	}
	if !project.IsOwner(userID) {
		return fmt.Errorf("%w: only the project owner can delete it", ErrForbidden)
	}

	if err := s.projects.Delete(ctx, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	tasks, err := s.tasks.Find(ctx, TaskFilter{ProjectID: &projectID})
	if err != nil {
		logging.Logger.Warnf("Event ID: PROJECT_CASCADE_FAILED, Description: Could not list tasks of deleted project %s: %v", projectID.Hex(), err)
	}
	for _, task := range tasks {
		if _, err := s.comments.DeleteByTask(ctx, task.ID); err != nil {
			logging.Logger.Warnf("Event ID: PROJECT_CASCADE_FAILED, Description: Could not delete comments of task %s: %v", task.ID.Hex(), err)
		}
		if s.graph != nil {
			if err := s.graph.DeleteTaskNode(ctx, task.ID.Hex()); err != nil {
				logging.Logger.Warnf("Event ID: PROJECT_CASCADE_FAILED, Description: Could not delete graph node of task %s: %v", task.ID.Hex(), err)
			}
		}
	}
	if _, err := s.tasks.DeleteByProject(ctx, projectID); err != nil {
		logging.Logger.Warnf("Event ID: PROJECT_CASCADE_FAILED, Description: Could not delete tasks of project %s: %v", projectID.Hex(), err)
	}
	if _, err := s.comments.DeleteByProject(ctx, projectID); err != nil {
		logging.Logger.Warnf("Event ID: PROJECT_CASCADE_FAILED, Description: Could not delete comments of project %s: %v", projectID.Hex(), err)
	}
	if _, err := s.messages.DeleteByProject(ctx, projectID); err != nil {
		logging.Logger.Warnf("Event ID: PROJECT_CASCADE_FAILED, Description: Could not delete messages of project %s: %v", projectID.Hex(), err)
	}

	logging.Logger.Infof("Event ID: PROJECT_DELETED, Description: Project %s deleted with %d tasks", projectID.Hex(), len(tasks))
	return nil
}

// GetMembers returns the owner followed by the collaborators.
func (s *ProjectService) GetMembers(ctx context.Context, userID, projectID primitive.ObjectID) ([]models.UserSummary, error) {
	project, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	ids := project.MemberIDs()
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project members: %w", err)
	}

	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	members := make([]models.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			members = append(members, u.Summary())
		}
	}
	return members, nil
}

func (s *ProjectService) AddCollaborator(ctx context.Context, userID, projectID, collaboratorID primitive.ObjectID, role models.CollaboratorRole) (*models.Project, error) {
	if role == "" {
		role = models.CollaboratorEditor
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown collaborator role %q", ErrValidation, role)
	}

	project, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !canManageProject(project, userID) {
		return nil, fmt.Errorf("%w: only the owner or an admin can add collaborators", ErrForbidden)
	}
	if project.IsOwner(collaboratorID) {
		return nil, fmt.Errorf("%w: the owner is already part of the project", ErrConflict)
	}
	if _, ok := project.Collaborator(collaboratorID); ok {
		return nil, fmt.Errorf("%w: user is already a collaborator", ErrConflict)
	}
	if _, err := s.users.FindByID(ctx, collaboratorID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("collaborator: %w", ErrNotFound)
		}
		return nil, err
	}

	project.Collaborators = append(project.Collaborators, models.Collaborator{
		UserID:  collaboratorID,
		Role:    role,
		AddedAt: s.now().UTC(),
	})
	project.UpdatedAt = s.now().UTC()
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to add collaborator: %w", err)
	}

	s.notifications.NotifyQuietly(ctx, []primitive.ObjectID{collaboratorID}, NotificationInput{
		Type:      models.NotificationProjectInvite,
		Title:     "Added to project",
		Message:   fmt.Sprintf("You were added to project '%s' as %s", project.Name, role),
		Priority:  models.NotificationNormal,
		ActionURL: "/projects/" + project.ID.Hex(),
	})
	publishEvent(ctx, s.publisher, models.EventProjectUpdated, without(project.MemberIDs(), userID), project)
	return project, nil
}

func (s *ProjectService) UpdateCollaboratorRole(ctx context.Context, userID, projectID, collaboratorID primitive.ObjectID, role models.CollaboratorRole) (*models.Project, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown collaborator role %q", ErrValidation, role)
	}
	project, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if !canManageProject(project, userID) {
		return nil, fmt.Errorf("%w: only the owner or an admin can change roles", ErrForbidden)
	}

	found := false
	for i := range project.Collaborators {
		if project.Collaborators[i].UserID == collaboratorID {
			project.Collaborators[i].Role = role
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("collaborator: %w", ErrNotFound)
	}
	project.UpdatedAt = s.now().UTC()
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to update collaborator: %w", err)
	}
	return project, nil
}

// RemoveCollaborator may be called by the owner, an admin, or the
// collaborator leaving the project.
func (s *ProjectService) RemoveCollaborator(ctx context.Context, userID, projectID, collaboratorID primitive.ObjectID) (*models.Project, error) {
	project, err := s.GetProject(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	if userID != collaboratorID && !canManageProject(project, userID) {
		return nil, fmt.Errorf("%w: only the owner or an admin can remove collaborators", ErrForbidden)
	}

	kept := project.Collaborators[:0]
	removed := false
	for _, c := range project.Collaborators {
		if c.UserID == collaboratorID {
			removed = true
			continue
		}
		kept = append(kept, c)
	}
	if !removed {
		return nil, fmt.Errorf("member not found in project or already removed: %w", ErrNotFound)
	}
	project.Collaborators = kept
	project.UpdatedAt = s.now().UTC()
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, fmt.Errorf("failed to remove member from project: %w", err)
	}
	// Assignment grants edit rights, so it cannot outlive membership.
	if err := s.tasks.RemoveAssigneeFromProject(ctx, projectID, collaboratorID); err != nil {
		return nil, fmt.Errorf("failed to unassign member from project tasks: %w", err)
	}
	logging.Logger.Infof("Event ID: PROJECT_MEMBER_REMOVED, Description: User %s removed from project %s", collaboratorID.Hex(), projectID.Hex())
	return project, nil
}

// GetBoard groups the project's tasks into one column per status, in the
// order of models.TaskStatuses.
func (s *ProjectService) GetBoard(ctx context.Context, userID, projectID primitive.ObjectID) (*models.Board, error) {
	if _, err := s.GetProject(ctx, userID, projectID); err != nil {
		return nil, err
	}
	tasks, err := s.tasks.Find(ctx, TaskFilter{ProjectID: &projectID})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %w", err)
	}
	return buildBoard(projectID, tasks), nil
}

func buildBoard(projectID primitive.ObjectID, tasks []models.Task) *models.Board {
	index := make(map[models.TaskStatus]int, len(models.TaskStatuses))
	board := &models.Board{ProjectID: projectID, Columns: make([]models.BoardColumn, len(models.TaskStatuses))}
	for i, status := range models.TaskStatuses {
		index[status] = i
		board.Columns[i] = models.BoardColumn{Status: status, Tasks: []models.Task{}}
	}
	for _, task := range tasks {
		i, ok := index[task.Status]
		if !ok {
			logging.Logger.Warnf("Event ID: BOARD_UNKNOWN_STATUS, Description: Task %s has unknown status %q", task.ID.Hex(), task.Status)
			continue
		}
		board.Columns[i].Tasks = append(board.Columns[i].Tasks, task)
	}
	return board
}
