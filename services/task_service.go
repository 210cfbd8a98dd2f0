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

// maxMoveAttempts bounds the reload loop of a contended status move.
const maxMoveAttempts = 3

type TaskInput struct {
	Title       string
	Description string
	Status      models.TaskStatus
	Priority    models.Priority
	DueDate     *time.Time
	ProjectID   *primitive.ObjectID
	Assignees   []primitive.ObjectID
}

type TaskUpdate struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
	Priority    *models.Priority
	DueDate     *time.Time
	Assignees   *[]primitive.ObjectID
}

// TaskQuery narrows GET /tasks. Without a project it lists the caller's own
// tasks.
type TaskQuery struct {
	ProjectID  *primitive.ObjectID
	Status     models.TaskStatus
	AssigneeID *primitive.ObjectID
}

type TaskService struct {
	tasks         TaskRepository
	projects      ProjectRepository
	users         UserRepository
	comments      CommentRepository
	graph         DependencyGraph
	notifications *NotificationService
	publisher     EventPublisher
	now           func() time.Time
}

// NewTaskService wires the task service. graph may be nil, which disables
// dependency tracking.
func NewTaskService(
	tasks TaskRepository,
	projects ProjectRepository,
	users UserRepository,
	comments CommentRepository,
	graph DependencyGraph,
	notifications *NotificationService,
	publisher EventPublisher,
) *TaskService {
	return &TaskService{
		tasks:         tasks,
		projects:      projects,
		users:         users,
		comments:      comments,
		graph:         graph,
		notifications: notifications,
		publisher:     publisher,
		now:           time.Now,
	}
}

func (s *TaskService) CreateTask(ctx context.Context, userID primitive.ObjectID, in TaskInput) (*models.Task, error) {
	if in.Status == "" {
		in.Status = models.StatusTodo
	}
	if in.Priority == "" {
		in.Priority = models.PriorityMedium
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validateTask(in.Title, in.Status, in.Priority); err != nil {
		return nil, err
	}

	var project *models.Project
	if in.ProjectID != nil {
		p, err := s.projects.FindByID(ctx, *in.ProjectID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, fmt.Errorf("project: %w", ErrNotFound)
			}
			return nil, err
		}
		if !canEditProject(p, userID) {
			return nil, fmt.Errorf("%w: you cannot add tasks to this project", ErrForbidden)
		}
		project = p
	}

	assignees, err := s.checkAssignees(ctx, project, in.Assignees)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	task := &models.Task{
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		Priority:    in.Priority,
		DueDate:     in.DueDate,
		ProjectID:   in.ProjectID,
		Assignees:   assignees,
		UserID:      userID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if task.Status == models.StatusCompleted {
		task.CompletedAt = &now
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}
	logging.Logger.Infof("Event ID: TASK_CREATED, Description: Task %s created by %s", task.ID.Hex(), userID.Hex())

	if project != nil {
		s.adjustCounters(ctx, project.ID, 1, completedDelta("", task.Status))
	}
	s.syncNode(ctx, task)

	s.notifications.NotifyQuietly(ctx, without(assignees, userID), NotificationInput{
		Type:      models.NotificationTaskAssigned,
		Title:     "New task assigned",
		Message:   fmt.Sprintf("You were assigned to task '%s'", task.Title),
		Priority:  models.NotificationNormal,
		ActionURL: "/tasks/" + task.ID.Hex(),
	})
	publishEvent(ctx, s.publisher, models.EventTaskCreated, without(taskAudience(task, project), userID), task)
	return task, nil
}

func validateTask(title string, status models.TaskStatus, priority models.Priority) error {
	if title == "" {
		return fmt.Errorf("%w: task title is required", ErrValidation)
	}
	if !status.Valid() {
		return fmt.Errorf("%w: unknown task status %q", ErrValidation, status)
	}
	if !priority.Valid() {
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, priority)
	}
	return nil
}

// checkAssignees deduplicates ids and requires every assignee to exist and,
// for project tasks, to be a project member.
func (s *TaskService) checkAssignees(ctx context.Context, project *models.Project, ids []primitive.ObjectID) ([]primitive.ObjectID, error) {
	unique := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return unique, nil
	}

	users, err := s.users.FindByIDs(ctx, unique)
	if err != nil {
		return nil, fmt.Errorf("failed to load assignees: %w", err)
	}
	if len(users) != len(unique) {
		return nil, fmt.Errorf("%w: one or more assignees do not exist", ErrValidation)
	}
	if project != nil {
		for _, id := range unique {
			if !canViewProject(project, id) {
				return nil, fmt.Errorf("%w: assignee %s is not a member of the project", ErrValidation, id.Hex())
			}
		}
	}
	return unique, nil
}

func (s *TaskService) ListTasks(ctx context.Context, userID primitive.ObjectID, q TaskQuery) ([]models.Task, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrValidation, q.Status)
	}
	filter := TaskFilter{Status: q.Status, AssigneeID: q.AssigneeID}
	if q.ProjectID != nil {
		project, err := s.projects.FindByID(ctx, *q.ProjectID)
		if err != nil {
			return nil, err
		}
		if !canViewProject(project, userID) {
			return nil, fmt.Errorf("%w: you are not a member of this project", ErrForbidden)
		}
		filter.ProjectID = q.ProjectID
	} else {
		filter.InvolvedUserID = &userID
	}

	tasks, err := s.tasks.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve tasks: %w", err)
	}
	return tasks, nil
}

// GetTask loads a task the user may see: its creator, an assignee or a
// member of its project.
func (s *TaskService) GetTask(ctx context.Context, userID, taskID primitive.ObjectID) (*models.Task, error) {
	task, _, err := s.loadTask(ctx, userID, taskID)
	return task, err
}

func (s *TaskService) loadTask(ctx context.Context, userID, taskID primitive.ObjectID) (*models.Task, *models.Project, error) {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}
	project, err := s.projectOf(ctx, task)
	if err != nil {
		return nil, nil, err
	}
	if task.UserID == userID || task.IsAssigned(userID) {
		return task, project, nil
	}
	if project != nil && canViewProject(project, userID) {
		return task, project, nil
	}
	return nil, nil, fmt.Errorf("%w: you do not have access to this task", ErrForbidden)
}

// projectOf returns nil for standalone tasks and for tasks whose project is
// gone.
func (s *TaskService) projectOf(ctx context.Context, task *models.Task) (*models.Project, error) {
	if task.ProjectID == nil {
		return nil, nil
	}
	project, err := s.projects.FindByID(ctx, *task.ProjectID)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return project, err
}

func canEditTask(task *models.Task, project *models.Project, userID primitive.ObjectID) bool {
	if task.UserID == userID || task.IsAssigned(userID) {
		return true
	}
	return project != nil && canEditProject(project, userID)
}

func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID primitive.ObjectID, in TaskUpdate) (*models.Task, error) {
	task, project, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if !canEditTask(task, project, userID) {
		return nil, fmt.Errorf("%w: you cannot edit this task", ErrForbidden)
	}

	previous := task.Status
	if in.Title != nil {
		task.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		task.Description = strings.TrimSpace(*in.Description)
	}
	if in.Priority != nil {
		task.Priority = *in.Priority
	}
	if in.DueDate != nil {
		task.DueDate = in.DueDate
	}
	if in.Status != nil {
		task.Status = *in.Status
	}
	if err := validateTask(task.Title, task.Status, task.Priority); err != nil {
		return nil, err
	}
	if task.Status != previous {
		if err := s.checkUnblocked(ctx, task.ID, task.Status); err != nil {
			return nil, err
		}
	}

	var added []primitive.ObjectID
	if in.Assignees != nil {
		assignees, err := s.checkAssignees(ctx, project, *in.Assignees)
		if err != nil {
			return nil, err
		}
		for _, id := range assignees {
			if !task.IsAssigned(id) {
				added = append(added, id)
			}
		}
		task.Assignees = assignees
	}

	s.stampCompletion(task, previous)
	task.UpdatedAt = s.now().UTC()
	if err := s.tasks.Update(ctx, task, previous); err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if project != nil {
		s.adjustCounters(ctx, project.ID, 0, completedDelta(previous, task.Status))
	}
	if task.Status != previous {
		s.syncNode(ctx, task)
	}
	s.notifications.NotifyQuietly(ctx, without(added, userID), NotificationInput{
		Type:      models.NotificationTaskAssigned,
		Title:     "New task assigned",
		Message:   fmt.Sprintf("You were assigned to task '%s'", task.Title),
		Priority:  models.NotificationNormal,
		ActionURL: "/tasks/" + task.ID.Hex(),
	})
	publishEvent(ctx, s.publisher, models.EventTaskUpdated, without(taskAudience(task, project), userID), task)
	return task, nil
}

// ChangeStatus moves a task between board columns.
func (s *TaskService) ChangeStatus(ctx context.Context, userID, taskID primitive.ObjectID, status models.TaskStatus) (*models.Task, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown task status %q", ErrValidation, status)
	}
	task, project, previous, err := s.moveTask(ctx, userID, taskID, status)
	if err != nil {
		return nil, err
	}
	if previous == status {
		return task, nil
	}
	logging.Logger.Infof("Event ID: TASK_STATUS_CHANGED, Description: Task %s moved from %s to %s", task.ID.Hex(), previous, status)

	if project != nil {
		s.adjustCounters(ctx, project.ID, 0, completedDelta(previous, status))
	}
	s.syncNode(ctx, task)

	others := without(taskAudience(task, project), userID)
	if status == models.StatusCompleted && task.UserID != userID {
		s.notifications.NotifyQuietly(ctx, []primitive.ObjectID{task.UserID}, NotificationInput{
			Type:      models.NotificationTaskUpdated,
			Title:     "Task completed",
			Message:   fmt.Sprintf("Task '%s' was completed", task.Title),
			Priority:  models.NotificationLow,
			ActionURL: "/tasks/" + task.ID.Hex(),
		})
	}
	publishEvent(ctx, s.publisher, models.EventTaskMoved, others, task)
	return task, nil
}

// moveTask writes the new status, reloading the task when another move won
// the race. previous equals status when there was nothing to do.
func (s *TaskService) moveTask(ctx context.Context, userID, taskID primitive.ObjectID, status models.TaskStatus) (*models.Task, *models.Project, models.TaskStatus, error) {
	for attempt := 1; ; attempt++ {
		task, project, err := s.loadTask(ctx, userID, taskID)
		if err != nil {
			return nil, nil, "", err
		}
		if !canEditTask(task, project, userID) {
			return nil, nil, "", fmt.Errorf("%w: you cannot move this task", ErrForbidden)
		}
		if task.Status == status {
			return task, project, status, nil
		}
		if err := s.checkUnblocked(ctx, task.ID, status); err != nil {
			return nil, nil, "", err
		}

		previous := task.Status
		task.Status = status
		s.stampCompletion(task, previous)
		task.UpdatedAt = s.now().UTC()
		err = s.tasks.Update(ctx, task, previous)
		if err == nil {
			return task, project, previous, nil
		}
		if !errors.Is(err, ErrConflict) || attempt == maxMoveAttempts {
			return nil, nil, "", fmt.Errorf("failed to update task status: %w", err)
		}
	}
}

// DeleteTask is allowed for the creator and the project owner.
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID primitive.ObjectID) error {
	task, err := s.tasks.FindByID(ctx, taskID)
	if err != nil {
		return err
	}
	project, err := s.projectOf(ctx, task)
	if err != nil {
		return err
	}
	if task.UserID != userID && (project == nil || !project.IsOwner(userID)) {
		return fmt.Errorf("%w: only the task creator or project owner can delete it", ErrForbidden)
	}

	// The deleted document carries the status at deletion time, which may
	// differ from the one loaded above.
	task, err = s.tasks.Delete(ctx, taskID)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if project != nil {
		s.adjustCounters(ctx, project.ID, -1, completedDelta(task.Status, ""))
	}
	if _, err := s.comments.DeleteByTask(ctx, taskID); err != nil {
		logging.Logger.Warnf("Event ID: TASK_CASCADE_FAILED, Description: Could not delete comments of task %s: %v", taskID.Hex(), err)
	}
	if s.graph != nil {
		if err := s.graph.DeleteTaskNode(ctx, taskID.Hex()); err != nil {
			logging.Logger.Warnf("Event ID: TASK_CASCADE_FAILED, Description: Could not delete graph node of task %s: %v", taskID.Hex(), err)
		}
	}

	logging.Logger.Infof("Event ID: TASK_DELETED, Description: Task %s deleted by %s", taskID.Hex(), userID.Hex())
	publishEvent(ctx, s.publisher, models.EventTaskDeleted, without(taskAudience(task, project), userID), map[string]string{
		"id": taskID.Hex(),
	})
	return nil
}

// AddDependency records that taskID cannot start before dependsOnID is
// completed. The graph rejects cycles and duplicate edges with ErrConflict.
func (s *TaskService) AddDependency(ctx context.Context, userID, taskID, dependsOnID primitive.ObjectID) error {
	if s.graph == nil {
		return fmt.Errorf("%w: task dependencies are not enabled", ErrUnavailable)
	}
	if taskID == dependsOnID {
		return fmt.Errorf("%w: a task cannot depend on itself", ErrValidation)
	}
	task, project, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if !canEditTask(task, project, userID) {
		return fmt.Errorf("%w: you cannot edit this task", ErrForbidden)
	}
	dependsOn, _, err := s.loadTask(ctx, userID, dependsOnID)
	if err != nil {
		return err
	}

	s.syncNode(ctx, task)
	s.syncNode(ctx, dependsOn)
	if err := s.graph.AddDependency(ctx, models.TaskDependencyRelation{
		TaskID:      taskID.Hex(),
		DependsOnID: dependsOnID.Hex(),
	}); err != nil {
		return err
	}
	logging.Logger.Infof("Event ID: DEPENDENCY_ADDED, Description: Task %s now depends on %s", taskID.Hex(), dependsOnID.Hex())
	return nil
}

func (s *TaskService) RemoveDependency(ctx context.Context, userID, taskID, dependsOnID primitive.ObjectID) error {
	if s.graph == nil {
		return fmt.Errorf("%w: task dependencies are not enabled", ErrUnavailable)
	}
	task, project, err := s.loadTask(ctx, userID, taskID)
	if err != nil {
		return err
	}
	if !canEditTask(task, project, userID) {
		return fmt.Errorf("%w: you cannot edit this task", ErrForbidden)
	}
	return s.graph.RemoveDependency(ctx, models.TaskDependencyRelation{
		TaskID:      taskID.Hex(),
		DependsOnID: dependsOnID.Hex(),
	})
}

func (s *TaskService) Dependencies(ctx context.Context, userID, taskID primitive.ObjectID) ([]models.TaskNode, error) {
	if s.graph == nil {
		return nil, fmt.Errorf("%w: task dependencies are not enabled", ErrUnavailable)
	}
	if _, _, err := s.loadTask(ctx, userID, taskID); err != nil {
		return nil, err
	}
	nodes, err := s.graph.GetDependencies(ctx, taskID.Hex())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch dependencies: %w", err)
	}
	return nodes, nil
}

// checkUnblocked refuses to start or finish a task with unfinished
// dependencies.
func (s *TaskService) checkUnblocked(ctx context.Context, taskID primitive.ObjectID, status models.TaskStatus) error {
	if s.graph == nil || (status != models.StatusInProgress && status != models.StatusCompleted) {
		return nil
	}
	deps, err := s.graph.GetDependencies(ctx, taskID.Hex())
	if err != nil {
		return fmt.Errorf("failed to check dependencies: %w", err)
	}
	for _, dep := range deps {
		if !dep.Completed {
			return fmt.Errorf("%w: task depends on unfinished task '%s'", ErrBlocked, dep.Title)
		}
	}
	return nil
}

func (s *TaskService) stampCompletion(task *models.Task, previous models.TaskStatus) {
	switch {
	case task.Status == models.StatusCompleted && previous != models.StatusCompleted:
		now := s.now().UTC()
		task.CompletedAt = &now
	case task.Status != models.StatusCompleted:
		task.CompletedAt = nil
	}
}

// completedDelta is the change of the completed counter for a status move;
// an empty status stands for a task that does not exist.
func completedDelta(from, to models.TaskStatus) int {
	delta := 0
	if from == models.StatusCompleted {
		delta--
	}
	if to == models.StatusCompleted {
		delta++
	}
	return delta
}

func (s *TaskService) adjustCounters(ctx context.Context, projectID primitive.ObjectID, total, completed int) {
	if total == 0 && completed == 0 {
		return
	}
	if err := s.projects.IncrementTaskCounters(ctx, projectID, total, completed); err != nil {
		logging.Logger.Warnf("Event ID: PROJECT_COUNTERS_FAILED, Description: Could not update counters of project %s: %v", projectID.Hex(), err)
	}
}

func (s *TaskService) syncNode(ctx context.Context, task *models.Task) {
	if s.graph == nil {
		return
	}
	node := models.TaskNode{
		ID:        task.ID.Hex(),
		Title:     task.Title,
		Completed: task.Status == models.StatusCompleted,
	}
	if task.ProjectID != nil {
		node.ProjectID = task.ProjectID.Hex()
	}
	if err := s.graph.EnsureTaskNode(ctx, node); err != nil {
		logging.Logger.Warnf("Event ID: GRAPH_SYNC_FAILED, Description: Could not sync graph node of task %s: %v", task.ID.Hex(), err)
	}
}

// taskAudience is everyone who should see changes to the task.
func taskAudience(task *models.Task, project *models.Project) []primitive.ObjectID {
	ids := []primitive.ObjectID{task.UserID}
	ids = append(ids, task.Assignees...)
	if project != nil {
		ids = append(ids, project.MemberIDs()...)
	}
	return ids
}
