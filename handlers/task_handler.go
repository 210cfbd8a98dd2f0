package handlers

import (
	"net/http"
	"time"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

type TaskRequest struct {
	Title       *string            `json:"title"`
	Description *string            `json:"description"`
	Status      *models.TaskStatus `json:"status"`
	Priority    *models.Priority   `json:"priority"`
	DueDate     *time.Time         `json:"dueDate"`
	ProjectID   string             `json:"projectId"`
	Assignees   *[]string          `json:"assignees"`
}

type StatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

type DependencyRequest struct {
	DependsOnID string `json:"dependsOnId"`
}

type TaskHandler struct {
	service *services.TaskService
}

func NewTaskHandler(service *services.TaskService) *TaskHandler {
	return &TaskHandler{service: service}
}

func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req TaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	projectID, err := optionalObjectID(req.ProjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	assignees, err := parseObjectIDs(deref(req.Assignees))
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.service.CreateTask(r.Context(), currentUser(r), services.TaskInput{
		Title:       deref(req.Title),
		Description: deref(req.Description),
		Status:      deref(req.Status),
		Priority:    deref(req.Priority),
		DueDate:     req.DueDate,
		ProjectID:   projectID,
		Assignees:   assignees,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ListTasks filters by ?projectId=, ?status= and ?assignee=.
func (h *TaskHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	projectID, err := optionalObjectID(query.Get("projectId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	assigneeID, err := optionalObjectID(query.Get("assignee"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	tasks, err := h.service.ListTasks(r.Context(), currentUser(r), services.TaskQuery{
		ProjectID:  projectID,
		Status:     models.TaskStatus(query.Get("status")),
		AssigneeID: assigneeID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.service.GetTask(r.Context(), currentUser(r), taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req TaskRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	update := services.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		DueDate:     req.DueDate,
	}
	if req.Assignees != nil {
		assignees, err := parseObjectIDs(*req.Assignees)
		if err != nil {
			writeError(w, r, err)
			return
		}
		update.Assignees = &assignees
	}

	task, err := h.service.UpdateTask(r.Context(), currentUser(r), taskID, update)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// ChangeStatus is the Kanban move between columns.
func (h *TaskHandler) ChangeStatus(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req StatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	task, err := h.service.ChangeStatus(r.Context(), currentUser(r), taskID, req.Status)
	if err != nil {
		logging.Logger.Warnf("Event ID: TASK_STATUS_CHANGE_FAILED, Description: Task %s could not move to %q: %v", taskID.Hex(), req.Status, err)
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.DeleteTask(r.Context(), currentUser(r), taskID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Task deleted")
}

func (h *TaskHandler) GetDependencies(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	deps, err := h.service.Dependencies(r.Context(), currentUser(r), taskID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, deps)
}

func (h *TaskHandler) AddDependency(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req DependencyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	dependsOnID, err := parseObjectID(req.DependsOnID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.AddDependency(r.Context(), currentUser(r), taskID, dependsOnID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, models.TaskDependencyRelation{
		TaskID:      taskID.Hex(),
		DependsOnID: dependsOnID.Hex(),
	})
}

func (h *TaskHandler) RemoveDependency(w http.ResponseWriter, r *http.Request) {
	taskID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	dependsOnID, err := pathID(r, "dependsOnId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.RemoveDependency(r.Context(), currentUser(r), taskID, dependsOnID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Dependency removed")
}
