package handlers

import (
	"net/http"
	"time"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

type ProjectRequest struct {
	Name        *string               `json:"name"`
	Description *string               `json:"description"`
	Status      *models.ProjectStatus `json:"status"`
	Priority    *models.Priority      `json:"priority"`
	StartDate   *time.Time            `json:"startDate"`
	EndDate     *time.Time            `json:"endDate"`
}

type CollaboratorRequest struct {
	UserID string                  `json:"userId"`
	Role   models.CollaboratorRole `json:"role"`
}

type ProjectHandler struct {
	service *services.ProjectService
}

func NewProjectHandler(service *services.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: service}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

func (h *ProjectHandler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req ProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.service.CreateProject(r.Context(), currentUser(r), services.ProjectInput{
		Name:        deref(req.Name),
		Description: deref(req.Description),
		Status:      deref(req.Status),
		Priority:    deref(req.Priority),
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.service.ListProjects(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *ProjectHandler) GetProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.service.GetProject(r.Context(), currentUser(r), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) UpdateProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.service.UpdateProject(r.Context(), currentUser(r), projectID, services.ProjectUpdate{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	userID := currentUser(r)
	if err := h.service.DeleteProject(r.Context(), userID, projectID); err != nil {
		logging.Logger.Warnf("Event ID: PROJECT_DELETE_FAILED, Description: User %s could not delete project %s: %v", userID.Hex(), projectID.Hex(), err)
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Project deleted")
}

func (h *ProjectHandler) GetMembers(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	members, err := h.service.GetMembers(r.Context(), currentUser(r), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (h *ProjectHandler) AddCollaborator(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CollaboratorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	collaboratorID, err := parseObjectID(req.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.service.AddCollaborator(r.Context(), currentUser(r), projectID, collaboratorID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

func (h *ProjectHandler) UpdateCollaborator(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	collaboratorID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CollaboratorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.service.UpdateCollaboratorRole(r.Context(), currentUser(r), projectID, collaboratorID, req.Role)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

func (h *ProjectHandler) RemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	collaboratorID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	project, err := h.service.RemoveCollaborator(r.Context(), currentUser(r), projectID, collaboratorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, project)
}

// GetBoard returns the project's tasks grouped into Kanban columns.
func (h *ProjectHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	board, err := h.service.GetBoard(r.Context(), currentUser(r), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}
