package handlers

import (
	"net/http"

	"taskflow-project/backend/services"
)

type CommentRequest struct {
	TaskID    string `json:"taskId"`
	ProjectID string `json:"projectId"`
	Text      string `json:"text"`
}

type CommentHandler struct {
	service *services.CommentService
}

func NewCommentHandler(service *services.CommentService) *CommentHandler {
	return &CommentHandler{service: service}
}

func commentTarget(taskID, projectID string) (services.CommentTarget, error) {
	var target services.CommentTarget
	var err error
	if target.TaskID, err = optionalObjectID(taskID); err != nil {
		return target, err
	}
	if target.ProjectID, err = optionalObjectID(projectID); err != nil {
		return target, err
	}
	return target, nil
}

func (h *CommentHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	target, err := commentTarget(query.Get("taskId"), query.Get("projectId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	comments, err := h.service.ListComments(r.Context(), currentUser(r), target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	target, err := commentTarget(req.TaskID, req.ProjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	comment, err := h.service.AddComment(r.Context(), currentUser(r), target, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, comment)
}

func (h *CommentHandler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CommentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	comment, err := h.service.UpdateComment(r.Context(), currentUser(r), commentID, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, comment)
}

func (h *CommentHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	commentID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.DeleteComment(r.Context(), currentUser(r), commentID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Comment deleted")
}
