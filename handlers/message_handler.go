package handlers

import (
	"net/http"

	"taskflow-project/backend/services"
)

type MessageRequest struct {
	ProjectID string `json:"projectId"`
	Content   string `json:"content"`
}

// MessageHandler serves project channel messages.
type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) ListProjectMessages(w http.ResponseWriter, r *http.Request) {
	projectID, err := pathID(r, "projectId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	before, err := queryTime(r, "before")
	if err != nil {
		writeError(w, r, err)
		return
	}

	messages, err := h.service.ListProjectMessages(r.Context(), currentUser(r), projectID, int64(limit), before)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req MessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	projectID, err := parseObjectID(req.ProjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := h.service.SendMessage(r.Context(), currentUser(r), projectID, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.MarkRead(r.Context(), currentUser(r), messageID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message marked as read")
}

func (h *MessageHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.DeleteMessage(r.Context(), currentUser(r), messageID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message deleted")
}
