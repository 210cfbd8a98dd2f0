package handlers

import (
	"net/http"

	"taskflow-project/backend/services"
)

type DirectMessageRequest struct {
	RecipientID string `json:"recipientId"`
	Content     string `json:"content"`
}

type DirectMessageHandler struct {
	service *services.DirectMessageService
}

func NewDirectMessageHandler(service *services.DirectMessageService) *DirectMessageHandler {
	return &DirectMessageHandler{service: service}
}

func (h *DirectMessageHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	conversations, err := h.service.Conversations(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, conversations)
}

func (h *DirectMessageHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UnreadCount(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": count})
}

// Thread returns the conversation with {userId}, oldest first.
func (h *DirectMessageHandler) Thread(w http.ResponseWriter, r *http.Request) {
	partnerID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}

	messages, err := h.service.Thread(r.Context(), currentUser(r), partnerID, int64(limit))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

func (h *DirectMessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req DirectMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	recipientID, err := parseObjectID(req.RecipientID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := h.service.Send(r.Context(), currentUser(r), recipientID, req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *DirectMessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
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

func (h *DirectMessageHandler) MarkConversationRead(w http.ResponseWriter, r *http.Request) {
	partnerID, err := pathID(r, "userId")
	if err != nil {
		writeError(w, r, err)
		return
	}

	marked, err := h.service.MarkConversationRead(r.Context(), currentUser(r), partnerID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": marked})
}

func (h *DirectMessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	messageID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.service.Delete(r.Context(), currentUser(r), messageID); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Message deleted")
}
