package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

type NotificationRequest struct {
	RecipientID string                      `json:"recipientId"`
	Type        models.NotificationType     `json:"type"`
	Title       string                      `json:"title"`
	Message     string                      `json:"message"`
	Priority    models.NotificationPriority `json:"priority"`
	ActionURL   string                      `json:"actionUrl"`
}

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.service.List(r.Context(), currentUser(r), limit, unreadOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, notifications)
}

func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.service.UnreadCount(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *NotificationHandler) CreateNotification(w http.ResponseWriter, r *http.Request) {
	var req NotificationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	recipientID, err := parseObjectID(req.RecipientID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	n, err := h.service.Create(r.Context(), services.NotificationInput{
		RecipientID: recipientID,
		Type:        req.Type,
		Title:       req.Title,
		Message:     req.Message,
		Priority:    req.Priority,
		ActionURL:   req.ActionURL,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	logging.Logger.Infof("Event ID: NOTIFICATION_CREATED, Description: Notification %s created for %s", n.ID, n.RecipientID)
	writeJSON(w, http.StatusCreated, n)
}

func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.service.MarkRead(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification marked as read")
}

func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	marked, err := h.service.MarkAllRead(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": marked})
}

func (h *NotificationHandler) DeleteNotification(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Notification deleted")
}
