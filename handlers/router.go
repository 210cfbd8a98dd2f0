package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"taskflow-project/backend/middleware"
	"taskflow-project/backend/utils"
)

// RouterConfig carries everything the HTTP surface is built from. Metrics
// and WebSocket are optional.
type RouterConfig struct {
	Tokens     *utils.TokenManager
	CORSOrigin string
	Metrics    *middleware.Metrics
	WebSocket  http.Handler

	Auth           *AuthHandler
	Users          *UserHandler
	Projects       *ProjectHandler
	Tasks          *TaskHandler
	Messages       *MessageHandler
	DirectMessages *DirectMessageHandler
	Notifications  *NotificationHandler
	Comments       *CommentHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "Route not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware)
		r.Handle("/metrics", cfg.Metrics.Handler()).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	if cfg.WebSocket != nil {
		r.Handle("/ws", cfg.WebSocket).Methods(http.MethodGet)
	}

	api := r.PathPrefix("/api").Subrouter()

	public := api.PathPrefix("/users").Subrouter()
	public.HandleFunc("/register", cfg.Auth.Register).Methods(http.MethodPost)
	public.HandleFunc("/login", cfg.Auth.Login).Methods(http.MethodPost)
	public.HandleFunc("/forgot-password", cfg.Auth.ForgotPassword).Methods(http.MethodPost)
	public.HandleFunc("/verify-otp", cfg.Auth.VerifyOTP).Methods(http.MethodPost)
	public.HandleFunc("/reset-password", cfg.Auth.ResetPassword).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(middleware.JWTAuthMiddleware(cfg.Tokens))

	users := protected.PathPrefix("/users").Subrouter()
	users.HandleFunc("/me", cfg.Users.GetMe).Methods(http.MethodGet)
	users.HandleFunc("/me", cfg.Users.UpdateMe).Methods(http.MethodPut)
	users.HandleFunc("/me", cfg.Users.DeleteMe).Methods(http.MethodDelete)
	users.HandleFunc("/me/password", cfg.Users.ChangePassword).Methods(http.MethodPut)
	users.HandleFunc("", cfg.Users.SearchUsers).Methods(http.MethodGet)
	users.HandleFunc("/{id}", cfg.Users.GetUser).Methods(http.MethodGet)

	projects := protected.PathPrefix("/projects").Subrouter()
	projects.HandleFunc("", cfg.Projects.ListProjects).Methods(http.MethodGet)
	projects.HandleFunc("", cfg.Projects.CreateProject).Methods(http.MethodPost)
	projects.HandleFunc("/{id}", cfg.Projects.GetProject).Methods(http.MethodGet)
	projects.HandleFunc("/{id}", cfg.Projects.UpdateProject).Methods(http.MethodPut)
	projects.HandleFunc("/{id}", cfg.Projects.DeleteProject).Methods(http.MethodDelete)
	projects.HandleFunc("/{id}/members", cfg.Projects.GetMembers).Methods(http.MethodGet)
	projects.HandleFunc("/{id}/board", cfg.Projects.GetBoard).Methods(http.MethodGet)
	projects.HandleFunc("/{id}/collaborators", cfg.Projects.AddCollaborator).Methods(http.MethodPost)
	projects.HandleFunc("/{id}/collaborators/{userId}", cfg.Projects.UpdateCollaborator).Methods(http.MethodPut)
	projects.HandleFunc("/{id}/collaborators/{userId}", cfg.Projects.RemoveCollaborator).Methods(http.MethodDelete)

	tasks := protected.PathPrefix("/tasks").Subrouter()
	tasks.HandleFunc("", cfg.Tasks.ListTasks).Methods(http.MethodGet)
	tasks.HandleFunc("", cfg.Tasks.CreateTask).Methods(http.MethodPost)
	tasks.HandleFunc("/{id}", cfg.Tasks.GetTask).Methods(http.MethodGet)
	tasks.HandleFunc("/{id}", cfg.Tasks.UpdateTask).Methods(http.MethodPut)
	tasks.HandleFunc("/{id}", cfg.Tasks.DeleteTask).Methods(http.MethodDelete)
	tasks.HandleFunc("/{id}/status", cfg.Tasks.ChangeStatus).Methods(http.MethodPatch)
	tasks.HandleFunc("/{id}/dependencies", cfg.Tasks.GetDependencies).Methods(http.MethodGet)
	tasks.HandleFunc("/{id}/dependencies", cfg.Tasks.AddDependency).Methods(http.MethodPost)
	tasks.HandleFunc("/{id}/dependencies/{dependsOnId}", cfg.Tasks.RemoveDependency).Methods(http.MethodDelete)

	messages := protected.PathPrefix("/messages").Subrouter()
	messages.HandleFunc("/project/{projectId}", cfg.Messages.ListProjectMessages).Methods(http.MethodGet)
	messages.HandleFunc("", cfg.Messages.SendMessage).Methods(http.MethodPost)
	messages.HandleFunc("/{id}/read", cfg.Messages.MarkRead).Methods(http.MethodPatch)
	messages.HandleFunc("/{id}", cfg.Messages.DeleteMessage).Methods(http.MethodDelete)

	dms := protected.PathPrefix("/direct-messages").Subrouter()
	dms.HandleFunc("/conversations", cfg.DirectMessages.Conversations).Methods(http.MethodGet)
	dms.HandleFunc("/unread-count", cfg.DirectMessages.UnreadCount).Methods(http.MethodGet)
	dms.HandleFunc("/conversation/{userId}/read", cfg.DirectMessages.MarkConversationRead).Methods(http.MethodPatch)
	dms.HandleFunc("/{userId}", cfg.DirectMessages.Thread).Methods(http.MethodGet)
	dms.HandleFunc("", cfg.DirectMessages.Send).Methods(http.MethodPost)
	dms.HandleFunc("/{id}/read", cfg.DirectMessages.MarkRead).Methods(http.MethodPatch)
	dms.HandleFunc("/{id}", cfg.DirectMessages.Delete).Methods(http.MethodDelete)

	notifications := protected.PathPrefix("/notifications").Subrouter()
	notifications.HandleFunc("", cfg.Notifications.ListNotifications).Methods(http.MethodGet)
	notifications.HandleFunc("/unread-count", cfg.Notifications.UnreadCount).Methods(http.MethodGet)
	notifications.HandleFunc("", cfg.Notifications.CreateNotification).Methods(http.MethodPost)
	notifications.HandleFunc("/read-all", cfg.Notifications.MarkAllRead).Methods(http.MethodPatch)
	notifications.HandleFunc("/{id}/read", cfg.Notifications.MarkRead).Methods(http.MethodPatch)
	notifications.HandleFunc("/{id}", cfg.Notifications.DeleteNotification).Methods(http.MethodDelete)

	comments := protected.PathPrefix("/comments").Subrouter()
	comments.HandleFunc("", cfg.Comments.ListComments).Methods(http.MethodGet)
	comments.HandleFunc("", cfg.Comments.AddComment).Methods(http.MethodPost)
	comments.HandleFunc("/{id}", cfg.Comments.UpdateComment).Methods(http.MethodPut)
	comments.HandleFunc("/{id}", cfg.Comments.DeleteComment).Methods(http.MethodDelete)

	// CORS wraps the router so preflight requests never need a matching route.
	return middleware.RequestLogger(middleware.EnableCORS(cfg.CORSOrigin)(r))
}
