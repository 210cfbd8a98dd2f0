package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
	"taskflow-project/backend/utils"
)

const TestSecret = "test-secret"

// Stack is a fully wired service layer over in-memory stores.
type Stack struct {
	Users          *UserRepo
	Projects       *ProjectRepo
	Tasks          *TaskRepo
	Messages       *MessageRepo
	DirectMessages *DirectMessageRepo
	Comments       *CommentRepo
	Notifications  *NotificationRepo
	Graph          *Graph
	Publisher      *RecordingPublisher
	Mailer         *FakeMailer
	Tokens         *utils.TokenManager

	UserService          *services.UserService
	ProjectService       *services.ProjectService
	TaskService          *services.TaskService
	MessageService       *services.MessageService
	DirectMessageService *services.DirectMessageService
	NotificationService  *services.NotificationService
	CommentService       *services.CommentService
}

func NewStack(t *testing.T) *Stack {
	t.Helper()
	s := &Stack{
		Users:          NewUserRepo(),
		Projects:       NewProjectRepo(),
		Tasks:          NewTaskRepo(),
		Messages:       NewMessageRepo(),
		DirectMessages: NewDirectMessageRepo(),
		Comments:       NewCommentRepo(),
		Notifications:  NewNotificationRepo(),
		Graph:          NewGraph(),
		Publisher:      &RecordingPublisher{},
		Mailer:         &FakeMailer{},
		Tokens:         utils.NewTokenManager(TestSecret, time.Hour),
	}

	s.NotificationService = services.NewNotificationService(s.Notifications, s.Users, s.Publisher)
	s.UserService = services.NewUserService(s.Users, s.Projects, s.Tasks, s.Tokens, s.Mailer,
		services.DefaultBlackList(), 10*time.Minute)
	s.ProjectService = services.NewProjectService(s.Projects, s.Tasks, s.Users, s.Comments, s.Messages,
		s.Graph, s.NotificationService, s.Publisher)
	s.TaskService = services.NewTaskService(s.Tasks, s.Projects, s.Users, s.Comments, s.Graph,
		s.NotificationService, s.Publisher)
	s.MessageService = services.NewMessageService(s.Messages, s.Projects, s.Publisher)
	s.DirectMessageService = services.NewDirectMessageService(s.DirectMessages, s.Users,
		s.NotificationService, s.Publisher)
	s.CommentService = services.NewCommentService(s.Comments, s.TaskService, s.ProjectService,
		s.NotificationService)
	return s
}

// CreateUser registers a user with a valid password and returns it with its
// access token.
func (s *Stack) CreateUser(t *testing.T, name, email string) (*models.User, string) {
	t.Helper()
	user, token, err := s.UserService.Register(context.Background(), services.RegisterInput{
		Name:     name,
		Email:    email,
		Password: "Sup3r$ecret",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user, token
}

func (s *Stack) CreateProject(t *testing.T, ownerID primitive.ObjectID, name string) *models.Project {
	t.Helper()
	project, err := s.ProjectService.CreateProject(context.Background(), ownerID, services.ProjectInput{Name: name})
	if err != nil {
		t.Fatalf("create project %s: %v", name, err)
	}
	return project
}

func (s *Stack) AddCollaborator(t *testing.T, ownerID, projectID, userID primitive.ObjectID, role models.CollaboratorRole) {
	t.Helper()
	if _, err := s.ProjectService.AddCollaborator(context.Background(), ownerID, projectID, userID, role); err != nil {
		t.Fatalf("add collaborator: %v", err)
	}
}
