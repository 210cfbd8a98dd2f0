package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"taskflow-project/backend/handlers"
	"taskflow-project/backend/middleware"
	"taskflow-project/backend/models"
	"taskflow-project/backend/testutil"
)

type testAPI struct {
	t       *testing.T
	st      *testutil.Stack
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	st := testutil.NewStack(t)
	h := handlers.NewRouter(handlers.RouterConfig{
		Tokens:         st.Tokens,
		CORSOrigin:     "http://localhost:3000",
		Metrics:        middleware.NewMetrics(),
		Auth:           handlers.NewAuthHandler(st.UserService),
		Users:          handlers.NewUserHandler(st.UserService),
		Projects:       handlers.NewProjectHandler(st.ProjectService),
		Tasks:          handlers.NewTaskHandler(st.TaskService),
		Messages:       handlers.NewMessageHandler(st.MessageService),
		DirectMessages: handlers.NewDirectMessageHandler(st.DirectMessageService),
		Notifications:  handlers.NewNotificationHandler(st.NotificationService),
		Comments:       handlers.NewCommentHandler(st.CommentService),
	})
	return &testAPI{t: t, st: st, handler: h}
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d, body = %s", rec.Code, want, rec.Body.String())
	}
}

// expectMessage checks the status and that the body is a {"message": ...} error.
func expectMessage(t *testing.T, rec *httptest.ResponseRecorder, want int) string {
	t.Helper()
	expectStatus(t, rec, want)
	body := decode[map[string]string](t, rec)
	if body["message"] == "" {
		t.Fatalf("body %s has no message", rec.Body.String())
	}
	return body["message"]
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	paths := []string{
		"/api/users/me",
		"/api/projects",
		"/api/tasks",
		"/api/direct-messages/conversations",
		"/api/notifications",
		"/api/comments?taskId=000000000000000000000000",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			expectMessage(t, api.do(http.MethodGet, path, "", nil), http.StatusUnauthorized)
		})
	}
}

func TestRegisterLoginAndProfile(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "Sup3r$ecret",
	})
	expectStatus(t, rec, http.StatusCreated)
	registered := decode[handlers.AuthResponse](t, rec)
	if registered.Token == "" || registered.User == nil || registered.User.Email != "ana@example.com" {
		t.Fatalf("unexpected register response %s", rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Errorf("password leaked in %s", rec.Body.String())
	}

	rec = api.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "Sup3r$ecret",
	})
	expectMessage(t, rec, http.StatusConflict)

	rec = api.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ana@example.com", "password": "wrong",
	})
	expectMessage(t, rec, http.StatusUnauthorized)

	rec = api.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ana@example.com", "password": "Sup3r$ecret",
	})
	expectStatus(t, rec, http.StatusOK)
	token := decode[handlers.AuthResponse](t, rec).Token

	rec = api.do(http.MethodPut, "/api/users/me", token, map[string]any{"bio": "Gopher", "skills": []string{"go"}})
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodGet, "/api/users/me", token, nil)
	expectStatus(t, rec, http.StatusOK)
	me := decode[models.User](t, rec)
	if me.Bio != "Gopher" || len(me.Skills) != 1 {
		t.Errorf("profile not updated: %+v", me)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodPost, "/api/users/register", "", map[string]string{
		"name": "Ana", "email": "ana@example.com", "password": "short",
	})
	expectMessage(t, rec, http.StatusBadRequest)
}

func TestPasswordResetOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	api.st.CreateUser(t, "Ana", "ana@example.com")

	rec := api.do(http.MethodPost, "/api/users/forgot-password", "", map[string]string{"email": "ana@example.com"})
	expectStatus(t, rec, http.StatusOK)
	sent := api.st.Mailer.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d mails, want 1", len(sent))
	}
	m := regexp.MustCompile(`code is (\d{6})`).FindStringSubmatch(sent[0].Body)
	if m == nil {
		t.Fatalf("no code in %q", sent[0].Body)
	}

	rec = api.do(http.MethodPost, "/api/users/verify-otp", "", map[string]string{"email": "ana@example.com", "otp": m[1]})
	expectStatus(t, rec, http.StatusOK)
	resetToken := decode[map[string]string](t, rec)["resetToken"]

	rec = api.do(http.MethodPost, "/api/users/reset-password", "", map[string]string{
		"resetToken": resetToken, "newPassword": "N3w$ecret!",
	})
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodPost, "/api/users/reset-password", "", map[string]string{
		"resetToken": resetToken, "newPassword": "An0ther$ecret",
	})
	expectMessage(t, rec, http.StatusUnauthorized)

	rec = api.do(http.MethodPost, "/api/users/login", "", map[string]string{
		"email": "ana@example.com", "password": "N3w$ecret!",
	})
	expectStatus(t, rec, http.StatusOK)
}

func TestCreatedProjectIsRetrievable(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.st.CreateUser(t, "Owner", "owner@example.com")

	rec := api.do(http.MethodPost, "/api/projects", token, map[string]string{"name": "Apollo", "priority": "high"})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[models.Project](t, rec)

	rec = api.do(http.MethodGet, "/api/projects/"+created.ID.Hex(), token, nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[models.Project](t, rec)
	if got.Name != "Apollo" || got.Priority != models.PriorityHigh || got.Status != models.ProjectPlanning {
		t.Errorf("got %+v", got)
	}

	rec = api.do(http.MethodGet, "/api/projects", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]models.Project](t, rec); len(list) != 1 {
		t.Errorf("listed %d projects, want 1", len(list))
	}

	expectMessage(t, api.do(http.MethodGet, "/api/projects/not-an-id", token, nil), http.StatusBadRequest)
	expectMessage(t, api.do(http.MethodPost, "/api/projects", token, map[string]string{"name": " "}), http.StatusBadRequest)
}

func TestDeleteByNonOwnerIsForbidden(t *testing.T) {
	api := newTestAPI(t)
	owner, ownerToken := api.st.CreateUser(t, "Owner", "owner@example.com")
	editor, editorToken := api.st.CreateUser(t, "Editor", "editor@example.com")
	project := api.st.CreateProject(t, owner.ID, "Apollo")
	api.st.AddCollaborator(t, owner.ID, project.ID, editor.ID, models.CollaboratorEditor)

	rec := api.do(http.MethodPost, "/api/tasks", ownerToken, map[string]string{"title": "Design", "projectId": project.ID.Hex()})
	expectStatus(t, rec, http.StatusCreated)
	task := decode[models.Task](t, rec)

	rec = api.do(http.MethodPost, "/api/comments", ownerToken, map[string]string{"projectId": project.ID.Hex(), "text": "Kickoff"})
	expectStatus(t, rec, http.StatusCreated)
	comment := decode[models.Comment](t, rec)

	rec = api.do(http.MethodPost, "/api/messages", ownerToken, map[string]string{"projectId": project.ID.Hex(), "content": "Hello"})
	expectStatus(t, rec, http.StatusCreated)
	msg := decode[models.Message](t, rec)

	paths := map[string]string{
		"project": "/api/projects/" + project.ID.Hex(),
		"task":    "/api/tasks/" + task.ID.Hex(),
		"comment": "/api/comments/" + comment.ID.Hex(),
		"message": "/api/messages/" + msg.ID.Hex(),
	}
	for name, path := range paths {
		t.Run(name, func(t *testing.T) {
			expectMessage(t, api.do(http.MethodDelete, path, editorToken, nil), http.StatusForbidden)
		})
	}

	// The owner can still delete everything.
	for _, name := range []string{"comment", "message", "task", "project"} {
		expectStatus(t, api.do(http.MethodDelete, paths[name], ownerToken, nil), http.StatusOK)
	}
	expectMessage(t, api.do(http.MethodGet, paths["project"], ownerToken, nil), http.StatusNotFound)
}

func TestTaskStatusAndBoard(t *testing.T) {
	api := newTestAPI(t)
	owner, token := api.st.CreateUser(t, "Owner", "owner@example.com")
	project := api.st.CreateProject(t, owner.ID, "Apollo")

	rec := api.do(http.MethodPost, "/api/tasks", token, map[string]any{
		"title":     "Build",
		"projectId": project.ID.Hex(),
		"assignees": []string{owner.ID.Hex()},
	})
	expectStatus(t, rec, http.StatusCreated)
	task := decode[models.Task](t, rec)
	if task.Status != models.StatusTodo && task.Status != models.StatusBacklog {
		t.Fatalf("unexpected default status %q", task.Status)
	}

	statusPath := "/api/tasks/" + task.ID.Hex() + "/status"
	expectMessage(t, api.do(http.MethodPatch, statusPath, token, map[string]string{"status": "done"}), http.StatusBadRequest)

	rec = api.do(http.MethodPatch, statusPath, token, map[string]string{"status": "completed"})
	expectStatus(t, rec, http.StatusOK)
	if moved := decode[models.Task](t, rec); moved.Status != models.StatusCompleted || moved.CompletedAt == nil {
		t.Errorf("task not completed: %+v", moved)
	}

	rec = api.do(http.MethodGet, "/api/projects/"+project.ID.Hex()+"/board", token, nil)
	expectStatus(t, rec, http.StatusOK)
	board := decode[models.Board](t, rec)
	if len(board.Columns) != len(models.TaskStatuses) {
		t.Fatalf("board has %d columns", len(board.Columns))
	}
	for _, col := range board.Columns {
		want := 0
		if col.Status == models.StatusCompleted {
			want = 1
		}
		if len(col.Tasks) != want {
			t.Errorf("column %s has %d tasks, want %d", col.Status, len(col.Tasks), want)
		}
	}

	rec = api.do(http.MethodGet, "/api/tasks?projectId="+project.ID.Hex()+"&status=completed", token, nil)
	expectStatus(t, rec, http.StatusOK)
	if tasks := decode[[]models.Task](t, rec); len(tasks) != 1 {
		t.Errorf("filtered %d tasks, want 1", len(tasks))
	}
}

func TestRemovedMemberLosesTaskAccess(t *testing.T) {
	api := newTestAPI(t)
	owner, ownerToken := api.st.CreateUser(t, "Owner", "owner@example.com")
	member, memberToken := api.st.CreateUser(t, "Member", "member@example.com")
	project := api.st.CreateProject(t, owner.ID, "Apollo")
	api.st.AddCollaborator(t, owner.ID, project.ID, member.ID, models.CollaboratorViewer)

	rec := api.do(http.MethodPost, "/api/tasks", ownerToken, map[string]any{
		"title":     "Build",
		"projectId": project.ID.Hex(),
		"assignees": []string{member.ID.Hex()},
	})
	expectStatus(t, rec, http.StatusCreated)
	task := decode[models.Task](t, rec)

	statusPath := "/api/tasks/" + task.ID.Hex() + "/status"
	expectStatus(t, api.do(http.MethodPatch, statusPath, memberToken, map[string]string{"status": "in-progress"}), http.StatusOK)

	rec = api.do(http.MethodDelete, "/api/projects/"+project.ID.Hex()+"/collaborators/"+member.ID.Hex(), ownerToken, nil)
	expectStatus(t, rec, http.StatusOK)

	expectMessage(t, api.do(http.MethodPatch, statusPath, memberToken, map[string]string{"status": "completed"}), http.StatusForbidden)

	rec = api.do(http.MethodGet, "/api/tasks/"+task.ID.Hex(), ownerToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[models.Task](t, rec); len(got.Assignees) != 0 || got.Status != models.StatusInProgress {
		t.Errorf("task after removal: %+v", got)
	}
}

func TestEmptyListsEncodeAsArrays(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.st.CreateUser(t, "Ana", "ana@example.com")

	paths := []string{
		"/api/projects",
		"/api/tasks",
		"/api/notifications",
		"/api/notifications?unread=true",
		"/api/direct-messages/conversations",
	}
	for _, path := range paths {
		t.Run(path, func(t *testing.T) {
			rec := api.do(http.MethodGet, path, token, nil)
			expectStatus(t, rec, http.StatusOK)
			if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
				t.Errorf("body = %s, want []", body)
			}
		})
	}
}

func TestTaskDependencies(t *testing.T) {
	api := newTestAPI(t)
	owner, token := api.st.CreateUser(t, "Owner", "owner@example.com")
	project := api.st.CreateProject(t, owner.ID, "Apollo")

	create := func(title string) models.Task {
		rec := api.do(http.MethodPost, "/api/tasks", token, map[string]string{"title": title, "projectId": project.ID.Hex()})
		expectStatus(t, rec, http.StatusCreated)
		return decode[models.Task](t, rec)
	}
	first, second := create("First"), create("Second")

	depPath := "/api/tasks/" + second.ID.Hex() + "/dependencies"
	expectStatus(t, api.do(http.MethodPost, depPath, token, map[string]string{"dependsOnId": first.ID.Hex()}), http.StatusCreated)
	expectMessage(t, api.do(http.MethodPost, "/api/tasks/"+first.ID.Hex()+"/dependencies", token,
		map[string]string{"dependsOnId": second.ID.Hex()}), http.StatusConflict)

	rec := api.do(http.MethodGet, depPath, token, nil)
	expectStatus(t, rec, http.StatusOK)
	if deps := decode[[]models.TaskNode](t, rec); len(deps) != 1 || deps[0].ID != first.ID.Hex() {
		t.Errorf("dependencies = %+v", deps)
	}

	expectMessage(t, api.do(http.MethodPatch, "/api/tasks/"+second.ID.Hex()+"/status", token,
		map[string]string{"status": "in-progress"}), http.StatusConflict)

	expectStatus(t, api.do(http.MethodDelete, depPath+"/"+first.ID.Hex(), token, nil), http.StatusOK)
	expectStatus(t, api.do(http.MethodPatch, "/api/tasks/"+second.ID.Hex()+"/status", token,
		map[string]string{"status": "in-progress"}), http.StatusOK)
}

func TestDirectMessagesOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	ana, anaToken := api.st.CreateUser(t, "Ana", "ana@example.com")
	bob, bobToken := api.st.CreateUser(t, "Bob", "bob@example.com")

	expectMessage(t, api.do(http.MethodPost, "/api/direct-messages", anaToken,
		map[string]string{"recipientId": ana.ID.Hex(), "content": "me"}), http.StatusBadRequest)

	rec := api.do(http.MethodPost, "/api/direct-messages", anaToken, map[string]string{"recipientId": bob.ID.Hex(), "content": "Hi Bob"})
	expectStatus(t, rec, http.StatusCreated)
	dm := decode[models.DirectMessage](t, rec)

	rec = api.do(http.MethodGet, "/api/direct-messages/unread-count", bobToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if n := decode[map[string]int64](t, rec)["count"]; n != 1 {
		t.Errorf("unread = %d, want 1", n)
	}

	rec = api.do(http.MethodGet, "/api/direct-messages/conversations", bobToken, nil)
	expectStatus(t, rec, http.StatusOK)
	convs := decode[[]models.Conversation](t, rec)
	if len(convs) != 1 || convs[0].PartnerID != ana.ID || convs[0].UnreadCount != 1 {
		t.Fatalf("conversations = %+v", convs)
	}

	rec = api.do(http.MethodGet, "/api/direct-messages/"+ana.ID.Hex(), bobToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if thread := decode[[]models.DirectMessage](t, rec); len(thread) != 1 || thread[0].Content != "Hi Bob" {
		t.Errorf("thread = %+v", thread)
	}

	expectMessage(t, api.do(http.MethodPatch, "/api/direct-messages/"+dm.ID.Hex()+"/read", anaToken, nil), http.StatusForbidden)
	expectStatus(t, api.do(http.MethodPatch, "/api/direct-messages/conversation/"+ana.ID.Hex()+"/read", bobToken, nil), http.StatusOK)
	expectMessage(t, api.do(http.MethodDelete, "/api/direct-messages/"+dm.ID.Hex(), bobToken, nil), http.StatusForbidden)
	expectStatus(t, api.do(http.MethodDelete, "/api/direct-messages/"+dm.ID.Hex(), anaToken, nil), http.StatusOK)
}

func TestNotificationsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	_, anaToken := api.st.CreateUser(t, "Ana", "ana@example.com")
	bob, bobToken := api.st.CreateUser(t, "Bob", "bob@example.com")

	rec := api.do(http.MethodPost, "/api/notifications", anaToken, map[string]string{
		"recipientId": bob.ID.Hex(), "title": "Ping", "message": "Standup in 5",
	})
	expectStatus(t, rec, http.StatusCreated)
	created := decode[models.Notification](t, rec)

	rec = api.do(http.MethodGet, "/api/notifications/unread-count", bobToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if n := decode[map[string]int](t, rec)["count"]; n != 1 {
		t.Fatalf("unread = %d, want 1", n)
	}

	// Notifications are scoped to their recipient.
	expectMessage(t, api.do(http.MethodDelete, "/api/notifications/"+created.ID, anaToken, nil), http.StatusNotFound)

	expectStatus(t, api.do(http.MethodPatch, "/api/notifications/read-all", bobToken, nil), http.StatusOK)
	rec = api.do(http.MethodGet, "/api/notifications?unread=true", bobToken, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]models.Notification](t, rec); len(list) != 0 {
		t.Errorf("unread list has %d entries", len(list))
	}

	expectStatus(t, api.do(http.MethodDelete, "/api/notifications/"+created.ID, bobToken, nil), http.StatusOK)
	expectMessage(t, api.do(http.MethodPost, "/api/notifications", anaToken, map[string]string{
		"recipientId": bob.ID.Hex(), "title": "Ping", "message": "x", "type": "spam",
	}), http.StatusBadRequest)
}

func TestCommentsOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	owner, token := api.st.CreateUser(t, "Owner", "owner@example.com")
	project := api.st.CreateProject(t, owner.ID, "Apollo")

	expectMessage(t, api.do(http.MethodGet, "/api/comments", token, nil), http.StatusBadRequest)

	rec := api.do(http.MethodPost, "/api/comments", token, map[string]string{"projectId": project.ID.Hex(), "text": "First"})
	expectStatus(t, rec, http.StatusCreated)
	comment := decode[models.Comment](t, rec)

	rec = api.do(http.MethodPut, "/api/comments/"+comment.ID.Hex(), token, map[string]string{"text": "First, edited"})
	expectStatus(t, rec, http.StatusOK)
	if edited := decode[models.Comment](t, rec); !edited.Edited || edited.Text != "First, edited" {
		t.Errorf("comment = %+v", edited)
	}

	rec = api.do(http.MethodGet, "/api/comments?projectId="+project.ID.Hex(), token, nil)
	expectStatus(t, rec, http.StatusOK)
	if list := decode[[]models.Comment](t, rec); len(list) != 1 {
		t.Errorf("listed %d comments, want 1", len(list))
	}
}

func TestSystemRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/health", "", nil)
	expectStatus(t, rec, http.StatusOK)

	rec = api.do(http.MethodGet, "/metrics", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `taskflow_http_requests_total{method="GET",route="/health",status="200"} 1`) {
		t.Errorf("health request not counted:\n%s", rec.Body.String())
	}

	expectMessage(t, api.do(http.MethodGet, "/api/nowhere", "", nil), http.StatusNotFound)

	rec = api.do(http.MethodOptions, "/api/projects", "", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
	if rec.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("request id header missing")
	}
}
