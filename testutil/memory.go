// Package testutil holds in-memory stores and recording fakes that satisfy
// the service interfaces, so services and the router can be exercised
// without MongoDB, Cassandra or Neo4j.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gocql/gocql"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

func assignID(id *primitive.ObjectID) {
	if id.IsZero() {
		*id = primitive.NewObjectID()
	}
}

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return nil
	}
	return append([]primitive.ObjectID(nil), ids...)
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func removeID(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// ---- users ----

type UserRepo struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]models.User
	order []primitive.ObjectID
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[primitive.ObjectID]models.User)}
}

func cloneUser(u models.User) *models.User {
	u.Skills = append([]string(nil), u.Skills...)
	return &u
}

func (r *UserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email {
			return services.ErrConflict
		}
	}
	assignID(&user.ID)
	r.users[user.ID] = *cloneUser(*user)
	r.order = append(r.order, user.ID)
	return nil
}

func (r *UserRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, services.ErrNotFound
}

func (r *UserRepo) FindByIDs(_ context.Context, ids []primitive.ObjectID) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.User, 0)
	for _, id := range r.order {
		if u, ok := r.users[id]; ok && containsID(ids, id) {
			out = append(out, *cloneUser(u))
		}
	}
	return out, nil
}

func (r *UserRepo) Search(_ context.Context, query string, limit int64) ([]models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	query = strings.ToLower(query)
	out := make([]models.User, 0)
	for _, id := range r.order {
		u, ok := r.users[id]
		if !ok {
			continue
		}
		if strings.Contains(strings.ToLower(u.Name), query) || strings.Contains(u.Email, query) {
			out = append(out, *cloneUser(u))
		}
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

func (r *UserRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[user.ID]; !ok {
		return services.ErrNotFound
	}
	for id, u := range r.users {
		if id != user.ID && u.Email == user.Email {
			return services.ErrConflict
		}
	}
	r.users[user.ID] = *cloneUser(*user)
	return nil
}

func (r *UserRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return services.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

// ---- projects ----

type ProjectRepo struct {
	mu       sync.Mutex
	projects map[primitive.ObjectID]models.Project
	order    []primitive.ObjectID
}

func NewProjectRepo() *ProjectRepo {
	return &ProjectRepo{projects: make(map[primitive.ObjectID]models.Project)}
}

func cloneProject(p models.Project) *models.Project {
	p.Collaborators = append([]models.Collaborator(nil), p.Collaborators...)
	return &p
}

func (r *ProjectRepo) Create(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&project.ID)
	r.projects[project.ID] = *cloneProject(*project)
	r.order = append(r.order, project.ID)
	return nil
}

func (r *ProjectRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Project, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneProject(p), nil
}

func (r *ProjectRepo) find(match func(models.Project) bool) []models.Project {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Project, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		p, ok := r.projects[r.order[i]]
		if ok && match(p) {
			out = append(out, *cloneProject(p))
		}
	}
	return out
}

func (r *ProjectRepo) FindForUser(_ context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	return r.find(func(p models.Project) bool {
		_, ok := p.Collaborator(userID)
		return p.UserID == userID || ok
	}), nil
}

func (r *ProjectRepo) FindOwnedBy(_ context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	return r.find(func(p models.Project) bool { return p.UserID == userID }), nil
}

func (r *ProjectRepo) Update(_ context.Context, project *models.Project) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.projects[project.ID]
	if !ok {
		return services.ErrNotFound
	}
	// Counters are owned by IncrementTaskCounters, as in the Mongo store.
	updated := *cloneProject(*project)
	updated.TaskCount = current.TaskCount
	updated.CompletedTaskCount = current.CompletedTaskCount
	r.projects[project.ID] = updated
	return nil
}

func (r *ProjectRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.projects[id]; !ok {
		return services.ErrNotFound
	}
	delete(r.projects, id)
	return nil
}

func (r *ProjectRepo) IncrementTaskCounters(_ context.Context, id primitive.ObjectID, total, completed int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.projects[id]
	if !ok {
		return services.ErrNotFound
	}
	p.TaskCount += total
	p.CompletedTaskCount += completed
	r.projects[id] = p
	return nil
}

func (r *ProjectRepo) RemoveCollaboratorEverywhere(_ context.Context, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, p := range r.projects {
		kept := make([]models.Collaborator, 0, len(p.Collaborators))
		for _, c := range p.Collaborators {
			if c.UserID != userID {
				kept = append(kept, c)
			}
		}
		p.Collaborators = kept
		r.projects[id] = p
	}
	return nil
}

// ---- tasks ----

type TaskRepo struct {
	mu    sync.Mutex
	tasks map[primitive.ObjectID]models.Task
	order []primitive.ObjectID
}

func NewTaskRepo() *TaskRepo {
	return &TaskRepo{tasks: make(map[primitive.ObjectID]models.Task)}
}

func cloneTask(t models.Task) *models.Task {
	t.Assignees = cloneIDs(t.Assignees)
	return &t
}

func (r *TaskRepo) Create(_ context.Context, task *models.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&task.ID)
	r.tasks[task.ID] = *cloneTask(*task)
	r.order = append(r.order, task.ID)
	return nil
}

func (r *TaskRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return cloneTask(t), nil
}

// Find returns matches newest first.
func (r *TaskRepo) Find(_ context.Context, filter services.TaskFilter) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Task, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		t, ok := r.tasks[r.order[i]]
		if !ok {
			continue
		}
		if filter.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *filter.ProjectID) {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.AssigneeID != nil && !containsID(t.Assignees, *filter.AssigneeID) {
			continue
		}
		if filter.InvolvedUserID != nil && t.UserID != *filter.InvolvedUserID && !containsID(t.Assignees, *filter.InvolvedUserID) {
			continue
		}
		out = append(out, *cloneTask(t))
	}
	return out, nil
}

func (r *TaskRepo) Update(_ context.Context, task *models.Task, expected models.TaskStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.tasks[task.ID]
	if !ok {
		return services.ErrNotFound
	}
	if stored.Status != expected {
		return fmt.Errorf("%w: task status changed concurrently", services.ErrConflict)
	}
	r.tasks[task.ID] = *cloneTask(*task)
	return nil
}

func (r *TaskRepo) Delete(_ context.Context, id primitive.ObjectID) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	delete(r.tasks, id)
	return cloneTask(t), nil
}

func (r *TaskRepo) DeleteByProject(_ context.Context, projectID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, t := range r.tasks {
		if t.ProjectID != nil && *t.ProjectID == projectID {
			delete(r.tasks, id)
			n++
		}
	}
	return n, nil
}

func (r *TaskRepo) RemoveAssigneeEverywhere(_ context.Context, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tasks {
		if containsID(t.Assignees, userID) {
			t.Assignees = removeID(t.Assignees, userID)
			r.tasks[id] = t
		}
	}
	return nil
}

func (r *TaskRepo) RemoveAssigneeFromProject(_ context.Context, projectID, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.tasks {
		if t.ProjectID != nil && *t.ProjectID == projectID && containsID(t.Assignees, userID) {
			t.Assignees = removeID(t.Assignees, userID)
			r.tasks[id] = t
		}
	}
	return nil
}

// ---- project messages ----

type MessageRepo struct {
	mu       sync.Mutex
	messages map[primitive.ObjectID]models.Message
	order    []primitive.ObjectID
}

func NewMessageRepo() *MessageRepo {
	return &MessageRepo{messages: make(map[primitive.ObjectID]models.Message)}
}

func (r *MessageRepo) Create(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&msg.ID)
	stored := *msg
	stored.ReadBy = cloneIDs(msg.ReadBy)
	r.messages[msg.ID] = stored
	r.order = append(r.order, msg.ID)
	return nil
}

func (r *MessageRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	m.ReadBy = cloneIDs(m.ReadBy)
	return &m, nil
}

// FindByProject returns newest first.
func (r *MessageRepo) FindByProject(_ context.Context, projectID primitive.ObjectID, limit int64, before *time.Time) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Message, 0)
	for i := len(r.order) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		m, ok := r.messages[r.order[i]]
		if !ok || m.ProjectID != projectID {
			continue
		}
		if before != nil && !m.CreatedAt.Before(*before) {
			continue
		}
		m.ReadBy = cloneIDs(m.ReadBy)
		out = append(out, m)
	}
	return out, nil
}

func (r *MessageRepo) MarkRead(_ context.Context, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return services.ErrNotFound
	}
	if !containsID(m.ReadBy, userID) {
		m.ReadBy = append(cloneIDs(m.ReadBy), userID)
		r.messages[id] = m
	}
	return nil
}

func (r *MessageRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return services.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

func (r *MessageRepo) DeleteByProject(_ context.Context, projectID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.ProjectID == projectID {
			delete(r.messages, id)
			n++
		}
	}
	return n, nil
}

// ---- direct messages ----

type DirectMessageRepo struct {
	mu       sync.Mutex
	messages map[primitive.ObjectID]models.DirectMessage
	order    []primitive.ObjectID
}

func NewDirectMessageRepo() *DirectMessageRepo {
	return &DirectMessageRepo{messages: make(map[primitive.ObjectID]models.DirectMessage)}
}

func (r *DirectMessageRepo) Create(_ context.Context, msg *models.DirectMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&msg.ID)
	r.messages[msg.ID] = *msg
	r.order = append(r.order, msg.ID)
	return nil
}

func (r *DirectMessageRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &m, nil
}

func (r *DirectMessageRepo) newestFirst(match func(models.DirectMessage) bool, limit int64) []models.DirectMessage {
	out := make([]models.DirectMessage, 0)
	for i := len(r.order) - 1; i >= 0; i-- {
		if limit > 0 && int64(len(out)) == limit {
			break
		}
		m, ok := r.messages[r.order[i]]
		if ok && match(m) {
			out = append(out, m)
		}
	}
	return out
}

func (r *DirectMessageRepo) FindConversation(_ context.Context, userID, partnerID primitive.ObjectID, limit int64) ([]models.DirectMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.newestFirst(func(m models.DirectMessage) bool {
		return (m.SenderID == userID && m.RecipientID == partnerID) ||
			(m.SenderID == partnerID && m.RecipientID == userID)
	}, limit), nil
}

func (r *DirectMessageRepo) Conversations(_ context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := r.newestFirst(func(m models.DirectMessage) bool {
		return m.SenderID == userID || m.RecipientID == userID
	}, 0)

	out := make([]models.Conversation, 0)
	index := make(map[primitive.ObjectID]int)
	for _, m := range messages {
		partner := m.SenderID
		if partner == userID {
			partner = m.RecipientID
		}
		i, ok := index[partner]
		if !ok {
			i = len(out)
			index[partner] = i
			out = append(out, models.Conversation{PartnerID: partner})
		}
		if !ok || m.CreatedAt.After(out[i].LastMessageAt) {
			out[i].LastMessage = m.Content
			out[i].LastMessageAt = m.CreatedAt
		}
		if m.RecipientID == userID && !m.Read {
			out[i].UnreadCount++
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LastMessageAt.After(out[j].LastMessageAt) })
	return out, nil
}

func (r *DirectMessageRepo) MarkRead(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.messages[id]
	if !ok {
		return services.ErrNotFound
	}
	m.Read = true
	r.messages[id] = m
	return nil
}

func (r *DirectMessageRepo) MarkConversationRead(_ context.Context, recipientID, senderID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.messages {
		if m.RecipientID == recipientID && m.SenderID == senderID && !m.Read {
			m.Read = true
			r.messages[id] = m
			n++
		}
	}
	return n, nil
}

func (r *DirectMessageRepo) CountUnread(_ context.Context, recipientID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, m := range r.messages {
		if m.RecipientID == recipientID && !m.Read {
			n++
		}
	}
	return n, nil
}

func (r *DirectMessageRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[id]; !ok {
		return services.ErrNotFound
	}
	delete(r.messages, id)
	return nil
}

// ---- comments ----

type CommentRepo struct {
	mu       sync.Mutex
	comments map[primitive.ObjectID]models.Comment
	order    []primitive.ObjectID
}

func NewCommentRepo() *CommentRepo {
	return &CommentRepo{comments: make(map[primitive.ObjectID]models.Comment)}
}

func (r *CommentRepo) Create(_ context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	assignID(&comment.ID)
	r.comments[comment.ID] = *comment
	r.order = append(r.order, comment.ID)
	return nil
}

func (r *CommentRepo) FindByID(_ context.Context, id primitive.ObjectID) (*models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.comments[id]
	if !ok {
		return nil, services.ErrNotFound
	}
	return &c, nil
}

func sameRef(a, b *primitive.ObjectID) bool {
	return a != nil && b != nil && *a == *b
}

// Find returns matches oldest first.
func (r *CommentRepo) Find(_ context.Context, filter services.CommentFilter) ([]models.Comment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Comment, 0)
	for _, id := range r.order {
		c, ok := r.comments[id]
		if !ok {
			continue
		}
		if filter.TaskID != nil && !sameRef(c.TaskID, filter.TaskID) {
			continue
		}
		if filter.ProjectID != nil && !sameRef(c.ProjectID, filter.ProjectID) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *CommentRepo) Update(_ context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[comment.ID]; !ok {
		return services.ErrNotFound
	}
	r.comments[comment.ID] = *comment
	return nil
}

func (r *CommentRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.comments[id]; !ok {
		return services.ErrNotFound
	}
	delete(r.comments, id)
	return nil
}

func (r *CommentRepo) deleteWhere(match func(models.Comment) bool) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, c := range r.comments {
		if match(c) {
			delete(r.comments, id)
			n++
		}
	}
	return n
}

func (r *CommentRepo) DeleteByTask(_ context.Context, taskID primitive.ObjectID) (int64, error) {
	return r.deleteWhere(func(c models.Comment) bool { return sameRef(c.TaskID, &taskID) }), nil
}

func (r *CommentRepo) DeleteByProject(_ context.Context, projectID primitive.ObjectID) (int64, error) {
	return r.deleteWhere(func(c models.Comment) bool { return sameRef(c.ProjectID, &projectID) }), nil
}

// ---- notifications ----

// NotificationRepo mirrors the Cassandra table: one partition per recipient,
// clustered newest first.
type NotificationRepo struct {
	mu         sync.Mutex
	partitions map[string][]models.Notification
}

func NewNotificationRepo() *NotificationRepo {
	return &NotificationRepo{partitions: make(map[string][]models.Notification)}
}

func (r *NotificationRepo) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n.ID == "" {
		n.ID = gocql.TimeUUID().String()
	}
	r.partitions[n.RecipientID] = append([]models.Notification{*n}, r.partitions[n.RecipientID]...)
	return nil
}

func (r *NotificationRepo) FindByRecipient(_ context.Context, recipientID string, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	partition := r.partitions[recipientID]
	if limit > 0 && len(partition) > limit {
		partition = partition[:limit]
	}
	return append([]models.Notification{}, partition...), nil
}

func (r *NotificationRepo) FindUnreadByRecipient(_ context.Context, recipientID string, limit int) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Notification, 0)
	for _, n := range r.partitions[recipientID] {
		if limit > 0 && len(out) == limit {
			break
		}
		if !n.Read {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *NotificationRepo) index(recipientID, id string) int {
	for i, n := range r.partitions[recipientID] {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func (r *NotificationRepo) FindByID(_ context.Context, recipientID, id string) (*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(recipientID, id)
	if i < 0 {
		return nil, services.ErrNotFound
	}
	n := r.partitions[recipientID][i]
	return &n, nil
}

func (r *NotificationRepo) MarkRead(_ context.Context, recipientID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(recipientID, id)
	if i < 0 {
		return services.ErrNotFound
	}
	r.partitions[recipientID][i].Read = true
	return nil
}

func (r *NotificationRepo) Delete(_ context.Context, recipientID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.index(recipientID, id)
	if i < 0 {
		return services.ErrNotFound
	}
	partition := r.partitions[recipientID]
	r.partitions[recipientID] = append(partition[:i:i], partition[i+1:]...)
	return nil
}

// All returns every stored notification sorted by recipient, for assertions.
func (r *NotificationRepo) All() []models.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, 0, len(r.partitions))
	for k := range r.partitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]models.Notification, 0)
	for _, k := range keys {
		out = append(out, r.partitions[k]...)
	}
	return out
}
