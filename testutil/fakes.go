package testutil

import (
	"context"
	"sync"

	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []models.Event
	Err    error
}

func (p *RecordingPublisher) Publish(_ context.Context, event models.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.Err
}

func (p *RecordingPublisher) Events() []models.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Event(nil), p.events...)
}

// OfType returns the recorded events with the given type.
func (p *RecordingPublisher) OfType(eventType string) []models.Event {
	var out []models.Event
	for _, e := range p.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type SentMail struct {
	To      string
	Subject string
	Body    string
}

// FakeMailer records outgoing mail and fails with Err when set.
type FakeMailer struct {
	mu   sync.Mutex
	sent []SentMail
	Err  error
}

func (m *FakeMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *FakeMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMail(nil), m.sent...)
}

// Graph is an in-memory DependencyGraph with the same conflict rules as the
// Neo4j store.
type Graph struct {
	mu    sync.Mutex
	nodes map[string]models.TaskNode
	edges map[string]map[string]bool
}

func NewGraph() *Graph {
	return &Graph{nodes: make(map[string]models.TaskNode), edges: make(map[string]map[string]bool)}
}

func (g *Graph) EnsureTaskNode(_ context.Context, node models.TaskNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nodes[node.ID] = node
	return nil
}

func (g *Graph) DeleteTaskNode(_ context.Context, taskID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.nodes, taskID)
	delete(g.edges, taskID)
	for _, deps := range g.edges {
		delete(deps, taskID)
	}
	return nil
}

func (g *Graph) reaches(from, to string) bool {
	if from == to {
		return true
	}
	visited := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range g.edges[cur] {
			if next == to {
				return true
			}
			if !visited[next] {
				visited[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

func (g *Graph) AddDependency(_ context.Context, rel models.TaskDependencyRelation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.nodes[rel.TaskID]; !ok {
		return services.ErrNotFound
	}
	if _, ok := g.nodes[rel.DependsOnID]; !ok {
		return services.ErrNotFound
	}
	if g.edges[rel.TaskID][rel.DependsOnID] {
		return services.ErrConflict
	}
	if g.reaches(rel.DependsOnID, rel.TaskID) {
		return services.ErrConflict
	}
	if g.edges[rel.TaskID] == nil {
		g.edges[rel.TaskID] = make(map[string]bool)
	}
	g.edges[rel.TaskID][rel.DependsOnID] = true
	return nil
}

func (g *Graph) RemoveDependency(_ context.Context, rel models.TaskDependencyRelation) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.edges[rel.TaskID][rel.DependsOnID] {
		return services.ErrNotFound
	}
	delete(g.edges[rel.TaskID], rel.DependsOnID)
	return nil
}

func (g *Graph) GetDependencies(_ context.Context, taskID string) ([]models.TaskNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]models.TaskNode, 0)
	for id := range g.edges[taskID] {
		if node, ok := g.nodes[id]; ok {
			out = append(out, node)
		}
	}
	return out, nil
}
