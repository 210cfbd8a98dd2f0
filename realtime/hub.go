// Package realtime pushes events to connected WebSocket clients. Delivery is
// best-effort: a client whose buffer is full is disconnected.
package realtime

import (
	"encoding/json"

	"gopkg.in/tomb.v2"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
)

const deliverBuffer = 256

// wireEvent is what a client receives; recipients stay server side.
type wireEvent struct {
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	CreatedAt string `json:"createdAt"`
}

type countRequest struct {
	userID string
	reply  chan int
}

// Hub owns the set of connected clients. All mutations happen on the run
// goroutine.
type Hub struct {
	t          tomb.Tomb
	register   chan *Client
	unregister chan *Client
	deliver    chan models.Event
	counts     chan countRequest
	clients    map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		deliver:    make(chan models.Event, deliverBuffer),
		counts:     make(chan countRequest),
		clients:    make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Start() {
	h.t.Go(h.run)
}

// Stop disconnects every client and waits for the run loop to exit.
func (h *Hub) Stop() error {
	h.t.Kill(nil)
	return h.t.Wait()
}

func (h *Hub) run() error {
	for {
		select {
		case <-h.t.Dying():
			for _, set := range h.clients {
				for c := range set {
					close(c.send)
				}
			}
			h.clients = map[string]map[*Client]struct{}{}
			return nil
		case c := <-h.register:
			set, ok := h.clients[c.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.userID] = set
			}
			set[c] = struct{}{}
			logging.Logger.Debugf("Event ID: WS_CLIENT_REGISTERED, Description: User %s now has %d connections", c.userID, len(set))
		case c := <-h.unregister:
			h.drop(c)
		case event := <-h.deliver:
			h.fanOut(event)
		case req := <-h.counts:
			req.reply <- len(h.clients[req.userID])
		}
	}
}

func (h *Hub) drop(c *Client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

func (h *Hub) fanOut(event models.Event) {
	data, err := json.Marshal(wireEvent{
		Type:      event.Type,
		Payload:   event.Payload,
		CreatedAt: event.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	})
	if err != nil {
		logging.Logger.Errorf("Event ID: WS_EVENT_ENCODE_FAILED, Description: Could not encode %s: %v", event.Type, err)
		return
	}
	for _, userID := range event.Recipients {
		for c := range h.clients[userID] {
			select {
			case c.send <- data:
			default:
				logging.Logger.Warnf("Event ID: WS_CLIENT_SLOW, Description: Dropping slow connection of user %s", userID)
				h.drop(c)
			}
		}
	}
}

// Deliver queues an event for local clients. It never blocks on a stopped
// hub.
func (h *Hub) Deliver(event models.Event) {
	select {
	case h.deliver <- event:
	case <-h.t.Dying():
	}
}

// Register adds a client; it reports false once the hub is stopping.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.t.Dying():
		return false
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.t.Dying():
	}
}

// Connections reports how many sockets a user has open.
func (h *Hub) Connections(userID string) int {
	req := countRequest{userID: userID, reply: make(chan int, 1)}
	select {
	case h.counts <- req:
		return <-req.reply
	case <-h.t.Dying():
		return 0
	}
}
