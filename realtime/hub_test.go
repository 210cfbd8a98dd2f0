package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/models"
	"taskflow-project/backend/utils"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	hub.Start()
	t.Cleanup(func() { _ = hub.Stop() })
	return hub
}

func testClient(hub *Hub, userID string, buffer int) *Client {
	return &Client{hub: hub, userID: userID, send: make(chan []byte, buffer)}
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case data, ok := <-c.send:
		if !ok {
			t.Fatal("client channel closed")
		}
		return data
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return nil
}

func TestHubFansOutToEveryConnectionOfRecipient(t *testing.T) {
	hub := startHub(t)
	phone := testClient(hub, "ana", 4)
	laptop := testClient(hub, "ana", 4)
	other := testClient(hub, "marko", 4)
	for _, c := range []*Client{phone, laptop, other} {
		if !hub.Register(c) {
			t.Fatal("register refused")
		}
	}
	if n := hub.Connections("ana"); n != 2 {
		t.Fatalf("connections = %d, want 2", n)
	}

	hub.Deliver(models.Event{Type: models.EventTaskMoved, Recipients: []string{"ana"}, Payload: map[string]string{"id": "1"}, CreatedAt: time.Now()})

	for _, c := range []*Client{phone, laptop} {
		var got struct {
			Type    string            `json:"type"`
			Payload map[string]string `json:"payload"`
		}
		if err := json.Unmarshal(receive(t, c), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Type != models.EventTaskMoved || got.Payload["id"] != "1" {
			t.Errorf("event = %+v", got)
		}
	}
	select {
	case <-other.send:
		t.Error("non-recipient received the event")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := startHub(t)
	slow := testClient(hub, "ana", 0)
	hub.Register(slow)

	hub.Deliver(models.Event{Type: models.EventMessageNew, Recipients: []string{"ana"}})

	// Nobody reads from the unbuffered channel, so the hub must give up.
	deadline := time.Now().Add(time.Second)
	for hub.Connections("ana") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("slow client was not dropped")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, ok := <-slow.send; ok {
		t.Fatal("dropped client channel still open")
	}
}

func TestHubUnregisterAndStop(t *testing.T) {
	hub := NewHub()
	hub.Start()
	a := testClient(hub, "ana", 1)
	b := testClient(hub, "ana", 1)
	hub.Register(a)
	hub.Register(b)

	hub.Unregister(a)
	if _, ok := <-a.send; ok {
		t.Fatal("unregistered client channel still open")
	}
	if n := hub.Connections("ana"); n != 1 {
		t.Fatalf("connections = %d, want 1", n)
	}

	if err := hub.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, ok := <-b.send; ok {
		t.Fatal("client channel open after stop")
	}
	if hub.Register(testClient(hub, "ana", 1)) {
		t.Error("stopped hub accepted a client")
	}
	// Must not block.
	hub.Deliver(models.Event{Type: models.EventMessageNew, Recipients: []string{"ana"}})
}

func TestBrokerWithoutNATSDeliversLocally(t *testing.T) {
	hub := startHub(t)
	c := testClient(hub, "ana", 1)
	hub.Register(c)

	broker, err := NewBroker(hub, nil, "")
	if err != nil {
		t.Fatalf("broker: %v", err)
	}
	defer broker.Close()

	if err := broker.Publish(context.Background(), models.Event{Type: models.EventNotificationNew, Recipients: []string{"ana"}}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.Contains(string(receive(t, c)), models.EventNotificationNew) {
		t.Error("event type missing from payload")
	}
}

func TestServeWS(t *testing.T) {
	hub := startHub(t)
	tokens := utils.NewTokenManager("secret", time.Hour)
	userID := primitive.NewObjectID()
	token, err := tokens.GenerateToken(userID.Hex(), "ana@example.com")
	if err != nil {
		t.Fatalf("token: %v", err)
	}

	srv := httptest.NewServer(ServeWS(hub, tokens, "*"))
	defer srv.Close()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(wsURL+"?token=bogus", nil)
	if err == nil {
		t.Fatal("dial with a bad token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad token response = %v", resp)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Connections(userID.Hex()) != 1 {
		if time.Now().After(deadline) {
			t.Fatal("connection never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Deliver(models.Event{Type: models.EventDirectMessageNew, Recipients: []string{userID.Hex()}, Payload: "hi"})

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	var got wireEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != models.EventDirectMessageNew || got.Payload != "hi" {
		t.Errorf("event = %+v", got)
	}
}
