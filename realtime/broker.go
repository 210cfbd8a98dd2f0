package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
)

const DefaultSubject = "taskflow.events"

// Broker publishes events. With a NATS connection every instance receives
// every event and delivers it to its own sockets; without one, events go
// straight to the local hub.
type Broker struct {
	hub     *Hub
	conn    *nats.Conn
	subject string
	sub     *nats.Subscription
}

// ConnectNATS dials the server with reconnects enabled.
func ConnectNATS(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("taskflow-backend"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logging.Logger.Warnf("Event ID: NATS_DISCONNECTED, Description: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Logger.Infof("Event ID: NATS_RECONNECTED, Description: Reconnected to %s", nc.ConnectedUrl())
		}),
	)
}

func NewBroker(hub *Hub, conn *nats.Conn, subject string) (*Broker, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	b := &Broker{hub: hub, conn: conn, subject: subject}
	if conn == nil {
		return b, nil
	}

	sub, err := conn.Subscribe(subject, b.onMessage)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	b.sub = sub
	logging.Logger.Infof("Event ID: NATS_SUBSCRIBED, Description: Fan-out on subject %s", subject)
	return b, nil
}

func (b *Broker) onMessage(msg *nats.Msg) {
	var event models.Event
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		logging.Logger.Warnf("Event ID: NATS_BAD_EVENT, Description: Could not decode event: %v", err)
		return
	}
	b.hub.Deliver(event)
}

func (b *Broker) Publish(_ context.Context, event models.Event) error {
	if b.conn == nil {
		b.hub.Deliver(event)
		return nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return b.conn.Publish(b.subject, data)
}

func (b *Broker) Close() {
	if b.sub != nil {
		_ = b.sub.Unsubscribe()
	}
}
