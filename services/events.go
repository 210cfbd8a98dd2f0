package services

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
)

// publishEvent pushes a real-time event. Delivery is best-effort: failures are
// logged and never surface to the caller.
func publishEvent(ctx context.Context, publisher EventPublisher, eventType string, recipients []primitive.ObjectID, payload any) {
	if publisher == nil || len(recipients) == 0 {
		return
	}
	ids := make([]string, 0, len(recipients))
	for _, id := range dedupe(recipients) {
		ids = append(ids, id.Hex())
	}

	event := models.Event{
		Type:       eventType,
		Recipients: ids,
		Payload:    payload,
		CreatedAt:  time.Now().UTC(),
	}
	if err := publisher.Publish(ctx, event); err != nil {
		logging.Logger.Warnf("Event ID: EVENT_PUBLISH_FAILED, Description: Failed to publish %s to %d recipients: %v", eventType, len(ids), err)
	}
}

// without returns ids minus exclude, preserving order.
func without(ids []primitive.ObjectID, exclude primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id != exclude {
			out = append(out, id)
		}
	}
	return out
}

func dedupe(ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	seen := make(map[primitive.ObjectID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
