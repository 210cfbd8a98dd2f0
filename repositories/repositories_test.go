package repositories

import (
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

func TestMapError(t *testing.T) {
	if err := mapError(nil); err != nil {
		t.Errorf("nil mapped to %v", err)
	}
	if err := mapError(mongo.ErrNoDocuments); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("no documents mapped to %v", err)
	}
	dup := mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000, Message: "E11000 duplicate key"}}}
	if err := mapError(dup); !errors.Is(err, services.ErrConflict) {
		t.Errorf("duplicate key mapped to %v", err)
	}
	other := errors.New("boom")
	if err := mapError(other); err != other {
		t.Errorf("other error mapped to %v", err)
	}
}

func TestRequireMatch(t *testing.T) {
	if err := requireMatch(0, nil); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("zero matches: %v", err)
	}
	if err := requireMatch(1, nil); err != nil {
		t.Errorf("one match: %v", err)
	}
}

func TestTaskFilter(t *testing.T) {
	projectID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	filter := taskFilter(services.TaskFilter{
		ProjectID:      &projectID,
		Status:         models.StatusTodo,
		InvolvedUserID: &userID,
	})
	if filter["projectId"] != projectID {
		t.Errorf("projectId = %v", filter["projectId"])
	}
	if filter["status"] != models.StatusTodo {
		t.Errorf("status = %v", filter["status"])
	}
	or, ok := filter["$or"].([]bson.M)
	if !ok || len(or) != 2 {
		t.Fatalf("$or = %v", filter["$or"])
	}
	if _, ok := filter["assignees"]; ok {
		t.Error("assignee filter set without assignee")
	}

	if empty := taskFilter(services.TaskFilter{}); len(empty) != 0 {
		t.Errorf("empty filter = %v", empty)
	}
}

func TestParseNotificationID(t *testing.T) {
	if _, err := parseNotificationID("not-a-uuid"); !errors.Is(err, services.ErrNotFound) {
		t.Errorf("malformed id: %v", err)
	}
	if _, err := parseNotificationID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"); err != nil {
		t.Errorf("valid id: %v", err)
	}
}
