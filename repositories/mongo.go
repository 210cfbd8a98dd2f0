package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/services"
)

const (
	usersCollection          = "users"
	projectsCollection       = "projects"
	tasksCollection          = "tasks"
	messagesCollection       = "messages"
	directMessagesCollection = "direct_messages"
	commentsCollection       = "comments"
)

// ConnectMongo opens a client and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logging.Logger.Infof("Event ID: MONGO_CONNECTED, Description: Connected to MongoDB")
	return client, nil
}

// mapError translates driver errors into service sentinels.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return services.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", services.ErrConflict, err)
	default:
		return err
	}
}

// requireMatch turns an update or delete that touched nothing into ErrNotFound.
func requireMatch(matched int64, err error) error {
	if err != nil {
		return mapError(err)
	}
	if matched == 0 {
		return services.ErrNotFound
	}
	return nil
}
