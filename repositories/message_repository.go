package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskflow-project/backend/models"
)

type MessageRepo struct {
	collection *mongo.Collection
}

func NewMessageRepo(db *mongo.Database) *MessageRepo {
	return &MessageRepo{collection: db.Collection(messagesCollection)}
}

func (r *MessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "projectId", Value: 1}, {Key: "createdAt", Value: -1}},
	})
	return err
}

func (r *MessageRepo) Create(ctx context.Context, msg *models.Message) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []primitive.ObjectID{}
	}
	_, err := r.collection.InsertOne(ctx, msg)
	return mapError(err)
}

func (r *MessageRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Message, error) {
	var msg models.Message
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, mapError(err)
	}
	return &msg, nil
}

// FindByProject pages backwards through a channel, newest first.
func (r *MessageRepo) FindByProject(ctx context.Context, projectID primitive.ObjectID, limit int64, before *time.Time) ([]models.Message, error) {
	filter := bson.M{"projectId": projectID}
	if before != nil {
		filter["createdAt"] = bson.M{"$lt": *before}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	messages := make([]models.Message, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *MessageRepo) MarkRead(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$addToSet": bson.M{"readBy": userID}},
	)
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.MatchedCount, nil)
}

func (r *MessageRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.DeletedCount, nil)
}

func (r *MessageRepo) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"projectId": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
