package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskflow-project/backend/models"
)

type DirectMessageRepo struct {
	collection *mongo.Collection
}

func NewDirectMessageRepo(db *mongo.Database) *DirectMessageRepo {
	return &DirectMessageRepo{collection: db.Collection(directMessagesCollection)}
}

func (r *DirectMessageRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "senderId", Value: 1}, {Key: "recipientId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "recipientId", Value: 1}, {Key: "read", Value: 1}}},
	})
	return err
}

func (r *DirectMessageRepo) Create(ctx context.Context, msg *models.DirectMessage) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, msg)
	return mapError(err)
}

func (r *DirectMessageRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.DirectMessage, error) {
	var msg models.DirectMessage
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&msg); err != nil {
		return nil, mapError(err)
	}
	return &msg, nil
}

func (r *DirectMessageRepo) findNewestFirst(ctx context.Context, filter bson.M, limit int64) ([]models.DirectMessage, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if limit > 0 {
		opts.SetLimit(limit)
	}
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	messages := make([]models.DirectMessage, 0)
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

func (r *DirectMessageRepo) FindConversation(ctx context.Context, userID, partnerID primitive.ObjectID, limit int64) ([]models.DirectMessage, error) {
	return r.findNewestFirst(ctx, bson.M{"$or": []bson.M{
		{"senderId": userID, "recipientId": partnerID},
		{"senderId": partnerID, "recipientId": userID},
	}}, limit)
}

// Conversations folds the user's messages into one summary per partner on
// the server, most recent thread first.
func (r *DirectMessageRepo) Conversations(ctx context.Context, userID primitive.ObjectID) ([]models.Conversation, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": []bson.M{
			{"senderId": userID},
			{"recipientId": userID},
		}}}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$cond": bson.A{
				bson.M{"$eq": bson.A{"$senderId", userID}}, "$recipientId", "$senderId",
			}},
			"lastMessage":   bson.M{"$first": "$content"},
			"lastMessageAt": bson.M{"$first": "$createdAt"},
			"unreadCount": bson.M{"$sum": bson.M{"$cond": bson.A{
				bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$recipientId", userID}},
					bson.M{"$eq": bson.A{"$read", false}},
				}}, 1, 0,
			}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "lastMessageAt", Value: -1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	conversations := make([]models.Conversation, 0)
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

func (r *DirectMessageRepo) MarkRead(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.MatchedCount, nil)
}

func (r *DirectMessageRepo) MarkConversationRead(ctx context.Context, recipientID, senderID primitive.ObjectID) (int64, error) {
	res, err := r.collection.UpdateMany(ctx,
		bson.M{"recipientId": recipientID, "senderId": senderID, "read": false},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *DirectMessageRepo) CountUnread(ctx context.Context, recipientID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"recipientId": recipientID, "read": false})
}

func (r *DirectMessageRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.DeletedCount, nil)
}
