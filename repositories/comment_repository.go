package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

type CommentRepo struct {
	collection *mongo.Collection
}

func NewCommentRepo(db *mongo.Database) *CommentRepo {
	return &CommentRepo{collection: db.Collection(commentsCollection)}
}

func (r *CommentRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "taskId", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "projectId", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	return err
}

func (r *CommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, comment)
	return mapError(err)
}

func (r *CommentRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&comment); err != nil {
		return nil, mapError(err)
	}
	return &comment, nil
}

// Find returns comments oldest first.
func (r *CommentRepo) Find(ctx context.Context, f services.CommentFilter) ([]models.Comment, error) {
	filter := bson.M{}
	if f.TaskID != nil {
		filter["taskId"] = *f.TaskID
	}
	if f.ProjectID != nil {
		filter["projectId"] = *f.ProjectID
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	comments := make([]models.Comment, 0)
	if err := cursor.All(ctx, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *CommentRepo) Update(ctx context.Context, comment *models.Comment) error {
	update := bson.M{"$set": bson.M{
		"text":      comment.Text,
		"edited":    comment.Edited,
		"updatedAt": comment.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": comment.ID}, update)
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.MatchedCount, nil)
}

func (r *CommentRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.DeletedCount, nil)
}

func (r *CommentRepo) DeleteByTask(ctx context.Context, taskID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"taskId": taskID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *CommentRepo) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"projectId": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
