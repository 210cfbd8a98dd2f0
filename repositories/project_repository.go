package repositories

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskflow-project/backend/models"
)

type ProjectRepo struct {
	collection *mongo.Collection
}

func NewProjectRepo(db *mongo.Database) *ProjectRepo {
	return &ProjectRepo{collection: db.Collection(projectsCollection)}
}

func (r *ProjectRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}}},
		{Keys: bson.D{{Key: "collaborators.userId", Value: 1}}},
	})
	return err
}

func (r *ProjectRepo) Create(ctx context.Context, project *models.Project) error {
	if project.ID.IsZero() {
		project.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, project)
	return mapError(err)
}

func (r *ProjectRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Project, error) {
	var project models.Project
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&project); err != nil {
		return nil, mapError(err)
	}
	return &project, nil
}

func (r *ProjectRepo) find(ctx context.Context, filter bson.M) ([]models.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	projects := make([]models.Project, 0)
	if err := cursor.All(ctx, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (r *ProjectRepo) FindForUser(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	return r.find(ctx, bson.M{"$or": []bson.M{
		{"userId": userID},
		{"collaborators.userId": userID},
	}})
}

func (r *ProjectRepo) FindOwnedBy(ctx context.Context, userID primitive.ObjectID) ([]models.Project, error) {
	return r.find(ctx, bson.M{"userId": userID})
}

// Update overwrites the editable fields. The task counters are left to
// IncrementTaskCounters so concurrent task writes are not lost.
func (r *ProjectRepo) Update(ctx context.Context, project *models.Project) error {
	update := bson.M{"$set": bson.M{
		"name":          project.Name,
		"description":   project.Description,
		"status":        project.Status,
		"priority":      project.Priority,
		"startDate":     project.StartDate,
		"endDate":       project.EndDate,
		"collaborators": project.Collaborators,
		"updatedAt":     project.UpdatedAt,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": project.ID}, update)
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.MatchedCount, nil)
}

func (r *ProjectRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.DeletedCount, nil)
}

func (r *ProjectRepo) IncrementTaskCounters(ctx context.Context, id primitive.ObjectID, total, completed int) error {
	update := bson.M{"$inc": bson.M{
		"taskCount":          total,
		"completedTaskCount": completed,
	}}
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return mapError(err)
	}
	return requireMatch(res.MatchedCount, nil)
}

func (r *ProjectRepo) RemoveCollaboratorEverywhere(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"collaborators.userId": userID},
		bson.M{"$pull": bson.M{"collaborators": bson.M{"userId": userID}}},
	)
	return err
}
