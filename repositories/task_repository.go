package repositories

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

type TaskRepo struct {
	collection *mongo.Collection
}

func NewTaskRepo(db *mongo.Database) *TaskRepo {
	return &TaskRepo{collection: db.Collection(tasksCollection)}
}

func (r *TaskRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "projectId", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "assignees", Value: 1}}},
		{Keys: bson.D{{Key: "userId", Value: 1}}},
	})
	return err
}

func (r *TaskRepo) Create(ctx context.Context, task *models.Task) error {
	if task.ID.IsZero() {
		task.ID = primitive.NewObjectID()
	}
	if task.Assignees == nil {
		task.Assignees = []primitive.ObjectID{}
	}
	_, err := r.collection.InsertOne(ctx, task)
	return mapError(err)
}

func (r *TaskRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&task); err != nil {
		return nil, mapError(err)
	}
	return &task, nil
}

func taskFilter(f services.TaskFilter) bson.M {
	filter := bson.M{}
	if f.ProjectID != nil {
		filter["projectId"] = *f.ProjectID
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.AssigneeID != nil {
		filter["assignees"] = *f.AssigneeID
	}
	if f.InvolvedUserID != nil {
		filter["$or"] = []bson.M{
			{"userId": *f.InvolvedUserID},
			{"assignees": *f.InvolvedUserID},
		}
	}
	return filter
}

// Find returns matching tasks, newest first.
func (r *TaskRepo) Find(ctx context.Context, f services.TaskFilter) ([]models.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, taskFilter(f), opts)
	if err != nil {
		return nil, err
	}
	tasks := make([]models.Task, 0)
	if err := cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Update replaces the task only while its stored status still equals
// expected, so a concurrent move is reported as ErrConflict instead of being
// overwritten.
func (r *TaskRepo) Update(ctx context.Context, task *models.Task, expected models.TaskStatus) error {
	res, err := r.collection.ReplaceOne(ctx, bson.M{"_id": task.ID, "status": expected}, task)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.collection.CountDocuments(ctx, bson.M{"_id": task.ID})
	if err != nil {
		return err
	}
	if n == 0 {
		return services.ErrNotFound
	}
	return fmt.Errorf("%w: task status changed concurrently", services.ErrConflict)
}

// Delete removes the task and returns it as it was at deletion time.
func (r *TaskRepo) Delete(ctx context.Context, id primitive.ObjectID) (*models.Task, error) {
	var task models.Task
	if err := r.collection.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&task); err != nil {
		return nil, mapError(err)
	}
	return &task, nil
}

func (r *TaskRepo) DeleteByProject(ctx context.Context, projectID primitive.ObjectID) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{"projectId": projectID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (r *TaskRepo) RemoveAssigneeEverywhere(ctx context.Context, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"assignees": userID},
		bson.M{"$pull": bson.M{"assignees": userID}},
	)
	return err
}

// RemoveAssigneeFromProject unassigns the user from every task of one project.
func (r *TaskRepo) RemoveAssigneeFromProject(ctx context.Context, projectID, userID primitive.ObjectID) error {
	_, err := r.collection.UpdateMany(ctx,
		bson.M{"projectId": projectID, "assignees": userID},
		bson.M{"$pull": bson.M{"assignees": userID}},
	)
	return err
}
