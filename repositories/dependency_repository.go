package repositories

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"taskflow-project/backend/logging"
	"taskflow-project/backend/models"
	"taskflow-project/backend/services"
)

// DependencyRepo keeps the task dependency graph in Neo4j. An edge
// (a)-[:DEPENDS_ON]->(b) means a cannot start before b is completed.
type DependencyRepo struct {
	driver neo4j.DriverWithContext
}

func NewDependencyRepo(ctx context.Context, uri, username, password string) (*DependencyRepo, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to connect to neo4j: %w", err)
	}
	logging.Logger.Infof("Event ID: NEO4J_CONNECTED, Description: Connected to Neo4j at %s", uri)
	return &DependencyRepo{driver: driver}, nil
}

func (r *DependencyRepo) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}

func (r *DependencyRepo) EnsureConstraints(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `CREATE CONSTRAINT task_id IF NOT EXISTS FOR (t:Task) REQUIRE t.id IS UNIQUE`, nil)
		return nil, err
	})
	return err
}

func (r *DependencyRepo) EnsureTaskNode(ctx context.Context, node models.TaskNode) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (t:Task {id: $id})
			SET t.projectId = $projectId,
				t.title = $title,
				t.completed = $completed
		`
		_, err := tx.Run(ctx, query, map[string]any{
			"id":        node.ID,
			"projectId": node.ProjectID,
			"title":     node.Title,
			"completed": node.Completed,
		})
		return nil, err
	})
	return err
}

func (r *DependencyRepo) DeleteTaskNode(ctx context.Context, taskID string) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `MATCH (t:Task {id: $id}) DETACH DELETE t`, map[string]any{"id": taskID})
		return nil, err
	})
	return err
}

// AddDependency checks existence, duplicates and cycles inside the write
// transaction before creating the edge.
func (r *DependencyRepo) AddDependency(ctx context.Context, rel models.TaskDependencyRelation) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		params := map[string]any{"taskId": rel.TaskID, "dependsOnId": rel.DependsOnID}

		res, err := tx.Run(ctx, `
			OPTIONAL MATCH (t:Task {id: $taskId})
			OPTIONAL MATCH (d:Task {id: $dependsOnId})
			RETURN t IS NOT NULL AND d IS NOT NULL AS bothExist,
			       EXISTS { MATCH (:Task {id: $taskId})-[:DEPENDS_ON]->(:Task {id: $dependsOnId}) } AS duplicate,
			       EXISTS { MATCH (:Task {id: $dependsOnId})-[:DEPENDS_ON*1..]->(:Task {id: $taskId}) } AS cycle
		`, params)
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		bothExist, _ := record.Get("bothExist")
		duplicate, _ := record.Get("duplicate")
		cycle, _ := record.Get("cycle")

		switch {
		case bothExist != true:
			return nil, fmt.Errorf("task node: %w", services.ErrNotFound)
		case duplicate == true:
			return nil, fmt.Errorf("%w: dependency already exists", services.ErrConflict)
		case cycle == true:
			return nil, fmt.Errorf("%w: cannot add dependency, cycle detected", services.ErrConflict)
		}

		_, err = tx.Run(ctx, `
			MATCH (t:Task {id: $taskId}), (d:Task {id: $dependsOnId})
			MERGE (t)-[:DEPENDS_ON]->(d)
		`, params)
		return nil, err
	})
	if err != nil {
		return err
	}

	logging.Logger.Infof("Event ID: DEPENDENCY_EDGE_CREATED, Description: %s depends on %s", rel.TaskID, rel.DependsOnID)
	return nil
}

func (r *DependencyRepo) RemoveDependency(ctx context.Context, rel models.TaskDependencyRelation) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	removed, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (:Task {id: $taskId})-[r:DEPENDS_ON]->(:Task {id: $dependsOnId})
			DELETE r
			RETURN count(r) AS removed
		`, map[string]any{"taskId": rel.TaskID, "dependsOnId": rel.DependsOnID})
		if err != nil {
			return nil, err
		}
		record, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := record.Get("removed")
		return n, nil
	})
	if err != nil {
		return err
	}
	if n, _ := removed.(int64); n == 0 {
		return fmt.Errorf("dependency: %w", services.ErrNotFound)
	}
	return nil
}

// GetDependencies lists the direct prerequisites of a task.
func (r *DependencyRepo) GetDependencies(ctx context.Context, taskID string) ([]models.TaskNode, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
			MATCH (:Task {id: $taskId})-[:DEPENDS_ON]->(d:Task)
			RETURN d.id AS id, d.projectId AS projectId, d.title AS title, d.completed AS completed
			ORDER BY d.title
		`, map[string]any{"taskId": taskID})
		if err != nil {
			return nil, err
		}

		dependencies := []models.TaskNode{}
		for res.Next(ctx) {
			record := res.Record()
			id, _ := record.Get("id")
			projectID, _ := record.Get("projectId")
			title, _ := record.Get("title")
			completed, _ := record.Get("completed")

			node := models.TaskNode{}
			node.ID, _ = id.(string)
			node.ProjectID, _ = projectID.(string)
			node.Title, _ = title.(string)
			node.Completed, _ = completed.(bool)
			dependencies = append(dependencies, node)
		}
		return dependencies, res.Err()
	})
	if err != nil {
		return nil, err
	}
	return result.([]models.TaskNode), nil
}
