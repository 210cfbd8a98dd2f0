package models

// TaskNode is a task as stored in the dependency graph.
type TaskNode struct {
	ID        string `json:"id"`
	ProjectID string `json:"projectId"`
	Title     string `json:"title"`
	Completed bool   `json:"completed"`
}

type TaskDependencyRelation struct {
	TaskID      string `json:"taskId"`
	DependsOnID string `json:"dependsOnId"`
}
