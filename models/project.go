package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "planning"
	ProjectActive    ProjectStatus = "active"
	ProjectOnHold    ProjectStatus = "on-hold"
	ProjectCompleted ProjectStatus = "completed"
	ProjectCancelled ProjectStatus = "cancelled"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled:
		return true
	}
	return false
}

type CollaboratorRole string

const (
	CollaboratorAdmin  CollaboratorRole = "admin"
	CollaboratorEditor CollaboratorRole = "editor"
	CollaboratorViewer CollaboratorRole = "viewer"
)

func (r CollaboratorRole) Valid() bool {
	switch r {
	case CollaboratorAdmin, CollaboratorEditor, CollaboratorViewer:
		return true
	}
	return false
}

type Collaborator struct {
	UserID  primitive.ObjectID `bson:"userId" json:"userId"`
	Role    CollaboratorRole   `bson:"role" json:"role"`
	AddedAt time.Time          `bson:"addedAt" json:"addedAt"`
}

type Project struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name               string             `bson:"name" json:"name"`
	Description        string             `bson:"description" json:"description"`
	Status             ProjectStatus      `bson:"status" json:"status"`
	Priority           Priority           `bson:"priority" json:"priority"`
	StartDate          *time.Time         `bson:"startDate,omitempty" json:"startDate,omitempty"`
	EndDate            *time.Time         `bson:"endDate,omitempty" json:"endDate,omitempty"`
	UserID             primitive.ObjectID `bson:"userId" json:"userId"`
	Collaborators      []Collaborator     `bson:"collaborators" json:"collaborators"`
	TaskCount          int                `bson:"taskCount" json:"taskCount"`
	CompletedTaskCount int                `bson:"completedTaskCount" json:"completedTaskCount"`
	CreatedAt          time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Collaborator returns the collaborator entry for userID, if any.
func (p *Project) Collaborator(userID primitive.ObjectID) (Collaborator, bool) {
	for _, c := range p.Collaborators {
		if c.UserID == userID {
			return c, true
		}
	}
	return Collaborator{}, false
}

func (p *Project) IsOwner(userID primitive.ObjectID) bool {
	return p.UserID == userID
}

// MemberIDs lists the owner followed by every collaborator.
func (p *Project) MemberIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(p.Collaborators)+1)
	ids = append(ids, p.UserID)
	for _, c := range p.Collaborators {
		ids = append(ids, c.UserID)
	}
	return ids
}
