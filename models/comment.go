package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Comment struct {
	ID        primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID    primitive.ObjectID  `bson:"userId" json:"userId"`
	TaskID    *primitive.ObjectID `bson:"taskId,omitempty" json:"taskId,omitempty"`
	ProjectID *primitive.ObjectID `bson:"projectId,omitempty" json:"projectId,omitempty"`
	Text      string              `bson:"text" json:"text"`
	Edited    bool                `bson:"edited" json:"edited"`
	CreatedAt time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time           `bson:"updatedAt" json:"updatedAt"`
}
