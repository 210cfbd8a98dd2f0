package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is posted to a project channel.
type Message struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	ProjectID primitive.ObjectID   `bson:"projectId" json:"projectId"`
	SenderID  primitive.ObjectID   `bson:"senderId" json:"senderId"`
	Content   string               `bson:"content" json:"content"`
	ReadBy    []primitive.ObjectID `bson:"readBy" json:"readBy"`
	CreatedAt time.Time            `bson:"createdAt" json:"createdAt"`
}

type DirectMessage struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SenderID    primitive.ObjectID `bson:"senderId" json:"senderId"`
	RecipientID primitive.ObjectID `bson:"recipientId" json:"recipientId"`
	Content     string             `bson:"content" json:"content"`
	Read        bool               `bson:"read" json:"read"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// Conversation summarises the thread with one partner.
type Conversation struct {
	PartnerID     primitive.ObjectID `bson:"_id" json:"partnerId"`
	Partner       *UserSummary       `bson:"-" json:"partner,omitempty"`
	LastMessage   string             `bson:"lastMessage" json:"lastMessage"`
	LastMessageAt time.Time          `bson:"lastMessageAt" json:"lastMessageAt"`
	UnreadCount   int                `bson:"unreadCount" json:"unreadCount"`
}
