package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const DefaultUserRole = "member"

type User struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name           string             `bson:"name" json:"name"`
	Email          string             `bson:"email" json:"email"`
	Password       string             `bson:"password" json:"-"`
	ProfilePicture string             `bson:"profilePicture" json:"profilePicture"`
	Role           string             `bson:"role" json:"role"`
	Bio            string             `bson:"bio" json:"bio"`
	Skills         []string           `bson:"skills" json:"skills"`

	// Password reset state, never serialised to clients.
	ResetOTP         string    `bson:"resetOtp,omitempty" json:"-"`
	ResetOTPExpiry   time.Time `bson:"resetOtpExpiry,omitempty" json:"-"`
	ResetOTPAttempts int       `bson:"resetOtpAttempts" json:"-"`
	// ResetTokenID is the jti of the one outstanding reset token.
	ResetTokenID string `bson:"resetTokenId,omitempty" json:"-"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// UserSummary is the public projection embedded in member lists.
type UserSummary struct {
	ID             primitive.ObjectID `json:"id"`
	Name           string             `json:"name"`
	Email          string             `json:"email"`
	ProfilePicture string             `json:"profilePicture"`
	Role           string             `json:"role"`
}

func (u User) Summary() UserSummary {
	return UserSummary{
		ID:             u.ID,
		Name:           u.Name,
		Email:          u.Email,
		ProfilePicture: u.ProfilePicture,
		Role:           u.Role,
	}
}
