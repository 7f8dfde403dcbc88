package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"passwordHash" json:"-"`
	Name         string             `bson:"name" json:"name"`
	Role         string             `bson:"role" json:"role"`

	// LabID is the organizational unit code. Delegation never crosses labs.
	LabID string `bson:"labId" json:"labId"`

	// Designation is matched against the approval-authority allow-list.
	Designation string `bson:"designation,omitempty" json:"designation,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

type UserResponse struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	LabID       string `json:"labId"`
	Designation string `json:"designation,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{
		ID:          u.ID.Hex(),
		Email:       u.Email,
		Name:        u.Name,
		Role:        u.Role,
		LabID:       u.LabID,
		Designation: u.Designation,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}
