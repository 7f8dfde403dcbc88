package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Movement actions appended to a submission's history.
const (
	MoveDelegated       = "Delegated"
	MoveSentForApproval = "Sent for Approval"
	MoveFinalized       = "Finalized"
	MoveApproved        = "Approved"
	MoveSubmitted       = "Submitted"
	MoveDraftSaved      = "Draft Saved"
)

// MovementEntry is one row of a submission's append-only activity log.
type MovementEntry struct {
	PerformedBy primitive.ObjectID `bson:"performedBy" json:"performedBy"`
	Action      string             `bson:"action" json:"action"`
	Remarks     string             `bson:"remarks,omitempty" json:"remarks,omitempty"`
	Timestamp   time.Time          `bson:"timestamp" json:"timestamp"`
}

// Submission is the form data payload shared across all branches of one
// workflow instance, independent of the custody chain.
type Submission struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TemplateID      primitive.ObjectID `bson:"templateId" json:"templateId"`
	UserID          primitive.ObjectID `bson:"userId" json:"userId"`
	Data            map[string]any     `bson:"data" json:"data"`
	Status          string             `bson:"status" json:"status"`
	MovementHistory []MovementEntry    `bson:"movementHistory" json:"movementHistory"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}
