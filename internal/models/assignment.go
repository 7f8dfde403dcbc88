package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Assignment statuses.
const (
	StatusPending   = "Pending"
	StatusEdited    = "Edited"
	StatusApproved  = "Approved"
	StatusSubmitted = "Submitted"
	StatusReturned  = "Returned"
)

// Last-action values recorded on assignments.
const (
	ActionDelegated  = "Delegated"
	ActionMarkedBack = "Marked Back"
	ActionFinalized  = "Finalized"
	ActionApproved   = "Approved"
	ActionSubmitted  = "Submitted"
)

// Assignment is one custody event of a form: the record that user
// AssignedBy handed the form to user AssignedTo. Assignments are an
// audit ledger — once created, only Status, IsFinalized, LastAction,
// Remarks and Instructions may change. AssignedTo, AssignedBy,
// ParentAssignmentID and DelegationChain are fixed at creation.
type Assignment struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TemplateID primitive.ObjectID `bson:"templateId" json:"templateId"`
	AssignedTo primitive.ObjectID `bson:"assignedTo" json:"assignedTo"`
	AssignedBy primitive.ObjectID `bson:"assignedBy" json:"assignedBy"`
	Status     string             `bson:"status" json:"status"`

	// DelegationChain lists every holder from the original distributor
	// through the user who created this hop. Append-only.
	DelegationChain []primitive.ObjectID `bson:"delegationChain" json:"delegationChain"`

	// ParentAssignmentID links to the immediate predecessor hop.
	// nil marks a root (first distribution to a primary recipient).
	ParentAssignmentID *primitive.ObjectID `bson:"parentAssignmentId,omitempty" json:"parentAssignmentId,omitempty"`

	// DataID references the shared Submission this branch is editing.
	// Multiple assignments across branches may point at the same one.
	DataID *primitive.ObjectID `bson:"dataId,omitempty" json:"dataId,omitempty"`

	LastAction string `bson:"lastAction,omitempty" json:"lastAction,omitempty"`
	Remarks    string `bson:"remarks,omitempty" json:"remarks,omitempty"`

	// Instructions preserves the original delegation message even after
	// Remarks is overwritten by later actions.
	Instructions string `bson:"instructions,omitempty" json:"instructions,omitempty"`

	// IsFinalized blocks any further delegation from this assignment.
	IsFinalized bool `bson:"isFinalized" json:"isFinalized"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// ChainContains reports whether userID appears in the delegation chain.
func (a *Assignment) ChainContains(userID primitive.ObjectID) bool {
	for _, id := range a.DelegationChain {
		if id == userID {
			return true
		}
	}
	return false
}

// AssignmentStateUpdate carries the only fields an existing assignment
// is allowed to change. Nil pointers leave the field untouched.
type AssignmentStateUpdate struct {
	Status       *string
	IsFinalized  *bool
	LastAction   *string
	Remarks      *string
	Instructions *string
	DataID       *primitive.ObjectID
}
