package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Timeline entry types.
const (
	TimelineInitiated = "Initiated"
	TimelineDelegated = "Delegated"
	TimelineReturned  = "Returned"
)

// TimelineUser identifies a chain participant on a timeline entry,
// annotated with whether they currently hold approval authority.
type TimelineUser struct {
	ID                   primitive.ObjectID `json:"id"`
	Name                 string             `json:"name"`
	Designation          string             `json:"designation,omitempty"`
	HasApprovalAuthority bool               `json:"hasApprovalAuthority"`
}

// TimelineEntry is one hop of the reconstructed custody timeline.
type TimelineEntry struct {
	Type      string        `json:"type"`
	FromUser  *TimelineUser `json:"fromUser,omitempty"`
	ToUser    *TimelineUser `json:"toUser,omitempty"`
	Date      time.Time     `json:"date"`
	Remarks   string        `json:"remarks,omitempty"`
	Status    string        `json:"status"`
	IsCurrent bool          `json:"isCurrent"`
}
