// Package platform holds the contracts the workflow engine consumes as
// black boxes (notifications, mail, file storage, approval-authority
// lookup, activity logging) and their default implementations.
package platform

import (
	"context"
	"log"
)

// Notification types.
const (
	NotifyFormDelegated = "form_delegated"
	NotifyFormReturned  = "form_returned"
	NotifyFormApproved  = "form_approved"
	NotifyFormSubmitted = "form_submitted"
)

type Notification struct {
	UserID  string
	Type    string
	Title   string
	Message string
	RefID   string
	RefType string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier records notifications in the server log. The real push
// pipeline lives outside this service.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, n Notification) error {
	log.Printf("notify %s [%s] %s: %s (ref %s)", n.UserID, n.Type, n.Title, n.Message, n.RefID)
	return nil
}
