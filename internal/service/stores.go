package service

import (
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/models"
)

// Store interfaces consumed by the workflow engine. The Mongo repos in
// internal/repository satisfy them; tests substitute in-memory fakes.
// Grouping the multi-document writes behind these interfaces is what
// lets an implementation wrap one operation in a store transaction.

type AssignmentStore interface {
	Create(ctx context.Context, a *models.Assignment) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error)
	UpdateState(ctx context.Context, id primitive.ObjectID, upd models.AssignmentStateUpdate) error
	LatestForHolder(ctx context.Context, templateID, userID primitive.ObjectID) (*models.Assignment, error)
	FindByData(ctx context.Context, dataID primitive.ObjectID) ([]models.Assignment, error)
	FindByTemplate(ctx context.Context, templateID primitive.ObjectID) ([]models.Assignment, error)
	LatestForData(ctx context.Context, dataID primitive.ObjectID) (*models.Assignment, error)
}

type SubmissionStore interface {
	Create(ctx context.Context, s *models.Submission) (primitive.ObjectID, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Submission, error)
	FindForUser(ctx context.Context, templateID, userID primitive.ObjectID) (*models.Submission, error)
	SaveData(ctx context.Context, id primitive.ObjectID, data map[string]any, status string, entry models.MovementEntry) error
	SetStatus(ctx context.Context, id primitive.ObjectID, status string, entry models.MovementEntry) error
	AppendMovement(ctx context.Context, id primitive.ObjectID, entry models.MovementEntry) error
}

type TemplateStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.FormTemplate, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
}

// Actor is the authenticated caller as seen by the engine.
type Actor struct {
	ID          primitive.ObjectID
	LabID       string
	Designation string
}
