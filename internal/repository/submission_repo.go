package repository

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/labdesk/labdesk/internal/db"
	"github.com/labdesk/labdesk/internal/models"
)

type SubmissionRepo struct {
	coll *mongo.Collection
}

func NewSubmissionRepo(database *db.DB) *SubmissionRepo {
	return &SubmissionRepo{coll: database.Collection(db.SubmissionsCollection)}
}

func (r *SubmissionRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "templateId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "templateId", Value: 1}, {Key: "userId", Value: 1}}},
	})
	return err
}

func (r *SubmissionRepo) Create(ctx context.Context, s *models.Submission) (primitive.ObjectID, error) {
	res, err := r.coll.InsertOne(ctx, s)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (r *SubmissionRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Submission, error) {
	var s models.Submission
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// FindForUser returns the newest submission a user has on a template.
func (r *SubmissionRepo) FindForUser(ctx context.Context, templateID, userID primitive.ObjectID) (*models.Submission, error) {
	var s models.Submission
	err := r.coll.FindOne(ctx, bson.M{"templateId": templateID, "userId": userID},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *SubmissionRepo) FindByTemplate(ctx context.Context, templateID primitive.ObjectID, skip, limit int64) ([]models.Submission, int64, error) {
	filter := bson.M{"templateId": templateID}
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	cur, err := r.coll.Find(ctx, filter, options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit))
	if err != nil {
		return nil, 0, err
	}
	var subs []models.Submission
	if err := cur.All(ctx, &subs); err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// SaveData replaces the payload, sets the status and appends one
// movement entry in a single document write.
func (r *SubmissionRepo) SaveData(ctx context.Context, id primitive.ObjectID, data map[string]any, status string, entry models.MovementEntry) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set": bson.M{
			"data":      data,
			"status":    status,
			"updatedAt": time.Now().UTC(),
		},
		"$push": bson.M{"movementHistory": entry},
	})
	return err
}

// SetStatus transitions the submission and appends one movement entry.
func (r *SubmissionRepo) SetStatus(ctx context.Context, id primitive.ObjectID, status string, entry models.MovementEntry) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set":  bson.M{"status": status, "updatedAt": time.Now().UTC()},
		"$push": bson.M{"movementHistory": entry},
	})
	return err
}

// AppendMovement adds a movement entry without touching the status.
func (r *SubmissionRepo) AppendMovement(ctx context.Context, id primitive.ObjectID, entry models.MovementEntry) error {
	_, err := r.coll.UpdateByID(ctx, id, bson.M{
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
		"$push": bson.M{"movementHistory": entry},
	})
	return err
}

func (r *SubmissionRepo) CountByTemplate(ctx context.Context, templateID primitive.ObjectID) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"templateId": templateID})
}
