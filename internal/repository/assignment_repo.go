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

type AssignmentRepo struct {
	coll *mongo.Collection
}

func NewAssignmentRepo(database *db.DB) *AssignmentRepo {
	return &AssignmentRepo{coll: database.Collection(db.AssignmentsCollection)}
}

func (r *AssignmentRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "templateId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "dataId", Value: 1}}},
		{Keys: bson.D{{Key: "assignedTo", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "parentAssignmentId", Value: 1}}},
	})
	return err
}

func (r *AssignmentRepo) Create(ctx context.Context, a *models.Assignment) (primitive.ObjectID, error) {
	res, err := r.coll.InsertOne(ctx, a)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (r *AssignmentRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Assignment, error) {
	var a models.Assignment
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateState mutates the only fields an assignment may change after
// creation. Identity fields have no update path on purpose.
func (r *AssignmentRepo) UpdateState(ctx context.Context, id primitive.ObjectID, upd models.AssignmentStateUpdate) error {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if upd.Status != nil {
		set["status"] = *upd.Status
	}
	if upd.IsFinalized != nil {
		set["isFinalized"] = *upd.IsFinalized
	}
	if upd.LastAction != nil {
		set["lastAction"] = *upd.LastAction
	}
	if upd.Remarks != nil {
		set["remarks"] = *upd.Remarks
	}
	if upd.Instructions != nil {
		set["instructions"] = *upd.Instructions
	}
	if upd.DataID != nil {
		set["dataId"] = *upd.DataID
	}
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}

// LatestForHolder returns the most recently created non-Returned
// assignment held by userID on the given template, or nil.
func (r *AssignmentRepo) LatestForHolder(ctx context.Context, templateID, userID primitive.ObjectID) (*models.Assignment, error) {
	var a models.Assignment
	err := r.coll.FindOne(ctx, bson.M{
		"templateId": templateID,
		"assignedTo": userID,
		"status":     bson.M{"$ne": models.StatusReturned},
	}, options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByData returns all assignments sharing a submission, oldest first.
func (r *AssignmentRepo) FindByData(ctx context.Context, dataID primitive.ObjectID) ([]models.Assignment, error) {
	return r.findSorted(ctx, bson.M{"dataId": dataID})
}

// FindByTemplate returns all assignments for a template, oldest first.
func (r *AssignmentRepo) FindByTemplate(ctx context.Context, templateID primitive.ObjectID) ([]models.Assignment, error) {
	return r.findSorted(ctx, bson.M{"templateId": templateID})
}

// LatestForData returns the newest assignment referencing a submission,
// or nil if no chain touches it.
func (r *AssignmentRepo) LatestForData(ctx context.Context, dataID primitive.ObjectID) (*models.Assignment, error) {
	var a models.Assignment
	err := r.coll.FindOne(ctx, bson.M{"dataId": dataID},
		options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})).Decode(&a)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AssignmentRepo) CountForHolder(ctx context.Context, userID primitive.ObjectID, status string) (int64, error) {
	filter := bson.M{"assignedTo": userID}
	if status != "" {
		filter["status"] = status
	}
	return r.coll.CountDocuments(ctx, filter)
}

func (r *AssignmentRepo) findSorted(ctx context.Context, filter bson.M) ([]models.Assignment, error) {
	cur, err := r.coll.Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var out []models.Assignment
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
