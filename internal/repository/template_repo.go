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

type TemplateRepo struct {
	coll *mongo.Collection
}

func NewTemplateRepo(database *db.DB) *TemplateRepo {
	return &TemplateRepo{coll: database.Collection(db.TemplatesCollection)}
}

func (r *TemplateRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "slug", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "createdBy", Value: 1}}},
	})
	return err
}

func (r *TemplateRepo) Create(ctx context.Context, t *models.FormTemplate) (primitive.ObjectID, error) {
	res, err := r.coll.InsertOne(ctx, t)
	if err != nil {
		return primitive.NilObjectID, err
	}
	id, _ := res.InsertedID.(primitive.ObjectID)
	return id, nil
}

func (r *TemplateRepo) FindAll(ctx context.Context) ([]models.FormTemplate, error) {
	cur, err := r.coll.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, err
	}
	var templates []models.FormTemplate
	if err := cur.All(ctx, &templates); err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *TemplateRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.FormTemplate, error) {
	var t models.FormTemplate
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepo) FindBySlug(ctx context.Context, slug string) (*models.FormTemplate, error) {
	var t models.FormTemplate
	err := r.coll.FindOne(ctx, bson.M{"slug": slug}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TemplateRepo) Update(ctx context.Context, id primitive.ObjectID, t *models.FormTemplate) error {
	t.UpdatedAt = time.Now().UTC()
	_, err := r.coll.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"title":                    t.Title,
		"description":              t.Description,
		"fields":                   t.Fields,
		"allowDelegation":          t.AllowDelegation,
		"allowMultipleSubmissions": t.AllowMultipleSubmissions,
		"assignedTo":               t.AssignedTo,
		"updatedAt":                t.UpdatedAt,
	}})
	return err
}

func (r *TemplateRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	_, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

func (r *TemplateRepo) Count(ctx context.Context) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{})
}
