package service

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/models"
)

// In-memory stores mirroring the Mongo repo query semantics, so the
// engine can be exercised without a database.

type fakeAssignments struct {
	items []*models.Assignment
}

func (f *fakeAssignments) Create(_ context.Context, a *models.Assignment) (primitive.ObjectID, error) {
	cp := *a
	cp.ID = primitive.NewObjectID()
	f.items = append(f.items, &cp)
	return cp.ID, nil
}

func (f *fakeAssignments) FindByID(_ context.Context, id primitive.ObjectID) (*models.Assignment, error) {
	for _, a := range f.items {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAssignments) UpdateState(_ context.Context, id primitive.ObjectID, upd models.AssignmentStateUpdate) error {
	for _, a := range f.items {
		if a.ID != id {
			continue
		}
		if upd.Status != nil {
			a.Status = *upd.Status
		}
		if upd.IsFinalized != nil {
			a.IsFinalized = *upd.IsFinalized
		}
		if upd.LastAction != nil {
			a.LastAction = *upd.LastAction
		}
		if upd.Remarks != nil {
			a.Remarks = *upd.Remarks
		}
		if upd.Instructions != nil {
			a.Instructions = *upd.Instructions
		}
		if upd.DataID != nil {
			a.DataID = upd.DataID
		}
		a.UpdatedAt = time.Now().UTC()
		return nil
	}
	return nil
}

func (f *fakeAssignments) LatestForHolder(_ context.Context, templateID, userID primitive.ObjectID) (*models.Assignment, error) {
	var best *models.Assignment
	for _, a := range f.items {
		if a.TemplateID != templateID || a.AssignedTo != userID || a.Status == models.StatusReturned {
			continue
		}
		if best == nil || a.CreatedAt.After(best.CreatedAt) {
			best = a
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeAssignments) FindByData(_ context.Context, dataID primitive.ObjectID) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range f.items {
		if a.DataID != nil && *a.DataID == dataID {
			out = append(out, *a)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (f *fakeAssignments) FindByTemplate(_ context.Context, templateID primitive.ObjectID) ([]models.Assignment, error) {
	var out []models.Assignment
	for _, a := range f.items {
		if a.TemplateID == templateID {
			out = append(out, *a)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (f *fakeAssignments) LatestForData(_ context.Context, dataID primitive.ObjectID) (*models.Assignment, error) {
	var best *models.Assignment
	for _, a := range f.items {
		if a.DataID != nil && *a.DataID == dataID {
			if best == nil || a.CreatedAt.After(best.CreatedAt) {
				best = a
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

// get returns the live record for fixture surgery in chain tests.
func (f *fakeAssignments) get(id primitive.ObjectID) *models.Assignment {
	for _, a := range f.items {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func sortByCreated(items []models.Assignment) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

type fakeSubmissions struct {
	items []*models.Submission
}

func (f *fakeSubmissions) Create(_ context.Context, s *models.Submission) (primitive.ObjectID, error) {
	cp := *s
	cp.ID = primitive.NewObjectID()
	f.items = append(f.items, &cp)
	return cp.ID, nil
}

func (f *fakeSubmissions) FindByID(_ context.Context, id primitive.ObjectID) (*models.Submission, error) {
	for _, s := range f.items {
		if s.ID == id {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeSubmissions) FindForUser(_ context.Context, templateID, userID primitive.ObjectID) (*models.Submission, error) {
	var best *models.Submission
	for _, s := range f.items {
		if s.TemplateID != templateID || s.UserID != userID {
			continue
		}
		if best == nil || s.CreatedAt.After(best.CreatedAt) {
			best = s
		}
	}
	if best == nil {
		return nil, nil
	}
	cp := *best
	return &cp, nil
}

func (f *fakeSubmissions) SaveData(_ context.Context, id primitive.ObjectID, data map[string]any, status string, entry models.MovementEntry) error {
	for _, s := range f.items {
		if s.ID == id {
			s.Data = data
			s.Status = status
			s.MovementHistory = append(s.MovementHistory, entry)
			s.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (f *fakeSubmissions) SetStatus(_ context.Context, id primitive.ObjectID, status string, entry models.MovementEntry) error {
	for _, s := range f.items {
		if s.ID == id {
			s.Status = status
			s.MovementHistory = append(s.MovementHistory, entry)
			s.UpdatedAt = time.Now().UTC()
		}
	}
	return nil
}

func (f *fakeSubmissions) AppendMovement(_ context.Context, id primitive.ObjectID, entry models.MovementEntry) error {
	for _, s := range f.items {
		if s.ID == id {
			s.MovementHistory = append(s.MovementHistory, entry)
		}
	}
	return nil
}

type fakeTemplates struct {
	items map[primitive.ObjectID]*models.FormTemplate
}

func (f *fakeTemplates) FindByID(_ context.Context, id primitive.ObjectID) (*models.FormTemplate, error) {
	t, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

type fakeUsers struct {
	items map[primitive.ObjectID]*models.User
}

func (f *fakeUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.items[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}
