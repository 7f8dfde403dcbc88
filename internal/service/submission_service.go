package service

import (
	"context"

	"github.com/labdesk/labdesk/internal/apperr"
	"github.com/labdesk/labdesk/internal/models"
	"github.com/labdesk/labdesk/internal/repository"
)

// SubmissionService is the distributor-facing read surface over
// submitted form data. All writes go through the workflow engine.
type SubmissionService struct {
	subs *repository.SubmissionRepo
}

func NewSubmissionService(subs *repository.SubmissionRepo) *SubmissionService {
	return &SubmissionService{subs: subs}
}

func (s *SubmissionService) List(ctx context.Context, templateID string, skip, limit int64) ([]models.Submission, int64, error) {
	oid, err := parseID(templateID)
	if err != nil {
		return nil, 0, err
	}
	return s.subs.FindByTemplate(ctx, oid, skip, limit)
}

func (s *SubmissionService) Get(ctx context.Context, id string) (*models.Submission, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	sub, err := s.subs.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.NotFound("submission not found")
	}
	return sub, nil
}

func (s *SubmissionService) CountByTemplate(ctx context.Context, templateID string) (int64, error) {
	oid, err := parseID(templateID)
	if err != nil {
		return 0, err
	}
	return s.subs.CountByTemplate(ctx, oid)
}
