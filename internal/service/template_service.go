package service

import (
	"context"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/apperr"
	"github.com/labdesk/labdesk/internal/models"
	"github.com/labdesk/labdesk/internal/platform"
	"github.com/labdesk/labdesk/internal/repository"
)

type TemplateService struct {
	templates   *repository.TemplateRepo
	assignments *repository.AssignmentRepo
	users       *repository.UserRepo
	notifier    platform.Notifier
}

func NewTemplateService(templates *repository.TemplateRepo, assignments *repository.AssignmentRepo, users *repository.UserRepo, notifier platform.Notifier) *TemplateService {
	return &TemplateService{templates: templates, assignments: assignments, users: users, notifier: notifier}
}

type TemplateInput struct {
	Title                    string           `json:"title"`
	Description              string           `json:"description"`
	Fields                   []map[string]any `json:"fields"`
	AllowDelegation          *bool            `json:"allowDelegation"`
	AllowMultipleSubmissions bool             `json:"allowMultipleSubmissions"`
	AssignedTo               []string         `json:"assignedTo"`
}

// Create stores the template and distributes it: every primary
// recipient gets an explicit root assignment.
func (s *TemplateService) Create(ctx context.Context, createdBy primitive.ObjectID, in TemplateInput) (*models.FormTemplate, error) {
	if in.Title == "" {
		return nil, apperr.Validation("template title is required")
	}
	if len(in.Fields) == 0 {
		return nil, apperr.Validation("at least one field is required")
	}

	recipients, err := parseIDs(in.AssignedTo)
	if err != nil {
		return nil, err
	}

	slug := generateSlug(in.Title)
	existing, _ := s.templates.FindBySlug(ctx, slug)
	if existing != nil {
		slug = slug + "-" + time.Now().Format("20060102150405")
	}

	allowDelegation := true
	if in.AllowDelegation != nil {
		allowDelegation = *in.AllowDelegation
	}

	now := time.Now().UTC()
	template := &models.FormTemplate{
		Title:                    in.Title,
		Slug:                     slug,
		Description:              in.Description,
		Fields:                   in.Fields,
		AllowDelegation:          allowDelegation,
		AllowMultipleSubmissions: in.AllowMultipleSubmissions,
		AssignedTo:               recipients,
		CreatedBy:                createdBy,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	id, err := s.templates.Create(ctx, template)
	if err != nil {
		return nil, err
	}
	template.ID = id

	for _, recipient := range recipients {
		root := &models.Assignment{
			TemplateID:      id,
			AssignedTo:      recipient,
			AssignedBy:      createdBy,
			Status:          models.StatusPending,
			DelegationChain: []primitive.ObjectID{createdBy},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		rootID, err := s.assignments.Create(ctx, root)
		if err != nil {
			return nil, err
		}
		s.notifyRecipient(recipient, template, rootID)
	}

	return template, nil
}

func (s *TemplateService) List(ctx context.Context) ([]models.FormTemplate, error) {
	return s.templates.FindAll(ctx)
}

func (s *TemplateService) Get(ctx context.Context, id string) (*models.FormTemplate, error) {
	oid, err := parseID(id)
	if err != nil {
		return nil, err
	}
	template, err := s.templates.FindByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperr.NotFound("form template not found")
	}
	return template, nil
}

func (s *TemplateService) Update(ctx context.Context, id string, in TemplateInput) (*models.FormTemplate, error) {
	template, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Title != "" {
		template.Title = in.Title
	}
	template.Description = in.Description
	if len(in.Fields) > 0 {
		template.Fields = in.Fields
	}
	if in.AllowDelegation != nil {
		template.AllowDelegation = *in.AllowDelegation
	}
	template.AllowMultipleSubmissions = in.AllowMultipleSubmissions
	if len(in.AssignedTo) > 0 {
		recipients, err := parseIDs(in.AssignedTo)
		if err != nil {
			return nil, err
		}
		template.AssignedTo = recipients
	}

	if err := s.templates.Update(ctx, template.ID, template); err != nil {
		return nil, err
	}
	return template, nil
}

func (s *TemplateService) Delete(ctx context.Context, id string) error {
	template, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return s.templates.Delete(ctx, template.ID)
}

func (s *TemplateService) notifyRecipient(recipient primitive.ObjectID, template *models.FormTemplate, assignmentID primitive.ObjectID) {
	if s.notifier == nil {
		return
	}
	n := platform.Notification{
		UserID:  recipient.Hex(),
		Type:    platform.NotifyFormDelegated,
		Title:   "New form assigned",
		Message: "You have been assigned the form: " + template.Title,
		RefID:   assignmentID.Hex(),
		RefType: "assignment",
	}
	notifier := s.notifier
	platform.Dispatch("notify", func() error {
		return notifier.Notify(context.Background(), n)
	})
}

func parseIDs(hexes []string) ([]primitive.ObjectID, error) {
	if len(hexes) == 0 {
		return nil, nil
	}
	out := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		id, err := parseID(h)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

var nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)

func generateSlug(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = nonAlphaNum.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if slug == "" {
		slug = "form"
	}
	return slug
}
