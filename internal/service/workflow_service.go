package service

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/labdesk/labdesk/internal/apperr"
	"github.com/labdesk/labdesk/internal/models"
	"github.com/labdesk/labdesk/internal/platform"
)

// WorkflowService implements the delegation and approval state machine:
// delegate, mark-back, mark-final, approve, submit-to-distributor and
// the lazy save-draft entry point. Each operation validates state and
// permission before any write; notification and mail dispatch happen
// after the writes and never fail the transition.
type WorkflowService struct {
	assignments AssignmentStore
	submissions SubmissionStore
	templates   TemplateStore
	users       UserStore

	designations platform.DesignationSource
	notifier     platform.Notifier
	mailer       platform.Mailer
	activity     platform.ActivityLogger
}

func NewWorkflowService(
	assignments AssignmentStore,
	submissions SubmissionStore,
	templates TemplateStore,
	users UserStore,
	designations platform.DesignationSource,
	notifier platform.Notifier,
	mailer platform.Mailer,
	activity platform.ActivityLogger,
) *WorkflowService {
	return &WorkflowService{
		assignments:  assignments,
		submissions:  submissions,
		templates:    templates,
		users:        users,
		designations: designations,
		notifier:     notifier,
		mailer:       mailer,
		activity:     activity,
	}
}

// Delegate hands the form to another user in the caller's lab and
// records the hop as a new Pending assignment.
func (s *WorkflowService) Delegate(ctx context.Context, actor Actor, templateID, assignedToID primitive.ObjectID, remarks string, parentAssignmentID *primitive.ObjectID) (*models.Assignment, error) {
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperr.NotFound("form template not found")
	}
	if !template.AllowDelegation {
		return nil, apperr.Forbidden("this form does not allow delegation")
	}

	target, err := s.users.FindByID(ctx, assignedToID)
	if err != nil {
		return nil, err
	}
	if target == nil {
		return nil, apperr.NotFound("target user not found")
	}
	if target.LabID != actor.LabID {
		return nil, apperr.Forbidden("cannot delegate outside your lab")
	}

	current, err := s.resolveCurrent(ctx, actor, template, parentAssignmentID)
	if err != nil {
		return nil, err
	}
	if current != nil {
		if current.AssignedTo != actor.ID {
			return nil, apperr.Forbidden("you are not the holder of this assignment")
		}
		if current.Status == models.StatusApproved || current.IsFinalized {
			return nil, apperr.Forbidden("assignment is locked against further delegation")
		}
	}

	now := time.Now().UTC()
	child := &models.Assignment{
		TemplateID:   template.ID,
		AssignedTo:   target.ID,
		AssignedBy:   actor.ID,
		Status:       models.StatusPending,
		Remarks:      remarks,
		Instructions: remarks,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if current != nil {
		child.DelegationChain = extendChain(current.DelegationChain, actor.ID)
		child.ParentAssignmentID = &current.ID
		child.DataID = current.DataID
	} else {
		// First activity on this template by the sender: the hop itself
		// becomes the root of a new branch.
		child.DelegationChain = rootChain(template.CreatedBy, actor.ID)
	}
	childID, err := s.assignments.Create(ctx, child)
	if err != nil {
		return nil, err
	}
	child.ID = childID

	if current != nil {
		upd := models.AssignmentStateUpdate{
			Status:     ptr(models.StatusEdited),
			LastAction: ptr(models.ActionDelegated),
			Remarks:    ptr(remarks),
		}
		if current.Instructions == "" && current.Remarks != "" {
			upd.Instructions = ptr(current.Remarks)
		}
		if err := s.assignments.UpdateState(ctx, current.ID, upd); err != nil {
			return nil, err
		}
	}

	if child.DataID != nil {
		s.submissions.AppendMovement(ctx, *child.DataID, models.MovementEntry{
			PerformedBy: actor.ID,
			Action:      models.MoveDelegated,
			Remarks:     remarks,
			Timestamp:   now,
		})
	}

	s.logActivity(ctx, "delegate", childID, map[string]any{
		"templateId": template.ID.Hex(),
		"from":       actor.ID.Hex(),
		"to":         target.ID.Hex(),
	})
	s.notifyHop(target, platform.NotifyFormDelegated,
		"Form delegated to you",
		template.Title+" has been delegated to you: "+remarks,
		childID)

	return child, nil
}

// MarkBack returns the form to a previous chain participant for
// approval. The default target is the user who routed it here.
func (s *WorkflowService) MarkBack(ctx context.Context, actor Actor, assignmentID primitive.ObjectID, remarks string, returnToID, dataID *primitive.ObjectID) (*models.Assignment, error) {
	current, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NotFound("assignment not found")
	}
	if current.AssignedTo != actor.ID {
		return nil, apperr.Forbidden("you are not the holder of this assignment")
	}

	// By default the form goes back to whoever issued this branch: the
	// parent hop's router (the distributor for a first-level delegate),
	// or this hop's router when the assignment is itself a root.
	targetID := current.AssignedBy
	if current.ParentAssignmentID != nil {
		if parent, err := s.assignments.FindByID(ctx, *current.ParentAssignmentID); err == nil && parent != nil {
			targetID = parent.AssignedBy
		}
	}
	if returnToID != nil {
		if !current.ChainContains(*returnToID) {
			return nil, apperr.Validation("return target is not part of the delegation chain")
		}
		targetID = *returnToID
	}

	linkedData := current.DataID
	if dataID != nil {
		linkedData = dataID
	}

	now := time.Now().UTC()
	child := &models.Assignment{
		TemplateID:      current.TemplateID,
		AssignedTo:      targetID,
		AssignedBy:      actor.ID,
		Status:          models.StatusEdited,
		DelegationChain: extendChain(current.DelegationChain, actor.ID),
		// The returned hop stays in the same branch: it keeps the
		// predecessor's parent rather than re-rooting under current.
		ParentAssignmentID: current.ParentAssignmentID,
		DataID:             linkedData,
		LastAction:         models.ActionMarkedBack,
		Remarks:            remarks,
		Instructions:       remarks,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	childID, err := s.assignments.Create(ctx, child)
	if err != nil {
		return nil, err
	}
	child.ID = childID

	upd := models.AssignmentStateUpdate{IsFinalized: ptr(true)}
	if current.Status == models.StatusPending {
		upd.Status = ptr(models.StatusEdited)
	}
	if err := s.assignments.UpdateState(ctx, current.ID, upd); err != nil {
		return nil, err
	}

	if linkedData != nil {
		s.submissions.AppendMovement(ctx, *linkedData, models.MovementEntry{
			PerformedBy: actor.ID,
			Action:      models.MoveSentForApproval,
			Remarks:     remarks,
			Timestamp:   now,
		})
	}

	target, _ := s.users.FindByID(ctx, targetID)
	s.logActivity(ctx, "mark-back", childID, map[string]any{
		"from": actor.ID.Hex(),
		"to":   targetID.Hex(),
	})
	s.notifyHop(target, platform.NotifyFormReturned,
		"Form sent back for approval",
		"A form has been returned to you for approval: "+remarks,
		childID)

	return child, nil
}

// MarkFinal locks an assignment against further delegation. It changes
// no custody and is safe to repeat.
func (s *WorkflowService) MarkFinal(ctx context.Context, actor Actor, assignmentID primitive.ObjectID, remarks string) (*models.Assignment, error) {
	current, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NotFound("assignment not found")
	}
	if current.AssignedTo != actor.ID {
		return nil, apperr.Forbidden("you are not the holder of this assignment")
	}

	upd := models.AssignmentStateUpdate{
		IsFinalized: ptr(true),
		LastAction:  ptr(models.ActionFinalized),
	}
	if current.Status == models.StatusPending {
		upd.Status = ptr(models.StatusEdited)
	}
	if remarks != "" {
		upd.Remarks = ptr(remarks)
		// First-touch provenance: the original message survives later
		// remark overwrites.
		if current.Instructions == "" {
			upd.Instructions = ptr(remarks)
		}
	}
	if err := s.assignments.UpdateState(ctx, current.ID, upd); err != nil {
		return nil, err
	}

	if current.DataID != nil {
		s.submissions.AppendMovement(ctx, *current.DataID, models.MovementEntry{
			PerformedBy: actor.ID,
			Action:      models.MoveFinalized,
			Remarks:     remarks,
			Timestamp:   time.Now().UTC(),
		})
	}

	return s.assignments.FindByID(ctx, assignmentID)
}

// Approve marks the submission and the current assignment approved.
// Any chain participant whose designation is on the allow-list may
// approve; there is no restriction to a specific chain position.
func (s *WorkflowService) Approve(ctx context.Context, actor Actor, assignmentID primitive.ObjectID, remarks string) (*models.Assignment, error) {
	current, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NotFound("assignment not found")
	}
	if current.AssignedTo != actor.ID {
		return nil, apperr.Forbidden("you are not the holder of this assignment")
	}

	allowed, err := s.designations.ApprovalDesignations(ctx)
	if err != nil {
		return nil, err
	}
	if !contains(allowed, actor.Designation) {
		return nil, apperr.Forbidden("your designation is not authorized to approve")
	}

	now := time.Now().UTC()
	if current.DataID != nil {
		err := s.submissions.SetStatus(ctx, *current.DataID, models.StatusApproved, models.MovementEntry{
			PerformedBy: actor.ID,
			Action:      models.MoveApproved,
			Remarks:     remarks,
			Timestamp:   now,
		})
		if err != nil {
			return nil, err
		}
	}

	upd := models.AssignmentStateUpdate{
		Status:      ptr(models.StatusApproved),
		LastAction:  ptr(models.ActionApproved),
		IsFinalized: ptr(true),
		Remarks:     ptr(remarks),
	}
	if current.Instructions == "" && current.Remarks != "" {
		upd.Instructions = ptr(current.Remarks)
	}
	if err := s.assignments.UpdateState(ctx, current.ID, upd); err != nil {
		return nil, err
	}

	origin, _ := s.users.FindByID(ctx, current.AssignedBy)
	s.logActivity(ctx, "approve", assignmentID, map[string]any{"by": actor.ID.Hex()})
	s.notifyHop(origin, platform.NotifyFormApproved,
		"Form approved",
		"A form you routed has been approved: "+remarks,
		assignmentID)

	return s.assignments.FindByID(ctx, assignmentID)
}

// SubmitToDistributor hands the approved form back to the original
// distributor. This is terminal for the submission in this engine.
func (s *WorkflowService) SubmitToDistributor(ctx context.Context, actor Actor, assignmentID primitive.ObjectID, remarks string) (*models.Assignment, error) {
	current, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apperr.NotFound("assignment not found")
	}
	if current.AssignedTo != actor.ID {
		return nil, apperr.Forbidden("you are not the holder of this assignment")
	}
	// Strict: a draft on a delegation-disabled form is auto-promoted to
	// Approved on save, so anything still Edited has not been approved.
	if current.Status != models.StatusApproved {
		return nil, apperr.Validation("form must be approved before submission")
	}

	now := time.Now().UTC()
	if current.DataID != nil {
		sub, err := s.submissions.FindByID(ctx, *current.DataID)
		if err != nil {
			return nil, err
		}
		if sub != nil && sub.Status != models.StatusApproved {
			return nil, apperr.Validation("form must be approved before submission")
		}
		err = s.submissions.SetStatus(ctx, *current.DataID, models.StatusSubmitted, models.MovementEntry{
			PerformedBy: actor.ID,
			Action:      models.MoveSubmitted,
			Remarks:     remarks,
			Timestamp:   now,
		})
		if err != nil {
			return nil, err
		}
	}

	err = s.assignments.UpdateState(ctx, current.ID, models.AssignmentStateUpdate{
		Status:     ptr(models.StatusSubmitted),
		LastAction: ptr(models.ActionSubmitted),
		Remarks:    ptr(remarks),
	})
	if err != nil {
		return nil, err
	}

	distributorID := current.AssignedBy
	if len(current.DelegationChain) > 0 {
		distributorID = current.DelegationChain[0]
	}
	distributor, _ := s.users.FindByID(ctx, distributorID)
	s.logActivity(ctx, "submit-to-distributor", assignmentID, map[string]any{"by": actor.ID.Hex()})
	s.notifyHop(distributor, platform.NotifyFormSubmitted,
		"Form submitted",
		"A form you distributed has been completed and submitted.",
		assignmentID)

	return s.assignments.FindByID(ctx, assignmentID)
}

// DraftResult pairs the saved submission with its custody record.
type DraftResult struct {
	Submission *models.Submission `json:"submission"`
	Assignment *models.Assignment `json:"assignment"`
}

// SaveDraft upserts the caller's submission and lazily bootstraps the
// root assignment. Forms with delegation disabled skip the chain: the
// draft is promoted straight to Approved.
func (s *WorkflowService) SaveDraft(ctx context.Context, actor Actor, templateID primitive.ObjectID, data map[string]any, assignmentID *primitive.ObjectID) (*DraftResult, error) {
	template, err := s.templates.FindByID(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperr.NotFound("form template not found")
	}

	targetStatus := models.StatusEdited
	moveAction := models.MoveDraftSaved
	if !template.AllowDelegation {
		targetStatus = models.StatusApproved
		moveAction = models.MoveApproved
	}

	now := time.Now().UTC()
	sub, err := s.submissions.FindForUser(ctx, templateID, actor.ID)
	if err != nil {
		return nil, err
	}
	entry := models.MovementEntry{
		PerformedBy: actor.ID,
		Action:      moveAction,
		Timestamp:   now,
	}
	if sub == nil {
		sub = &models.Submission{
			TemplateID:      templateID,
			UserID:          actor.ID,
			Data:            data,
			Status:          targetStatus,
			MovementHistory: []models.MovementEntry{entry},
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		subID, err := s.submissions.Create(ctx, sub)
		if err != nil {
			return nil, err
		}
		sub.ID = subID
	} else {
		if !template.AllowMultipleSubmissions && sub.Status == models.StatusSubmitted {
			return nil, apperr.Conflict("this form has already been submitted")
		}
		if err := s.submissions.SaveData(ctx, sub.ID, data, targetStatus, entry); err != nil {
			return nil, err
		}
		sub.Data = data
		sub.Status = targetStatus
		sub.MovementHistory = append(sub.MovementHistory, entry)
		sub.UpdatedAt = now
	}

	var assignment *models.Assignment
	if assignmentID != nil {
		assignment, err = s.assignments.FindByID(ctx, *assignmentID)
		if err != nil {
			return nil, err
		}
		if assignment == nil {
			return nil, apperr.NotFound("assignment not found")
		}
		if assignment.TemplateID != templateID {
			return nil, apperr.Validation("assignment does not belong to this form template")
		}
		if assignment.AssignedTo != actor.ID {
			return nil, apperr.Forbidden("you are not the holder of this assignment")
		}
	} else {
		assignment, err = s.assignments.LatestForHolder(ctx, templateID, actor.ID)
		if err != nil {
			return nil, err
		}
	}

	if assignment == nil {
		assignment = s.newRoot(template, actor.ID, targetStatus, now)
		assignment.DataID = &sub.ID
		rootID, err := s.assignments.Create(ctx, assignment)
		if err != nil {
			return nil, err
		}
		assignment.ID = rootID
	} else {
		upd := models.AssignmentStateUpdate{Status: ptr(targetStatus)}
		if assignment.DataID == nil {
			upd.DataID = &sub.ID
			assignment.DataID = &sub.ID
		}
		if err := s.assignments.UpdateState(ctx, assignment.ID, upd); err != nil {
			return nil, err
		}
		assignment.Status = targetStatus
	}

	s.logActivity(ctx, "save-draft", sub.ID, map[string]any{
		"templateId": templateID.Hex(),
		"status":     targetStatus,
	})

	return &DraftResult{Submission: sub, Assignment: assignment}, nil
}

// resolveCurrent finds the caller's active assignment on a template.
// nil with no error means the caller has no custody record yet.
func (s *WorkflowService) resolveCurrent(ctx context.Context, actor Actor, template *models.FormTemplate, parentAssignmentID *primitive.ObjectID) (*models.Assignment, error) {
	if parentAssignmentID != nil {
		current, err := s.assignments.FindByID(ctx, *parentAssignmentID)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, apperr.NotFound("assignment not found")
		}
		if current.TemplateID != template.ID {
			return nil, apperr.Validation("assignment does not belong to this form template")
		}
		return current, nil
	}
	return s.assignments.LatestForHolder(ctx, template.ID, actor.ID)
}

func (s *WorkflowService) newRoot(template *models.FormTemplate, holder primitive.ObjectID, status string, now time.Time) *models.Assignment {
	return &models.Assignment{
		TemplateID:      template.ID,
		AssignedTo:      holder,
		AssignedBy:      template.CreatedBy,
		Status:          status,
		DelegationChain: []primitive.ObjectID{template.CreatedBy},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (s *WorkflowService) notifyHop(target *models.User, kind, title, message string, refID primitive.ObjectID) {
	if target == nil {
		return
	}
	if s.notifier != nil {
		n := platform.Notification{
			UserID:  target.ID.Hex(),
			Type:    kind,
			Title:   title,
			Message: message,
			RefID:   refID.Hex(),
			RefType: "assignment",
		}
		notifier := s.notifier
		platform.Dispatch("notify", func() error {
			return notifier.Notify(context.Background(), n)
		})
	}
	if s.mailer != nil && target.Email != "" {
		m := platform.Mail{
			To:      target.Email,
			Subject: title,
			HTML:    "<p>" + message + "</p>",
		}
		mailer := s.mailer
		platform.Dispatch("mail", func() error {
			return mailer.Send(context.Background(), m)
		})
	}
}

func (s *WorkflowService) logActivity(ctx context.Context, action string, id primitive.ObjectID, diff map[string]any) {
	if s.activity != nil {
		s.activity.Log(ctx, action, "assignment", id.Hex(), diff)
	}
}

// rootChain seeds a new branch with the template owner so the
// distributor is always hop zero.
func rootChain(owner, sender primitive.ObjectID) []primitive.ObjectID {
	if owner == sender {
		return []primitive.ObjectID{sender}
	}
	return []primitive.ObjectID{owner, sender}
}

func extendChain(chain []primitive.ObjectID, next primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(chain)+1)
	out = append(out, chain...)
	return append(out, next)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T { return &v }
